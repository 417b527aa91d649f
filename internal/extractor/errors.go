package extractor

import "fmt"

// ParseError describes a resource that could not be turned into a component.
// It is reported and skipped; it never aborts a batch.
type ParseError struct {
	Origin string
	Type   string
	Name   string
	Reason string
}

func (e *ParseError) Error() string {
	switch {
	case e.Name != "" && e.Type != "":
		return fmt.Sprintf("skip %s %q (%s): %s", e.Type, e.Name, e.Origin, e.Reason)
	case e.Name != "":
		return fmt.Sprintf("skip %q (%s): %s", e.Name, e.Origin, e.Reason)
	default:
		return fmt.Sprintf("skip %s: %s", e.Origin, e.Reason)
	}
}
