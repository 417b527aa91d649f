package transform

import (
	"errors"
	"fmt"
)

// RequiredReferenceError is a hard failure: the activity cannot be expressed
// without the missing reference. The whole pipeline is reported as failed.
type RequiredReferenceError struct {
	Pipeline  string
	Activity  string
	Reference string
	Reason    string
}

func (e *RequiredReferenceError) Error() string {
	return fmt.Sprintf("pipeline %q activity %q: required reference %s: %s", e.Pipeline, e.Activity, e.Reference, e.Reason)
}

func requiredf(sc *Scope, reference, format string, args ...any) error {
	return &RequiredReferenceError{
		Pipeline:  sc.Pipeline,
		Activity:  sc.ActivityPath(),
		Reference: reference,
		Reason:    fmt.Sprintf(format, args...),
	}
}

// IsRequiredReference reports whether err is or wraps a RequiredReferenceError.
func IsRequiredReference(err error) bool {
	var rr *RequiredReferenceError
	return errors.As(err, &rr)
}

// ErrCatalogNotFrozen is returned when transformation starts before parsing finished.
var ErrCatalogNotFrozen = errors.New("catalog must be frozen before transformation")
