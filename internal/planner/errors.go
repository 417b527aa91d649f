package planner

import (
	"errors"
	"fmt"
	"strings"
)

// CycleError is one pipeline invoke cycle, listed in invoke order with the
// first pipeline repeated at the end: [A B A].
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return "pipeline invoke cycle: " + strings.Join(e.Cycle, " -> ")
}

// ValidationError fails the whole pipeline set. No deployment order is
// produced until every cycle is removed from the source.
type ValidationError struct {
	Cycles []*CycleError
}

func (e *ValidationError) Error() string {
	if len(e.Cycles) == 1 {
		return "deployment order: " + e.Cycles[0].Error()
	}
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = strings.Join(c.Cycle, " -> ")
	}
	return fmt.Sprintf("deployment order: %d pipeline invoke cycles: %s", len(e.Cycles), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Cycles))
	for i, c := range e.Cycles {
		out[i] = c
	}
	return out
}

// IsCycle reports whether err carries at least one invoke cycle.
func IsCycle(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}
