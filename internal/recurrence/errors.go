package recurrence

import (
	"errors"
	"fmt"
)

// ErrNotRecurring is returned when materialization is requested for a task
// that has no recurrence.
var ErrNotRecurring = errors.New("task is not recurring")

// ValidationError reports a malformed recurrence rule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid recurrence %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
