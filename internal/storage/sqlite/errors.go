package sqlite

import "errors"

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrColumnNotFound = errors.New("column not found")
	ErrRuleNotFound   = errors.New("recurrence rule not found")

	// ErrColumnHasTasks is returned when deleting a column that tasks still reference.
	ErrColumnHasTasks = errors.New("cannot delete a column that contains tasks")
	// ErrInvalidColumn wraps column input the store refuses to persist.
	ErrInvalidColumn = errors.New("invalid column")
)
