package task

import "errors"

// Task-related errors
var (
	// Validation errors
	ErrEmptyTitle      = errors.New("title cannot be empty")
	ErrInvalidPriority = errors.New("priority must be one of low, medium, high")
	ErrInvalidDuration = errors.New("duration must be non-negative with minutes below 60")
	ErrInvalidSchedule = errors.New("start_time and end_time must be HH:MM with end after start")

	// Business logic errors
	ErrOccurrenceCannotRecur = errors.New("a materialized occurrence cannot become recurring")
)
