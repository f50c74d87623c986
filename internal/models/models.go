package models

import (
	"fmt"
	"strings"
	"time"
)

// Column describes a kanban lane that groups tasks on the board.
type Column struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	OrderIndex int64     `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
}

// Task represents a single card on the board.
//
// A recurring task carries its Recurrence rule; occurrences materialized from it
// are plain tasks pointing back through ParentTaskID.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ColumnID    string     `json:"column_id"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    Priority   `json:"priority"`
	// DurationHours and DurationMinutes estimate the effort.
	DurationHours   *int `json:"duration_hours,omitempty"`
	DurationMinutes *int `json:"duration_minutes,omitempty"`
	// StartTime and EndTime are times of day ("15:04") on the due date.
	StartTime     *string         `json:"start_time,omitempty"`
	EndTime       *string         `json:"end_time,omitempty"`
	IsRecurring   bool            `json:"is_recurring"`
	ParentTaskID  *string         `json:"parent_task_id,omitempty"`
	LastGenerated *time.Time      `json:"last_generated,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Recurrence    *RecurrenceRule `json:"recurrence,omitempty"`
}

// DateLayout is the calendar date format used by the API and the CLI.
const DateLayout = "2006-01-02"

// ParseDate accepts a calendar date (midnight UTC) or an RFC 3339 timestamp,
// which is converted to UTC.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", raw)
	}
	return t.UTC(), nil
}

// TimeOfDayLayout is the format of StartTime and EndTime.
const TimeOfDayLayout = "15:04"

// ParseTimeOfDay returns the offset of a "15:04" clock reading from midnight.
func ParseTimeOfDay(raw string) (time.Duration, error) {
	t, err := time.Parse(TimeOfDayLayout, raw)
	if err != nil {
		return 0, fmt.Errorf("time of day %q: expected HH:MM", raw)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Duration returns the planned length of the task: the explicit estimate when
// one is set, otherwise the span from StartTime to EndTime. Zero means unknown.
func (t Task) Duration() time.Duration {
	var d time.Duration
	if t.DurationHours != nil {
		d += time.Duration(*t.DurationHours) * time.Hour
	}
	if t.DurationMinutes != nil {
		d += time.Duration(*t.DurationMinutes) * time.Minute
	}
	if d > 0 || t.StartTime == nil || t.EndTime == nil {
		return d
	}
	start, err := ParseTimeOfDay(*t.StartTime)
	if err != nil {
		return 0
	}
	end, err := ParseTimeOfDay(*t.EndTime)
	if err != nil || end <= start {
		return 0
	}
	return end - start
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Unit is the repeat granularity of a recurrence rule.
type Unit string

const (
	UnitDaily   Unit = "daily"
	UnitWeekly  Unit = "weekly"
	UnitMonthly Unit = "monthly"
	UnitYearly  Unit = "yearly"
)

// Valid reports whether u is one of the known units.
func (u Unit) Valid() bool {
	switch u {
	case UnitDaily, UnitWeekly, UnitMonthly, UnitYearly:
		return true
	}
	return false
}

// RecurrenceRule describes how a recurring task repeats. It is owned by exactly
// one task and shares its lifetime.
type RecurrenceRule struct {
	TaskID   string `json:"task_id"`
	Unit     Unit   `json:"unit"`
	Interval int    `json:"interval"`
	// Weekdays pins weekly rules to days of the week, 0 = Sunday.
	Weekdays []int `json:"weekdays,omitempty"`
	// MonthDays pins monthly rules to days of the month, 1..31.
	MonthDays      []int      `json:"month_days,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	MaxOccurrences *int       `json:"max_occurrences,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// DefaultColumns are seeded into an empty board.
var DefaultColumns = []Column{
	{ID: "todo", Name: "To Do", Color: "#6366f1", OrderIndex: 0},
	{ID: "in-progress", Name: "In Progress", Color: "#f59e0b", OrderIndex: 1},
	{ID: "done", Name: "Done", Color: "#10b981", OrderIndex: 2},
}

// DefaultColumnColor is used when a column is created without a color.
const DefaultColumnColor = "#6366f1"
