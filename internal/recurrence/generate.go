package recurrence

import (
	"slices"
	"time"

	"github.com/samber/mo"

	"taskboard/internal/models"
)

// MaxIterations bounds every expansion regardless of the rule.
const MaxIterations = 1000

// Window restricts which occurrences a caller is interested in. Both bounds are
// inclusive; an absent bound is unbounded on that side.
type Window struct {
	Start mo.Option[time.Time]
	End   mo.Option[time.Time]
}

// Between returns a window bounded on both sides.
func Between(start, end time.Time) Window {
	return Window{Start: mo.Some(start), End: mo.Some(end)}
}

// Until returns a window with only an upper bound.
func Until(end time.Time) Window {
	return Window{End: mo.Some(end)}
}

// Generate expands rule anchored at base and returns the occurrences inside
// window in ascending order. base itself is never returned.
//
// Expansion stops at the first candidate past the rule's end date or the
// window end, once MaxOccurrences occurrences of the series have been counted
// (candidates before the window start count too), or after MaxIterations steps.
// Rules with a non-positive interval produce nothing.
func Generate(base time.Time, rule models.RecurrenceRule, window Window) []time.Time {
	if rule.Interval <= 0 || !rule.Unit.Valid() {
		return nil
	}
	next := stepper(base, rule)

	var out []time.Time
	count := 0
	current := base
	for i := 1; i <= MaxIterations; i++ {
		if rule.MaxOccurrences != nil && count >= *rule.MaxOccurrences {
			break
		}
		candidate := next(current, i)
		if !candidate.After(current) {
			break
		}
		if rule.EndDate != nil && candidate.After(*rule.EndDate) {
			break
		}
		if end, ok := window.End.Get(); ok && candidate.After(end) {
			break
		}
		current = candidate
		count++
		if start, ok := window.Start.Get(); ok && candidate.Before(start) {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

// stepper picks the successor function for rule. n is the 1-based index of the
// candidate being produced.
func stepper(base time.Time, rule models.RecurrenceRule) func(current time.Time, n int) time.Time {
	switch {
	case rule.Unit == models.UnitWeekly && len(rule.Weekdays) > 0:
		days := sortedSet(rule.Weekdays)
		return func(current time.Time, _ int) time.Time {
			return nextWeekday(current, days, rule.Interval)
		}
	case rule.Unit == models.UnitMonthly && len(rule.MonthDays) > 0:
		days := sortedSet(rule.MonthDays)
		return func(current time.Time, _ int) time.Time {
			return nextMonthDay(current, days, rule.Interval)
		}
	}
	// Stepping from base rather than from the previous candidate keeps
	// month-end clamping from drifting (Jan 31, Feb 29, Mar 31, ...).
	return func(_ time.Time, n int) time.Time {
		return AdvanceDate(base, rule.Unit, n*rule.Interval)
	}
}

// nextWeekday returns the nearest day in days strictly after current within
// current's week (weeks start on Sunday), or the first day in days of the week
// interval weeks later.
func nextWeekday(current time.Time, days []int, interval int) time.Time {
	cur := int(current.Weekday())
	for _, d := range days {
		if d > cur {
			return current.AddDate(0, 0, d-cur)
		}
	}
	return current.AddDate(0, 0, 7*interval-cur+days[0])
}

// nextMonthDay returns the nearest day in days strictly after current within
// current's month, or the smallest day in days of the month interval months
// later. Days past the end of a month clamp to its last day.
func nextMonthDay(current time.Time, days []int, interval int) time.Time {
	cur := current.Day()
	last := daysIn(current.Year(), current.Month())
	for _, d := range days {
		if min(d, last) > cur {
			return withDay(current, d, current)
		}
	}
	first := time.Date(current.Year(), current.Month()+time.Month(interval), 1, 0, 0, 0, 0, current.Location())
	return withDay(first, days[0], current)
}

func sortedSet(days []int) []int {
	out := slices.Clone(days)
	slices.Sort(out)
	return slices.Compact(out)
}
