package recurrence

import (
	"taskboard/internal/models"
)

// ValidateRule rejects rules that the generator cannot expand safely. It is
// called when a rule is created or replaced, never during generation.
func ValidateRule(rule models.RecurrenceRule) error {
	if !rule.Unit.Valid() {
		return invalid("unit", "unknown unit %q", rule.Unit)
	}
	if rule.Interval <= 0 {
		return invalid("interval", "must be a positive integer, got %d", rule.Interval)
	}

	if rule.Weekdays != nil {
		if rule.Unit != models.UnitWeekly {
			return invalid("weekdays", "only allowed for weekly rules")
		}
		if len(rule.Weekdays) == 0 {
			return invalid("weekdays", "must not be empty")
		}
		for _, d := range rule.Weekdays {
			if d < 0 || d > 6 {
				return invalid("weekdays", "day %d out of range 0..6", d)
			}
		}
	}

	if rule.MonthDays != nil {
		if rule.Unit != models.UnitMonthly {
			return invalid("month_days", "only allowed for monthly rules")
		}
		if len(rule.MonthDays) == 0 {
			return invalid("month_days", "must not be empty")
		}
		for _, d := range rule.MonthDays {
			if d < 1 || d > 31 {
				return invalid("month_days", "day %d out of range 1..31", d)
			}
		}
	}

	if rule.MaxOccurrences != nil && *rule.MaxOccurrences <= 0 {
		return invalid("max_occurrences", "must be positive, got %d", *rule.MaxOccurrences)
	}
	return nil
}
