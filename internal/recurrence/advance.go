package recurrence

import (
	"time"

	"taskboard/internal/models"
)

// AdvanceDate moves date forward by steps units. Monthly and yearly steps clamp
// to the last day of the target month instead of overflowing into the next one,
// so Jan 31 + 1 month is Feb 28 (or 29) and Feb 29 + 1 year is Feb 28.
// Clock time and location are preserved.
func AdvanceDate(date time.Time, unit models.Unit, steps int) time.Time {
	switch unit {
	case models.UnitDaily:
		return date.AddDate(0, 0, steps)
	case models.UnitWeekly:
		return date.AddDate(0, 0, 7*steps)
	case models.UnitMonthly:
		return addMonths(date, steps)
	case models.UnitYearly:
		return addMonths(date, 12*steps)
	}
	return date
}

func addMonths(date time.Time, months int) time.Time {
	year, month, day := date.Date()
	// Day 1 never overflows, so time.Date only normalizes the month here.
	target := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, date.Location())
	return withDay(target, day, date)
}

// withDay places day (clamped to the month length) in the month of target,
// keeping the clock of clock.
func withDay(target time.Time, day int, clock time.Time) time.Time {
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day,
		clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), clock.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
