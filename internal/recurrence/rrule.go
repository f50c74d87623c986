package recurrence

import (
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	"taskboard/internal/models"
)

var frequencies = map[models.Unit]rrule.Frequency{
	models.UnitDaily:   rrule.DAILY,
	models.UnitWeekly:  rrule.WEEKLY,
	models.UnitMonthly: rrule.MONTHLY,
	models.UnitYearly:  rrule.YEARLY,
}

// weekdays is indexed like time.Weekday.
var weekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

const (
	icalDate     = "20060102"
	icalDateTime = "20060102T150405Z"
)

// Series is a recurring task written in RFC 5545 terms. Start is the first
// occurrence (DTSTART). The rest follow from Rule, or are listed in Dates
// (RDATE) when the rule has no exact RRULE form.
type Series struct {
	Start time.Time
	// AllDay marks DATE values; otherwise values are UTC DATE-TIMEs.
	AllDay bool
	Rule   string
	Dates  []time.Time
}

// SeriesOf describes the occurrences Generate yields for rule anchored at base.
// dateOnly asks for DATE values, which is honored when every occurrence falls
// on midnight UTC. It reports false when the rule is invalid or yields nothing.
//
// Month-end clamping is written with BYSETPOS=-1 over the candidate days (or
// BYMONTHDAY=-1 for the 31st). Month-day sets clamping more than that fall
// back to explicit dates.
func SeriesOf(base time.Time, rule models.RecurrenceRule, dateOnly bool) (Series, bool) {
	if err := ValidateRule(rule); err != nil {
		return Series{}, false
	}
	base = base.UTC()
	all := Generate(base, rule, Window{})
	if len(all) == 0 {
		return Series{}, false
	}

	series := Series{Start: all[0], AllDay: dateOnly && isMidnight(all[0])}
	opt, ok := rruleOption(base, rule)
	if !ok {
		series.Dates = all[1:]
		return series, true
	}

	opt.Interval = rule.Interval
	opt.Wkst = rrule.SU
	if rule.MaxOccurrences != nil {
		// COUNT includes any cut made by the end date.
		opt.Count = len(all)
	}
	series.Rule = opt.RRuleString()
	if rule.MaxOccurrences == nil && rule.EndDate != nil {
		series.Rule += ";UNTIL=" + formatUntil(*rule.EndDate, series.AllDay)
	}
	return series, true
}

// rruleOption maps rule onto rrule options without COUNT, UNTIL or INTERVAL.
// It reports false when no RRULE reproduces the clamped month days.
func rruleOption(base time.Time, rule models.RecurrenceRule) (rrule.ROption, bool) {
	opt := rrule.ROption{Freq: frequencies[rule.Unit]}

	switch rule.Unit {
	case models.UnitWeekly:
		for _, d := range sortedSet(rule.Weekdays) {
			opt.Byweekday = append(opt.Byweekday, weekdays[d])
		}
	case models.UnitMonthly:
		days := sortedSet(rule.MonthDays)
		if len(days) == 0 {
			days = []int{base.Day()}
		}
		return monthDays(opt, days)
	case models.UnitYearly:
		if base.Month() == time.February && base.Day() == 29 {
			opt.Bymonth = []int{2}
			opt.Bymonthday = []int{28, 29}
			opt.Bysetpos = []int{-1}
		}
	}
	return opt, true
}

// monthDays sets BYMONTHDAY for days clamped to the month end.
func monthDays(opt rrule.ROption, days []int) (rrule.ROption, bool) {
	last := days[len(days)-1]
	switch {
	case last <= 28:
		opt.Bymonthday = days
	case len(days) == 1:
		// The latest existing day among 28..last is min(last, month length).
		for d := 28; d <= last; d++ {
			opt.Bymonthday = append(opt.Bymonthday, d)
		}
		opt.Bysetpos = []int{-1}
	case last == 31 && days[len(days)-2] <= 28:
		opt.Bymonthday = append(slices.Clone(days[:len(days)-1]), -1)
	default:
		return opt, false
	}
	return opt, true
}

// formatUntil returns UNTIL for end, as a DATE when the series uses DATE values.
func formatUntil(end time.Time, allDay bool) string {
	end = end.UTC()
	if allDay {
		return end.Format(icalDate)
	}
	return end.Truncate(time.Second).Format(icalDateTime)
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}
