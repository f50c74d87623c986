package recurrence

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/models"
)

func dates(ds ...time.Time) []time.Time { return ds }

func TestGenerate(t *testing.T) {
	monday := date(2024, 1, 1)
	end := date(2024, 1, 4)

	tests := []struct {
		name   string
		base   time.Time
		rule   models.RecurrenceRule
		window Window
		want   []time.Time
	}{
		{
			name:   "every second day up to window end",
			base:   date(2024, 1, 1),
			rule:   models.RecurrenceRule{Unit: models.UnitDaily, Interval: 2},
			window: Until(date(2024, 1, 10)),
			want:   dates(date(2024, 1, 3), date(2024, 1, 5), date(2024, 1, 7), date(2024, 1, 9)),
		},
		{
			name:   "end date is inclusive",
			base:   date(2024, 1, 1),
			rule:   models.RecurrenceRule{Unit: models.UnitDaily, Interval: 1, EndDate: &end},
			window: Window{},
			want:   dates(date(2024, 1, 2), date(2024, 1, 3), date(2024, 1, 4)),
		},
		{
			name:   "max occurrences caps output",
			base:   date(2024, 1, 1),
			rule:   models.RecurrenceRule{Unit: models.UnitWeekly, Interval: 1, MaxOccurrences: intPtr(3)},
			window: Window{},
			want:   dates(date(2024, 1, 8), date(2024, 1, 15), date(2024, 1, 22)),
		},
		{
			name:   "max occurrences counts candidates before window start",
			base:   date(2024, 1, 1),
			rule:   models.RecurrenceRule{Unit: models.UnitDaily, Interval: 1, MaxOccurrences: intPtr(5)},
			window: Window{Start: mo.Some(date(2024, 1, 4))},
			want:   dates(date(2024, 1, 4), date(2024, 1, 5), date(2024, 1, 6)),
		},
		{
			name:   "window start and end",
			base:   date(2024, 1, 1),
			rule:   models.RecurrenceRule{Unit: models.UnitDaily, Interval: 3},
			window: Between(date(2024, 1, 5), date(2024, 1, 14)),
			want:   dates(date(2024, 1, 7), date(2024, 1, 10), date(2024, 1, 13)),
		},
		{
			name:   "monthly from month end does not drift",
			base:   date(2024, 1, 31),
			rule:   models.RecurrenceRule{Unit: models.UnitMonthly, Interval: 1},
			window: Until(date(2024, 5, 1)),
			want:   dates(date(2024, 2, 29), date(2024, 3, 31), date(2024, 4, 30)),
		},
		{
			name:   "yearly from leap day",
			base:   date(2024, 2, 29),
			rule:   models.RecurrenceRule{Unit: models.UnitYearly, Interval: 1, MaxOccurrences: intPtr(4)},
			window: Window{},
			want:   dates(date(2025, 2, 28), date(2026, 2, 28), date(2027, 2, 28), date(2028, 2, 29)),
		},
		{
			name:   "friday from a monday lands in the same week",
			base:   monday,
			rule:   models.RecurrenceRule{Unit: models.UnitWeekly, Interval: 1, Weekdays: []int{5}},
			window: Until(date(2024, 1, 20)),
			want:   dates(date(2024, 1, 5), date(2024, 1, 12), date(2024, 1, 19)),
		},
		{
			name:   "weekday set with interval skips weeks",
			base:   monday,
			rule:   models.RecurrenceRule{Unit: models.UnitWeekly, Interval: 2, Weekdays: []int{3, 1}},
			window: Until(date(2024, 1, 31)),
			want:   dates(date(2024, 1, 3), date(2024, 1, 15), date(2024, 1, 17), date(2024, 1, 29), date(2024, 1, 31)),
		},
		{
			name:   "month day set clamps short months",
			base:   date(2024, 1, 10),
			rule:   models.RecurrenceRule{Unit: models.UnitMonthly, Interval: 1, MonthDays: []int{31, 15}},
			window: Until(date(2024, 3, 20)),
			want:   dates(date(2024, 1, 15), date(2024, 1, 31), date(2024, 2, 15), date(2024, 2, 29), date(2024, 3, 15)),
		},
		{
			name:   "month day set with interval",
			base:   date(2024, 1, 20),
			rule:   models.RecurrenceRule{Unit: models.UnitMonthly, Interval: 2, MonthDays: []int{5}},
			window: Until(date(2024, 6, 1)),
			want:   dates(date(2024, 3, 5), date(2024, 5, 5)),
		},
		{
			name:   "non positive interval yields nothing",
			base:   date(2024, 1, 1),
			rule:   models.RecurrenceRule{Unit: models.UnitDaily, Interval: 0},
			window: Until(date(2024, 1, 10)),
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Generate(tt.base, tt.rule, tt.window))
		})
	}
}

func TestGenerateStopsAtSafetyCap(t *testing.T) {
	got := Generate(date(2024, 1, 1), models.RecurrenceRule{Unit: models.UnitDaily, Interval: 1}, Window{})

	require.Len(t, got, MaxIterations)
	assert.Equal(t, date(2024, 1, 2), got[0])
}

func TestGenerateRespectsBounds(t *testing.T) {
	base := date(2024, 1, 31)
	end := date(2025, 6, 30)
	windowEnd := date(2025, 3, 1)

	rules := []models.RecurrenceRule{
		{Unit: models.UnitDaily, Interval: 5, MaxOccurrences: intPtr(20)},
		{Unit: models.UnitWeekly, Interval: 1, Weekdays: []int{0, 6}, EndDate: &end},
		{Unit: models.UnitWeekly, Interval: 3, MaxOccurrences: intPtr(7)},
		{Unit: models.UnitMonthly, Interval: 1, MonthDays: []int{1, 29, 30, 31}},
		{Unit: models.UnitMonthly, Interval: 5, EndDate: &end},
		{Unit: models.UnitYearly, Interval: 1, MaxOccurrences: intPtr(2)},
	}

	for _, rule := range rules {
		first := Generate(base, rule, Until(windowEnd))
		second := Generate(base, rule, Until(windowEnd))
		assert.Equal(t, first, second, "generation must be deterministic for %+v", rule)

		if rule.MaxOccurrences != nil {
			assert.LessOrEqual(t, len(first), *rule.MaxOccurrences)
		}
		for i, d := range first {
			assert.True(t, d.After(base), "%v not after base", d)
			assert.False(t, d.After(windowEnd), "%v after window end", d)
			if rule.EndDate != nil {
				assert.False(t, d.After(*rule.EndDate), "%v after end date", d)
			}
			if i > 0 {
				assert.True(t, d.After(first[i-1]), "occurrences must be strictly ascending")
			}
		}
	}
}
