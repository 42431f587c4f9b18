package leave

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsWorkingDay(t *testing.T) {
	holidays := map[string]struct{}{"2026-06-08": {}}

	assert.True(t, IsWorkingDay(date(2026, time.June, 1), holidays))   // Monday
	assert.False(t, IsWorkingDay(date(2026, time.June, 6), holidays))  // Saturday
	assert.False(t, IsWorkingDay(date(2026, time.June, 7), holidays))  // Sunday
	assert.False(t, IsWorkingDay(date(2026, time.June, 8), holidays))  // holiday
	assert.True(t, IsWorkingDay(date(2026, time.June, 8), nil))
}

func TestCountChargeable(t *testing.T) {
	holidayMonday := map[string]struct{}{"2026-06-08": {}}

	tests := []struct {
		name     string
		from, to time.Time
		duration DurationType
		holidays map[string]struct{}
		want     string
	}{
		{
			name: "friday to monday skips weekend",
			from: date(2026, time.June, 5), to: date(2026, time.June, 8),
			duration: DurationMultipleDays,
			want:     "2",
		},
		{
			name: "friday to holiday monday charges one day",
			from: date(2026, time.June, 5), to: date(2026, time.June, 8),
			duration: DurationMultipleDays,
			holidays: holidayMonday,
			want:     "1",
		},
		{
			name: "full week",
			from: date(2026, time.June, 1), to: date(2026, time.June, 7),
			duration: DurationMultipleDays,
			want:     "5",
		},
		{
			name: "weekend only multi day is zero",
			from: date(2026, time.June, 6), to: date(2026, time.June, 7),
			duration: DurationMultipleDays,
			want:     "0",
		},
		{
			name: "half day is always half",
			from: date(2026, time.June, 6), to: date(2026, time.June, 6),
			duration: DurationHalfDay,
			want:     "0.5",
		},
		{
			name: "full day on working day",
			from: date(2026, time.June, 1), to: date(2026, time.June, 1),
			duration: DurationFullDay,
			want:     "1",
		},
		{
			name: "full day on saturday is zero",
			from: date(2026, time.June, 6), to: date(2026, time.June, 6),
			duration: DurationFullDay,
			want:     "0",
		},
		{
			name: "full day on holiday is zero",
			from: date(2026, time.June, 8), to: date(2026, time.June, 8),
			duration: DurationFullDay,
			holidays: holidayMonday,
			want:     "0",
		},
		{
			name: "range across year boundary",
			from: date(2026, time.December, 30), to: date(2027, time.January, 4),
			duration: DurationMultipleDays,
			want:     "4", // Wed, Thu, Fri, Mon
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CountChargeable(tc.from, tc.to, tc.duration, tc.holidays)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
				"got %s, want %s", got, tc.want)
		})
	}
}

func TestCountChargeableNormalizesInstants(t *testing.T) {
	// Late-evening timestamps in a non-UTC zone must count the same as
	// their calendar dates.
	ist := time.FixedZone("IST", 5*3600+1800)
	from := time.Date(2026, time.June, 5, 23, 30, 0, 0, ist)
	to := time.Date(2026, time.June, 8, 0, 15, 0, 0, ist)

	got := CountChargeable(from, to, DurationMultipleDays, nil)
	assert.True(t, got.Equal(days(2)), "got %s", got)
}

func TestYearsSpanned(t *testing.T) {
	assert.Equal(t, []int{2026}, yearsSpanned(date(2026, time.March, 1), date(2026, time.March, 5)))
	assert.Equal(t, []int{2026, 2027}, yearsSpanned(date(2026, time.December, 28), date(2027, time.January, 2)))
	assert.Equal(t, []int{2026}, yearsSpanned(date(2026, time.March, 1), time.Time{}))
}
