package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	zeroDays = decimal.Zero
	halfDay  = decimal.NewFromFloat(0.5)
	oneDay   = decimal.NewFromInt(1)
)

// IsWorkingDay reports whether date is neither a weekend nor in the holiday
// set. The set is keyed by DateKey.
func IsWorkingDay(date time.Time, holidays map[string]struct{}) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := holidays[DateKey(date)]
	return !holiday
}

// CountChargeable returns the chargeable day count for a date range. Half
// day is 0.5 regardless of range; full day is 1 when from lands on a working
// day and 0 otherwise; multiple days counts working days in [from, to]
// inclusive. Pure and timezone-stable: inputs are normalized to calendar
// dates before counting.
func CountChargeable(from, to time.Time, duration DurationType, holidays map[string]struct{}) decimal.Decimal {
	from = DateOnly(from)
	if to.IsZero() {
		to = from
	} else {
		to = DateOnly(to)
	}

	switch duration {
	case DurationHalfDay:
		return halfDay
	case DurationFullDay:
		if IsWorkingDay(from, holidays) {
			return oneDay
		}
		return zeroDays
	}

	count := zeroDays
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsWorkingDay(d, holidays) {
			count = count.Add(oneDay)
		}
	}
	return count
}

// yearsSpanned lists the calendar years touched by [from, to].
func yearsSpanned(from, to time.Time) []int {
	if to.IsZero() {
		to = from
	}
	var years []int
	for y := from.Year(); y <= to.Year(); y++ {
		years = append(years, y)
	}
	return years
}
