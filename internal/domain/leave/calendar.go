package leave

import (
	"context"
	"time"
)

// Calendar stores named non-working days and answers holiday lookups for the
// working-day calculator.
type Calendar struct {
	store Store
}

func NewCalendar(store Store) *Calendar {
	return &Calendar{store: store}
}

func (c *Calendar) List(ctx context.Context, year int) ([]Holiday, error) {
	return c.store.ListHolidays(ctx, year)
}

func (c *Calendar) Create(ctx context.Context, h Holiday) (string, error) {
	if err := validateHoliday(h); err != nil {
		return "", err
	}
	h.Date = DateOnly(h.Date)
	return c.store.CreateHoliday(ctx, h)
}

func (c *Calendar) Update(ctx context.Context, h Holiday) error {
	if h.ID == "" {
		return validationErr("holiday id required")
	}
	if err := validateHoliday(h); err != nil {
		return err
	}
	h.Date = DateOnly(h.Date)
	return c.store.UpdateHoliday(ctx, h)
}

// Delete removes a holiday. Past applications keep the day counts computed
// when they were submitted; nothing is recalculated.
func (c *Calendar) Delete(ctx context.Context, id string) error {
	return c.store.DeleteHoliday(ctx, id)
}

func (c *Calendar) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	dates, err := c.store.HolidayDates(ctx, []int{date.Year()})
	if err != nil {
		return false, err
	}
	_, ok := dates[DateKey(date)]
	return ok, nil
}

// DatesForYears returns the holiday date set for the given years, keyed by
// DateKey. Two observances on one day collapse into one entry, so a shared
// date still blocks exactly one working day.
func (c *Calendar) DatesForYears(ctx context.Context, years []int) (map[string]struct{}, error) {
	return c.store.HolidayDates(ctx, years)
}

// MaterializeRecurring copies recurring holidays from year-1 into year,
// skipping dates that already exist. Called by the jobs service around the
// year boundary.
func (c *Calendar) MaterializeRecurring(ctx context.Context, year int) (int, error) {
	previous, err := c.store.ListHolidays(ctx, year-1)
	if err != nil {
		return 0, err
	}
	existing, err := c.store.HolidayDates(ctx, []int{year})
	if err != nil {
		return 0, err
	}

	created := 0
	for _, h := range previous {
		if !h.Recurring {
			continue
		}
		next := time.Date(year, h.Date.Month(), h.Date.Day(), 0, 0, 0, 0, time.UTC)
		if _, ok := existing[DateKey(next)]; ok {
			continue
		}
		h.ID = ""
		h.Date = next
		if _, err := c.store.CreateHoliday(ctx, h); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func validateHoliday(h Holiday) error {
	if h.Name == "" {
		return validationErr("holiday name required")
	}
	if h.Date.IsZero() {
		return validationErr("holiday date required")
	}
	if !h.Type.Valid() {
		return validationErr("unknown holiday type %q", h.Type)
	}
	return nil
}
