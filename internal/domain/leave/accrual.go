package leave

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"leavehub/internal/domain/employee"
)

var twelve = decimal.NewFromInt(12)

type AccrualSummary struct {
	TypesProcessed   int `json:"typesProcessed"`
	EmployeesAccrued int `json:"employeesAccrued"`
}

type RolloverSummary struct {
	Year       int `json:"year"`
	RowsOpened int `json:"rowsOpened"`
	Employees  int `json:"employees"`
	LeaveTypes int `json:"leaveTypes"`
}

// RunAccruals applies one monthly accrual per monthly-accruing type, once per
// calendar month. The scheduler calls this on its own cadence; re-runs inside
// the same month are no-ops.
func RunAccruals(ctx context.Context, store Store, ledger *Ledger, directory employee.Directory, now time.Time) (AccrualSummary, error) {
	var summary AccrualSummary

	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	types, err := store.ListTypes(ctx)
	if err != nil {
		return summary, err
	}
	profiles, err := directory.ListActive(ctx)
	if err != nil {
		return summary, err
	}

	for _, lt := range types {
		if lt.AccrualMethod != AccrualMonthly || lt.AnnualEntitlement.Sign() <= 0 {
			continue
		}

		last, err := store.LastAccrualRun(ctx, lt.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return summary, err
		}
		if !last.IsZero() && !last.Before(periodStart) {
			continue
		}

		monthlyRate := lt.AnnualEntitlement.Div(twelve).Round(2)
		accrued := 0
		for _, p := range profiles {
			if !lt.GenderEligibility.Matches(p.Gender) {
				continue
			}
			key := BalanceKey{EmployeeID: p.ID, LeaveTypeID: lt.ID, Year: now.Year()}
			if err := ledger.Credit(ctx, key, monthlyRate, false); err != nil {
				return summary, err
			}
			accrued++
		}

		if err := store.RecordAccrualRun(ctx, lt.ID, periodStart, accrued); err != nil {
			return summary, err
		}
		summary.TypesProcessed++
		summary.EmployeesAccrued += accrued
	}

	return summary, nil
}

// RunYearRollover opens the new year's balance rows for every active
// employee and type, applying frontloaded entitlement and capped
// carry-forward. Idempotent: rows that already exist are skipped.
func RunYearRollover(ctx context.Context, store Store, ledger *Ledger, directory employee.Directory, year int) (RolloverSummary, error) {
	summary := RolloverSummary{Year: year}

	types, err := store.ListTypes(ctx)
	if err != nil {
		return summary, err
	}
	profiles, err := directory.ListActive(ctx)
	if err != nil {
		return summary, err
	}
	summary.Employees = len(profiles)
	summary.LeaveTypes = len(types)

	for _, p := range profiles {
		for _, lt := range types {
			if !lt.GenderEligibility.Matches(p.Gender) {
				continue
			}
			_, err := store.GetBalance(ctx, BalanceKey{EmployeeID: p.ID, LeaveTypeID: lt.ID, Year: year})
			exists := err == nil
			if err != nil && !errors.Is(err, ErrNotFound) {
				return summary, err
			}
			if err := ledger.StartNewYear(ctx, p.ID, lt, year); err != nil {
				return summary, err
			}
			if !exists {
				summary.RowsOpened++
			}
		}
	}
	return summary, nil
}
