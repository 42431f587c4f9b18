package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger is the sole authority over balance rows. The lifecycle engine and
// the credit workflow call into it; nothing else writes taken, pending, or
// available. Each mutation runs atomically for its (employee, type, year)
// key via Store.UpdateBalance and leaves the row untouched on failure.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// GetBalance returns the row for key, or an empty row when the employee has
// never accrued the type in that year.
func (l *Ledger) GetBalance(ctx context.Context, key BalanceKey) (Balance, error) {
	bal, err := l.store.GetBalance(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return Balance{
			EmployeeID:  key.EmployeeID,
			LeaveTypeID: key.LeaveTypeID,
			Year:        key.Year,
		}, nil
	}
	return bal, err
}

func (l *Ledger) ListBalances(ctx context.Context, employeeID string, year int) ([]Balance, error) {
	return l.store.ListBalances(ctx, employeeID, year)
}

// Reserve moves days from available into pending ahead of approval. It fails
// with InsufficientBalanceError unless the type allows a negative balance.
func (l *Ledger) Reserve(ctx context.Context, key BalanceKey, days decimal.Decimal) error {
	lt, err := l.store.GetType(ctx, key.LeaveTypeID)
	if err != nil {
		return fmt.Errorf("reserve: %w", err)
	}
	return l.mutate(ctx, key, func(b *Balance) error {
		if !lt.NegativeBalanceAllowed && b.Available.LessThan(days) {
			return &InsufficientBalanceError{
				LeaveType: lt.Name,
				Available: b.Available,
				Requested: days,
			}
		}
		b.Pending = b.Pending.Add(days)
		b.Available = b.Available.Sub(days)
		return nil
	})
}

// Commit moves days from pending into taken on approval. Available is
// unchanged: it already reflected the reservation.
func (l *Ledger) Commit(ctx context.Context, key BalanceKey, days decimal.Decimal) error {
	return l.mutate(ctx, key, func(b *Balance) error {
		if b.Pending.LessThan(days) {
			return fmt.Errorf("%w: commit of %s exceeds pending %s", ErrInvalidState, days, b.Pending)
		}
		b.Pending = b.Pending.Sub(days)
		b.Taken = b.Taken.Add(days)
		return nil
	})
}

// Release returns days from pending to available on rejection or cancellation.
func (l *Ledger) Release(ctx context.Context, key BalanceKey, days decimal.Decimal) error {
	return l.mutate(ctx, key, func(b *Balance) error {
		if b.Pending.LessThan(days) {
			return fmt.Errorf("%w: release of %s exceeds pending %s", ErrInvalidState, days, b.Pending)
		}
		b.Pending = b.Pending.Sub(days)
		b.Available = b.Available.Add(days)
		return nil
	})
}

// Restore returns days from taken to available when an approved leave is
// recalled.
func (l *Ledger) Restore(ctx context.Context, key BalanceKey, days decimal.Decimal) error {
	return l.mutate(ctx, key, func(b *Balance) error {
		if b.Taken.LessThan(days) {
			return fmt.Errorf("%w: restore of %s exceeds taken %s", ErrInvalidState, days, b.Taken)
		}
		b.Taken = b.Taken.Sub(days)
		b.Available = b.Available.Add(days)
		return nil
	})
}

// Credit adds days to the accrued bucket (credit approvals, accrual runs) or
// to entitlement (administrative grants) and to available.
func (l *Ledger) Credit(ctx context.Context, key BalanceKey, days decimal.Decimal, toEntitlement bool) error {
	if days.Sign() <= 0 {
		return validationErr("credit must be positive, got %s", days)
	}
	return l.mutate(ctx, key, func(b *Balance) error {
		if toEntitlement {
			b.Entitlement = b.Entitlement.Add(days)
		} else {
			b.Accrued = b.Accrued.Add(days)
		}
		b.Available = b.Available.Add(days)
		return nil
	})
}

// StartNewYear opens the (employee, type, year) row: frontloaded entitlement
// when the type accrues annually, plus capped carry-forward from the prior
// year. Idempotent per key.
func (l *Ledger) StartNewYear(ctx context.Context, employeeID string, lt LeaveType, year int) error {
	key := BalanceKey{EmployeeID: employeeID, LeaveTypeID: lt.ID, Year: year}
	if _, err := l.store.GetBalance(ctx, key); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	carry := decimal.Zero
	prev, err := l.store.GetBalance(ctx, BalanceKey{EmployeeID: employeeID, LeaveTypeID: lt.ID, Year: year - 1})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err == nil && lt.CarryForward && prev.Available.Sign() > 0 {
		carry = prev.Available
		if carry.GreaterThan(lt.MaxCarryForward) {
			carry = lt.MaxCarryForward
		}
	}

	entitlement := decimal.Zero
	if lt.AccrualMethod == AccrualAnnualFrontload {
		entitlement = lt.AnnualEntitlement
	}

	return l.mutate(ctx, key, func(b *Balance) error {
		b.Entitlement = entitlement
		b.CarriedForwardIn = carry
		b.Available = entitlement.Add(carry)
		return nil
	})
}

// mutate applies fn and asserts the available-bucket invariant afterwards; a
// violation aborts the write before it becomes visible.
func (l *Ledger) mutate(ctx context.Context, key BalanceKey, fn func(*Balance) error) error {
	return l.store.UpdateBalance(ctx, key, func(b *Balance) error {
		if err := fn(b); err != nil {
			return err
		}
		if !b.consistent() {
			return fmt.Errorf("balance invariant violated for %s/%s/%d", key.EmployeeID, key.LeaveTypeID, key.Year)
		}
		return nil
	})
}
