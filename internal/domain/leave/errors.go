package leave

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrOverlap             = errors.New("overlapping leave application")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrPermissionDenied    = errors.New("permission denied")
)

// OverlapError reports the existing application that intersects a requested
// range.
type OverlapError struct {
	ConflictID string
	From       time.Time
	To         time.Time
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlapping leave application %s (%s to %s)",
		e.ConflictID, DateKey(e.From), DateKey(e.To))
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// InsufficientBalanceError reports a balance shortfall that was not
// substituted to loss-of-pay.
type InsufficientBalanceError struct {
	LeaveType TypeName
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: available %s, requested %s",
		e.LeaveType, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
