package leave

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertConsistent(t *testing.T, b Balance) {
	t.Helper()
	expected := b.Entitlement.Add(b.Accrued).Add(b.CarriedForwardIn).Sub(b.Taken).Sub(b.Pending)
	assert.True(t, b.Available.Equal(expected),
		"available %s != entitlement %s + accrued %s + carried %s - taken %s - pending %s",
		b.Available, b.Entitlement, b.Accrued, b.CarriedForwardIn, b.Taken, b.Pending)
}

func TestLedgerReserveCommit(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "emp-1", f.earned, 2026, 10)
	key := BalanceKey{EmployeeID: "emp-1", LeaveTypeID: f.earned.ID, Year: 2026}

	require.NoError(t, f.ledger.Reserve(f.ctx, key, days(3)))
	bal := f.balance(t, "emp-1", f.earned, 2026)
	assert.True(t, bal.Pending.Equal(days(3)))
	assert.True(t, bal.Available.Equal(days(7)))
	assertConsistent(t, bal)

	require.NoError(t, f.ledger.Commit(f.ctx, key, days(3)))
	bal = f.balance(t, "emp-1", f.earned, 2026)
	assert.True(t, bal.Pending.IsZero())
	assert.True(t, bal.Taken.Equal(days(3)))
	assert.True(t, bal.Available.Equal(days(7)))
	assertConsistent(t, bal)
}

func TestLedgerReserveInsufficient(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "emp-1", f.earned, 2026, 2)
	key := BalanceKey{EmployeeID: "emp-1", LeaveTypeID: f.earned.ID, Year: 2026}

	err := f.ledger.Reserve(f.ctx, key, days(5))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	var ibe *InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	assert.Equal(t, TypeEarnedLeave, ibe.LeaveType)
	assert.True(t, ibe.Available.Equal(days(2)))
	assert.True(t, ibe.Requested.Equal(days(5)))

	// The failed reservation left the row untouched.
	bal := f.balance(t, "emp-1", f.earned, 2026)
	assert.True(t, bal.Pending.IsZero())
	assert.True(t, bal.Available.Equal(days(2)))
}

func TestLedgerReserveNegativeAllowed(t *testing.T) {
	f := newFixture(t)
	key := BalanceKey{EmployeeID: "emp-1", LeaveTypeID: f.lop.ID, Year: 2026}

	require.NoError(t, f.ledger.Reserve(f.ctx, key, days(4)))
	bal := f.balance(t, "emp-1", f.lop, 2026)
	assert.True(t, bal.Available.Equal(days(-4)))
	assert.True(t, bal.Pending.Equal(days(4)))
	assertConsistent(t, bal)
}

func TestLedgerReleaseGuards(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "emp-1", f.earned, 2026, 10)
	key := BalanceKey{EmployeeID: "emp-1", LeaveTypeID: f.earned.ID, Year: 2026}

	require.NoError(t, f.ledger.Reserve(f.ctx, key, days(2)))
	require.NoError(t, f.ledger.Release(f.ctx, key, days(2)))

	// A second release of the same reservation must not mint balance.
	err := f.ledger.Release(f.ctx, key, days(2))
	require.ErrorIs(t, err, ErrInvalidState)

	bal := f.balance(t, "emp-1", f.earned, 2026)
	assert.True(t, bal.Available.Equal(days(10)))
	assert.True(t, bal.Pending.IsZero())
	assertConsistent(t, bal)
}

func TestLedgerCommitExceedsPending(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "emp-1", f.earned, 2026, 10)
	key := BalanceKey{EmployeeID: "emp-1", LeaveTypeID: f.earned.ID, Year: 2026}

	require.NoError(t, f.ledger.Reserve(f.ctx, key, days(1)))
	require.ErrorIs(t, f.ledger.Commit(f.ctx, key, days(2)), ErrInvalidState)
}

func TestLedgerRestore(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "emp-1", f.earned, 2026, 10)
	key := BalanceKey{EmployeeID: "emp-1", LeaveTypeID: f.earned.ID, Year: 2026}

	require.NoError(t, f.ledger.Reserve(f.ctx, key, days(5)))
	require.NoError(t, f.ledger.Commit(f.ctx, key, days(5)))
	require.NoError(t, f.ledger.Restore(f.ctx, key, days(2)))

	bal := f.balance(t, "emp-1", f.earned, 2026)
	assert.True(t, bal.Taken.Equal(days(3)))
	assert.True(t, bal.Available.Equal(days(7)))
	assertConsistent(t, bal)

	require.ErrorIs(t, f.ledger.Restore(f.ctx, key, days(4)), ErrInvalidState)
}

func TestLedgerCredit(t *testing.T) {
	f := newFixture(t)
	key := BalanceKey{EmployeeID: "emp-1", LeaveTypeID: f.compOff.ID, Year: 2026}

	require.NoError(t, f.ledger.Credit(f.ctx, key, days(1), false))
	bal := f.balance(t, "emp-1", f.compOff, 2026)
	assert.True(t, bal.Accrued.Equal(days(1)))
	assert.True(t, bal.Available.Equal(days(1)))
	assertConsistent(t, bal)

	require.ErrorIs(t, f.ledger.Credit(f.ctx, key, days(0), false), ErrValidation)
	require.ErrorIs(t, f.ledger.Credit(f.ctx, key, days(-1), false), ErrValidation)
}

func TestLedgerStartNewYearCarryForward(t *testing.T) {
	f := newFixture(t)

	// Close 2026 with 8 earned days left.
	f.grant(t, "emp-1", f.earned, 2026, 8)

	require.NoError(t, f.ledger.StartNewYear(f.ctx, "emp-1", f.earned, 2027))
	bal := f.balance(t, "emp-1", f.earned, 2027)
	assert.True(t, bal.CarriedForwardIn.Equal(days(8)))
	assert.True(t, bal.Available.Equal(days(8)))
	assertConsistent(t, bal)

	// Re-running the rollover must not double the carry.
	require.NoError(t, f.ledger.StartNewYear(f.ctx, "emp-1", f.earned, 2027))
	bal = f.balance(t, "emp-1", f.earned, 2027)
	assert.True(t, bal.CarriedForwardIn.Equal(days(8)))
}

func TestLedgerStartNewYearCapsCarry(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "emp-1", f.earned, 2026, 45) // above the 30-day cap

	require.NoError(t, f.ledger.StartNewYear(f.ctx, "emp-1", f.earned, 2027))
	bal := f.balance(t, "emp-1", f.earned, 2027)
	assert.True(t, bal.CarriedForwardIn.Equal(days(30)))
}

func TestLedgerStartNewYearFrontload(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ledger.StartNewYear(f.ctx, "emp-1", f.casual, 2027))
	bal := f.balance(t, "emp-1", f.casual, 2027)
	assert.True(t, bal.Entitlement.Equal(days(12)))
	assert.True(t, bal.Available.Equal(days(12)))
	assertConsistent(t, bal)

	// Casual leave does not carry forward; a leftover 2026 balance is lost.
	f.grant(t, "emp-2", f.casual, 2026, 5)
	require.NoError(t, f.ledger.StartNewYear(f.ctx, "emp-2", f.casual, 2027))
	bal = f.balance(t, "emp-2", f.casual, 2027)
	assert.True(t, bal.CarriedForwardIn.IsZero())
	assert.True(t, bal.Available.Equal(days(12)))
}

func TestLedgerGetBalanceUnknownKeyIsEmpty(t *testing.T) {
	f := newFixture(t)
	bal, err := f.ledger.GetBalance(f.ctx, BalanceKey{EmployeeID: "emp-1", LeaveTypeID: f.earned.ID, Year: 2031})
	require.NoError(t, err)
	assert.Equal(t, "emp-1", bal.EmployeeID)
	assert.Equal(t, 2031, bal.Year)
	assert.True(t, bal.Available.Equal(decimal.Zero))
}
