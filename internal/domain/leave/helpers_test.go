package leave

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"leavehub/internal/domain/auth"
	"leavehub/internal/domain/employee"
	"leavehub/internal/domain/notifications"
)

// Monday, so same-day submissions land on a working day.
var testNow = time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)

var (
	empActor = Actor{UserID: "user-1", EmployeeID: "emp-1", RoleName: auth.RoleEmployee}
	mgrActor = Actor{UserID: "user-3", EmployeeID: "mgr-1", RoleName: auth.RoleManager}
	hrActor  = Actor{UserID: "user-9", EmployeeID: "emp-hr", RoleName: auth.RoleHR}
)

type fixture struct {
	ctx      context.Context
	store    *MemoryStore
	dir      *employee.MemoryDirectory
	ledger   *Ledger
	calendar *Calendar
	registry *Registry
	engine   *Engine
	credits  *CreditWorkflow

	earned  LeaveType
	casual  LeaveType
	sick    LeaveType
	compOff LeaveType
	lop     LeaveType
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := NewMemoryStore()
	dir := employee.NewMemoryDirectory()
	notify := notifications.New(notifications.NewMemoryStore())
	ledger := NewLedger(store)

	f := &fixture{
		ctx:      context.Background(),
		store:    store,
		dir:      dir,
		ledger:   ledger,
		calendar: NewCalendar(store),
		registry: NewRegistry(store),
	}
	f.engine = NewEngine(store, ledger, f.calendar, f.registry, dir, notify)
	f.engine.now = func() time.Time { return testNow }
	f.credits = NewCreditWorkflow(store, ledger, f.registry, dir, notify)
	f.credits.now = func() time.Time { return testNow }

	dir.Put(employee.Profile{
		ID: "emp-1", UserID: "user-1", FirstName: "Asha", LastName: "Rao",
		Gender: "female", DepartmentID: "engineering", ManagerID: "mgr-1", Active: true,
	})
	dir.Put(employee.Profile{
		ID: "emp-2", UserID: "user-2", FirstName: "Dev", LastName: "Iyer",
		Gender: "male", DepartmentID: "sales", ManagerID: "mgr-1", Active: true,
	})
	dir.Put(employee.Profile{
		ID: "mgr-1", UserID: "user-3", FirstName: "Mina", LastName: "Shah",
		Gender: "female", DepartmentID: "engineering", Active: true,
	})

	f.earned = f.createType(t, LeaveType{
		Name:              TypeEarnedLeave,
		Abbreviation:      "EL",
		AnnualEntitlement: decimal.NewFromInt(24),
		AccrualMethod:     AccrualMonthly,
		CarryForward:      true,
		MaxCarryForward:   decimal.NewFromInt(30),
		RequiresApproval:  true,
		ApprovalLevels:    1,
		GenderEligibility: EligibilityAll,
	})
	f.casual = f.createType(t, LeaveType{
		Name:              TypeCasualLeave,
		Abbreviation:      "CL",
		AnnualEntitlement: decimal.NewFromInt(12),
		AccrualMethod:     AccrualAnnualFrontload,
		RequiresApproval:  true,
		ApprovalLevels:    1,
		GenderEligibility: EligibilityAll,
	})
	f.sick = f.createType(t, LeaveType{
		Name:              TypeSickLeave,
		Abbreviation:      "SL",
		AnnualEntitlement: decimal.NewFromInt(10),
		AccrualMethod:     AccrualAnnualFrontload,
		RequiresApproval:  false,
		GenderEligibility: EligibilityAll,
	})
	f.compOff = f.createType(t, LeaveType{
		Name:              TypeCompensatoryOff,
		Abbreviation:      "CO",
		AccrualMethod:     AccrualManualCredit,
		RequiresApproval:  true,
		ApprovalLevels:    1,
		GenderEligibility: EligibilityAll,
	})
	f.lop = f.createType(t, LeaveType{
		Name:                   TypeLossOfPay,
		Abbreviation:           "LOP",
		AccrualMethod:          AccrualManualCredit,
		NegativeBalanceAllowed: true,
		RequiresApproval:       true,
		ApprovalLevels:         1,
		GenderEligibility:      EligibilityAll,
	})
	return f
}

func (f *fixture) createType(t *testing.T, lt LeaveType) LeaveType {
	t.Helper()
	id, err := f.registry.Create(f.ctx, lt)
	require.NoError(t, err)
	lt.ID = id
	return lt
}

// grant seeds entitlement so tests start from a known available balance.
func (f *fixture) grant(t *testing.T, employeeID string, lt LeaveType, year int, days int64) {
	t.Helper()
	key := BalanceKey{EmployeeID: employeeID, LeaveTypeID: lt.ID, Year: year}
	require.NoError(t, f.ledger.Credit(f.ctx, key, decimal.NewFromInt(days), true))
}

func (f *fixture) balance(t *testing.T, employeeID string, lt LeaveType, year int) Balance {
	t.Helper()
	bal, err := f.ledger.GetBalance(f.ctx, BalanceKey{EmployeeID: employeeID, LeaveTypeID: lt.ID, Year: year})
	require.NoError(t, err)
	return bal
}

func (f *fixture) addHoliday(t *testing.T, name string, d time.Time, recurring bool) {
	t.Helper()
	_, err := f.calendar.Create(f.ctx, Holiday{
		Name:      name,
		Date:      d,
		Type:      HolidayNational,
		Recurring: recurring,
	})
	require.NoError(t, err)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func days(n int64) decimal.Decimal { return decimal.NewFromInt(n) }
