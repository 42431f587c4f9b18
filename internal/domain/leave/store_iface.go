package leave

import (
	"context"
	"time"
)

// ApplicationFilter narrows ListApplications. Zero values mean "any".
type ApplicationFilter struct {
	EmployeeID  string
	LeaveTypeID string
	Status      Status
	Year        int
	Limit       int
	Offset      int
}

// Store is the persistence contract for the leave core. Two implementations
// exist: PGStore over Postgres and MemoryStore for tests and development.
//
// UpdateBalance is the single write path for balance rows: it runs fn under a
// lock (row lock in Postgres, per-key mutex in memory) on the row for key,
// creating a zero row first if none exists. If fn returns an error the row is
// left unchanged.
type Store interface {
	CreateType(ctx context.Context, t LeaveType) (string, error)
	GetType(ctx context.Context, id string) (LeaveType, error)
	GetTypeByName(ctx context.Context, name TypeName) (LeaveType, error)
	ListTypes(ctx context.Context) ([]LeaveType, error)
	UpdateType(ctx context.Context, t LeaveType) error
	DeleteType(ctx context.Context, id string) error
	CountTypeReferences(ctx context.Context, id string) (int, error)

	CreateHoliday(ctx context.Context, h Holiday) (string, error)
	UpdateHoliday(ctx context.Context, h Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context, year int) ([]Holiday, error)
	HolidayDates(ctx context.Context, years []int) (map[string]struct{}, error)

	GetBalance(ctx context.Context, key BalanceKey) (Balance, error)
	ListBalances(ctx context.Context, employeeID string, year int) ([]Balance, error)
	ListBalancesForYear(ctx context.Context, year int) ([]Balance, error)
	UpdateBalance(ctx context.Context, key BalanceKey, fn func(*Balance) error) error

	CreateApplication(ctx context.Context, a Application) (string, error)
	GetApplication(ctx context.Context, id string) (Application, error)
	UpdateApplication(ctx context.Context, a Application) error
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]Application, error)
	// ListOverlapping returns non-terminal (pending or approved) applications
	// for the employee whose date range intersects [from, to].
	ListOverlapping(ctx context.Context, employeeID string, from, to time.Time) ([]Application, error)

	CreateCredit(ctx context.Context, c CreditRequest) (string, error)
	GetCredit(ctx context.Context, id string) (CreditRequest, error)
	UpdateCredit(ctx context.Context, c CreditRequest) error
	ListCredits(ctx context.Context, employeeID string) ([]CreditRequest, error)

	LastAccrualRun(ctx context.Context, leaveTypeID string) (time.Time, error)
	RecordAccrualRun(ctx context.Context, leaveTypeID string, periodStart time.Time, employeesAccrued int) error
}
