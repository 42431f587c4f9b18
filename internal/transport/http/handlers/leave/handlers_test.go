package leavehandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"leavehub/internal/domain/audit"
	"leavehub/internal/domain/auth"
	"leavehub/internal/domain/employee"
	"leavehub/internal/domain/leave"
	"leavehub/internal/domain/notifications"
	"leavehub/internal/platform/config"
	"leavehub/internal/platform/jobs"
	"leavehub/internal/transport/http/middleware"
)

var (
	empUser = auth.UserContext{UserID: "user-1", EmployeeID: "emp-1", RoleName: auth.RoleEmployee}
	mgrUser = auth.UserContext{UserID: "user-3", EmployeeID: "mgr-1", RoleName: auth.RoleManager}
	hrUser  = auth.UserContext{UserID: "user-9", EmployeeID: "emp-hr", RoleName: auth.RoleHR}
)

type fixture struct {
	router *chi.Mux
	store  *leave.MemoryStore
	ledger *leave.Ledger

	earned  leave.LeaveType
	compOff leave.LeaveType
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := leave.NewMemoryStore()
	dir := employee.NewMemoryDirectory()
	dir.Put(employee.Profile{ID: "emp-1", UserID: "user-1", FirstName: "Asha", LastName: "Iyer",
		Gender: "female", DepartmentID: "engineering", ManagerID: "mgr-1", Active: true})
	dir.Put(employee.Profile{ID: "emp-2", UserID: "user-2", FirstName: "Rahul", LastName: "Menon",
		Gender: "male", DepartmentID: "sales", ManagerID: "mgr-1", Active: true})
	dir.Put(employee.Profile{ID: "mgr-1", UserID: "user-3", FirstName: "Priya", LastName: "Nair",
		Gender: "female", DepartmentID: "engineering", Active: true})

	notify := notifications.New(notifications.NewMemoryStore())
	ledger := leave.NewLedger(store)
	calendar := leave.NewCalendar(store)
	registry := leave.NewRegistry(store)
	engine := leave.NewEngine(store, ledger, calendar, registry, dir, notify)
	credits := leave.NewCreditWorkflow(store, ledger, registry, dir, notify)
	analytics := leave.NewAggregator(store, dir)
	jobsSvc := jobs.New(nil, store, ledger, calendar, dir, config.Config{})

	handler := NewHandler(registry, calendar, ledger, engine, credits, analytics,
		auth.StaticPermissions{}, audit.Noop{}, jobsSvc)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	f := &fixture{router: router, store: store, ledger: ledger}

	ctx := context.Background()
	f.earned = leave.LeaveType{
		Name:              leave.TypeEarnedLeave,
		Abbreviation:      "EL",
		AnnualEntitlement: decimal.NewFromInt(24),
		AccrualMethod:     leave.AccrualMonthly,
		CarryForward:      true,
		MaxCarryForward:   decimal.NewFromInt(30),
		RequiresApproval:  true,
		ApprovalLevels:    1,
		GenderEligibility: leave.EligibilityAll,
	}
	id, err := registry.Create(ctx, f.earned)
	require.NoError(t, err)
	f.earned.ID = id

	f.compOff = leave.LeaveType{
		Name:              leave.TypeCompensatoryOff,
		Abbreviation:      "CO",
		AccrualMethod:     leave.AccrualManualCredit,
		RequiresApproval:  true,
		ApprovalLevels:    1,
		GenderEligibility: leave.EligibilityAll,
	}
	id, err = registry.Create(ctx, f.compOff)
	require.NoError(t, err)
	f.compOff.ID = id

	lop := leave.LeaveType{
		Name:                   leave.TypeLossOfPay,
		Abbreviation:           "LOP",
		AccrualMethod:          leave.AccrualManualCredit,
		NegativeBalanceAllowed: true,
		RequiresApproval:       true,
		ApprovalLevels:         1,
		GenderEligibility:      leave.EligibilityAll,
	}
	_, err = registry.Create(ctx, lop)
	require.NoError(t, err)

	// give emp-1 a funded earned-leave balance for the current year, and for
	// the submission year when a year boundary sits between now and the
	// test's future date range
	key := leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: f.earned.ID, Year: time.Now().UTC().Year()}
	require.NoError(t, ledger.Credit(ctx, key, decimal.NewFromInt(10), true))
	if submitYear := nextMonday().Year(); submitYear != key.Year {
		key.Year = submitYear
		require.NoError(t, ledger.Credit(ctx, key, decimal.NewFromInt(10), true))
	}

	return f
}

func (f *fixture) do(t *testing.T, user auth.UserContext, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithUser(req.Context(), user))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

// nextMonday returns the first Monday at least a week out, so requests are
// always in the future on working days regardless of when the tests run.
func nextMonday() time.Time {
	d := leave.DateOnly(time.Now().UTC()).AddDate(0, 0, 7)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func lastSaturday() time.Time {
	d := leave.DateOnly(time.Now().UTC()).AddDate(0, 0, -1)
	for d.Weekday() != time.Saturday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func TestSubmitAndApproveFlow(t *testing.T) {
	f := newFixture(t)
	monday := nextMonday()

	rec, env := f.do(t, empUser, http.MethodPost, "/leave/applications", map[string]any{
		"leaveTypeId":  f.earned.ID,
		"fromDate":     monday.Format("2006-01-02"),
		"toDate":       monday.AddDate(0, 0, 2).Format("2006-01-02"),
		"durationType": "multiple_days",
		"reason":       "family function out of town",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, env.Success)

	var app leave.Application
	require.NoError(t, json.Unmarshal(env.Data, &app))
	require.Equal(t, leave.StatusPending, app.Status)
	require.True(t, app.NumberOfDays.Equal(decimal.NewFromInt(3)))

	rec, env = f.do(t, mgrUser, http.MethodPost, "/leave/applications/"+app.ID+"/approve", map[string]any{"note": "ok"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &app))
	require.Equal(t, leave.StatusApproved, app.Status)

	balance, err := f.ledger.GetBalance(context.Background(), leave.BalanceKey{
		EmployeeID: "emp-1", LeaveTypeID: f.earned.ID, Year: monday.Year(),
	})
	require.NoError(t, err)
	require.True(t, balance.Taken.Equal(decimal.NewFromInt(3)))
	require.True(t, balance.Pending.IsZero())
}

func TestSubmitWithoutToDateDefaults(t *testing.T) {
	f := newFixture(t)
	monday := nextMonday()

	rec, env := f.do(t, empUser, http.MethodPost, "/leave/applications", map[string]any{
		"leaveTypeId":  f.earned.ID,
		"fromDate":     monday.Format("2006-01-02"),
		"durationType": "full_day",
		"reason":       "medical appointment",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, env.Success)

	var app leave.Application
	require.NoError(t, json.Unmarshal(env.Data, &app))
	require.True(t, app.ToDate.Equal(app.FromDate))
	require.True(t, app.NumberOfDays.Equal(decimal.NewFromInt(1)))
}

func TestSubmitOverlapMapsToConflict(t *testing.T) {
	f := newFixture(t)
	monday := nextMonday()
	payload := map[string]any{
		"leaveTypeId":  f.earned.ID,
		"fromDate":     monday.Format("2006-01-02"),
		"toDate":       monday.AddDate(0, 0, 1).Format("2006-01-02"),
		"durationType": "multiple_days",
		"reason":       "documentation sprint recovery",
	}

	rec, _ := f.do(t, empUser, http.MethodPost, "/leave/applications", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := f.do(t, empUser, http.MethodPost, "/leave/applications", payload)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "overlapping_leave", env.Error.Code)
}

func TestSubmitValidationMapsToBadRequest(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, empUser, http.MethodPost, "/leave/applications", map[string]any{
		"leaveTypeId":  f.earned.ID,
		"fromDate":     "not-a-date",
		"toDate":       "2026-01-05",
		"durationType": "multiple_days",
		"reason":       "broken payload",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation_error", env.Error.Code)
}

func TestApproveUnknownApplicationNotFound(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, mgrUser, http.MethodPost, "/leave/applications/missing-id/approve", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", env.Error.Code)
}

func TestEmployeeCannotManageTypes(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, empUser, http.MethodPost, "/leave/types", map[string]any{
		"name": "casual_leave", "abbreviation": "CL",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", env.Error.Code)

	rec, _ = f.do(t, empUser, http.MethodGet, "/leave/types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestEmployeeCannotApprove(t *testing.T) {
	f := newFixture(t)
	monday := nextMonday()

	rec, env := f.do(t, empUser, http.MethodPost, "/leave/applications", map[string]any{
		"leaveTypeId":  f.earned.ID,
		"fromDate":     monday.Format("2006-01-02"),
		"toDate":       monday.Format("2006-01-02"),
		"durationType": "full_day",
		"reason":       "appointment in the morning",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var app leave.Application
	require.NoError(t, json.Unmarshal(env.Data, &app))

	rec, env = f.do(t, empUser, http.MethodPost, "/leave/applications/"+app.ID+"/approve", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", env.Error.Code)
}

func TestListApplicationsScopedToOwner(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, empUser, http.MethodGet, "/leave/applications?employeeId=emp-2", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", env.Error.Code)

	rec, _ = f.do(t, mgrUser, http.MethodGet, "/leave/applications?employeeId=emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBalancesScopedToOwner(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, empUser, http.MethodGet, "/leave/balances?employeeId=emp-2", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", env.Error.Code)

	rec, env = f.do(t, empUser, http.MethodGet, "/leave/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var balances []leave.Balance
	require.NoError(t, json.Unmarshal(env.Data, &balances))
	require.Len(t, balances, 1)
	require.True(t, balances[0].Available.Equal(decimal.NewFromInt(10)))
}

func TestAdminCreditBalance(t *testing.T) {
	f := newFixture(t)
	year := time.Now().UTC().Year()

	rec, env := f.do(t, hrUser, http.MethodPost, "/leave/balances/credit", map[string]any{
		"employeeId":  "emp-2",
		"leaveTypeId": f.earned.ID,
		"year":        year,
		"days":        5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var balance leave.Balance
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	require.True(t, balance.Available.Equal(decimal.NewFromInt(5)))
	require.True(t, balance.Accrued.Equal(decimal.NewFromInt(5)))
}

func TestCreditRequestLifecycle(t *testing.T) {
	f := newFixture(t)
	saturday := lastSaturday()

	rec, env := f.do(t, empUser, http.MethodPost, "/leave/credits", map[string]any{
		"dateWorked": saturday.Format("2006-01-02"),
		"reason":     "production release support over the weekend",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var req leave.CreditRequest
	require.NoError(t, json.Unmarshal(env.Data, &req))
	require.Equal(t, leave.StatusPending, req.Status)

	// manager holds the approve permission but credit approval is hr-only
	rec, env = f.do(t, mgrUser, http.MethodPost, "/leave/credits/"+req.ID+"/approve", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", env.Error.Code)

	rec, env = f.do(t, hrUser, http.MethodPost, "/leave/credits/"+req.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &req))
	require.Equal(t, leave.StatusApproved, req.Status)

	balance, err := f.ledger.GetBalance(context.Background(), leave.BalanceKey{
		EmployeeID: "emp-1", LeaveTypeID: f.compOff.ID, Year: time.Now().UTC().Year(),
	})
	require.NoError(t, err)
	require.True(t, balance.Available.Equal(decimal.NewFromInt(1)))
}

func TestHolidayCRUD(t *testing.T) {
	f := newFixture(t)
	year := time.Now().UTC().Year()

	rec, env := f.do(t, hrUser, http.MethodPost, "/leave/holidays", map[string]any{
		"name": "Founders Day",
		"date": time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
		"type": "declared",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created["id"])

	rec, env = f.do(t, empUser, http.MethodGet, "/leave/holidays?year="+strconv.Itoa(year), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var holidays []leave.Holiday
	require.NoError(t, json.Unmarshal(env.Data, &holidays))
	require.Len(t, holidays, 1)
	require.Equal(t, "Founders Day", holidays[0].Name)

	rec, _ = f.do(t, hrUser, http.MethodDelete, "/leave/holidays/"+created["id"], nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = f.do(t, empUser, http.MethodPost, "/leave/holidays", map[string]any{
		"name": "Sneaky Holiday", "date": "2026-01-01", "type": "national",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHolidayValidationIssues(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, hrUser, http.MethodPost, "/leave/holidays", map[string]any{
		"name": "", "date": "yesterday", "type": "national",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation_error", env.Error.Code)
}

func TestAccrualRunEndpoint(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, hrUser, http.MethodPost, "/leave/accrual/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary leave.AccrualSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	require.Equal(t, 1, summary.TypesProcessed)
	require.Equal(t, 3, summary.EmployeesAccrued)

	rec, _ = f.do(t, mgrUser, http.MethodPost, "/leave/accrual/run", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRolloverEndpoint(t *testing.T) {
	f := newFixture(t)
	nextYear := time.Now().UTC().Year() + 1

	rec, env := f.do(t, hrUser, http.MethodPost, "/leave/balances/rollover", map[string]any{"year": nextYear})
	require.Equal(t, http.StatusOK, rec.Code)

	var summary leave.RolloverSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	require.Equal(t, nextYear, summary.Year)
	// 3 active employees x 3 seeded types
	require.Equal(t, 9, summary.RowsOpened)
}

func TestAnalyticsEndpoint(t *testing.T) {
	f := newFixture(t)
	year := time.Now().UTC().Year()

	rec, env := f.do(t, mgrUser, http.MethodGet, "/leave/analytics/"+strconv.Itoa(year), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report leave.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.Equal(t, year, report.Year)
	require.Len(t, report.MonthlyTrend, 12)

	rec, _ = f.do(t, empUser, http.MethodGet, "/leave/analytics/2026", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAnalyticsExportReturnsPDF(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, hrUser, http.MethodGet, "/leave/analytics/2026/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.NotZero(t, rec.Body.Len())
}
