package leavehandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"leavehub/internal/domain/audit"
	"leavehub/internal/domain/auth"
	"leavehub/internal/domain/leave"
	"leavehub/internal/platform/jobs"
	"leavehub/internal/transport/http/api"
	"leavehub/internal/transport/http/middleware"
	"leavehub/internal/transport/http/shared"
)

type Handler struct {
	Registry  *leave.Registry
	Calendar  *leave.Calendar
	Ledger    *leave.Ledger
	Engine    *leave.Engine
	Credits   *leave.CreditWorkflow
	Analytics *leave.Aggregator
	Perms     middleware.PermissionStore
	Audit     audit.Recorder
	Jobs      *jobs.Service
}

func NewHandler(registry *leave.Registry, calendar *leave.Calendar, ledger *leave.Ledger,
	engine *leave.Engine, credits *leave.CreditWorkflow, analytics *leave.Aggregator,
	perms middleware.PermissionStore, recorder audit.Recorder, jobsSvc *jobs.Service) *Handler {
	if recorder == nil {
		recorder = audit.Noop{}
	}
	return &Handler{
		Registry:  registry,
		Calendar:  calendar,
		Ledger:    ledger,
		Engine:    engine,
		Credits:   credits,
		Analytics: analytics,
		Perms:     perms,
		Audit:     recorder,
		Jobs:      jobsSvc,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/types", h.handleListTypes)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/types/{typeID}", h.handleGetType)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)).Post("/types", h.handleCreateType)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)).Put("/types/{typeID}", h.handleUpdateType)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)).Delete("/types/{typeID}", h.handleDeleteType)

		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/holidays", h.handleListHolidays)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)).Post("/holidays", h.handleCreateHoliday)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)).Put("/holidays/{holidayID}", h.handleUpdateHoliday)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)).Delete("/holidays/{holidayID}", h.handleDeleteHoliday)

		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/balances", h.handleListBalances)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)).Post("/balances/credit", h.handleCreditBalance)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)).Post("/balances/rollover", h.handleRunRollover)

		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/applications", h.handleListApplications)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Post("/applications", h.handleSubmitApplication)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/applications/{applicationID}", h.handleGetApplication)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Put("/applications/{applicationID}", h.handleUpdateApplication)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/applications/{applicationID}/approve", h.handleApproveApplication)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/applications/{applicationID}/reject", h.handleRejectApplication)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Post("/applications/{applicationID}/cancel", h.handleCancelApplication)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/applications/{applicationID}/recall", h.handleRecallApplication)

		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/credits", h.handleListCredits)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Post("/credits", h.handleRequestCredit)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/credits/{creditID}/approve", h.handleApproveCredit)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/credits/{creditID}/reject", h.handleRejectCredit)

		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Get("/analytics/{year}", h.handleAnalytics)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Get("/analytics/{year}/export", h.handleAnalyticsExport)

		r.With(middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)).Post("/accrual/run", h.handleRunAccruals)
	})
}

// failDomain translates the domain error taxonomy onto HTTP statuses. Errors
// outside the taxonomy get logged and collapse to 500.
func failDomain(w http.ResponseWriter, r *http.Request, err error, fallbackCode, fallbackMsg string) {
	requestID := middleware.GetRequestID(r.Context())
	var overlap *leave.OverlapError
	switch {
	case errors.As(err, &overlap):
		api.FailWithDetails(w, http.StatusConflict, "overlapping_leave", err.Error(), map[string]any{
			"conflictId": overlap.ConflictID,
			"fromDate":   shared.FormatDate(overlap.From),
			"toDate":     shared.FormatDate(overlap.To),
		}, requestID)
	case errors.Is(err, leave.ErrValidation):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, leave.ErrPermissionDenied):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), requestID)
	case errors.Is(err, leave.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", requestID)
	case errors.Is(err, leave.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), requestID)
	case errors.Is(err, leave.ErrInsufficientBalance):
		api.Fail(w, http.StatusUnprocessableEntity, "insufficient_balance", err.Error(), requestID)
	default:
		slog.Error("leave handler failure", "path", r.URL.Path, "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, fallbackCode, fallbackMsg, requestID)
	}
}

func (h *Handler) actor(r *http.Request) (leave.Actor, string, bool) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		return leave.Actor{}, requestID, false
	}
	return leave.Actor{UserID: user.UserID, EmployeeID: user.EmployeeID, RoleName: user.RoleName}, requestID, true
}

func (h *Handler) audit(r *http.Request, actor leave.Actor, action, entityType, entityID string, payload any) {
	err := h.Audit.Record(r.Context(), actor.UserID, action, entityType, entityID,
		middleware.GetRequestID(r.Context()), shared.ClientIP(r), payload)
	if err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

// --- leave types ---

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	types, err := h.Registry.List(r.Context())
	if err != nil {
		failDomain(w, r, err, "leave_types_failed", "failed to list leave types")
		return
	}
	api.Success(w, types, requestID)
}

func (h *Handler) handleGetType(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	lt, err := h.Registry.Get(r.Context(), chi.URLParam(r, "typeID"))
	if err != nil {
		failDomain(w, r, err, "leave_type_failed", "failed to load leave type")
		return
	}
	api.Success(w, lt, requestID)
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload leave.LeaveType
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	id, err := h.Registry.Create(r.Context(), payload)
	if err != nil {
		failDomain(w, r, err, "leave_type_create_failed", "failed to create leave type")
		return
	}
	h.audit(r, actor, "leave.type.create", "leave_type", id, payload)
	api.Created(w, map[string]string{"id": id}, requestID)
}

func (h *Handler) handleUpdateType(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload leave.LeaveType
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	payload.ID = chi.URLParam(r, "typeID")
	if err := h.Registry.Update(r.Context(), payload); err != nil {
		failDomain(w, r, err, "leave_type_update_failed", "failed to update leave type")
		return
	}
	h.audit(r, actor, "leave.type.update", "leave_type", payload.ID, payload)
	api.Success(w, map[string]string{"id": payload.ID}, requestID)
}

func (h *Handler) handleDeleteType(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	id := chi.URLParam(r, "typeID")
	refs, err := h.Registry.Delete(r.Context(), id)
	if err != nil {
		failDomain(w, r, err, "leave_type_delete_failed", "failed to delete leave type")
		return
	}
	h.audit(r, actor, "leave.type.delete", "leave_type", id, map[string]any{"references": refs})
	api.Success(w, map[string]any{"id": id, "references": refs}, requestID)
}

// --- holidays ---

func (h *Handler) handleListHolidays(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, ok := shared.ParseYear(raw)
		if !ok {
			api.Fail(w, http.StatusBadRequest, "validation_error", "year must be a four-digit year", requestID)
			return
		}
		year = parsed
	}
	holidays, err := h.Calendar.List(r.Context(), year)
	if err != nil {
		failDomain(w, r, err, "holidays_failed", "failed to list holidays")
		return
	}
	api.Success(w, holidays, requestID)
}

type holidayPayload struct {
	Name         string `json:"name"`
	Date         string `json:"date"`
	Type         string `json:"type"`
	IsRestricted bool   `json:"isRestricted"`
	Recurring    bool   `json:"recurring"`
	Description  string `json:"description"`
}

func (p holidayPayload) toDomain(v *shared.Validator) leave.Holiday {
	v.Required("name", p.Name, "holiday name is required")
	date, _ := v.Date("date", p.Date)
	return leave.Holiday{
		Name:         strings.TrimSpace(p.Name),
		Date:         date,
		Type:         leave.HolidayType(p.Type),
		IsRestricted: p.IsRestricted,
		Recurring:    p.Recurring,
		Description:  strings.TrimSpace(p.Description),
	}
}

func (h *Handler) handleCreateHoliday(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload holidayPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	holiday := payload.toDomain(v)
	if v.Reject(w, requestID) {
		return
	}
	id, err := h.Calendar.Create(r.Context(), holiday)
	if err != nil {
		failDomain(w, r, err, "holiday_create_failed", "failed to create holiday")
		return
	}
	h.audit(r, actor, "leave.holiday.create", "holiday", id, payload)
	api.Created(w, map[string]string{"id": id}, requestID)
}

func (h *Handler) handleUpdateHoliday(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload holidayPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	holiday := payload.toDomain(v)
	if v.Reject(w, requestID) {
		return
	}
	holiday.ID = chi.URLParam(r, "holidayID")
	if err := h.Calendar.Update(r.Context(), holiday); err != nil {
		failDomain(w, r, err, "holiday_update_failed", "failed to update holiday")
		return
	}
	h.audit(r, actor, "leave.holiday.update", "holiday", holiday.ID, payload)
	api.Success(w, map[string]string{"id": holiday.ID}, requestID)
}

func (h *Handler) handleDeleteHoliday(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	id := chi.URLParam(r, "holidayID")
	if err := h.Calendar.Delete(r.Context(), id); err != nil {
		failDomain(w, r, err, "holiday_delete_failed", "failed to delete holiday")
		return
	}
	h.audit(r, actor, "leave.holiday.delete", "holiday", id, nil)
	api.Success(w, map[string]string{"id": id}, requestID)
}

// --- balances ---

func (h *Handler) handleListBalances(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	employeeID := strings.TrimSpace(r.URL.Query().Get("employeeId"))
	if employeeID == "" {
		employeeID = actor.EmployeeID
	}
	if employeeID != actor.EmployeeID && !auth.CanApprove(actor.RoleName) {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot view another employee's balances", requestID)
		return
	}
	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, ok := shared.ParseYear(raw)
		if !ok {
			api.Fail(w, http.StatusBadRequest, "validation_error", "year must be a four-digit year", requestID)
			return
		}
		year = parsed
	}
	balances, err := h.Ledger.ListBalances(r.Context(), employeeID, year)
	if err != nil {
		failDomain(w, r, err, "balances_failed", "failed to list balances")
		return
	}
	api.Success(w, balances, requestID)
}

type creditBalanceRequest struct {
	EmployeeID    string          `json:"employeeId"`
	LeaveTypeID   string          `json:"leaveTypeId"`
	Year          int             `json:"year"`
	Days          decimal.Decimal `json:"days"`
	ToEntitlement bool            `json:"toEntitlement"`
}

func (h *Handler) handleCreditBalance(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload creditBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "employee id is required")
	v.Required("leaveTypeId", payload.LeaveTypeID, "leave type id is required")
	if payload.Year == 0 {
		payload.Year = time.Now().UTC().Year()
	}
	if v.Reject(w, requestID) {
		return
	}

	key := leave.BalanceKey{
		EmployeeID:  payload.EmployeeID,
		LeaveTypeID: payload.LeaveTypeID,
		Year:        payload.Year,
	}
	if err := h.Ledger.Credit(r.Context(), key, payload.Days, payload.ToEntitlement); err != nil {
		failDomain(w, r, err, "balance_credit_failed", "failed to credit balance")
		return
	}
	h.audit(r, actor, "leave.balance.credit", "leave_balance", payload.EmployeeID, payload)

	balance, err := h.Ledger.GetBalance(r.Context(), key)
	if err != nil {
		failDomain(w, r, err, "balances_failed", "failed to load balance")
		return
	}
	api.Success(w, balance, requestID)
}

type rolloverRequest struct {
	Year int `json:"year"`
}

func (h *Handler) handleRunRollover(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload rolloverRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	if payload.Year == 0 {
		payload.Year = time.Now().UTC().Year()
	}
	summary, err := h.Jobs.RunRolloverNow(r.Context(), payload.Year)
	if err != nil {
		failDomain(w, r, err, "rollover_failed", "failed to run year rollover")
		return
	}
	h.audit(r, actor, "leave.rollover.run", "leave_balance", fmt.Sprintf("%d", payload.Year), summary)
	api.Success(w, summary, requestID)
}

// --- applications ---

func (h *Handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	filter := leave.ApplicationFilter{
		EmployeeID:  strings.TrimSpace(r.URL.Query().Get("employeeId")),
		LeaveTypeID: strings.TrimSpace(r.URL.Query().Get("leaveTypeId")),
		Status:      leave.Status(strings.TrimSpace(r.URL.Query().Get("status"))),
		Limit:       page.Limit,
		Offset:      page.Offset,
	}
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, ok := shared.ParseYear(raw)
		if !ok {
			api.Fail(w, http.StatusBadRequest, "validation_error", "year must be a four-digit year", requestID)
			return
		}
		filter.Year = parsed
	}
	if !auth.CanApprove(actor.RoleName) {
		if filter.EmployeeID != "" && filter.EmployeeID != actor.EmployeeID {
			api.Fail(w, http.StatusForbidden, "forbidden", "cannot view another employee's applications", requestID)
			return
		}
		filter.EmployeeID = actor.EmployeeID
	}

	apps, err := h.Engine.List(r.Context(), filter)
	if err != nil {
		failDomain(w, r, err, "applications_failed", "failed to list applications")
		return
	}
	api.Success(w, apps, requestID)
}

type applicationPayload struct {
	EmployeeID    string `json:"employeeId"`
	LeaveTypeID   string `json:"leaveTypeId"`
	FromDate      string `json:"fromDate"`
	ToDate        string `json:"toDate"`
	DurationType  string `json:"durationType"`
	Reason        string `json:"reason"`
	ContactPhone  string `json:"contactPhone"`
	ContactEmail  string `json:"contactEmail"`
	AttachmentRef string `json:"attachmentRef"`
}

func (h *Handler) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload applicationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	from, _ := v.Date("fromDate", payload.FromDate)
	to, _ := v.OptionalDate("toDate", payload.ToDate)
	v.DateOrder("fromDate", from, "toDate", to)
	if v.Reject(w, requestID) {
		return
	}

	employeeID := strings.TrimSpace(payload.EmployeeID)
	if employeeID == "" {
		employeeID = actor.EmployeeID
	}
	if employeeID != actor.EmployeeID && !auth.IsAdministrative(actor.RoleName) {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot submit leave for another employee", requestID)
		return
	}

	app, err := h.Engine.Submit(r.Context(), leave.SubmitInput{
		EmployeeID:    employeeID,
		LeaveTypeID:   strings.TrimSpace(payload.LeaveTypeID),
		FromDate:      from,
		ToDate:        to,
		DurationType:  leave.DurationType(payload.DurationType),
		Reason:        payload.Reason,
		ContactPhone:  strings.TrimSpace(payload.ContactPhone),
		ContactEmail:  strings.TrimSpace(payload.ContactEmail),
		AttachmentRef: strings.TrimSpace(payload.AttachmentRef),
	})
	if err != nil {
		failDomain(w, r, err, "application_submit_failed", "failed to submit application")
		return
	}
	api.Created(w, app, requestID)
}

func (h *Handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	app, err := h.Engine.Get(r.Context(), chi.URLParam(r, "applicationID"))
	if err != nil {
		failDomain(w, r, err, "application_failed", "failed to load application")
		return
	}
	if app.EmployeeID != actor.EmployeeID && !auth.CanApprove(actor.RoleName) {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot view another employee's application", requestID)
		return
	}
	api.Success(w, app, requestID)
}

func (h *Handler) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload applicationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	from, _ := v.Date("fromDate", payload.FromDate)
	to, _ := v.OptionalDate("toDate", payload.ToDate)
	v.DateOrder("fromDate", from, "toDate", to)
	if v.Reject(w, requestID) {
		return
	}

	app, err := h.Engine.Update(r.Context(), chi.URLParam(r, "applicationID"), actor, leave.UpdateInput{
		LeaveTypeID:   strings.TrimSpace(payload.LeaveTypeID),
		FromDate:      from,
		ToDate:        to,
		DurationType:  leave.DurationType(payload.DurationType),
		Reason:        payload.Reason,
		ContactPhone:  strings.TrimSpace(payload.ContactPhone),
		ContactEmail:  strings.TrimSpace(payload.ContactEmail),
		AttachmentRef: strings.TrimSpace(payload.AttachmentRef),
	})
	if err != nil {
		failDomain(w, r, err, "application_update_failed", "failed to update application")
		return
	}
	api.Success(w, app, requestID)
}

type decisionRequest struct {
	Note string `json:"note"`
}

func (h *Handler) handleApproveApplication(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload decisionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
			return
		}
	}
	id := chi.URLParam(r, "applicationID")
	app, err := h.Engine.Approve(r.Context(), id, actor, payload.Note)
	if err != nil {
		failDomain(w, r, err, "application_approve_failed", "failed to approve application")
		return
	}
	h.audit(r, actor, "leave.application.approve", "leave_application", id, map[string]any{
		"status":           app.Status,
		"approvalsGranted": app.ApprovalsGranted,
	})
	api.Success(w, app, requestID)
}

func (h *Handler) handleRejectApplication(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload decisionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
			return
		}
	}
	id := chi.URLParam(r, "applicationID")
	app, err := h.Engine.Reject(r.Context(), id, actor, payload.Note)
	if err != nil {
		failDomain(w, r, err, "application_reject_failed", "failed to reject application")
		return
	}
	h.audit(r, actor, "leave.application.reject", "leave_application", id, map[string]any{"note": payload.Note})
	api.Success(w, app, requestID)
}

func (h *Handler) handleCancelApplication(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	id := chi.URLParam(r, "applicationID")
	app, err := h.Engine.Cancel(r.Context(), id, actor)
	if err != nil {
		failDomain(w, r, err, "application_cancel_failed", "failed to cancel application")
		return
	}
	api.Success(w, app, requestID)
}

type recallRequest struct {
	RecallDate string `json:"recallDate"`
	Reason     string `json:"reason"`
}

func (h *Handler) handleRecallApplication(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload recallRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	recallDate, _ := v.Date("recallDate", payload.RecallDate)
	if v.Reject(w, requestID) {
		return
	}

	id := chi.URLParam(r, "applicationID")
	app, err := h.Engine.Recall(r.Context(), id, actor, recallDate, payload.Reason)
	if err != nil {
		failDomain(w, r, err, "application_recall_failed", "failed to recall application")
		return
	}
	h.audit(r, actor, "leave.application.recall", "leave_application", id, map[string]any{
		"recallDate": payload.RecallDate,
		"reason":     payload.Reason,
	})
	api.Success(w, app, requestID)
}

// --- compensatory credits ---

func (h *Handler) handleListCredits(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	employeeID := strings.TrimSpace(r.URL.Query().Get("employeeId"))
	if !auth.CanApprove(actor.RoleName) {
		if employeeID != "" && employeeID != actor.EmployeeID {
			api.Fail(w, http.StatusForbidden, "forbidden", "cannot view another employee's credit requests", requestID)
			return
		}
		employeeID = actor.EmployeeID
	}
	credits, err := h.Credits.List(r.Context(), employeeID)
	if err != nil {
		failDomain(w, r, err, "credits_failed", "failed to list credit requests")
		return
	}
	api.Success(w, credits, requestID)
}

type creditPayload struct {
	DateWorked string `json:"dateWorked"`
	Reason     string `json:"reason"`
}

func (h *Handler) handleRequestCredit(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload creditPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	dateWorked, _ := v.Date("dateWorked", payload.DateWorked)
	if v.Reject(w, requestID) {
		return
	}

	req, err := h.Credits.Request(r.Context(), actor.EmployeeID, dateWorked, payload.Reason)
	if err != nil {
		failDomain(w, r, err, "credit_request_failed", "failed to submit credit request")
		return
	}
	api.Created(w, req, requestID)
}

func (h *Handler) handleApproveCredit(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	id := chi.URLParam(r, "creditID")
	req, err := h.Credits.Approve(r.Context(), id, actor)
	if err != nil {
		failDomain(w, r, err, "credit_approve_failed", "failed to approve credit request")
		return
	}
	h.audit(r, actor, "leave.credit.approve", "leave_credit", id, map[string]any{
		"employeeId": req.EmployeeID,
		"dateWorked": leave.DateKey(req.DateWorked),
	})
	api.Success(w, req, requestID)
}

func (h *Handler) handleRejectCredit(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	id := chi.URLParam(r, "creditID")
	req, err := h.Credits.Reject(r.Context(), id, actor)
	if err != nil {
		failDomain(w, r, err, "credit_reject_failed", "failed to reject credit request")
		return
	}
	h.audit(r, actor, "leave.credit.reject", "leave_credit", id, map[string]any{"employeeId": req.EmployeeID})
	api.Success(w, req, requestID)
}

// --- analytics ---

func (h *Handler) yearParam(w http.ResponseWriter, r *http.Request, requestID string) (int, bool) {
	year, ok := shared.ParseYear(chi.URLParam(r, "year"))
	if !ok {
		api.Fail(w, http.StatusBadRequest, "validation_error", "year must be a four-digit year", requestID)
		return 0, false
	}
	return year, true
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	year, ok := h.yearParam(w, r, requestID)
	if !ok {
		return
	}
	report, err := h.Analytics.Yearly(r.Context(), year)
	if err != nil {
		failDomain(w, r, err, "analytics_failed", "failed to build analytics report")
		return
	}
	api.Success(w, report, requestID)
}

func (h *Handler) handleAnalyticsExport(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	year, ok := h.yearParam(w, r, requestID)
	if !ok {
		return
	}
	report, err := h.Analytics.Yearly(r.Context(), year)
	if err != nil {
		failDomain(w, r, err, "analytics_failed", "failed to build analytics report")
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, fmt.Sprintf("Leave Report %d", report.Year))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Monthly trend (chargeable days)")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for _, point := range report.MonthlyTrend {
		pdf.Cell(0, 7, fmt.Sprintf("%s: %s", time.Month(point.Month), point.Days))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Utilization by type")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for _, entry := range report.TypeUtilization {
		pdf.Cell(0, 7, fmt.Sprintf("%s: %s", entry.Key, entry.Days))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Utilization by department")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for _, entry := range report.DeptUtilization {
		pdf.Cell(0, 7, fmt.Sprintf("%s: %s", entry.Key, entry.Days))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Absenteeism risk")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for _, entry := range report.AbsenteeismRisk {
		pdf.Cell(0, 7, fmt.Sprintf("%s: %s sick/unpaid days", entry.EmployeeID, entry.Days))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Earned leave liability: %s days", report.EarnedLeaveLiability))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Loss-of-pay days taken: %s", report.LossOfPayDaysTaken))

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=leave-report-%d.pdf", report.Year))
	if err := pdf.Output(w); err != nil {
		slog.Warn("analytics pdf write failed", "year", report.Year, "err", err)
	}
}

// --- accrual ---

func (h *Handler) handleRunAccruals(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.actor(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	summary, err := h.Jobs.RunAccrualsNow(r.Context())
	if err != nil {
		failDomain(w, r, err, "accrual_failed", "failed to run accruals")
		return
	}
	h.audit(r, actor, "leave.accrual.run", "leave_balance", "", summary)
	api.Success(w, summary, requestID)
}
