package leave

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leavehub/internal/domain/auth"
	"leavehub/internal/domain/employee"
	"leavehub/internal/domain/notifications"
)

const minCreditReasonLen = 5

// CreditWorkflow handles compensatory-off credit requests for days worked on
// holidays or weekends. It only ever adds credit, so no overlap or
// sufficiency checks apply.
type CreditWorkflow struct {
	store     Store
	ledger    *Ledger
	registry  *Registry
	directory employee.Directory
	notify    Notifier

	now func() time.Time
}

func NewCreditWorkflow(store Store, ledger *Ledger, registry *Registry, directory employee.Directory, notify Notifier) *CreditWorkflow {
	return &CreditWorkflow{
		store:     store,
		ledger:    ledger,
		registry:  registry,
		directory: directory,
		notify:    notify,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (w *CreditWorkflow) Get(ctx context.Context, id string) (CreditRequest, error) {
	return w.store.GetCredit(ctx, id)
}

func (w *CreditWorkflow) List(ctx context.Context, employeeID string) ([]CreditRequest, error) {
	return w.store.ListCredits(ctx, employeeID)
}

// Request records a pending credit claim. The worked date must not be in the
// future and must have been a non-working day.
func (w *CreditWorkflow) Request(ctx context.Context, employeeID string, dateWorked time.Time, reason string) (CreditRequest, error) {
	if employeeID == "" {
		return CreditRequest{}, validationErr("employee id required")
	}
	if len(strings.TrimSpace(reason)) < minCreditReasonLen {
		return CreditRequest{}, validationErr("reason must be at least %d characters", minCreditReasonLen)
	}

	dateWorked = DateOnly(dateWorked)
	today := DateOnly(w.now())
	if dateWorked.After(today) {
		return CreditRequest{}, validationErr("date worked cannot be in the future")
	}

	holidays, err := w.store.HolidayDates(ctx, []int{dateWorked.Year()})
	if err != nil {
		return CreditRequest{}, err
	}
	if IsWorkingDay(dateWorked, holidays) {
		return CreditRequest{}, validationErr("%s was a regular working day", DateKey(dateWorked))
	}

	req := CreditRequest{
		EmployeeID: employeeID,
		DateWorked: dateWorked,
		Reason:     reason,
		Status:     StatusPending,
		CreatedAt:  w.now(),
	}
	id, err := w.store.CreateCredit(ctx, req)
	if err != nil {
		return CreditRequest{}, err
	}
	req.ID = id
	return req, nil
}

// Approve credits one compensatory-off day into the employee's balance for
// the current year.
func (w *CreditWorkflow) Approve(ctx context.Context, id string, actor Actor) (CreditRequest, error) {
	req, err := w.store.GetCredit(ctx, id)
	if err != nil {
		return CreditRequest{}, err
	}
	if req.Status != StatusPending {
		return CreditRequest{}, fmt.Errorf("%w: cannot approve %s credit request", ErrInvalidState, req.Status)
	}
	if !auth.IsAdministrative(actor.RoleName) {
		return CreditRequest{}, fmt.Errorf("%w: credit approval requires hr", ErrPermissionDenied)
	}

	compOff, err := w.registry.GetByName(ctx, TypeCompensatoryOff)
	if err != nil {
		return CreditRequest{}, fmt.Errorf("compensatory-off type missing: %w", err)
	}

	key := BalanceKey{
		EmployeeID:  req.EmployeeID,
		LeaveTypeID: compOff.ID,
		Year:        w.now().Year(),
	}
	if err := w.ledger.Credit(ctx, key, oneDay, false); err != nil {
		return CreditRequest{}, err
	}

	now := w.now()
	req.Status = StatusApproved
	req.DecidedAt = &now
	if err := w.store.UpdateCredit(ctx, req); err != nil {
		return CreditRequest{}, err
	}

	w.notifyEmployee(ctx, req.EmployeeID, notifications.TypeCreditApproved,
		"Compensatory credit approved",
		fmt.Sprintf("one day credited for %s", DateKey(req.DateWorked)))
	return req, nil
}

// Reject closes the request with no ledger effect.
func (w *CreditWorkflow) Reject(ctx context.Context, id string, actor Actor) (CreditRequest, error) {
	req, err := w.store.GetCredit(ctx, id)
	if err != nil {
		return CreditRequest{}, err
	}
	if req.Status != StatusPending {
		return CreditRequest{}, fmt.Errorf("%w: cannot reject %s credit request", ErrInvalidState, req.Status)
	}
	if !auth.IsAdministrative(actor.RoleName) {
		return CreditRequest{}, fmt.Errorf("%w: credit rejection requires hr", ErrPermissionDenied)
	}

	now := w.now()
	req.Status = StatusRejected
	req.DecidedAt = &now
	if err := w.store.UpdateCredit(ctx, req); err != nil {
		return CreditRequest{}, err
	}

	w.notifyEmployee(ctx, req.EmployeeID, notifications.TypeCreditRejected,
		"Compensatory credit rejected",
		fmt.Sprintf("credit request for %s was rejected", DateKey(req.DateWorked)))
	return req, nil
}

func (w *CreditWorkflow) notifyEmployee(ctx context.Context, employeeID, ntype, title, body string) {
	profile, err := w.directory.Profile(ctx, employeeID)
	if err != nil {
		return
	}
	w.notify.Notify(ctx, profile.UserID, ntype, title, body)
}
