package leave

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"leavehub/internal/domain/auth"
	"leavehub/internal/domain/employee"
	"leavehub/internal/domain/notifications"
)

// Notifier receives fire-and-forget transition notices.
type Notifier interface {
	Notify(ctx context.Context, userID, ntype, title, body string)
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	UserID     string
	EmployeeID string
	RoleName   string
}

// SubmitInput is an employee's leave request. NumberOfDays is never accepted
// from the caller: the engine recomputes it.
type SubmitInput struct {
	EmployeeID    string
	LeaveTypeID   string
	FromDate      time.Time
	ToDate        time.Time
	DurationType  DurationType
	Reason        string
	ContactPhone  string
	ContactEmail  string
	AttachmentRef string
}

// UpdateInput carries the editable fields of a pending application.
type UpdateInput struct {
	LeaveTypeID   string
	FromDate      time.Time
	ToDate        time.Time
	DurationType  DurationType
	Reason        string
	ContactPhone  string
	ContactEmail  string
	AttachmentRef string
}

// Engine drives leave applications through their lifecycle:
// pending -> approved | rejected | cancelled, approved -> approved (recalled).
// It owns no balance arithmetic; every balance effect goes through the Ledger.
type Engine struct {
	store     Store
	ledger    *Ledger
	calendar  *Calendar
	registry  *Registry
	directory employee.Directory
	notify    Notifier

	// Serializes submissions per employee so the overlap check and the
	// reservation act as one step.
	submitMu keyedMutex

	now func() time.Time
}

func NewEngine(store Store, ledger *Ledger, calendar *Calendar, registry *Registry, directory employee.Directory, notify Notifier) *Engine {
	return &Engine{
		store:     store,
		ledger:    ledger,
		calendar:  calendar,
		registry:  registry,
		directory: directory,
		notify:    notify,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) Get(ctx context.Context, id string) (Application, error) {
	return e.store.GetApplication(ctx, id)
}

func (e *Engine) List(ctx context.Context, filter ApplicationFilter) ([]Application, error) {
	return e.store.ListApplications(ctx, filter)
}

// Submit validates the request, recomputes the chargeable day count,
// reserves balance (substituting loss-of-pay for exhausted standard
// categories), and persists the application as pending. Types that do not
// require approval are committed immediately.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (Application, error) {
	in.FromDate = DateOnly(in.FromDate)
	if in.ToDate.IsZero() {
		in.ToDate = in.FromDate
	} else {
		in.ToDate = DateOnly(in.ToDate)
	}

	lt, profile, err := e.validateSubmission(ctx, in)
	if err != nil {
		return Application{}, err
	}

	holidays, err := e.calendar.DatesForYears(ctx, yearsSpanned(in.FromDate, in.ToDate))
	if err != nil {
		return Application{}, err
	}
	days := CountChargeable(in.FromDate, in.ToDate, in.DurationType, holidays)
	if days.Sign() == 0 {
		return Application{}, validationErr("requested range contains no working days")
	}
	if lt.MaxConsecutiveDays > 0 && days.GreaterThan(decimal.NewFromInt(int64(lt.MaxConsecutiveDays))) {
		return Application{}, validationErr("%s allows at most %d consecutive days", lt.Name, lt.MaxConsecutiveDays)
	}

	unlock := e.submitMu.lock(in.EmployeeID)
	defer unlock()

	if err := e.checkOverlap(ctx, in.EmployeeID, in.FromDate, in.ToDate, ""); err != nil {
		return Application{}, err
	}

	year := in.FromDate.Year()
	target, reason, err := e.chargeTarget(ctx, in.EmployeeID, lt, days, decimal.Zero, year, in.Reason)
	if err != nil {
		return Application{}, err
	}

	key := BalanceKey{EmployeeID: in.EmployeeID, LeaveTypeID: target.ID, Year: year}
	if err := e.ledger.Reserve(ctx, key, days); err != nil {
		return Application{}, err
	}

	app := Application{
		EmployeeID:    in.EmployeeID,
		LeaveTypeID:   target.ID,
		FromDate:      in.FromDate,
		ToDate:        in.ToDate,
		DurationType:  in.DurationType,
		NumberOfDays:  days,
		Reason:        reason,
		ContactPhone:  in.ContactPhone,
		ContactEmail:  in.ContactEmail,
		AttachmentRef: in.AttachmentRef,
		Status:        StatusPending,
		CreatedAt:     e.now(),
	}
	id, err := e.store.CreateApplication(ctx, app)
	if err != nil {
		// Reservation must not outlive the failed submission.
		if relErr := e.ledger.Release(ctx, key, days); relErr != nil {
			return Application{}, fmt.Errorf("create failed: %w (release failed: %v)", err, relErr)
		}
		return Application{}, err
	}
	app.ID = id

	if !target.RequiresApproval {
		if err := e.ledger.Commit(ctx, key, days); err != nil {
			return Application{}, err
		}
		app.Status = StatusApproved
		if err := e.store.UpdateApplication(ctx, app); err != nil {
			return Application{}, err
		}
	}

	e.notify.Notify(ctx, profile.UserID, notifications.TypeLeaveSubmitted,
		"Leave request submitted",
		fmt.Sprintf("%s for %s to %s (%s days)", target.Name, DateKey(app.FromDate), DateKey(app.ToDate), days))
	return app, nil
}

// Approve records one approval level. A manager's approval on a multi-level
// type keeps the application pending for HR; HR and admin approvals are
// always final and commit the reservation.
func (e *Engine) Approve(ctx context.Context, id string, actor Actor, note string) (Application, error) {
	app, err := e.store.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if app.Status != StatusPending {
		return Application{}, fmt.Errorf("%w: cannot approve %s application", ErrInvalidState, app.Status)
	}
	if err := e.requireApprover(ctx, actor, app.EmployeeID); err != nil {
		return Application{}, err
	}

	lt, err := e.store.GetType(ctx, app.LeaveTypeID)
	if err != nil {
		return Application{}, err
	}

	app.ApprovalsGranted++
	if note != "" {
		app.ApproverNote = note
	}

	final := auth.IsAdministrative(actor.RoleName) || app.ApprovalsGranted >= lt.ApprovalLevels
	if !final {
		if err := e.store.UpdateApplication(ctx, app); err != nil {
			return Application{}, err
		}
		return app, nil
	}

	key := BalanceKey{EmployeeID: app.EmployeeID, LeaveTypeID: app.LeaveTypeID, Year: app.FromDate.Year()}
	if err := e.ledger.Commit(ctx, key, app.NumberOfDays); err != nil {
		return Application{}, err
	}
	app.Status = StatusApproved
	if err := e.store.UpdateApplication(ctx, app); err != nil {
		return Application{}, err
	}

	e.notifyEmployee(ctx, app.EmployeeID, notifications.TypeLeaveApproved,
		"Leave request approved",
		fmt.Sprintf("%s to %s approved", DateKey(app.FromDate), DateKey(app.ToDate)))
	return app, nil
}

func (e *Engine) Reject(ctx context.Context, id string, actor Actor, note string) (Application, error) {
	app, err := e.store.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if app.Status != StatusPending {
		return Application{}, fmt.Errorf("%w: cannot reject %s application", ErrInvalidState, app.Status)
	}
	if err := e.requireApprover(ctx, actor, app.EmployeeID); err != nil {
		return Application{}, err
	}

	key := BalanceKey{EmployeeID: app.EmployeeID, LeaveTypeID: app.LeaveTypeID, Year: app.FromDate.Year()}
	if err := e.ledger.Release(ctx, key, app.NumberOfDays); err != nil {
		return Application{}, err
	}
	app.Status = StatusRejected
	app.ApproverNote = note
	if err := e.store.UpdateApplication(ctx, app); err != nil {
		return Application{}, err
	}

	e.notifyEmployee(ctx, app.EmployeeID, notifications.TypeLeaveRejected,
		"Leave request rejected", note)
	return app, nil
}

// Cancel is always available to the owning employee while pending.
func (e *Engine) Cancel(ctx context.Context, id string, actor Actor) (Application, error) {
	app, err := e.store.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if app.Status != StatusPending {
		return Application{}, fmt.Errorf("%w: cannot cancel %s application", ErrInvalidState, app.Status)
	}
	if actor.EmployeeID != app.EmployeeID && !auth.IsAdministrative(actor.RoleName) {
		return Application{}, fmt.Errorf("%w: only the owner may cancel", ErrPermissionDenied)
	}

	key := BalanceKey{EmployeeID: app.EmployeeID, LeaveTypeID: app.LeaveTypeID, Year: app.FromDate.Year()}
	if err := e.ledger.Release(ctx, key, app.NumberOfDays); err != nil {
		return Application{}, err
	}
	app.Status = StatusCancelled
	if err := e.store.UpdateApplication(ctx, app); err != nil {
		return Application{}, err
	}

	e.notifyEmployee(ctx, app.EmployeeID, notifications.TypeLeaveCancelled,
		"Leave request cancelled",
		fmt.Sprintf("%s to %s cancelled", DateKey(app.FromDate), DateKey(app.ToDate)))
	return app, nil
}

// chargeTarget picks the type a request is charged to. A standard category
// that cannot cover days is substituted with loss-of-pay and the reason
// records the conversion; non-standard categories fail instead. held is
// balance already reserved by the application under adjustment, which is
// usable again once the adjustment lands.
func (e *Engine) chargeTarget(ctx context.Context, employeeID string, lt LeaveType, days, held decimal.Decimal, year int, reason string) (LeaveType, string, error) {
	if lt.NegativeBalanceAllowed {
		return lt, reason, nil
	}
	bal, err := e.ledger.GetBalance(ctx, BalanceKey{EmployeeID: employeeID, LeaveTypeID: lt.ID, Year: year})
	if err != nil {
		return LeaveType{}, "", err
	}
	usable := bal.Available.Add(held)
	if !usable.LessThan(days) {
		return lt, reason, nil
	}
	if !lt.Name.Standard() {
		return LeaveType{}, "", &InsufficientBalanceError{
			LeaveType: lt.Name,
			Available: usable,
			Requested: days,
		}
	}
	lop, err := e.registry.GetByName(ctx, TypeLossOfPay)
	if err != nil {
		return LeaveType{}, "", fmt.Errorf("loss-of-pay fallback unavailable: %w", err)
	}
	return lop, fmt.Sprintf("%s [converted to loss of pay: insufficient %s balance]", reason, lt.Name), nil
}

// Update re-validates a pending application against new dates or type and
// adjusts the reservation by the difference. The day cap and loss-of-pay
// substitution apply exactly as on Submit.
func (e *Engine) Update(ctx context.Context, id string, actor Actor, in UpdateInput) (Application, error) {
	app, err := e.store.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if app.Status != StatusPending {
		return Application{}, fmt.Errorf("%w: cannot update %s application", ErrInvalidState, app.Status)
	}
	if actor.EmployeeID != app.EmployeeID && !auth.IsAdministrative(actor.RoleName) {
		return Application{}, fmt.Errorf("%w: only the owner may update", ErrPermissionDenied)
	}

	next := SubmitInput{
		EmployeeID:    app.EmployeeID,
		LeaveTypeID:   in.LeaveTypeID,
		FromDate:      DateOnly(in.FromDate),
		ToDate:        in.ToDate,
		DurationType:  in.DurationType,
		Reason:        in.Reason,
		ContactPhone:  in.ContactPhone,
		ContactEmail:  in.ContactEmail,
		AttachmentRef: in.AttachmentRef,
	}
	if next.LeaveTypeID == "" {
		next.LeaveTypeID = app.LeaveTypeID
	}
	if next.ToDate.IsZero() {
		next.ToDate = next.FromDate
	} else {
		next.ToDate = DateOnly(next.ToDate)
	}

	lt, _, err := e.validateSubmission(ctx, next)
	if err != nil {
		return Application{}, err
	}

	holidays, err := e.calendar.DatesForYears(ctx, yearsSpanned(next.FromDate, next.ToDate))
	if err != nil {
		return Application{}, err
	}
	days := CountChargeable(next.FromDate, next.ToDate, next.DurationType, holidays)
	if days.Sign() == 0 {
		return Application{}, validationErr("requested range contains no working days")
	}
	if lt.MaxConsecutiveDays > 0 && days.GreaterThan(decimal.NewFromInt(int64(lt.MaxConsecutiveDays))) {
		return Application{}, validationErr("%s allows at most %d consecutive days", lt.Name, lt.MaxConsecutiveDays)
	}

	unlock := e.submitMu.lock(app.EmployeeID)
	defer unlock()

	if err := e.checkOverlap(ctx, app.EmployeeID, next.FromDate, next.ToDate, app.ID); err != nil {
		return Application{}, err
	}

	oldKey := BalanceKey{EmployeeID: app.EmployeeID, LeaveTypeID: app.LeaveTypeID, Year: app.FromDate.Year()}

	year := next.FromDate.Year()
	held := decimal.Zero
	if app.LeaveTypeID == lt.ID && app.FromDate.Year() == year {
		held = app.NumberOfDays
	}
	target, reason, err := e.chargeTarget(ctx, app.EmployeeID, lt, days, held, year, next.Reason)
	if err != nil {
		return Application{}, err
	}

	newKey := BalanceKey{EmployeeID: app.EmployeeID, LeaveTypeID: target.ID, Year: year}

	if oldKey == newKey {
		diff := days.Sub(app.NumberOfDays)
		switch {
		case diff.Sign() > 0:
			if err := e.ledger.Reserve(ctx, newKey, diff); err != nil {
				return Application{}, err
			}
		case diff.Sign() < 0:
			if err := e.ledger.Release(ctx, oldKey, diff.Neg()); err != nil {
				return Application{}, err
			}
		}
	} else {
		if err := e.ledger.Reserve(ctx, newKey, days); err != nil {
			return Application{}, err
		}
		if err := e.ledger.Release(ctx, oldKey, app.NumberOfDays); err != nil {
			return Application{}, err
		}
	}

	app.LeaveTypeID = target.ID
	app.FromDate = next.FromDate
	app.ToDate = next.ToDate
	app.DurationType = next.DurationType
	app.NumberOfDays = days
	app.Reason = reason
	app.ContactPhone = next.ContactPhone
	app.ContactEmail = next.ContactEmail
	app.AttachmentRef = next.AttachmentRef
	if err := e.store.UpdateApplication(ctx, app); err != nil {
		return Application{}, err
	}
	return app, nil
}

// Recall shortens an in-progress approved leave to end on recallDate and
// restores the unused remainder. The application stays approved.
func (e *Engine) Recall(ctx context.Context, id string, actor Actor, recallDate time.Time, reason string) (Application, error) {
	app, err := e.store.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if app.Status != StatusApproved {
		return Application{}, fmt.Errorf("%w: only approved applications can be recalled", ErrInvalidState)
	}
	if app.RecalledAt != nil {
		return Application{}, fmt.Errorf("%w: application already recalled", ErrInvalidState)
	}
	if err := e.requireApprover(ctx, actor, app.EmployeeID); err != nil {
		return Application{}, err
	}

	recallDate = DateOnly(recallDate)
	if !recallDate.After(app.FromDate) || !recallDate.Before(app.ToDate) {
		return Application{}, validationErr("recall date must fall strictly between %s and %s",
			DateKey(app.FromDate), DateKey(app.ToDate))
	}

	holidays, err := e.calendar.DatesForYears(ctx, yearsSpanned(app.FromDate, recallDate))
	if err != nil {
		return Application{}, err
	}
	shortened := CountChargeable(app.FromDate, recallDate, DurationMultipleDays, holidays)
	unused := app.NumberOfDays.Sub(shortened)
	if unused.Sign() < 0 {
		return Application{}, validationErr("recall does not shorten the leave")
	}

	if unused.Sign() > 0 {
		key := BalanceKey{EmployeeID: app.EmployeeID, LeaveTypeID: app.LeaveTypeID, Year: app.FromDate.Year()}
		if err := e.ledger.Restore(ctx, key, unused); err != nil {
			return Application{}, err
		}
	}

	now := e.now()
	app.ToDate = recallDate
	app.NumberOfDays = shortened
	app.RecalledAt = &now
	app.RecallReason = reason
	if err := e.store.UpdateApplication(ctx, app); err != nil {
		return Application{}, err
	}

	e.notifyEmployee(ctx, app.EmployeeID, notifications.TypeLeaveRecalled,
		"Leave recalled",
		fmt.Sprintf("leave now ends %s: %s", DateKey(recallDate), reason))
	return app, nil
}

func (e *Engine) validateSubmission(ctx context.Context, in SubmitInput) (LeaveType, employee.Profile, error) {
	if in.EmployeeID == "" {
		return LeaveType{}, employee.Profile{}, validationErr("employee id required")
	}
	if !in.DurationType.Valid() {
		return LeaveType{}, employee.Profile{}, validationErr("unknown duration type %q", in.DurationType)
	}
	if in.FromDate.IsZero() {
		return LeaveType{}, employee.Profile{}, validationErr("from date required")
	}
	if in.ToDate.Before(in.FromDate) {
		return LeaveType{}, employee.Profile{}, validationErr("to date before from date")
	}
	if in.DurationType != DurationMultipleDays && !in.ToDate.Equal(in.FromDate) {
		return LeaveType{}, employee.Profile{}, validationErr("%s requests cover a single date", in.DurationType)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return LeaveType{}, employee.Profile{}, validationErr("reason required")
	}

	lt, err := e.store.GetType(ctx, in.LeaveTypeID)
	if err != nil {
		return LeaveType{}, employee.Profile{}, err
	}
	if lt.Name.InternalOnly() {
		return LeaveType{}, employee.Profile{}, validationErr("%s cannot be requested directly", lt.Name)
	}

	profile, err := e.directory.Profile(ctx, in.EmployeeID)
	if err != nil {
		return LeaveType{}, employee.Profile{}, err
	}
	if !lt.GenderEligibility.Matches(profile.Gender) {
		return LeaveType{}, employee.Profile{}, validationErr("%s is not available for this employee", lt.Name)
	}
	if lt.RequiresDocument && strings.TrimSpace(in.AttachmentRef) == "" {
		return LeaveType{}, employee.Profile{}, validationErr("%s requires a supporting document", lt.Name)
	}
	if lt.MinDaysInAdvance > 0 {
		earliest := DateOnly(e.now()).AddDate(0, 0, lt.MinDaysInAdvance)
		if in.FromDate.Before(earliest) {
			return LeaveType{}, employee.Profile{}, validationErr("%s must be requested %d days in advance", lt.Name, lt.MinDaysInAdvance)
		}
	}
	return lt, profile, nil
}

// checkOverlap fails with OverlapError when a pending or approved
// application intersects [from, to]. Runs under the per-employee submit lock.
func (e *Engine) checkOverlap(ctx context.Context, employeeID string, from, to time.Time, excludeID string) error {
	existing, err := e.store.ListOverlapping(ctx, employeeID, from, to)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID == excludeID {
			continue
		}
		return &OverlapError{ConflictID: other.ID, From: other.FromDate, To: other.ToDate}
	}
	return nil
}

// requireApprover allows HR and admin always, and managers only for their
// direct reports.
func (e *Engine) requireApprover(ctx context.Context, actor Actor, employeeID string) error {
	if auth.IsAdministrative(actor.RoleName) {
		return nil
	}
	if actor.RoleName == auth.RoleManager {
		ok, err := e.directory.IsManagerOf(ctx, actor.EmployeeID, employeeID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: approver must be the employee's manager or hr", ErrPermissionDenied)
}

func (e *Engine) notifyEmployee(ctx context.Context, employeeID, ntype, title, body string) {
	profile, err := e.directory.Profile(ctx, employeeID)
	if err != nil {
		return
	}
	e.notify.Notify(ctx, profile.UserID, ntype, title, body)
}

// keyedMutex hands out one mutex per key. Keys are employee IDs, so
// contention is limited to one employee's own concurrent submissions.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
