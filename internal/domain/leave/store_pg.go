package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres Store. Balance mutations run in a transaction with
// a row lock on the (employee, type, year) key, so concurrent requests
// against the same balance serialize at the database.
type PGStore struct {
	DB *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{DB: db}
}

const leaveTypeColumns = `
    id, name, abbreviation, annual_entitlement, accrual_method,
    carry_forward, max_carry_forward, encashment, max_encashment_per_year,
    negative_balance_allowed, requires_approval, approval_levels,
    requires_document, min_days_in_advance, max_consecutive_days,
    gender_eligibility, created_at
`

func (s *PGStore) CreateType(ctx context.Context, t LeaveType) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO leave_types (
      name, abbreviation, annual_entitlement, accrual_method,
      carry_forward, max_carry_forward, encashment, max_encashment_per_year,
      negative_balance_allowed, requires_approval, approval_levels,
      requires_document, min_days_in_advance, max_consecutive_days, gender_eligibility
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
    RETURNING id
  `, t.Name, t.Abbreviation, t.AnnualEntitlement, t.AccrualMethod,
		t.CarryForward, t.MaxCarryForward, t.Encashment, t.MaxEncashmentPerYear,
		t.NegativeBalanceAllowed, t.RequiresApproval, t.ApprovalLevels,
		t.RequiresDocument, t.MinDaysInAdvance, t.MaxConsecutiveDays, t.GenderEligibility).Scan(&id)
	return id, err
}

func (s *PGStore) GetType(ctx context.Context, id string) (LeaveType, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types WHERE id = $1`, id)
	return scanLeaveType(row)
}

func (s *PGStore) GetTypeByName(ctx context.Context, name TypeName) (LeaveType, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types WHERE name = $1`, name)
	return scanLeaveType(row)
}

func (s *PGStore) ListTypes(ctx context.Context) ([]LeaveType, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaveType
	for rows.Next() {
		t, err := scanLeaveType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateType(ctx context.Context, t LeaveType) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_types SET
      name = $2, abbreviation = $3, annual_entitlement = $4, accrual_method = $5,
      carry_forward = $6, max_carry_forward = $7, encashment = $8, max_encashment_per_year = $9,
      negative_balance_allowed = $10, requires_approval = $11, approval_levels = $12,
      requires_document = $13, min_days_in_advance = $14, max_consecutive_days = $15,
      gender_eligibility = $16
    WHERE id = $1
  `, t.ID, t.Name, t.Abbreviation, t.AnnualEntitlement, t.AccrualMethod,
		t.CarryForward, t.MaxCarryForward, t.Encashment, t.MaxEncashmentPerYear,
		t.NegativeBalanceAllowed, t.RequiresApproval, t.ApprovalLevels,
		t.RequiresDocument, t.MinDaysInAdvance, t.MaxConsecutiveDays, t.GenderEligibility)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteType(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM leave_types WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) CountTypeReferences(ctx context.Context, id string) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT (SELECT COUNT(1) FROM leave_applications WHERE leave_type_id = $1)
         + (SELECT COUNT(1) FROM leave_balances WHERE leave_type_id = $1)
  `, id).Scan(&count)
	return count, err
}

func (s *PGStore) CreateHoliday(ctx context.Context, h Holiday) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO public_holidays (name, holiday_date, holiday_type, is_restricted, recurring, description)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id
  `, h.Name, h.Date, h.Type, h.IsRestricted, h.Recurring, h.Description).Scan(&id)
	return id, err
}

func (s *PGStore) UpdateHoliday(ctx context.Context, h Holiday) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE public_holidays SET
      name = $2, holiday_date = $3, holiday_type = $4, is_restricted = $5,
      recurring = $6, description = $7
    WHERE id = $1
  `, h.ID, h.Name, h.Date, h.Type, h.IsRestricted, h.Recurring, h.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteHoliday(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM public_holidays WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListHolidays(ctx context.Context, year int) ([]Holiday, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, holiday_date, holiday_type, is_restricted, recurring,
           COALESCE(description, ''), created_at
    FROM public_holidays
    WHERE EXTRACT(YEAR FROM holiday_date) = $1
    ORDER BY holiday_date
  `, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holiday
	for rows.Next() {
		var h Holiday
		if err := rows.Scan(&h.ID, &h.Name, &h.Date, &h.Type, &h.IsRestricted,
			&h.Recurring, &h.Description, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *PGStore) HolidayDates(ctx context.Context, years []int) (map[string]struct{}, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT holiday_date
    FROM public_holidays
    WHERE EXTRACT(YEAR FROM holiday_date) = ANY($1)
  `, years)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := make(map[string]struct{})
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates[DateKey(d)] = struct{}{}
	}
	return dates, rows.Err()
}

const balanceColumns = `
    employee_id, leave_type_id, year, entitlement, accrued, taken,
    pending_approval, available, carried_forward_in, updated_at
`

func (s *PGStore) GetBalance(ctx context.Context, key BalanceKey) (Balance, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3
  `, key.EmployeeID, key.LeaveTypeID, key.Year)
	return scanBalance(row)
}

func (s *PGStore) ListBalances(ctx context.Context, employeeID string, year int) ([]Balance, error) {
	return s.queryBalances(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE employee_id = $1 AND year = $2
    ORDER BY leave_type_id
  `, employeeID, year)
}

func (s *PGStore) ListBalancesForYear(ctx context.Context, year int) ([]Balance, error) {
	return s.queryBalances(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE year = $1
    ORDER BY employee_id, leave_type_id
  `, year)
}

func (s *PGStore) queryBalances(ctx context.Context, query string, args ...any) ([]Balance, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateBalance inserts a zero row if the key is new, locks it, applies fn,
// and writes the result. fn errors roll the transaction back, so a failed
// mutation is never observable.
func (s *PGStore) UpdateBalance(ctx context.Context, key BalanceKey, fn func(*Balance) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
    INSERT INTO leave_balances (employee_id, leave_type_id, year)
    VALUES ($1,$2,$3)
    ON CONFLICT (employee_id, leave_type_id, year) DO NOTHING
  `, key.EmployeeID, key.LeaveTypeID, key.Year); err != nil {
		return err
	}

	row := tx.QueryRow(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3
    FOR UPDATE
  `, key.EmployeeID, key.LeaveTypeID, key.Year)
	b, err := scanBalance(row)
	if err != nil {
		return err
	}

	if err := fn(&b); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
    UPDATE leave_balances SET
      entitlement = $4, accrued = $5, taken = $6, pending_approval = $7,
      available = $8, carried_forward_in = $9, updated_at = now()
    WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3
  `, key.EmployeeID, key.LeaveTypeID, key.Year,
		b.Entitlement, b.Accrued, b.Taken, b.Pending, b.Available, b.CarriedForwardIn); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const applicationColumns = `
    id, employee_id, leave_type_id, from_date, to_date, duration_type,
    number_of_days, reason, COALESCE(contact_phone, ''), COALESCE(contact_email, ''),
    COALESCE(attachment_ref, ''), status, COALESCE(approver_note, ''),
    approvals_granted, created_at, recalled_at, COALESCE(recall_reason, '')
`

func (s *PGStore) CreateApplication(ctx context.Context, a Application) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO leave_applications (
      employee_id, leave_type_id, from_date, to_date, duration_type,
      number_of_days, reason, contact_phone, contact_email, attachment_ref,
      status, approvals_granted
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    RETURNING id
  `, a.EmployeeID, a.LeaveTypeID, a.FromDate, a.ToDate, a.DurationType,
		a.NumberOfDays, a.Reason, a.ContactPhone, a.ContactEmail, a.AttachmentRef,
		a.Status, a.ApprovalsGranted).Scan(&id)
	return id, err
}

func (s *PGStore) GetApplication(ctx context.Context, id string) (Application, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+applicationColumns+` FROM leave_applications WHERE id = $1`, id)
	return scanApplication(row)
}

func (s *PGStore) UpdateApplication(ctx context.Context, a Application) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_applications SET
      leave_type_id = $2, from_date = $3, to_date = $4, duration_type = $5,
      number_of_days = $6, reason = $7, contact_phone = $8, contact_email = $9,
      attachment_ref = $10, status = $11, approver_note = $12,
      approvals_granted = $13, recalled_at = $14, recall_reason = $15
    WHERE id = $1
  `, a.ID, a.LeaveTypeID, a.FromDate, a.ToDate, a.DurationType,
		a.NumberOfDays, a.Reason, a.ContactPhone, a.ContactEmail, a.AttachmentRef,
		a.Status, a.ApproverNote, a.ApprovalsGranted, a.RecalledAt, a.RecallReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListApplications(ctx context.Context, filter ApplicationFilter) ([]Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM leave_applications WHERE 1=1`
	var args []any

	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		query += fmt.Sprintf(" AND employee_id = $%d", len(args))
	}
	if filter.LeaveTypeID != "" {
		args = append(args, filter.LeaveTypeID)
		query += fmt.Sprintf(" AND leave_type_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Year != 0 {
		args = append(args, filter.Year)
		query += fmt.Sprintf(" AND EXTRACT(YEAR FROM from_date) = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) ListOverlapping(ctx context.Context, employeeID string, from, to time.Time) ([]Application, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+applicationColumns+`
    FROM leave_applications
    WHERE employee_id = $1
      AND status IN ($2, $3)
      AND from_date <= $4 AND to_date >= $5
    ORDER BY from_date
  `, employeeID, StatusPending, StatusApproved, to, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateCredit(ctx context.Context, c CreditRequest) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO leave_credit_requests (employee_id, date_worked, reason, status)
    VALUES ($1,$2,$3,$4)
    RETURNING id
  `, c.EmployeeID, c.DateWorked, c.Reason, c.Status).Scan(&id)
	return id, err
}

func (s *PGStore) GetCredit(ctx context.Context, id string) (CreditRequest, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT id, employee_id, date_worked, reason, status, created_at, decided_at
    FROM leave_credit_requests
    WHERE id = $1
  `, id)
	var c CreditRequest
	err := row.Scan(&c.ID, &c.EmployeeID, &c.DateWorked, &c.Reason, &c.Status, &c.CreatedAt, &c.DecidedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return CreditRequest{}, ErrNotFound
	}
	if err != nil {
		return CreditRequest{}, err
	}
	return c, nil
}

func (s *PGStore) UpdateCredit(ctx context.Context, c CreditRequest) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_credit_requests SET status = $2, decided_at = $3 WHERE id = $1
  `, c.ID, c.Status, c.DecidedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListCredits(ctx context.Context, employeeID string) ([]CreditRequest, error) {
	query := `
    SELECT id, employee_id, date_worked, reason, status, created_at, decided_at
    FROM leave_credit_requests
  `
	var args []any
	if employeeID != "" {
		query += " WHERE employee_id = $1"
		args = append(args, employeeID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CreditRequest
	for rows.Next() {
		var c CreditRequest
		if err := rows.Scan(&c.ID, &c.EmployeeID, &c.DateWorked, &c.Reason, &c.Status, &c.CreatedAt, &c.DecidedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) LastAccrualRun(ctx context.Context, leaveTypeID string) (time.Time, error) {
	var last time.Time
	err := s.DB.QueryRow(ctx, `
    SELECT last_period_start FROM leave_accrual_runs WHERE leave_type_id = $1
  `, leaveTypeID).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	return last, err
}

func (s *PGStore) RecordAccrualRun(ctx context.Context, leaveTypeID string, periodStart time.Time, employeesAccrued int) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO leave_accrual_runs (leave_type_id, last_period_start, employees_accrued)
    VALUES ($1,$2,$3)
    ON CONFLICT (leave_type_id) DO UPDATE
      SET last_period_start = EXCLUDED.last_period_start,
          employees_accrued = EXCLUDED.employees_accrued,
          updated_at = now()
  `, leaveTypeID, periodStart, employeesAccrued)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLeaveType(row rowScanner) (LeaveType, error) {
	var t LeaveType
	err := row.Scan(&t.ID, &t.Name, &t.Abbreviation, &t.AnnualEntitlement, &t.AccrualMethod,
		&t.CarryForward, &t.MaxCarryForward, &t.Encashment, &t.MaxEncashmentPerYear,
		&t.NegativeBalanceAllowed, &t.RequiresApproval, &t.ApprovalLevels,
		&t.RequiresDocument, &t.MinDaysInAdvance, &t.MaxConsecutiveDays,
		&t.GenderEligibility, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeaveType{}, ErrNotFound
	}
	if err != nil {
		return LeaveType{}, err
	}
	return t, nil
}

func scanBalance(row rowScanner) (Balance, error) {
	var b Balance
	err := row.Scan(&b.EmployeeID, &b.LeaveTypeID, &b.Year, &b.Entitlement, &b.Accrued,
		&b.Taken, &b.Pending, &b.Available, &b.CarriedForwardIn, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, ErrNotFound
	}
	if err != nil {
		return Balance{}, err
	}
	return b, nil
}

func scanApplication(row rowScanner) (Application, error) {
	var a Application
	err := row.Scan(&a.ID, &a.EmployeeID, &a.LeaveTypeID, &a.FromDate, &a.ToDate,
		&a.DurationType, &a.NumberOfDays, &a.Reason, &a.ContactPhone, &a.ContactEmail,
		&a.AttachmentRef, &a.Status, &a.ApproverNote, &a.ApprovalsGranted,
		&a.CreatedAt, &a.RecalledAt, &a.RecallReason)
	if errors.Is(err, pgx.ErrNoRows) {
		return Application{}, ErrNotFound
	}
	if err != nil {
		return Application{}, err
	}
	return a, nil
}
