package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// TypeName is the closed set of leave categories the engine understands.
type TypeName string

const (
	TypeEarnedLeave     TypeName = "earned_leave"
	TypeCasualLeave     TypeName = "casual_leave"
	TypeSickLeave       TypeName = "sick_leave"
	TypeMaternity       TypeName = "maternity"
	TypePaternity       TypeName = "paternity"
	TypeCompensatoryOff TypeName = "compensatory_off"
	TypeLossOfPay       TypeName = "loss_of_pay"
)

func (n TypeName) Valid() bool {
	switch n {
	case TypeEarnedLeave, TypeCasualLeave, TypeSickLeave, TypeMaternity,
		TypePaternity, TypeCompensatoryOff, TypeLossOfPay:
		return true
	}
	return false
}

// Standard reports whether the category falls back to loss-of-pay when the
// balance runs out.
func (n TypeName) Standard() bool {
	return n == TypeEarnedLeave || n == TypeCasualLeave || n == TypeSickLeave
}

// InternalOnly reports whether the category is granted by the system rather
// than requested directly by an employee.
func (n TypeName) InternalOnly() bool {
	return n == TypeCompensatoryOff || n == TypeLossOfPay
}

type AccrualMethod string

const (
	AccrualMonthly         AccrualMethod = "monthly"
	AccrualAnnualFrontload AccrualMethod = "annual_frontload"
	AccrualManualCredit    AccrualMethod = "manual_credit"
)

func (m AccrualMethod) Valid() bool {
	return m == AccrualMonthly || m == AccrualAnnualFrontload || m == AccrualManualCredit
}

type GenderEligibility string

const (
	EligibilityAll    GenderEligibility = "all"
	EligibilityMale   GenderEligibility = "male"
	EligibilityFemale GenderEligibility = "female"
)

func (g GenderEligibility) Valid() bool {
	return g == EligibilityAll || g == EligibilityMale || g == EligibilityFemale
}

// Matches reports whether an employee of the given gender may use the type.
func (g GenderEligibility) Matches(gender string) bool {
	return g == EligibilityAll || string(g) == gender
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

type DurationType string

const (
	DurationFullDay      DurationType = "full_day"
	DurationHalfDay      DurationType = "half_day"
	DurationMultipleDays DurationType = "multiple_days"
)

func (d DurationType) Valid() bool {
	return d == DurationFullDay || d == DurationHalfDay || d == DurationMultipleDays
}

type HolidayType string

const (
	HolidayNational HolidayType = "national"
	HolidayFestival HolidayType = "festival"
	HolidayState    HolidayType = "state"
	HolidayDeclared HolidayType = "declared"
)

func (h HolidayType) Valid() bool {
	return h == HolidayNational || h == HolidayFestival || h == HolidayState || h == HolidayDeclared
}

type LeaveType struct {
	ID                     string            `json:"id"`
	Name                   TypeName          `json:"name"`
	Abbreviation           string            `json:"abbreviation"`
	AnnualEntitlement      decimal.Decimal   `json:"annualEntitlement"`
	AccrualMethod          AccrualMethod     `json:"accrualMethod"`
	CarryForward           bool              `json:"carryForward"`
	MaxCarryForward        decimal.Decimal   `json:"maxCarryForward"`
	Encashment             bool              `json:"encashment"`
	MaxEncashmentPerYear   decimal.Decimal   `json:"maxEncashmentPerYear"`
	NegativeBalanceAllowed bool              `json:"negativeBalanceAllowed"`
	RequiresApproval       bool              `json:"requiresApproval"`
	ApprovalLevels         int               `json:"approvalLevels"`
	RequiresDocument       bool              `json:"requiresDocument"`
	MinDaysInAdvance       int               `json:"minDaysInAdvance"`
	MaxConsecutiveDays     int               `json:"maxConsecutiveDays"`
	GenderEligibility      GenderEligibility `json:"genderEligibility"`
	CreatedAt              time.Time         `json:"createdAt"`
}

// BalanceKey identifies one ledger row. Every ledger mutation is atomic with
// respect to a single key.
type BalanceKey struct {
	EmployeeID  string
	LeaveTypeID string
	Year        int
}

type Balance struct {
	EmployeeID       string          `json:"employeeId"`
	LeaveTypeID      string          `json:"leaveTypeId"`
	Year             int             `json:"year"`
	Entitlement      decimal.Decimal `json:"entitlement"`
	Accrued          decimal.Decimal `json:"accrued"`
	Taken            decimal.Decimal `json:"taken"`
	Pending          decimal.Decimal `json:"pendingApproval"`
	Available        decimal.Decimal `json:"available"`
	CarriedForwardIn decimal.Decimal `json:"carriedForwardIn"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (b Balance) Key() BalanceKey {
	return BalanceKey{EmployeeID: b.EmployeeID, LeaveTypeID: b.LeaveTypeID, Year: b.Year}
}

// consistent verifies available = entitlement + accrued + carried-forward − taken − pending.
func (b Balance) consistent() bool {
	expected := b.Entitlement.Add(b.Accrued).Add(b.CarriedForwardIn).Sub(b.Taken).Sub(b.Pending)
	return b.Available.Equal(expected)
}

type Application struct {
	ID               string          `json:"id"`
	EmployeeID       string          `json:"employeeId"`
	LeaveTypeID      string          `json:"leaveTypeId"`
	FromDate         time.Time       `json:"fromDate"`
	ToDate           time.Time       `json:"toDate"`
	DurationType     DurationType    `json:"durationType"`
	NumberOfDays     decimal.Decimal `json:"numberOfDays"`
	Reason           string          `json:"reason"`
	ContactPhone     string          `json:"contactPhone,omitempty"`
	ContactEmail     string          `json:"contactEmail,omitempty"`
	AttachmentRef    string          `json:"attachmentRef,omitempty"`
	Status           Status          `json:"status"`
	ApproverNote     string          `json:"approverNote,omitempty"`
	ApprovalsGranted int             `json:"approvalsGranted"`
	CreatedAt        time.Time       `json:"createdAt"`
	RecalledAt       *time.Time      `json:"recalledAt,omitempty"`
	RecallReason     string          `json:"recallReason,omitempty"`
}

type Holiday struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Date         time.Time   `json:"date"`
	Type         HolidayType `json:"type"`
	IsRestricted bool        `json:"isRestricted"`
	Recurring    bool        `json:"recurring"`
	Description  string      `json:"description,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

type CreditRequest struct {
	ID         string     `json:"id"`
	EmployeeID string     `json:"employeeId"`
	DateWorked time.Time  `json:"dateWorked"`
	Reason     string     `json:"reason"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	DecidedAt  *time.Time `json:"decidedAt,omitempty"`
}

// DateOnly truncates t to a calendar date in UTC. All range arithmetic in
// this package operates on calendar dates, never instants.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey is the canonical string form used in holiday sets.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
