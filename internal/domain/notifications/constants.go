package notifications

const (
	TypeLeaveSubmitted  = "leave_submitted"
	TypeLeaveApproved   = "leave_approved"
	TypeLeaveRejected   = "leave_rejected"
	TypeLeaveCancelled  = "leave_cancelled"
	TypeLeaveRecalled   = "leave_recalled"
	TypeCreditRequested = "credit_requested"
	TypeCreditApproved  = "credit_approved"
	TypeCreditRejected  = "credit_rejected"
)
