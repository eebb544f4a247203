package domain

import "time"

// LeaveType classifies a leave request.
type LeaveType string

// Leave types.
const (
	LeaveTypeVacation LeaveType = "VACATION"
	LeaveTypeSick     LeaveType = "SICK"
)

// LeaveStatus is the review state of a leave request.
type LeaveStatus string

// Leave statuses.
const (
	LeaveStatusPending   LeaveStatus = "PENDING"
	LeaveStatusApproved  LeaveStatus = "APPROVED"
	LeaveStatusRejected  LeaveStatus = "REJECTED"
	LeaveStatusCancelled LeaveStatus = "CANCELLED"
)

// LeaveRequest is a member's request for time off.
type LeaveRequest struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	LeaveType      LeaveType   `json:"leave_type"`
	StartDate      string      `json:"start_date"`
	EndDate        string      `json:"end_date"`
	Status         LeaveStatus `json:"status"`
	Reason         *string     `json:"reason,omitempty"`
	ManagerID      *string     `json:"manager_id,omitempty"`
	ManagerComment *string     `json:"manager_comment,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// LeaveBalance tracks the remaining days per leave type.
type LeaveBalance struct {
	UserID                  string  `json:"user_id"`
	VacationBalance         float64 `json:"vacation_balance"`
	SickBalance             float64 `json:"sick_balance"`
	LastVacationAccrualDate string  `json:"last_vacation_accrual_date"`
	LastSickAccrualDate     string  `json:"last_sick_accrual_date"`
}
