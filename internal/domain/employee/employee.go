// Package employee is the identity collaborator: the leave core consults it
// for gender, department, and reporting-line attributes but never mutates it.
package employee

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("employee not found")

type Profile struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Gender       string     `json:"gender"`
	DepartmentID string     `json:"departmentId"`
	ManagerID    string     `json:"managerId,omitempty"`
	JoinedOn     *time.Time `json:"joinedOn,omitempty"`
	Active       bool       `json:"active"`
}

type Directory interface {
	Profile(ctx context.Context, employeeID string) (Profile, error)
	ProfileByUserID(ctx context.Context, userID string) (Profile, error)
	// IsManagerOf reports whether managerID is the direct manager of employeeID.
	IsManagerOf(ctx context.Context, managerID, employeeID string) (bool, error)
	ListActive(ctx context.Context) ([]Profile, error)
}
