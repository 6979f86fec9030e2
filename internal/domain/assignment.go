package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status represents canonical assignment lifecycle states.
type Status string

// Canonical lifecycle states. Completed and Cancelled are terminal.
const (
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// NormalizeStatus canonicalizes persisted status aliases.
func NormalizeStatus(status Status) Status {
	switch strings.TrimSpace(strings.ToLower(string(status))) {
	case "assigned", "new":
		return StatusAssigned
	case "in_progress", "in-progress", "progress":
		return StatusInProgress
	case "completed", "complete", "done":
		return StatusCompleted
	case "cancelled", "canceled":
		return StatusCancelled
	default:
		return Status(strings.TrimSpace(strings.ToLower(string(status))))
	}
}

// IsValidStatus reports whether the status is canonical.
func IsValidStatus(status Status) bool {
	status = NormalizeStatus(status)
	return slices.Contains([]Status{StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled}, status)
}

// IsTerminal reports whether no further status transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Assignment is one unit of planned production work tracked through the
// lifecycle. Rows are never deleted; cancellation is a terminal status.
type Assignment struct {
	ID          string
	WorkerID    string
	OperationID string
	OrderID     string
	PlannedQty  int
	ActualQty   int
	Defects     int
	Status      Status
	CreatedAt   time.Time
	StartTime   *time.Time
	EndTime     *time.Time
}

// AssignmentInput carries creation parameters for a new assignment.
type AssignmentInput struct {
	ID          string
	WorkerID    string
	OperationID string
	OrderID     string
	PlannedQty  int
}

// NewAssignment validates input and returns a fresh assignment in the
// assigned state.
func NewAssignment(in AssignmentInput, now time.Time) (Assignment, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.WorkerID = strings.TrimSpace(in.WorkerID)
	in.OperationID = strings.TrimSpace(in.OperationID)
	in.OrderID = strings.TrimSpace(in.OrderID)

	if in.ID == "" {
		return Assignment{}, ErrInvalidID
	}
	if in.WorkerID == "" {
		return Assignment{}, fmt.Errorf("%w: worker id is required", ErrConstraintViolation)
	}
	if in.OperationID == "" {
		return Assignment{}, fmt.Errorf("%w: operation id is required", ErrConstraintViolation)
	}
	if in.OrderID == "" {
		return Assignment{}, fmt.Errorf("%w: order id is required", ErrConstraintViolation)
	}
	if in.PlannedQty <= 0 {
		return Assignment{}, fmt.Errorf("%w: planned quantity must be positive", ErrConstraintViolation)
	}

	return Assignment{
		ID:          in.ID,
		WorkerID:    in.WorkerID,
		OperationID: in.OperationID,
		OrderID:     in.OrderID,
		PlannedQty:  in.PlannedQty,
		Status:      StatusAssigned,
		CreatedAt:   now.UTC(),
	}, nil
}

// Checked reports whether the assignment has at least one inspection record.
// The flag is derived from the audit log, never stored.
func (a Assignment) Checked(records []InspectionRecord) bool {
	for _, rec := range records {
		if rec.AssignmentID == a.ID {
			return true
		}
	}
	return false
}

// RecordProgress adds produced and defect quantities and applies the implied
// status transitions. Completion takes precedence over assigned→in_progress,
// so a single call may move the assignment straight to completed.
func (a *Assignment) RecordProgress(producedQty, defectQty int, now time.Time) error {
	if a.Status.IsTerminal() && a.Status != StatusCompleted {
		return fmt.Errorf("%w: assignment is %s", ErrInvalidTransition, a.Status)
	}
	if a.Status == StatusCompleted {
		return fmt.Errorf("%w: assignment already completed", ErrInvalidTransition)
	}
	if producedQty <= 0 {
		return fmt.Errorf("%w: produced quantity must be positive", ErrConstraintViolation)
	}
	if defectQty < 0 {
		return fmt.Errorf("%w: defect quantity must not be negative", ErrConstraintViolation)
	}
	if defectQty > producedQty {
		return fmt.Errorf("%w: defects %d exceed produced quantity %d", ErrConstraintViolation, defectQty, producedQty)
	}
	if a.ActualQty+producedQty > a.PlannedQty {
		return fmt.Errorf("%w: %d + %d exceeds planned %d", ErrQuantityExceedsPlan, a.ActualQty, producedQty, a.PlannedQty)
	}

	a.ActualQty += producedQty
	a.Defects += defectQty

	ts := now.UTC()
	switch {
	case a.ActualQty >= a.PlannedQty:
		if a.Status == StatusAssigned && a.StartTime == nil {
			a.StartTime = &ts
		}
		a.Status = StatusCompleted
		a.EndTime = &ts
	case a.Status == StatusAssigned:
		a.Status = StatusInProgress
		a.StartTime = &ts
	}
	return nil
}

// legalEdges enumerates the operator-driven status transitions.
var legalEdges = map[Status][]Status{
	StatusAssigned:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// ChangeStatus performs an explicit operator transition along a legal edge
// and stamps start/end times the same way progress recording does.
func (a *Assignment) ChangeStatus(newStatus Status, now time.Time) error {
	newStatus = NormalizeStatus(newStatus)
	if !IsValidStatus(newStatus) {
		return fmt.Errorf("%w: unknown status %q", ErrConstraintViolation, newStatus)
	}
	if !slices.Contains(legalEdges[a.Status], newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, newStatus)
	}

	ts := now.UTC()
	switch newStatus {
	case StatusInProgress:
		a.StartTime = &ts
	case StatusCompleted:
		a.EndTime = &ts
	}
	a.Status = newStatus
	return nil
}

// OverwriteOutcome sets absolute post-inspection quantities without touching
// status. The approved quantity may be below previously recorded production;
// the written-down units are not tracked beyond the inspection log.
func (a *Assignment) OverwriteOutcome(approvedQty, defects int) error {
	if approvedQty < 0 {
		return fmt.Errorf("%w: approved quantity must not be negative", ErrConstraintViolation)
	}
	if defects < 0 {
		return fmt.Errorf("%w: defects must not be negative", ErrConstraintViolation)
	}
	if defects > approvedQty {
		return fmt.Errorf("%w: defects %d exceed approved quantity %d", ErrConstraintViolation, defects, approvedQty)
	}
	a.ActualQty = approvedQty
	a.Defects = defects
	return nil
}
