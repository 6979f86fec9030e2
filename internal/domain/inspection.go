package domain

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the result an inspector records for a completed assignment.
type Outcome string

// Outcome values.
const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// NormalizeOutcome canonicalizes persisted outcome values.
func NormalizeOutcome(outcome Outcome) Outcome {
	switch strings.TrimSpace(strings.ToLower(string(outcome))) {
	case "approved", "approve", "ok":
		return OutcomeApproved
	case "rejected", "reject":
		return OutcomeRejected
	default:
		return Outcome(strings.TrimSpace(strings.ToLower(string(outcome))))
	}
}

// InspectionRecord is one immutable audit entry in the quality log. Records
// are append-only: once written they are never updated or deleted, and an
// assignment may accumulate any number of them through re-inspection.
type InspectionRecord struct {
	ID           int64
	AssignmentID string
	InspectorID  string
	Outcome      Outcome
	DefectsFound int
	Notes        string
	CheckDate    time.Time
}

// NewInspectionRecord validates and normalizes a record before it is
// appended. The ID is assigned by the log on insert.
func NewInspectionRecord(assignmentID, inspectorID string, outcome Outcome, defectsFound int, notes string, now time.Time) (InspectionRecord, error) {
	assignmentID = strings.TrimSpace(assignmentID)
	inspectorID = strings.TrimSpace(inspectorID)
	if assignmentID == "" {
		return InspectionRecord{}, ErrInvalidID
	}
	if inspectorID == "" {
		return InspectionRecord{}, fmt.Errorf("%w: inspector id is required", ErrConstraintViolation)
	}
	outcome = NormalizeOutcome(outcome)
	if outcome != OutcomeApproved && outcome != OutcomeRejected {
		return InspectionRecord{}, fmt.Errorf("%w: unknown outcome %q", ErrConstraintViolation, outcome)
	}
	if defectsFound < 0 {
		return InspectionRecord{}, fmt.Errorf("%w: defects found must not be negative", ErrConstraintViolation)
	}
	return InspectionRecord{
		AssignmentID: assignmentID,
		InspectorID:  inspectorID,
		Outcome:      outcome,
		DefectsFound: defectsFound,
		Notes:        strings.TrimSpace(notes),
		CheckDate:    now.UTC(),
	}, nil
}

// CurrentInspection returns the latest record for an assignment, or false
// when it has never been inspected. Later check dates win; ties break on the
// higher record id.
func CurrentInspection(records []InspectionRecord, assignmentID string) (InspectionRecord, bool) {
	var current InspectionRecord
	found := false
	for _, rec := range records {
		if rec.AssignmentID != assignmentID {
			continue
		}
		if !found || rec.CheckDate.After(current.CheckDate) ||
			(rec.CheckDate.Equal(current.CheckDate) && rec.ID > current.ID) {
			current = rec
			found = true
		}
	}
	return current, found
}
