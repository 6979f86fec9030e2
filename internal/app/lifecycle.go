package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"stitchline/internal/domain"
)

// LifecycleEngine owns the assignment state machine. It is the only
// component allowed to mutate assignment status, quantities, and defects
// outside the quality-control path.
type LifecycleEngine struct {
	assignments AssignmentStore
	directory   Directory
	catalog     Catalog
	notifier    *Notifier
	idGen       IDGenerator
	clock       Clock
}

// NewLifecycleEngine constructs the engine.
func NewLifecycleEngine(assignments AssignmentStore, directory Directory, catalog Catalog, notifier *Notifier, idGen IDGenerator, clock Clock) *LifecycleEngine {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	return &LifecycleEngine{
		assignments: assignments,
		directory:   directory,
		catalog:     catalog,
		notifier:    notifier,
		idGen:       idGen,
		clock:       clock,
	}
}

// Assign creates a new assignment for a worker after resolving the worker,
// operation, and order references.
func (e *LifecycleEngine) Assign(ctx context.Context, workerID, operationID, orderID string, plannedQty int) (domain.Assignment, error) {
	worker, err := e.directory.GetWorker(ctx, workerID)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("resolve worker %q: %w", workerID, err)
	}
	if _, err := e.catalog.GetOperation(ctx, operationID); err != nil {
		return domain.Assignment{}, fmt.Errorf("resolve operation %q: %w", operationID, err)
	}
	if _, err := e.catalog.GetOrder(ctx, orderID); err != nil {
		return domain.Assignment{}, fmt.Errorf("resolve order %q: %w", orderID, err)
	}

	assignment, err := domain.NewAssignment(domain.AssignmentInput{
		ID:          e.idGen(),
		WorkerID:    worker.ID,
		OperationID: operationID,
		OrderID:     orderID,
		PlannedQty:  plannedQty,
	}, e.clock())
	if err != nil {
		return domain.Assignment{}, err
	}
	if err := e.assignments.CreateAssignment(ctx, assignment); err != nil {
		return domain.Assignment{}, err
	}

	log.Info("assignment created", "assignment_id", assignment.ID, "worker_id", worker.ID, "operation_id", operationID, "planned_qty", plannedQty)
	e.notifier.Publish(Event{Kind: EventAssignmentsUpdated, AssignmentID: assignment.ID, WorkerID: worker.ID, Status: assignment.Status})
	e.notifier.Publish(Event{Kind: EventWorkerStatsUpdated, AssignmentID: assignment.ID, WorkerID: worker.ID, Status: assignment.Status})
	return assignment, nil
}

// RecordProgress atomically adds produced and defect quantities to an
// assignment and applies the implied status transitions. All validation
// happens inside the store transaction, so a rejected call leaves the row
// untouched and two concurrent calls on the same id both land.
func (e *LifecycleEngine) RecordProgress(ctx context.Context, assignmentID string, producedQty, defectQty int) (domain.Assignment, error) {
	var prevStatus domain.Status
	now := e.clock()
	updated, err := e.assignments.MutateAssignment(ctx, assignmentID, func(a *domain.Assignment) error {
		prevStatus = a.Status
		return a.RecordProgress(producedQty, defectQty, now)
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	log.Info("progress recorded", "assignment_id", assignmentID, "produced", producedQty, "defects", defectQty, "actual", updated.ActualQty, "status", updated.Status)
	e.publishTransition(prevStatus, updated)
	return updated, nil
}

// SetStatus performs an explicit operator transition along a legal edge.
func (e *LifecycleEngine) SetStatus(ctx context.Context, assignmentID string, newStatus domain.Status) (domain.Assignment, error) {
	var prevStatus domain.Status
	now := e.clock()
	updated, err := e.assignments.MutateAssignment(ctx, assignmentID, func(a *domain.Assignment) error {
		prevStatus = a.Status
		return a.ChangeStatus(newStatus, now)
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	log.Info("status changed", "assignment_id", assignmentID, "from", prevStatus, "to", updated.Status)
	e.publishTransition(prevStatus, updated)
	return updated, nil
}

// OverwriteOutcome sets absolute post-inspection quantities. Status is left
// alone; the approved quantity may write production down.
func (e *LifecycleEngine) OverwriteOutcome(ctx context.Context, assignmentID string, approvedQty, defects int) (domain.Assignment, error) {
	updated, err := e.assignments.MutateAssignment(ctx, assignmentID, func(a *domain.Assignment) error {
		return a.OverwriteOutcome(approvedQty, defects)
	})
	if err != nil {
		return domain.Assignment{}, err
	}
	log.Info("outcome overwritten", "assignment_id", assignmentID, "approved", approvedQty, "defects", defects)
	return updated, nil
}

// publishTransition emits the status-changed event on any transition, plus
// the quality-eligible notification once an assignment reaches completed.
func (e *LifecycleEngine) publishTransition(prev domain.Status, updated domain.Assignment) {
	if prev == updated.Status {
		return
	}
	e.notifier.Publish(Event{
		Kind:         EventAssignmentStatusChanged,
		AssignmentID: updated.ID,
		WorkerID:     updated.WorkerID,
		Status:       updated.Status,
	})
	if updated.Status == domain.StatusCompleted {
		e.notifier.Publish(Event{
			Kind:         EventQualityCheckPerformed,
			AssignmentID: updated.ID,
			WorkerID:     updated.WorkerID,
			Status:       updated.Status,
		})
	}
}
