package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"stitchline/internal/domain"
)

// bulkInspectParallelism bounds concurrent audit-log appends during a bulk
// pass. Items target distinct assignments, so they never contend on a row.
const bulkInspectParallelism = 4

// QualityControlEngine gates completed work through inspection without
// blocking further production. It is the only writer of inspection records.
type QualityControlEngine struct {
	assignments AssignmentStore
	inspections InspectionLog
	directory   Directory
	catalog     Catalog
	notifier    *Notifier
	clock       Clock
	bulkLimit   int
}

// NewQualityControlEngine constructs the engine.
func NewQualityControlEngine(assignments AssignmentStore, inspections InspectionLog, directory Directory, catalog Catalog, notifier *Notifier, clock Clock) *QualityControlEngine {
	if clock == nil {
		clock = time.Now
	}
	return &QualityControlEngine{
		assignments: assignments,
		inspections: inspections,
		directory:   directory,
		catalog:     catalog,
		notifier:    notifier,
		clock:       clock,
		bulkLimit:   bulkInspectParallelism,
	}
}

// SetBulkParallelism overrides the bulk inspection concurrency bound.
func (e *QualityControlEngine) SetBulkParallelism(n int) {
	if n < 1 {
		return
	}
	e.bulkLimit = n
}

// InspectInput carries one inspection decision. DefectsFound below zero
// means "not supplied"; a rejection then defaults it to the assignment's
// full recorded quantity.
type InspectInput struct {
	AssignmentID string
	InspectorID  string
	ApprovedQty  int
	DefectsFound int
	Notes        string
	Approve      bool
}

// BulkResult reports how many eligible assignments a bulk pass inspected.
type BulkResult struct {
	Inspected int
	Eligible  int
}

// ListPending returns every completed assignment with zero inspection
// records, most recently completed first.
func (e *QualityControlEngine) ListPending(ctx context.Context) ([]domain.Assignment, error) {
	completed, err := e.assignments.ListAssignmentsByStatus(ctx, domain.StatusCompleted)
	if err != nil {
		return nil, err
	}
	records, err := e.inspections.ListInspections(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Assignment, 0, len(completed))
	for _, a := range completed {
		if !a.Checked(records) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.Assignment) int {
		return compareEndTimeDesc(a, b)
	})
	return out, nil
}

// Inspect records one inspection outcome. The audit record and the outcome
// overwrite land as one atomic unit.
func (e *QualityControlEngine) Inspect(ctx context.Context, in InspectInput) (domain.InspectionRecord, domain.Assignment, error) {
	assignment, err := e.assignments.GetAssignment(ctx, in.AssignmentID)
	if err != nil {
		return domain.InspectionRecord{}, domain.Assignment{}, err
	}
	if assignment.Status != domain.StatusCompleted {
		return domain.InspectionRecord{}, domain.Assignment{}, fmt.Errorf("%w: assignment %s is %s", domain.ErrNotEligible, assignment.ID, assignment.Status)
	}

	// On rejection nothing is approved: the full defect count lives in the
	// audit record, while the assignment outcome is zeroed.
	outcome := domain.OutcomeApproved
	approvedQty := in.ApprovedQty
	defectsFound := in.DefectsFound
	keptDefects := in.DefectsFound
	if !in.Approve {
		outcome = domain.OutcomeRejected
		approvedQty = 0
		keptDefects = 0
		if defectsFound < 0 {
			defectsFound = assignment.ActualQty
		}
	}
	if approvedQty < 0 {
		return domain.InspectionRecord{}, domain.Assignment{}, fmt.Errorf("%w: approved quantity must not be negative", domain.ErrConstraintViolation)
	}
	if defectsFound < 0 {
		return domain.InspectionRecord{}, domain.Assignment{}, fmt.Errorf("%w: defects found must not be negative", domain.ErrConstraintViolation)
	}
	if keptDefects > approvedQty {
		return domain.InspectionRecord{}, domain.Assignment{}, fmt.Errorf("%w: defects %d exceed approved quantity %d", domain.ErrConstraintViolation, keptDefects, approvedQty)
	}

	record, err := domain.NewInspectionRecord(assignment.ID, in.InspectorID, outcome, defectsFound, in.Notes, e.clock())
	if err != nil {
		return domain.InspectionRecord{}, domain.Assignment{}, err
	}
	record, updated, err := e.inspections.AppendInspection(ctx, record, func(a *domain.Assignment) error {
		if a.Status != domain.StatusCompleted {
			return fmt.Errorf("%w: assignment %s is %s", domain.ErrNotEligible, a.ID, a.Status)
		}
		return a.OverwriteOutcome(approvedQty, keptDefects)
	})
	if err != nil {
		return domain.InspectionRecord{}, domain.Assignment{}, err
	}

	log.Info("inspection recorded", "assignment_id", assignment.ID, "inspector_id", record.InspectorID, "outcome", record.Outcome, "approved", approvedQty, "defects_found", defectsFound)
	e.notifier.Publish(Event{Kind: EventQualityCheckPerformed, AssignmentID: updated.ID, WorkerID: updated.WorkerID, Status: updated.Status})
	return record, updated, nil
}

// BulkInspect approves every completed, never-inspected assignment of one
// worker at its current recorded quantities. Items are independent: one
// failure does not abort the rest, and the result reports how many landed
// out of how many were eligible. A pass with nothing eligible succeeds with
// count zero.
func (e *QualityControlEngine) BulkInspect(ctx context.Context, workerID, inspectorID, notes string) (BulkResult, error) {
	if _, err := e.directory.GetWorker(ctx, workerID); err != nil {
		return BulkResult{}, fmt.Errorf("resolve worker %q: %w", workerID, err)
	}
	pending, err := e.ListPending(ctx)
	if err != nil {
		return BulkResult{}, err
	}
	eligible := make([]domain.Assignment, 0, len(pending))
	for _, a := range pending {
		if a.WorkerID == workerID {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		return BulkResult{}, nil
	}

	var (
		mu        sync.Mutex
		inspected int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.bulkLimit)
	for _, a := range eligible {
		a := a
		g.Go(func() error {
			record, err := domain.NewInspectionRecord(a.ID, inspectorID, domain.OutcomeApproved, a.Defects, notes, e.clock())
			if err != nil {
				log.Warn("bulk inspection skipped", "assignment_id", a.ID, "err", err)
				return nil
			}
			approvedQty, defects := a.ActualQty, a.Defects
			if _, _, err := e.inspections.AppendInspection(gctx, record, func(cur *domain.Assignment) error {
				return cur.OverwriteOutcome(approvedQty, defects)
			}); err != nil {
				log.Warn("bulk inspection failed", "assignment_id", a.ID, "err", err)
				return nil
			}
			mu.Lock()
			inspected++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if inspected > 0 {
		e.notifier.Publish(Event{Kind: EventQualityCheckPerformed, WorkerID: workerID})
	}
	log.Info("bulk inspection finished", "worker_id", workerID, "inspected", inspected, "eligible", len(eligible))
	return BulkResult{Inspected: inspected, Eligible: len(eligible)}, nil
}

// Queue returns every completed assignment joined with its latest
// inspection state and display names, inspected-most-recently first.
func (e *QualityControlEngine) Queue(ctx context.Context) ([]domain.QualityItem, error) {
	return e.queue(ctx, "")
}

// WorkerQueue restricts the inspection queue to one worker.
func (e *QualityControlEngine) WorkerQueue(ctx context.Context, workerID string) ([]domain.QualityItem, error) {
	if _, err := e.directory.GetWorker(ctx, workerID); err != nil {
		return nil, fmt.Errorf("resolve worker %q: %w", workerID, err)
	}
	return e.queue(ctx, workerID)
}

func (e *QualityControlEngine) queue(ctx context.Context, workerID string) ([]domain.QualityItem, error) {
	completed, err := e.assignments.ListAssignmentsByStatus(ctx, domain.StatusCompleted)
	if err != nil {
		return nil, err
	}
	records, err := e.inspections.ListInspections(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.QualityItem, 0, len(completed))
	for _, a := range completed {
		if workerID != "" && a.WorkerID != workerID {
			continue
		}
		item := domain.QualityItem{Assignment: a}
		if worker, err := e.directory.GetWorker(ctx, a.WorkerID); err == nil {
			item.WorkerName = worker.Name
		}
		if op, err := e.catalog.GetOperation(ctx, a.OperationID); err == nil {
			item.OperationName = op.Name
			if product, err := e.catalog.GetProduct(ctx, op.ProductID); err == nil {
				item.ProductName = product.Name
			}
		}
		if current, ok := domain.CurrentInspection(records, a.ID); ok {
			item.Checked = true
			item.Current = &current
		}
		out = append(out, item)
	}

	slices.SortFunc(out, func(a, b domain.QualityItem) int {
		aDate, bDate := time.Time{}, time.Time{}
		if a.Current != nil {
			aDate = a.Current.CheckDate
		}
		if b.Current != nil {
			bDate = b.Current.CheckDate
		}
		if !aDate.Equal(bDate) {
			if aDate.After(bDate) {
				return -1
			}
			return 1
		}
		return compareEndTimeDesc(a.Assignment, b.Assignment)
	})
	return out, nil
}

// compareEndTimeDesc orders assignments by completion time, newest first;
// rows without an end time sink to the bottom, tie-broken by id.
func compareEndTimeDesc(a, b domain.Assignment) int {
	switch {
	case a.EndTime == nil && b.EndTime == nil:
		return strings.Compare(a.ID, b.ID)
	case a.EndTime == nil:
		return 1
	case b.EndTime == nil:
		return -1
	case a.EndTime.After(*b.EndTime):
		return -1
	case b.EndTime.After(*a.EndTime):
		return 1
	default:
		return strings.Compare(a.ID, b.ID)
	}
}
