package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"stitchline/internal/domain"
)

func newQualityFixture(t *testing.T) (*QualityControlEngine, *LifecycleEngine, *fakeStore, *recordingSubscriber) {
	t.Helper()
	store := newFakeStore()
	store.seedRefs()
	notifier := NewNotifier()
	sub := &recordingSubscriber{}
	notifier.Subscribe(sub)
	clock := fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	lifecycle := NewLifecycleEngine(store, store, store, notifier, sequentialIDs("a"), clock)
	quality := NewQualityControlEngine(store, store, store, store, notifier, clock)
	return quality, lifecycle, store, sub
}

// completedAssignment drives one assignment through to completed so it is
// eligible for inspection.
func completedAssignment(t *testing.T, lifecycle *LifecycleEngine, workerID string, produced, defects int) domain.Assignment {
	t.Helper()
	ctx := context.Background()
	a, err := lifecycle.Assign(ctx, workerID, "op1", "ord1", produced)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	a, err = lifecycle.RecordProgress(ctx, a.ID, produced, defects)
	if err != nil {
		t.Fatalf("RecordProgress: %v", err)
	}
	return a
}

func TestListPending(t *testing.T) {
	quality, lifecycle, _, _ := newQualityFixture(t)
	ctx := context.Background()

	done := completedAssignment(t, lifecycle, "w1", 10, 0)
	if _, err := lifecycle.Assign(ctx, "w2", "op1", "ord1", 10); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	pending, err := quality.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != done.ID {
		t.Fatalf("pending = %+v, want only %s", pending, done.ID)
	}

	if _, _, err := quality.Inspect(ctx, InspectInput{
		AssignmentID: done.ID,
		InspectorID:  "m1",
		ApprovedQty:  done.ActualQty,
		Approve:      true,
	}); err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	pending, err = quality.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending after inspect: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("inspected assignment still pending: %+v", pending)
	}
}

func TestInspect_Approve(t *testing.T) {
	quality, lifecycle, store, sub := newQualityFixture(t)
	ctx := context.Background()

	a := completedAssignment(t, lifecycle, "w1", 10, 2)
	before := len(sub.kinds())

	record, updated, err := quality.Inspect(ctx, InspectInput{
		AssignmentID: a.ID,
		InspectorID:  "m1",
		ApprovedQty:  9,
		DefectsFound: 3,
		Notes:        "loose seams on three units",
		Approve:      true,
	})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if record.Outcome != domain.OutcomeApproved || record.DefectsFound != 3 {
		t.Fatalf("record: %+v", record)
	}
	if updated.ActualQty != 9 || updated.Defects != 3 {
		t.Fatalf("updated: %+v", updated)
	}
	if updated.Status != domain.StatusCompleted {
		t.Fatalf("inspection must not change status, got %s", updated.Status)
	}

	records, err := store.ListAssignmentInspections(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListAssignmentInspections: %v", err)
	}
	if len(records) != 1 || records[0].ID != record.ID {
		t.Fatalf("audit log: %+v", records)
	}

	kinds := sub.kinds()
	if len(kinds) != before+1 || kinds[len(kinds)-1] != EventQualityCheckPerformed {
		t.Fatalf("published kinds = %v", kinds)
	}
}

func TestInspect_RejectDefaults(t *testing.T) {
	quality, lifecycle, _, _ := newQualityFixture(t)
	ctx := context.Background()

	a := completedAssignment(t, lifecycle, "w1", 10, 2)

	record, updated, err := quality.Inspect(ctx, InspectInput{
		AssignmentID: a.ID,
		InspectorID:  "m1",
		DefectsFound: -1,
		Approve:      false,
	})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if record.Outcome != domain.OutcomeRejected {
		t.Fatalf("outcome = %s", record.Outcome)
	}
	if record.DefectsFound != 10 {
		t.Fatalf("defects found = %d, want full actual quantity", record.DefectsFound)
	}
	if updated.ActualQty != 0 || updated.Defects != 0 {
		t.Fatalf("rejection must zero the outcome: %+v", updated)
	}
}

func TestInspect_Errors(t *testing.T) {
	quality, lifecycle, _, _ := newQualityFixture(t)
	ctx := context.Background()

	notStarted, err := lifecycle.Assign(ctx, "w1", "op1", "ord1", 10)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	done := completedAssignment(t, lifecycle, "w1", 10, 0)

	cases := []struct {
		name string
		in   InspectInput
		want error
	}{
		{"missing assignment", InspectInput{AssignmentID: "ghost", Approve: true}, domain.ErrNotFound},
		{"not completed", InspectInput{AssignmentID: notStarted.ID, Approve: true}, domain.ErrNotEligible},
		{"negative approved", InspectInput{AssignmentID: done.ID, ApprovedQty: -1, Approve: true}, domain.ErrConstraintViolation},
		{"negative defects", InspectInput{AssignmentID: done.ID, ApprovedQty: 5, DefectsFound: -1, Approve: true}, domain.ErrConstraintViolation},
		{"defects exceed approved", InspectInput{AssignmentID: done.ID, ApprovedQty: 5, DefectsFound: 6, Approve: true}, domain.ErrConstraintViolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := quality.Inspect(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestBulkInspect(t *testing.T) {
	quality, lifecycle, store, _ := newQualityFixture(t)
	ctx := context.Background()

	first := completedAssignment(t, lifecycle, "w1", 10, 1)
	second := completedAssignment(t, lifecycle, "w1", 20, 0)
	otherWorker := completedAssignment(t, lifecycle, "w2", 5, 0)
	if _, err := lifecycle.Assign(ctx, "w1", "op1", "ord1", 10); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	res, err := quality.BulkInspect(ctx, "w1", "m1", "end of shift pass")
	if err != nil {
		t.Fatalf("BulkInspect: %v", err)
	}
	if res.Inspected != 2 || res.Eligible != 2 {
		t.Fatalf("result = %+v", res)
	}

	for _, a := range []domain.Assignment{first, second} {
		records, err := store.ListAssignmentInspections(ctx, a.ID)
		if err != nil {
			t.Fatalf("ListAssignmentInspections: %v", err)
		}
		if len(records) != 1 || records[0].Outcome != domain.OutcomeApproved {
			t.Fatalf("assignment %s records: %+v", a.ID, records)
		}
		cur, err := store.GetAssignment(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetAssignment: %v", err)
		}
		if cur.ActualQty != a.ActualQty || cur.Defects != a.Defects {
			t.Fatalf("bulk approval changed quantities: %+v", cur)
		}
	}
	if records, _ := store.ListAssignmentInspections(ctx, otherWorker.ID); len(records) != 0 {
		t.Fatalf("other worker inspected: %+v", records)
	}

	// Second pass finds nothing eligible and succeeds with zero counts.
	res, err = quality.BulkInspect(ctx, "w1", "m1", "")
	if err != nil {
		t.Fatalf("second BulkInspect: %v", err)
	}
	if res.Inspected != 0 || res.Eligible != 0 {
		t.Fatalf("second pass result = %+v", res)
	}
}

func TestBulkInspect_ItemFailureIsIsolated(t *testing.T) {
	quality, lifecycle, store, _ := newQualityFixture(t)
	ctx := context.Background()

	bad := completedAssignment(t, lifecycle, "w1", 10, 0)
	good := completedAssignment(t, lifecycle, "w1", 20, 0)
	store.mu.Lock()
	store.failAppendFor[bad.ID] = true
	store.mu.Unlock()

	res, err := quality.BulkInspect(ctx, "w1", "m1", "")
	if err != nil {
		t.Fatalf("BulkInspect: %v", err)
	}
	if res.Inspected != 1 || res.Eligible != 2 {
		t.Fatalf("result = %+v", res)
	}
	if records, _ := store.ListAssignmentInspections(ctx, good.ID); len(records) != 1 {
		t.Fatalf("surviving item not inspected: %+v", records)
	}
}

func TestBulkInspect_UnknownWorker(t *testing.T) {
	quality, _, _, _ := newQualityFixture(t)
	if _, err := quality.BulkInspect(context.Background(), "ghost", "m1", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestQueue_JoinsNamesAndInspectionState(t *testing.T) {
	quality, lifecycle, _, _ := newQualityFixture(t)
	ctx := context.Background()

	checked := completedAssignment(t, lifecycle, "w1", 10, 1)
	unchecked := completedAssignment(t, lifecycle, "w2", 5, 0)
	if _, _, err := quality.Inspect(ctx, InspectInput{
		AssignmentID: checked.ID,
		InspectorID:  "m1",
		ApprovedQty:  10,
		DefectsFound: 1,
		Approve:      true,
	}); err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	items, err := quality.Queue(ctx)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	byID := map[string]domain.QualityItem{}
	for _, item := range items {
		byID[item.Assignment.ID] = item
	}
	got := byID[checked.ID]
	if !got.Checked || got.Current == nil || got.Current.Outcome != domain.OutcomeApproved {
		t.Fatalf("checked item: %+v", got)
	}
	if got.WorkerName != "Anna" || got.OperationName != "Sew collar" || got.ProductName != "Shirt" {
		t.Fatalf("joined names: %+v", got)
	}
	got = byID[unchecked.ID]
	if got.Checked || got.Current != nil {
		t.Fatalf("unchecked item: %+v", got)
	}

	worker, err := quality.WorkerQueue(ctx, "w2")
	if err != nil {
		t.Fatalf("WorkerQueue: %v", err)
	}
	if len(worker) != 1 || worker[0].Assignment.ID != unchecked.ID {
		t.Fatalf("worker queue: %+v", worker)
	}
}
