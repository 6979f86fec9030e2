package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"stitchline/internal/domain"
)

func newStatsFixture(t *testing.T) (*StatsAggregator, *QualityControlEngine, *LifecycleEngine, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	store.seedRefs()
	notifier := NewNotifier()
	clock := fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	lifecycle := NewLifecycleEngine(store, store, store, notifier, sequentialIDs("a"), clock)
	quality := NewQualityControlEngine(store, store, store, store, notifier, clock)
	stats := NewStatsAggregator(store, store, store, store)
	return stats, quality, lifecycle, store
}

func TestWorkerStats(t *testing.T) {
	stats, _, lifecycle, _ := newStatsFixture(t)
	ctx := context.Background()

	completedAssignment(t, lifecycle, "w1", 10, 2)
	partial, err := lifecycle.Assign(ctx, "w1", "op1", "ord1", 20)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := lifecycle.RecordProgress(ctx, partial.ID, 5, 1); err != nil {
		t.Fatalf("RecordProgress: %v", err)
	}
	completedAssignment(t, lifecycle, "w2", 100, 0)

	got, err := stats.WorkerStats(ctx, "w1")
	if err != nil {
		t.Fatalf("WorkerStats: %v", err)
	}
	if got.Completed != 15 || got.Defects != 3 {
		t.Fatalf("totals: completed=%d defects=%d", got.Completed, got.Defects)
	}
	if len(got.Active) != 1 || got.Active[0].ID != partial.ID {
		t.Fatalf("active digest: %+v", got.Active)
	}
	if len(got.Recent) != 1 || got.Recent[0].Status != domain.StatusCompleted {
		t.Fatalf("recent digest: %+v", got.Recent)
	}

	if _, err := stats.WorkerStats(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGlobalSummary(t *testing.T) {
	stats, quality, lifecycle, _ := newStatsFixture(t)
	ctx := context.Background()

	checked := completedAssignment(t, lifecycle, "w1", 10, 1)
	completedAssignment(t, lifecycle, "w1", 20, 0)
	completedAssignment(t, lifecycle, "w3", 5, 5)
	// In-progress work stays out of the global view.
	inProgress, err := lifecycle.Assign(ctx, "w2", "op1", "ord1", 50)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := lifecycle.RecordProgress(ctx, inProgress.ID, 10, 0); err != nil {
		t.Fatalf("RecordProgress: %v", err)
	}
	if _, _, err := quality.Inspect(ctx, InspectInput{
		AssignmentID: checked.ID,
		InspectorID:  "m1",
		ApprovedQty:  10,
		DefectsFound: 1,
		Approve:      true,
	}); err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	got, err := stats.GlobalSummary(ctx)
	if err != nil {
		t.Fatalf("GlobalSummary: %v", err)
	}
	want := domain.GlobalQualitySummary{
		TotalAssignments: 3,
		CheckedCount:     1,
		TotalCompleted:   35,
		TotalDefects:     6,
		TotalWorkers:     2,
		QualityPercent:   100 - float64(6)*100/35,
		Workers: []domain.WorkerQualitySummary{
			{WorkerID: "w1", WorkerName: "Anna", Position: "seamstress", TotalAssignments: 2, CheckedCount: 1, TotalCompleted: 30, TotalDefects: 1, DefectRate: float64(1) * 100 / 30},
			{WorkerID: "w3", WorkerName: "Vera", Position: "seamstress", TotalAssignments: 1, CheckedCount: 0, TotalCompleted: 5, TotalDefects: 5, DefectRate: 100},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestGlobalSummary_Empty(t *testing.T) {
	stats, _, _, _ := newStatsFixture(t)

	got, err := stats.GlobalSummary(context.Background())
	if err != nil {
		t.Fatalf("GlobalSummary: %v", err)
	}
	if got.TotalAssignments != 0 || got.QualityPercent != 0 {
		t.Fatalf("empty summary: %+v", got)
	}
}

func TestBrigadeSummary(t *testing.T) {
	stats, _, lifecycle, _ := newStatsFixture(t)
	ctx := context.Background()

	completedAssignment(t, lifecycle, "w1", 10, 1)
	// Brigade totals cover in-progress output too, unlike the global view.
	partial, err := lifecycle.Assign(ctx, "w2", "op1", "ord1", 20)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := lifecycle.RecordProgress(ctx, partial.ID, 5, 0); err != nil {
		t.Fatalf("RecordProgress: %v", err)
	}
	// Brigade B output stays out.
	completedAssignment(t, lifecycle, "w3", 100, 0)

	got, err := stats.BrigadeSummary(ctx, "A")
	if err != nil {
		t.Fatalf("BrigadeSummary: %v", err)
	}
	if got.WorkerCount != 2 || got.TotalCompleted != 15 || got.TotalDefects != 1 {
		t.Fatalf("summary: %+v", got)
	}
	if len(got.TopWorkers) != 2 || got.TopWorkers[0].WorkerID != "w1" {
		t.Fatalf("top workers: %+v", got.TopWorkers)
	}

	if _, err := stats.BrigadeSummary(ctx, "  "); !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("err = %v, want ErrConstraintViolation", err)
	}
}

func TestBrigadePerformance(t *testing.T) {
	stats, _, lifecycle, store := newStatsFixture(t)
	ctx := context.Background()

	store.workers["loose"] = domain.Worker{ID: "loose", Name: "Nadia", Role: "worker", Brigade: ""}

	completedAssignment(t, lifecycle, "w1", 10, 1)
	completedAssignment(t, lifecycle, "w3", 20, 0)

	got, err := stats.BrigadePerformance(ctx)
	if err != nil {
		t.Fatalf("BrigadePerformance: %v", err)
	}
	want := map[string]float64{
		"A": 100 - float64(1)*100/10,
		"B": 100,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("performance mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderSummary(t *testing.T) {
	stats, _, _, store := newStatsFixture(t)

	store.orders["ord2"] = domain.Order{ID: "ord2", OrderNumber: "N-101", Status: "completed"}
	store.orders["ord3"] = domain.Order{ID: "ord3", OrderNumber: "N-102", Status: "new"}

	got, err := stats.OrderSummary(context.Background())
	if err != nil {
		t.Fatalf("OrderSummary: %v", err)
	}
	if got.TotalOrders != 3 || got.CompletedOrders != 1 || got.InProgressOrders != 1 {
		t.Fatalf("summary: %+v", got)
	}
}
