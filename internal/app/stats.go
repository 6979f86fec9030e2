package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"stitchline/internal/domain"
)

// Digest list limits on the worker and brigade views.
const (
	activeDigestLimit = 5
	recentDigestLimit = 5
	topWorkersLimit   = 5
)

// StatsAggregator derives worker, brigade, and global statistics from the
// assignment store and inspection log. Pure reads, recomputed on every call,
// no caching and no side effects.
type StatsAggregator struct {
	assignments AssignmentStore
	inspections InspectionLog
	directory   Directory
	catalog     Catalog
}

// NewStatsAggregator constructs the aggregator.
func NewStatsAggregator(assignments AssignmentStore, inspections InspectionLog, directory Directory, catalog Catalog) *StatsAggregator {
	return &StatsAggregator{
		assignments: assignments,
		inspections: inspections,
		directory:   directory,
		catalog:     catalog,
	}
}

// WorkerStats returns one worker's lifetime production totals plus the
// active and recently-completed assignment digests.
func (s *StatsAggregator) WorkerStats(ctx context.Context, workerID string) (domain.WorkerStats, error) {
	if _, err := s.directory.GetWorker(ctx, workerID); err != nil {
		return domain.WorkerStats{}, fmt.Errorf("resolve worker %q: %w", workerID, err)
	}
	assignments, err := s.assignments.ListWorkerAssignments(ctx, workerID)
	if err != nil {
		return domain.WorkerStats{}, err
	}

	stats := domain.WorkerStats{}
	active := make([]domain.Assignment, 0)
	recent := make([]domain.Assignment, 0)
	for _, a := range assignments {
		stats.Completed += a.ActualQty
		stats.Defects += a.Defects
		switch a.Status {
		case domain.StatusAssigned, domain.StatusInProgress:
			active = append(active, a)
		case domain.StatusCompleted:
			recent = append(recent, a)
		}
	}

	slices.SortFunc(active, func(a, b domain.Assignment) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if a.CreatedAt.After(b.CreatedAt) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	slices.SortFunc(recent, compareEndTimeDesc)
	stats.Active = clip(active, activeDigestLimit)
	stats.Recent = clip(recent, recentDigestLimit)
	return stats, nil
}

// GlobalSummary aggregates every completed assignment, counts those with at
// least one inspection record, and breaks the totals down per worker
// restricted to the worker role, ordered by total completed descending.
func (s *StatsAggregator) GlobalSummary(ctx context.Context) (domain.GlobalQualitySummary, error) {
	completed, err := s.assignments.ListAssignmentsByStatus(ctx, domain.StatusCompleted)
	if err != nil {
		return domain.GlobalQualitySummary{}, err
	}
	records, err := s.inspections.ListInspections(ctx)
	if err != nil {
		return domain.GlobalQualitySummary{}, err
	}
	workers, err := s.directory.ListWorkers(ctx)
	if err != nil {
		return domain.GlobalQualitySummary{}, err
	}

	checkedIDs := make(map[string]struct{}, len(records))
	for _, rec := range records {
		checkedIDs[rec.AssignmentID] = struct{}{}
	}

	summary := domain.GlobalQualitySummary{}
	workerIDs := make(map[string]struct{})
	perWorker := make(map[string]*domain.WorkerQualitySummary)
	for _, a := range completed {
		summary.TotalAssignments++
		summary.TotalCompleted += a.ActualQty
		summary.TotalDefects += a.Defects
		workerIDs[a.WorkerID] = struct{}{}
		if _, ok := checkedIDs[a.ID]; ok {
			summary.CheckedCount++
		}

		ws, ok := perWorker[a.WorkerID]
		if !ok {
			ws = &domain.WorkerQualitySummary{WorkerID: a.WorkerID}
			perWorker[a.WorkerID] = ws
		}
		ws.TotalAssignments++
		ws.TotalCompleted += a.ActualQty
		ws.TotalDefects += a.Defects
		if _, ok := checkedIDs[a.ID]; ok {
			ws.CheckedCount++
		}
	}
	summary.TotalWorkers = len(workerIDs)
	summary.QualityPercent = domain.QualityPercent(summary.TotalDefects, summary.TotalCompleted)

	// The breakdown only covers directory entries with the worker role,
	// even when other roles hold completed assignments.
	breakdown := make([]domain.WorkerQualitySummary, 0, len(workers))
	for _, w := range workers {
		if w.Role != domain.RoleWorker {
			continue
		}
		ws, ok := perWorker[w.ID]
		if !ok {
			continue
		}
		ws.WorkerName = w.Name
		ws.Position = w.Position
		ws.DefectRate = domain.DefectRate(ws.TotalDefects, ws.TotalCompleted)
		breakdown = append(breakdown, *ws)
	}
	slices.SortFunc(breakdown, compareByCompletedDesc)
	summary.Workers = breakdown
	return summary, nil
}

// BrigadeSummary aggregates assignment output across one brigade's workers
// regardless of assignment status, with the brigade's top producers.
func (s *StatsAggregator) BrigadeSummary(ctx context.Context, brigade string) (domain.BrigadeSummary, error) {
	brigade = strings.TrimSpace(brigade)
	if brigade == "" {
		return domain.BrigadeSummary{}, fmt.Errorf("%w: brigade is required", domain.ErrConstraintViolation)
	}
	workers, err := s.directory.ListBrigadeWorkers(ctx, brigade)
	if err != nil {
		return domain.BrigadeSummary{}, err
	}

	summary := domain.BrigadeSummary{Brigade: brigade}
	top := make([]domain.WorkerQualitySummary, 0, len(workers))
	for _, w := range workers {
		assignments, err := s.assignments.ListWorkerAssignments(ctx, w.ID)
		if err != nil {
			return domain.BrigadeSummary{}, err
		}
		if len(assignments) > 0 {
			summary.WorkerCount++
		}
		ws := domain.WorkerQualitySummary{WorkerID: w.ID, WorkerName: w.Name, Position: w.Position}
		for _, a := range assignments {
			ws.TotalAssignments++
			ws.TotalCompleted += a.ActualQty
			ws.TotalDefects += a.Defects
		}
		ws.DefectRate = domain.DefectRate(ws.TotalDefects, ws.TotalCompleted)
		summary.TotalCompleted += ws.TotalCompleted
		summary.TotalDefects += ws.TotalDefects
		if w.Role == domain.RoleWorker {
			top = append(top, ws)
		}
	}
	summary.QualityPercent = domain.QualityPercent(summary.TotalDefects, summary.TotalCompleted)
	slices.SortFunc(top, compareByCompletedDesc)
	summary.TopWorkers = clip(top, topWorkersLimit)
	return summary, nil
}

// BrigadePerformance reports the quality percentage of every named brigade.
func (s *StatsAggregator) BrigadePerformance(ctx context.Context) (map[string]float64, error) {
	workers, err := s.directory.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}

	type tally struct{ completed, defects int }
	byBrigade := make(map[string]*tally)
	for _, w := range workers {
		if strings.TrimSpace(w.Brigade) == "" {
			continue
		}
		assignments, err := s.assignments.ListWorkerAssignments(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		t, ok := byBrigade[w.Brigade]
		if !ok {
			t = &tally{}
			byBrigade[w.Brigade] = t
		}
		for _, a := range assignments {
			t.completed += a.ActualQty
			t.defects += a.Defects
		}
	}

	out := make(map[string]float64, len(byBrigade))
	for brigade, t := range byBrigade {
		out[brigade] = domain.QualityPercent(t.defects, t.completed)
	}
	return out, nil
}

// OrderSummary counts catalog orders grouped by status.
func (s *StatsAggregator) OrderSummary(ctx context.Context) (domain.OrderSummary, error) {
	orders, err := s.catalog.ListOrders(ctx)
	if err != nil {
		return domain.OrderSummary{}, err
	}
	summary := domain.OrderSummary{TotalOrders: len(orders)}
	for _, o := range orders {
		switch o.Status {
		case "completed":
			summary.CompletedOrders++
		case "in_progress":
			summary.InProgressOrders++
		}
	}
	return summary, nil
}

// compareByCompletedDesc orders worker summaries by total completed
// descending, then by worker id for determinism.
func compareByCompletedDesc(a, b domain.WorkerQualitySummary) int {
	if a.TotalCompleted != b.TotalCompleted {
		return b.TotalCompleted - a.TotalCompleted
	}
	return strings.Compare(a.WorkerID, b.WorkerID)
}

// clip bounds a slice to at most n entries.
func clip[T any](in []T, n int) []T {
	if len(in) <= n {
		return in
	}
	return in[:n]
}
