package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stitchline/internal/domain"
)

// fakeStore backs the engine tests with an in-memory implementation of the
// storage, directory, and catalog ports. The mutex mirrors the production
// adapter's per-mutation transaction serialization.
type fakeStore struct {
	mu          sync.Mutex
	assignments map[string]domain.Assignment
	records     []domain.InspectionRecord
	nextRecID   int64
	workers     map[string]domain.Worker
	operations  map[string]domain.Operation
	orders      map[string]domain.Order
	products    map[string]domain.Product

	failAppendFor map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assignments:   map[string]domain.Assignment{},
		workers:       map[string]domain.Worker{},
		operations:    map[string]domain.Operation{},
		orders:        map[string]domain.Order{},
		products:      map[string]domain.Product{},
		failAppendFor: map[string]bool{},
	}
}

func (f *fakeStore) seedRefs() {
	f.workers["w1"] = domain.Worker{ID: "w1", Name: "Anna", Role: "worker", Brigade: "A", Position: "seamstress"}
	f.workers["w2"] = domain.Worker{ID: "w2", Name: "Boris", Role: "worker", Brigade: "A", Position: "cutter"}
	f.workers["w3"] = domain.Worker{ID: "w3", Name: "Vera", Role: "worker", Brigade: "B", Position: "seamstress"}
	f.workers["m1"] = domain.Worker{ID: "m1", Name: "Marta", Role: "master", Brigade: "A", Position: "master"}
	f.operations["op1"] = domain.Operation{ID: "op1", Name: "Sew collar", ProductID: "p1", StandardMinutes: 12, SequenceOrder: 1}
	f.orders["ord1"] = domain.Order{ID: "ord1", OrderNumber: "N-100", CustomerName: "Atelier", ProductID: "p1", Quantity: 100, Status: "in_progress"}
	f.products["p1"] = domain.Product{ID: "p1", Article: "SHT-1", Name: "Shirt"}
}

func (f *fakeStore) CreateAssignment(_ context.Context, a domain.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.assignments[a.ID]; ok {
		return fmt.Errorf("%w: duplicate assignment %s", domain.ErrStorage, a.ID)
	}
	f.assignments[a.ID] = a
	return nil
}

func (f *fakeStore) GetAssignment(_ context.Context, id string) (domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[id]
	if !ok {
		return domain.Assignment{}, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) MutateAssignment(_ context.Context, id string, mutate func(*domain.Assignment) error) (domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[id]
	if !ok {
		return domain.Assignment{}, domain.ErrNotFound
	}
	if err := mutate(&a); err != nil {
		return domain.Assignment{}, err
	}
	f.assignments[id] = a
	return a, nil
}

func (f *fakeStore) ListAssignments(_ context.Context) ([]domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Assignment, 0, len(f.assignments))
	for _, a := range f.assignments {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) ListWorkerAssignments(_ context.Context, workerID string) ([]domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Assignment, 0)
	for _, a := range f.assignments {
		if a.WorkerID == workerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAssignmentsByStatus(_ context.Context, status domain.Status) ([]domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Assignment, 0)
	for _, a := range f.assignments {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendInspection(_ context.Context, rec domain.InspectionRecord, mutate func(*domain.Assignment) error) (domain.InspectionRecord, domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppendFor[rec.AssignmentID] {
		return domain.InspectionRecord{}, domain.Assignment{}, fmt.Errorf("%w: injected append failure", domain.ErrStorage)
	}
	a, ok := f.assignments[rec.AssignmentID]
	if !ok {
		return domain.InspectionRecord{}, domain.Assignment{}, domain.ErrNotFound
	}
	if err := mutate(&a); err != nil {
		return domain.InspectionRecord{}, domain.Assignment{}, err
	}
	f.nextRecID++
	rec.ID = f.nextRecID
	f.records = append(f.records, rec)
	f.assignments[rec.AssignmentID] = a
	return rec, a, nil
}

func (f *fakeStore) ListInspections(_ context.Context) ([]domain.InspectionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.InspectionRecord(nil), f.records...), nil
}

func (f *fakeStore) ListAssignmentInspections(_ context.Context, assignmentID string) ([]domain.InspectionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.InspectionRecord, 0)
	for _, rec := range f.records {
		if rec.AssignmentID == assignmentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) GetWorker(_ context.Context, id string) (domain.Worker, error) {
	w, ok := f.workers[id]
	if !ok {
		return domain.Worker{}, domain.ErrNotFound
	}
	return w, nil
}

func (f *fakeStore) ListWorkers(_ context.Context) ([]domain.Worker, error) {
	out := make([]domain.Worker, 0, len(f.workers))
	for _, w := range f.workers {
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeStore) ListBrigadeWorkers(_ context.Context, brigade string) ([]domain.Worker, error) {
	out := make([]domain.Worker, 0)
	for _, w := range f.workers {
		if w.Brigade == brigade {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeStore) GetOperation(_ context.Context, id string) (domain.Operation, error) {
	op, ok := f.operations[id]
	if !ok {
		return domain.Operation{}, domain.ErrNotFound
	}
	return op, nil
}

func (f *fakeStore) GetOrder(_ context.Context, id string) (domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (f *fakeStore) GetProduct(_ context.Context, id string) (domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListOperations(_ context.Context) ([]domain.Operation, error) {
	out := make([]domain.Operation, 0, len(f.operations))
	for _, op := range f.operations {
		out = append(out, op)
	}
	return out, nil
}

func (f *fakeStore) ListOrders(_ context.Context) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(f.orders))
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStore) ListActiveOrders(_ context.Context) ([]domain.Order, error) {
	out := make([]domain.Order, 0)
	for _, o := range f.orders {
		if o.Status == "new" || o.Status == "in_progress" {
			out = append(out, o)
		}
	}
	return out, nil
}

// recordingSubscriber captures published events for assertions.
type recordingSubscriber struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSubscriber) HandleEvent(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSubscriber) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

// sequentialIDs returns a deterministic id generator for tests.
func sequentialIDs(prefix string) IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
