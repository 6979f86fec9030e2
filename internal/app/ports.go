package app

import (
	"context"
	"time"

	"stitchline/internal/domain"
)

// IDGenerator returns unique identifiers for new assignments.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// AssignmentStore is the durable assignment record. MutateAssignment runs
// the given function inside a single atomic read-modify-write transaction on
// one assignment row; two concurrent mutations of the same id never
// interleave, and a mutation error leaves the row untouched.
type AssignmentStore interface {
	CreateAssignment(context.Context, domain.Assignment) error
	GetAssignment(context.Context, string) (domain.Assignment, error)
	MutateAssignment(context.Context, string, func(*domain.Assignment) error) (domain.Assignment, error)
	ListAssignments(context.Context) ([]domain.Assignment, error)
	ListWorkerAssignments(context.Context, string) ([]domain.Assignment, error)
	ListAssignmentsByStatus(context.Context, domain.Status) ([]domain.Assignment, error)
}

// InspectionLog is the append-only quality audit trail. AppendInspection
// writes the record and applies the outcome mutation to the referenced
// assignment as one atomic unit: a reader never observes one without the
// other. Records are never updated or deleted.
type InspectionLog interface {
	AppendInspection(context.Context, domain.InspectionRecord, func(*domain.Assignment) error) (domain.InspectionRecord, domain.Assignment, error)
	ListInspections(context.Context) ([]domain.InspectionRecord, error)
	ListAssignmentInspections(context.Context, string) ([]domain.InspectionRecord, error)
}

// Directory resolves worker identities. Read-only; the core never mutates
// directory records.
type Directory interface {
	GetWorker(context.Context, string) (domain.Worker, error)
	ListWorkers(context.Context) ([]domain.Worker, error)
	ListBrigadeWorkers(context.Context, string) ([]domain.Worker, error)
}

// Catalog resolves operations, orders, and products. Read-only.
type Catalog interface {
	GetOperation(context.Context, string) (domain.Operation, error)
	GetOrder(context.Context, string) (domain.Order, error)
	GetProduct(context.Context, string) (domain.Product, error)
	ListOperations(context.Context) ([]domain.Operation, error)
	ListOrders(context.Context) ([]domain.Order, error)
	ListActiveOrders(context.Context) ([]domain.Order, error)
}
