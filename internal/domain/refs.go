package domain

import "time"

// RoleWorker is the directory role counted in worker-level aggregations.
const RoleWorker = "worker"

// Worker is a read-only directory record. The core never mutates these.
type Worker struct {
	ID       string
	Name     string
	Role     string
	Brigade  string
	Position string
}

// Operation is a read-only catalog record describing one production step.
type Operation struct {
	ID              string
	Name            string
	ProductID       string
	StandardMinutes int
	SequenceOrder   int
}

// Order is a read-only catalog record.
type Order struct {
	ID           string
	OrderNumber  string
	CustomerName string
	ProductID    string
	Quantity     int
	Status       string
	Priority     int
	Deadline     *time.Time
}

// Product is a read-only catalog record.
type Product struct {
	ID      string
	Article string
	Name    string
}

// QualityItem is a pending- or inspected-queue row joined with display names
// from the directory and catalog collaborators.
type QualityItem struct {
	Assignment    Assignment
	WorkerName    string
	OperationName string
	ProductName   string
	Checked       bool
	Current       *InspectionRecord
}
