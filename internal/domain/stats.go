package domain

// DefectRate returns defects as a percentage of completed quantity. Zero
// completed quantity yields 0.0, never a division error.
func DefectRate(defects, completed int) float64 {
	if completed <= 0 {
		return 0.0
	}
	return float64(defects) * 100.0 / float64(completed)
}

// QualityPercent is 100 minus the defect rate. It can fall below zero when
// recorded defects exceed completions; that data-integrity condition is
// reported as-is rather than clamped.
func QualityPercent(defects, completed int) float64 {
	return 100.0 - DefectRate(defects, completed)
}

// WorkerQualitySummary aggregates one worker's completed assignments joined
// against the inspection log. Computed on demand, never persisted.
type WorkerQualitySummary struct {
	WorkerID         string
	WorkerName       string
	Position         string
	TotalAssignments int
	CheckedCount     int
	TotalCompleted   int
	TotalDefects     int
	DefectRate       float64
}

// BrigadeSummary aggregates assignment output across one brigade's workers.
type BrigadeSummary struct {
	Brigade        string
	WorkerCount    int
	TotalCompleted int
	TotalDefects   int
	QualityPercent float64
	TopWorkers     []WorkerQualitySummary
}

// GlobalQualitySummary covers every completed assignment regardless of
// inspection status; CheckedCount counts those with at least one record.
type GlobalQualitySummary struct {
	TotalAssignments int
	CheckedCount     int
	TotalCompleted   int
	TotalDefects     int
	TotalWorkers     int
	QualityPercent   float64
	Workers          []WorkerQualitySummary
}

// WorkerStats is the lifetime production digest shown on a worker session.
type WorkerStats struct {
	Completed int
	Defects   int
	Active    []Assignment
	Recent    []Assignment
}

// OrderSummary counts orders grouped by lifecycle status.
type OrderSummary struct {
	TotalOrders      int
	CompletedOrders  int
	InProgressOrders int
}
