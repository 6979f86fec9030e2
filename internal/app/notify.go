package app

import (
	"sync"

	"stitchline/internal/domain"
)

// EventKind identifies a change-notification category.
type EventKind string

// EventKind values.
const (
	EventWorkerStatsUpdated      EventKind = "worker_stats_updated"
	EventAssignmentsUpdated      EventKind = "assignments_updated"
	EventQualityCheckPerformed   EventKind = "quality_check_performed"
	EventAssignmentStatusChanged EventKind = "assignment_status_changed"
)

// Event is one change notification fanned out to the active subscriber.
type Event struct {
	Kind         EventKind
	AssignmentID string
	WorkerID     string
	Status       domain.Status
}

// Subscriber receives change notifications from the engines.
type Subscriber interface {
	HandleEvent(Event)
}

// Notifier is the process-wide change fan-out point. One subscriber is
// active at a time; subscribing replaces any previous subscriber (last
// writer wins). Delivery is best-effort and at-most-once per mutation; a
// missing subscriber never blocks or fails the mutation that produced the
// event.
type Notifier struct {
	mu  sync.Mutex
	sub Subscriber
}

// NewNotifier constructs a notifier with no active subscriber.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe installs the active subscriber, replacing any previous one.
// Call on session start.
func (n *Notifier) Subscribe(sub Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sub = sub
}

// Unsubscribe removes the subscriber if it is still the active one. A
// session that was already replaced by a later subscriber is a no-op, so a
// stale session end cannot detach its successor.
func (n *Notifier) Unsubscribe(sub Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sub == sub {
		n.sub = nil
	}
}

// Publish delivers one event to the active subscriber, if any.
func (n *Notifier) Publish(event Event) {
	if n == nil {
		return
	}
	n.mu.Lock()
	sub := n.sub
	n.mu.Unlock()
	if sub == nil {
		return
	}
	sub.HandleEvent(event)
}
