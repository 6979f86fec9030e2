package app

import "testing"

func TestNotifier_LastSubscriberWins(t *testing.T) {
	notifier := NewNotifier()
	first := &recordingSubscriber{}
	second := &recordingSubscriber{}

	notifier.Subscribe(first)
	notifier.Subscribe(second)
	notifier.Publish(Event{Kind: EventAssignmentsUpdated})

	if len(first.kinds()) != 0 {
		t.Fatalf("replaced subscriber received events: %v", first.kinds())
	}
	if got := second.kinds(); len(got) != 1 || got[0] != EventAssignmentsUpdated {
		t.Fatalf("active subscriber events: %v", got)
	}
}

func TestNotifier_StaleUnsubscribeIsNoOp(t *testing.T) {
	notifier := NewNotifier()
	stale := &recordingSubscriber{}
	active := &recordingSubscriber{}

	notifier.Subscribe(stale)
	notifier.Subscribe(active)
	notifier.Unsubscribe(stale)
	notifier.Publish(Event{Kind: EventWorkerStatsUpdated})

	if got := active.kinds(); len(got) != 1 {
		t.Fatalf("stale unsubscribe detached the active subscriber: %v", got)
	}
}

func TestNotifier_Unsubscribe(t *testing.T) {
	notifier := NewNotifier()
	sub := &recordingSubscriber{}

	notifier.Subscribe(sub)
	notifier.Unsubscribe(sub)
	notifier.Publish(Event{Kind: EventQualityCheckPerformed})

	if len(sub.kinds()) != 0 {
		t.Fatalf("detached subscriber received events: %v", sub.kinds())
	}
}

func TestNotifier_PublishWithoutSubscriber(t *testing.T) {
	notifier := NewNotifier()
	// Must not panic.
	notifier.Publish(Event{Kind: EventAssignmentStatusChanged})
}
