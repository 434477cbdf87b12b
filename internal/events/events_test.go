package events

import (
	"context"
	"testing"
	"time"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub(4, nil)
	sub := h.Subscribe()
	defer sub.Close()

	h.Publish("task_state_changed", 1000, map[string]any{"task_id": "task-1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := sub.Receive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != "task_state_changed" || ev.Seq != 1 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestPublishWithNoSubscribersDoesNotPanic(t *testing.T) {
	h := NewHub(4, nil)
	h.Publish("heartbeat", 1000, nil)
	if got := len(h.Recent()); got != 1 {
		t.Fatalf("expected 1 retained event, got %d", got)
	}
}

func TestLaggedSubscriberReportsSkipCount(t *testing.T) {
	h := NewHub(4, nil)
	sub := h.Subscribe()
	defer sub.Close()

	// Fill the subscriber's buffer (capacity defaultSubscriberBuffer) then
	// overflow it so drops are forced.
	for i := 0; i < defaultSubscriberBuffer+3; i++ {
		h.Publish("heartbeat", int64(i), nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var sawLag bool
	for i := 0; i < defaultSubscriberBuffer+5; i++ {
		_, err := sub.Receive(ctx)
		if err == nil {
			continue
		}
		if lagErr, ok := err.(*LagError); ok {
			sawLag = true
			if lagErr.Skipped <= 0 {
				t.Fatalf("expected positive skip count, got %d", lagErr.Skipped)
			}
			break
		}
	}
	if !sawLag {
		t.Fatalf("expected at least one LagError to surface")
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	h := NewHub(4, nil)
	sub := h.Subscribe()
	sub.Close()
	sub.Close() // idempotent

	if h.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", h.SubscriberCount())
	}
}
