package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesMatchingSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all := s.Subscribe(ctx, "")
	anvil := s.Subscribe(ctx, "op-anvil")
	other := s.Subscribe(ctx, "op-hammer")

	s.Publish(SlotEvent{Type: EventSlotAssigned, MissionSlug: "op-anvil", SlotUID: "s1", UserUID: "alice"})

	select {
	case evt := <-all:
		if evt.SlotUID != "s1" {
			t.Fatalf("unexpected event: %+v", evt)
		}
		if evt.Timestamp.IsZero() {
			t.Fatal("timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("wildcard subscriber never received the event")
	}

	select {
	case evt := <-anvil:
		if evt.MissionSlug != "op-anvil" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("mission subscriber never received the event")
	}

	select {
	case evt := <-other:
		t.Fatalf("unrelated subscriber received %+v", evt)
	default:
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx, "op-anvil")
	cancel()

	select {
	case _, open := <-ch:
		if open {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel never closed after cancel")
	}

	// Publishing after unsubscribe must not panic or block.
	s.Publish(SlotEvent{Type: EventSlotlistEdited, MissionSlug: "op-anvil"})
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = s.Subscribe(ctx, "op-anvil")
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(SlotEvent{Type: EventSlotlistEdited, MissionSlug: "op-anvil"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
