// Package stream fans slot activity out to live subscribers so open
// slotlists update without polling.
package stream

import (
	"context"
	"sync"
	"time"
)

// EventType classifies a slotlist change.
type EventType string

const (
	EventSlotAssigned   EventType = "slot_assigned"
	EventSlotUnassigned EventType = "slot_unassigned"
	EventSlotlistEdited EventType = "slotlist_edited"
)

// SlotEvent describes a single change to a mission's slotlist.
type SlotEvent struct {
	Type        EventType `json:"type"`
	MissionSlug string    `json:"mission_slug"`
	SlotUID     string    `json:"slot_uid,omitempty"`
	UserUID     string    `json:"user_uid,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Stream fan-outs slot events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	ch          chan SlotEvent
	missionSlug string
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{
		subs: make(map[int]subscriber),
	}
}

// Subscribe registers a subscriber for one mission's events and returns a
// channel which will receive them. An empty slug subscribes to every
// mission. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context, missionSlug string) <-chan SlotEvent {
	ch := make(chan SlotEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{ch: ch, missionSlug: missionSlug}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to matching subscribers.
func (s *Stream) Publish(evt SlotEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.missionSlug != "" && sub.missionSlug != evt.MissionSlug {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
