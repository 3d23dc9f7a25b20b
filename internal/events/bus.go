// Package events keeps a bounded, sequenced log of item events for pollers
// and websocket subscribers.
package events

import (
	"sync"
	"time"

	"audioscribe/internal/model"
)

// Type classifies events.
type Type string

const (
	TypeStatus   Type = "status"
	TypeProgress Type = "progress"
	TypeVersion  Type = "version"
	TypeSaved    Type = "saved"
	TypeError    Type = "error"
)

// Event is one sequenced notification.
type Event struct {
	Seq       int64        `json:"seq"`
	Timestamp time.Time    `json:"timestamp"`
	ItemID    string       `json:"item_id"`
	Type      Type         `json:"type"`
	Status    model.Status `json:"status,omitempty"`
	Progress  int          `json:"progress,omitempty"`
	VersionID string       `json:"version_id,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// Bus stores recent events and provides incremental reads.
type Bus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	notify    chan struct{}
}

// NewBus creates a bounded in-memory event buffer.
func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &Bus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		notify:    make(chan struct{}),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	close(b.notify)
	b.notify = make(chan struct{})
	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *Bus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}
	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// Changed returns a channel closed at the next Publish.
func (b *Bus) Changed() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.notify
}

// LastSeq returns the sequence of the newest event.
func (b *Bus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}
