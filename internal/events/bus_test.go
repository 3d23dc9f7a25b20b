package events

import (
	"testing"
	"time"
)

// TestBusSince verifies incremental event reads by sequence.
func TestBusSince(t *testing.T) {
	bus := NewBus(3)
	bus.Publish(Event{Type: TypeStatus, Message: "1"})
	bus.Publish(Event{Type: TypeStatus, Message: "2"})
	bus.Publish(Event{Type: TypeStatus, Message: "3"})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
	if bus.LastSeq() != 3 {
		t.Fatalf("LastSeq() = %d, want 3", bus.LastSeq())
	}
}

// TestBusCapsHistory verifies buffer limit trimming behavior.
func TestBusCapsHistory(t *testing.T) {
	bus := NewBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Message != "2" || events[1].Message != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

// TestBusChangedWakesWaiters verifies the notify channel closes on publish.
func TestBusChangedWakesWaiters(t *testing.T) {
	bus := NewBus(4)
	changed := bus.Changed()
	bus.Publish(Event{Message: "x"})
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("Changed() not closed after Publish")
	}
}
