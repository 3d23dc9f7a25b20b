package model

import (
	"errors"
	"fmt"
)

// Status is the item-level processing state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// ErrInvalidTransition is returned when a status edge is not in the table.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions lists the allowed edges. Same-state moves are handled separately.
var transitions = map[Status][]Status{
	StatusIdle:       {StatusUploading, StatusProcessing},
	StatusUploading:  {StatusIdle, StatusError},
	StatusProcessing: {StatusCompleted, StatusPaused, StatusError},
	StatusPaused:     {StatusProcessing},
	StatusError:      {StatusProcessing},
	StatusCompleted:  {StatusProcessing},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the item to status or returns ErrInvalidTransition
// without touching the item.
func (m *MediaItem) Transition(to Status) error {
	if !CanTransition(m.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, to)
	}
	m.Status = to
	return nil
}
