// Package jobs tracks which media items currently have a live processing loop.
package jobs

import (
	"errors"
	"sync"
)

// ErrJobAlreadyRunning is returned when an item already has a live loop.
var ErrJobAlreadyRunning = errors.New("job already running")

// Kind names what a running job is doing.
type Kind string

const (
	KindTranscribe Kind = "transcribe"
	KindStage      Kind = "stage"
)

// Registry holds at most one live job per item.
type Registry struct {
	mu      sync.Mutex
	running map[string]Kind
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{running: make(map[string]Kind)}
}

// Acquire claims itemID for a job of kind. The returned release func is
// idempotent.
func (r *Registry) Acquire(itemID string, kind Kind) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.running[itemID]; busy {
		return nil, ErrJobAlreadyRunning
	}
	r.running[itemID] = kind

	var once sync.Once
	return func() {
		once.Do(func() { r.release(itemID) })
	}, nil
}

func (r *Registry) release(itemID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, itemID)
}

// IsRunning reports whether itemID has a live job.
func (r *Registry) IsRunning(itemID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[itemID]
	return ok
}

// Running returns the kind of the live job for itemID, if any.
func (r *Registry) Running(itemID string) (Kind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kind, ok := r.running[itemID]
	return kind, ok
}
