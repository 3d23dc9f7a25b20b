// Package storage keeps live media items in memory and stores uploaded audio on disk.
package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"audioscribe/internal/model"
)

var (
	ErrItemNotFound = errors.New("media item not found")
	ErrItemExists   = errors.New("media item already exists")
)

// Items is the live repository of media items. Every mutation goes through
// Update; readers always get copies.
type Items struct {
	mu     sync.RWMutex
	items  map[string]*model.MediaItem
	order  []string
	active string
	now    func() time.Time
}

// NewItems creates an empty repository.
func NewItems() *Items {
	return &Items{
		items: make(map[string]*model.MediaItem),
		now:   time.Now,
	}
}

// Add registers a new item.
func (s *Items) Add(item *model.MediaItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("add item: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return fmt.Errorf("add item %s: %w", item.ID, ErrItemExists)
	}
	clone := item.Clone()
	s.items[item.ID] = &clone
	s.order = append(s.order, item.ID)
	return nil
}

// Restore inserts or replaces an item, keeping its position when it already exists.
func (s *Items) Restore(item model.MediaItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := item.Clone()
	if _, ok := s.items[item.ID]; !ok {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = &clone
}

// Get returns a copy of the item.
func (s *Items) Get(id string) (model.MediaItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return model.MediaItem{}, false
	}
	return item.Clone(), true
}

// List returns copies of all items in ingestion order.
func (s *Items) List() []model.MediaItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.MediaItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out
}

// Update applies fn to a working copy and commits it only when fn returns nil.
func (s *Items) Update(id string, fn func(item *model.MediaItem) error) (model.MediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[id]
	if !ok {
		return model.MediaItem{}, fmt.Errorf("update item %s: %w", id, ErrItemNotFound)
	}
	work := current.Clone()
	if err := fn(&work); err != nil {
		return current.Clone(), err
	}
	work.UpdatedAt = s.now()
	s.items[id] = &work
	return work.Clone(), nil
}

// SetActive marks the item the user is looking at.
func (s *Items) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("set active %s: %w", id, ErrItemNotFound)
	}
	s.active = id
	return nil
}

// Active returns a copy of the active item.
func (s *Items) Active() (model.MediaItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == "" {
		return model.MediaItem{}, false
	}
	item, ok := s.items[s.active]
	if !ok {
		return model.MediaItem{}, false
	}
	return item.Clone(), true
}
