package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"audioscribe/internal/model"
)

// MemoryRepository keeps snapshots in process memory. Used when no database
// is configured.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]model.ProjectRecord
	// Protected ids are visible but refuse deletion.
	protected map[string]bool
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records:   make(map[string]model.ProjectRecord),
		protected: make(map[string]bool),
	}
}

// Protect marks id as undeletable.
func (r *MemoryRepository) Protect(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.protected[id] = true
}

func (r *MemoryRepository) Upsert(ctx context.Context, rec model.ProjectRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.Snapshot = append([]byte(nil), rec.Snapshot...)
	r.records[rec.ID] = rec
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*model.ProjectRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	rec.Snapshot = append([]byte(nil), rec.Snapshot...)
	return &rec, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]model.ProjectRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ProjectRecord, 0, len(r.records))
	for _, rec := range r.records {
		rec.Snapshot = append([]byte(nil), rec.Snapshot...)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if r.protected[id] {
		return fmt.Errorf("project %s: %w", id, ErrPolicyBlocked)
	}
	delete(r.records, id)
	return nil
}
