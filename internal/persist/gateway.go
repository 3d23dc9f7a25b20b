// Package persist saves media items as durable project snapshots and
// restores them into the live repository.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"audioscribe/internal/events"
	"audioscribe/internal/model"
	"audioscribe/internal/repository"
	"audioscribe/internal/storage"
)

// snapshotFormat is bumped when Snapshot changes incompatibly.
const snapshotFormat = 1

// Snapshot is the serialized project. The source handle is never included.
type Snapshot struct {
	Format  int             `json:"format"`
	SavedAt time.Time       `json:"saved_at"`
	Item    model.MediaItem `json:"item"`
}

// StorageError wraps a failed durable-storage operation.
type StorageError struct {
	Op  string
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// SaveState backs the "not saved" indicator of an item.
type SaveState struct {
	LastSavedAt time.Time `json:"last_saved_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Gateway is the persistence boundary between live items and the snapshot store.
type Gateway struct {
	repo   repository.SnapshotRepository
	items  *storage.Items
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state map[string]SaveState
}

// NewGateway wires a gateway. bus may be nil.
func NewGateway(repo repository.SnapshotRepository, items *storage.Items, bus *events.Bus, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		repo:   repo,
		items:  items,
		bus:    bus,
		logger: logger.With("component", "persist.Gateway"),
		now:    time.Now,
		state:  make(map[string]SaveState),
	}
}

// Save upserts a snapshot of item keyed by its id.
func (g *Gateway) Save(ctx context.Context, item model.MediaItem) error {
	now := g.now()
	item.FileName = item.ResolvedFileName()
	item.SourcePath = ""

	data, err := json.Marshal(Snapshot{Format: snapshotFormat, SavedAt: now, Item: item})
	if err != nil {
		return g.saveFailed(item.ID, &StorageError{Op: "save", ID: item.ID, Err: err})
	}

	rec := model.ProjectRecord{
		ID:        item.ID,
		FileName:  item.FileName,
		Snapshot:  data,
		UpdatedAt: now,
	}
	if err := g.repo.Upsert(ctx, rec); err != nil {
		return g.saveFailed(item.ID, &StorageError{Op: "save", ID: item.ID, Err: err})
	}

	g.mu.Lock()
	g.state[item.ID] = SaveState{LastSavedAt: now}
	g.mu.Unlock()

	g.logger.Info("project saved", "item_id", item.ID, "versions", len(item.Versions))
	g.publish(events.Event{ItemID: item.ID, Type: events.TypeSaved, Status: item.Status})
	return nil
}

// SaveByID saves the current live state of an item.
func (g *Gateway) SaveByID(ctx context.Context, id string) error {
	item, ok := g.items.Get(id)
	if !ok {
		return fmt.Errorf("save %s: %w", id, storage.ErrItemNotFound)
	}
	return g.Save(ctx, item)
}

func (g *Gateway) saveFailed(id string, err *StorageError) error {
	g.mu.Lock()
	st := g.state[id]
	st.LastError = err.Error()
	g.state[id] = st
	g.mu.Unlock()

	g.logger.Error("project save failed", "item_id", id, "error", err)
	g.publish(events.Event{ItemID: id, Type: events.TypeError, Message: err.Error()})
	return err
}

// State returns the save state of an item.
func (g *Gateway) State(id string) SaveState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state[id]
}

// List returns saved project summaries, newest first.
func (g *Gateway) List(ctx context.Context) ([]model.ProjectSummary, error) {
	records, err := g.repo.List(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}

	out := make([]model.ProjectSummary, 0, len(records))
	for _, rec := range records {
		summary := model.ProjectSummary{
			ID:        rec.ID,
			FileName:  rec.FileName,
			UpdatedAt: rec.UpdatedAt,
		}
		var snap Snapshot
		if err := json.Unmarshal(rec.Snapshot, &snap); err != nil {
			g.logger.Warn("unreadable snapshot", "item_id", rec.ID, "error", err)
		} else {
			summary.Status = snap.Item.Status
			summary.VersionCount = len(snap.Item.Versions)
			summary.DurationSeconds = snap.Item.DurationSeconds
		}
		out = append(out, summary)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a saved project. The live item, if any, is untouched.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	if err := g.repo.Delete(ctx, id); err != nil {
		return &StorageError{Op: "delete", ID: id, Err: err}
	}
	g.mu.Lock()
	delete(g.state, id)
	g.mu.Unlock()
	g.logger.Info("project deleted", "item_id", id)
	return nil
}

// Load restores a saved project into the live repository and makes it active.
// The restored item has no source handle, so it cannot be transcribed again.
func (g *Gateway) Load(ctx context.Context, id string) (model.MediaItem, error) {
	rec, err := g.repo.Get(ctx, id)
	if err != nil {
		return model.MediaItem{}, &StorageError{Op: "load", ID: id, Err: err}
	}
	var snap Snapshot
	if err := json.Unmarshal(rec.Snapshot, &snap); err != nil {
		return model.MediaItem{}, &StorageError{Op: "load", ID: id, Err: err}
	}

	item := snap.Item
	item.ID = rec.ID
	item.SourcePath = ""
	if item.Versions == nil {
		item.Versions = []model.Version{}
	}
	// A snapshot never resumes a loop.
	if item.Status == model.StatusProcessing || item.Status == model.StatusUploading {
		item.Status = model.StatusPaused
	}
	if err := item.CheckLineage(); err != nil {
		return model.MediaItem{}, &StorageError{Op: "load", ID: id, Err: err}
	}

	g.items.Restore(item)
	if err := g.items.SetActive(item.ID); err != nil {
		return model.MediaItem{}, err
	}

	g.mu.Lock()
	g.state[item.ID] = SaveState{LastSavedAt: rec.UpdatedAt}
	g.mu.Unlock()

	g.publish(events.Event{ItemID: item.ID, Type: events.TypeStatus, Status: item.Status, Message: "loaded"})
	return item, nil
}

// IsNotFound reports whether err is a missing project.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

func (g *Gateway) publish(e events.Event) {
	if g.bus != nil {
		g.bus.Publish(e)
	}
}
