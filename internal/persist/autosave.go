package persist

import (
	"context"
	"log/slog"
	"time"

	"audioscribe/internal/model"
	"audioscribe/internal/storage"
)

// Auto-save defaults.
const (
	DefaultAutoSaveInterval = 10 * time.Second
	DefaultAutoSaveMinGap   = 30 * time.Second
)

// AutoSaver periodically saves the active item once it is completed.
type AutoSaver struct {
	gateway  *Gateway
	items    *storage.Items
	interval time.Duration
	minGap   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewAutoSaver creates an auto-saver. Zero durations use the defaults.
func NewAutoSaver(gateway *Gateway, items *storage.Items, interval, minGap time.Duration, logger *slog.Logger) *AutoSaver {
	if interval <= 0 {
		interval = DefaultAutoSaveInterval
	}
	if minGap <= 0 {
		minGap = DefaultAutoSaveMinGap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoSaver{
		gateway:  gateway,
		items:    items,
		interval: interval,
		minGap:   minGap,
		logger:   logger.With("component", "persist.AutoSaver"),
		now:      time.Now,
	}
}

// Run ticks until ctx is done.
func (a *AutoSaver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// tick saves the active item when it is completed and the last save is at
// least minGap old. It reports whether a save was attempted.
func (a *AutoSaver) tick(ctx context.Context) bool {
	item, ok := a.items.Active()
	if !ok || item.Status != model.StatusCompleted {
		return false
	}
	st := a.gateway.State(item.ID)
	if !st.LastSavedAt.IsZero() && a.now().Sub(st.LastSavedAt) < a.minGap {
		return false
	}
	if err := a.gateway.Save(ctx, item); err != nil {
		a.logger.Warn("auto-save failed", "item_id", item.ID, "error", err)
	}
	return true
}
