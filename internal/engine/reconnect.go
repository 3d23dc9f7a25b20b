package engine

import (
	"context"
	"log/slog"

	"audioscribe/internal/model"
	"audioscribe/internal/storage"
)

// Starter starts a transcription loop.
type Starter interface {
	Start(id string, opts StartOptions) error
}

// Reconnector resumes items that were paused by a failure once connectivity
// returns.
type Reconnector struct {
	items   *storage.Items
	starter Starter
	logger  *slog.Logger
}

// NewReconnector creates a reconnect listener.
func NewReconnector(items *storage.Items, starter Starter, logger *slog.Logger) *Reconnector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconnector{
		items:   items,
		starter: starter,
		logger:  logger.With("component", "engine.Reconnector"),
	}
}

// OnReconnect issues at most one resume per eligible item and returns the
// ids that were restarted.
func (r *Reconnector) OnReconnect(ctx context.Context) []string {
	var resumed []string
	for _, item := range r.items.List() {
		if ctx.Err() != nil {
			break
		}
		if !eligibleForAutoResume(item) {
			continue
		}
		if err := r.starter.Start(item.ID, StartOptions{Resume: true}); err != nil {
			r.logger.Warn("auto-resume rejected", "item_id", item.ID, "error", err)
			continue
		}
		r.logger.Info("auto-resumed after reconnect", "item_id", item.ID, "processed", item.ProcessedChunks)
		resumed = append(resumed, item.ID)
	}
	return resumed
}

func eligibleForAutoResume(item model.MediaItem) bool {
	return item.Status == model.StatusPaused &&
		item.LastError != "" &&
		item.LastErrorCode != model.ErrorCodeCredentialMissing &&
		item.HasSource()
}
