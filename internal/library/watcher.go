// Package library ingests audio files dropped into a watched folder.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"audioscribe/internal/audio"
	"audioscribe/internal/events"
	"audioscribe/internal/model"
	"audioscribe/internal/storage"

	"github.com/dhowden/tag"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// Watcher registers an idle item for every supported file in dir.
type Watcher struct {
	dir    string
	items  *storage.Items
	bus    *events.Bus
	logger *slog.Logger

	newID     func() string
	now       func() time.Time
	readTitle func(path string) string

	mu   sync.Mutex
	seen map[string]string
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, items *storage.Items, bus *events.Bus, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:       dir,
		items:     items,
		bus:       bus,
		logger:    logger.With("component", "library.Watcher"),
		newID:     uuid.NewString,
		now:       time.Now,
		readTitle: readTitle,
		seen:      make(map[string]string),
	}
}

// Scan ingests files already present in the folder.
func (w *Watcher) Scan() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", w.dir, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := w.ingest(filepath.Join(w.dir, e.Name())); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Run scans the folder and then follows create events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create library dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	ids, err := w.Scan()
	if err != nil {
		return err
	}
	w.logger.Info("library watcher started", "dir", w.dir, "ingested", len(ids))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fs watcher error", "error", err)
		}
	}
}

// handleEvent ingests newly created or renamed-in files.
func (w *Watcher) handleEvent(ev fsnotify.Event) (string, bool) {
	if !ev.Op.Has(fsnotify.Create) {
		return "", false
	}
	return w.ingest(ev.Name)
}

func (w *Watcher) ingest(path string) (string, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || !audio.IsSupported(name) {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}

	w.mu.Lock()
	if _, dup := w.seen[path]; dup {
		w.mu.Unlock()
		return "", false
	}
	id := w.newID()
	w.seen[path] = id
	w.mu.Unlock()

	item := model.NewMediaItem(id, name, path, w.now())
	item.Title = w.readTitle(path)
	if err := w.items.Add(item); err != nil {
		w.logger.Error("failed to register library file", "path", path, "error", err)
		return "", false
	}
	w.logger.Info("library file ingested", "item_id", id, "file", name, "title", item.Title)
	if w.bus != nil {
		w.bus.Publish(events.Event{ItemID: id, Type: events.TypeStatus, Status: item.Status})
	}
	return id, true
}

// readTitle returns the embedded title tag, or "" when the file has none.
func readTitle(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	m, err := tag.ReadFrom(f)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(m.Title())
}
