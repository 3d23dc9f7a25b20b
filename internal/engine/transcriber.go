package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"audioscribe/internal/audio"
	"audioscribe/internal/events"
	"audioscribe/internal/jobs"
	"audioscribe/internal/model"
	"audioscribe/internal/remote"
	"audioscribe/internal/storage"
	"audioscribe/internal/stt"

	"github.com/google/uuid"
)

// TranscriberDeps wires a Transcriber.
type TranscriberDeps struct {
	Items       *storage.Items
	Jobs        *jobs.Registry
	Bus         *events.Bus
	Decoder     Decoder
	Provider    stt.Provider
	Policy      remote.Policy
	Models      []string
	Credentials Credentials
	Saver       Saver
	Logger      *slog.Logger
	// BaseContext bounds loops started with Start. Defaults to Background.
	BaseContext context.Context
}

// Transcriber runs the resumable chunk loop for one item at a time per item.
type Transcriber struct {
	items    *storage.Items
	jobs     *jobs.Registry
	bus      *events.Bus
	decoder  Decoder
	provider stt.Provider
	policy   remote.Policy
	models   []string
	creds    Credentials
	saver    Saver
	logger   *slog.Logger
	baseCtx  context.Context
	newID    func() string
	now      func() time.Time

	wg sync.WaitGroup
}

// NewTranscriber creates a transcriber.
func NewTranscriber(d TranscriberDeps) *Transcriber {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := d.BaseContext
	if base == nil {
		base = context.Background()
	}
	return &Transcriber{
		items:    d.Items,
		jobs:     d.Jobs,
		bus:      d.Bus,
		decoder:  d.Decoder,
		provider: d.Provider,
		policy:   d.Policy,
		models:   d.Models,
		creds:    d.Credentials,
		saver:    d.Saver,
		logger:   logger.With("component", "engine.Transcriber"),
		baseCtx:  base,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// run is the state carried from a successful claim into the loop.
type run struct {
	itemID     string
	sourcePath string
	rawID      string
	transcript string
	release    func()
}

// Run validates, claims and processes the item synchronously.
func (t *Transcriber) Run(ctx context.Context, id string, opts StartOptions) error {
	r, err := t.prepare(ctx, id, opts)
	if err != nil {
		return err
	}
	defer r.release()
	return t.execute(ctx, r)
}

// Start validates and claims synchronously, then runs the loop in the background.
func (t *Transcriber) Start(id string, opts StartOptions) error {
	r, err := t.prepare(t.baseCtx, id, opts)
	if err != nil {
		return err
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer r.release()
		if err := t.execute(t.baseCtx, r); err != nil {
			t.logger.Warn("transcription stopped", "item_id", id, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every loop started with Start has returned.
func (t *Transcriber) Wait() {
	t.wg.Wait()
}

// Pause asks a running loop to stop at the next chunk boundary.
func (t *Transcriber) Pause(id string) error {
	item, err := t.items.Update(id, func(m *model.MediaItem) error {
		if m.Status != model.StatusProcessing {
			return fmt.Errorf("pause %s: %w", id, ErrNotProcessing)
		}
		m.SetError("", "")
		return m.Transition(model.StatusPaused)
	})
	if errors.Is(err, storage.ErrItemNotFound) {
		return fmt.Errorf("pause %s: %w", id, ErrItemNotFound)
	}
	if err != nil {
		return err
	}
	t.publish(events.Event{ItemID: id, Type: events.TypeStatus, Status: item.Status, Progress: item.ProgressPercent})
	return nil
}

// prepare checks preconditions and claims the item. Nothing is mutated when
// a precondition fails.
func (t *Transcriber) prepare(ctx context.Context, id string, opts StartOptions) (*run, error) {
	if _, ok := t.creds.Get(); !ok {
		return nil, ErrCredentialMissing
	}
	item, ok := t.items.Get(id)
	if !ok {
		return nil, fmt.Errorf("start %s: %w", id, ErrItemNotFound)
	}
	if !item.HasSource() {
		return nil, fmt.Errorf("start %s: %w", id, ErrSourceUnavailable)
	}
	if err := t.decoder.Check(item.SourcePath); err != nil {
		return nil, fmt.Errorf("start %s: %w: %v", id, ErrSourceUnavailable, err)
	}
	if item.Status == model.StatusProcessing {
		return nil, fmt.Errorf("start %s: %w", id, ErrAlreadyRunning)
	}

	release, err := t.jobs.Acquire(id, jobs.KindTranscribe)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", id, ErrAlreadyRunning)
	}

	resume, restart := opts.Resume, false
	if !resume && item.ProcessedChunks > 0 {
		if opts.Decide == nil {
			release()
			return nil, fmt.Errorf("start %s: %w", id, ErrNeedsDecision)
		}
		decision, err := opts.Decide(ctx, item)
		if err != nil {
			release()
			return nil, err
		}
		switch decision {
		case DecisionContinue:
			resume = true
		case DecisionRestart:
			restart = true
		default:
			release()
			return nil, fmt.Errorf("start %s: %w", id, ErrNeedsDecision)
		}
	}

	r := &run{itemID: id, release: release}
	claimed, err := t.items.Update(id, func(m *model.MediaItem) error {
		if m.Status == model.StatusProcessing {
			return ErrAlreadyRunning
		}
		if restart {
			m.ProcessedChunks = 0
			m.TotalChunks = 0
		}

		raw, hasRaw := m.LatestRaw()
		switch {
		case resume && hasRaw && raw.Final:
			return ErrAlreadyCompleted
		case resume && hasRaw:
			r.rawID = raw.ID
			r.transcript = raw.Content
		case hasRaw && !raw.Final && raw.Content == "" && m.ProcessedChunks == 0:
			// Nothing was committed to the last RAW yet; keep using it.
			r.rawID = raw.ID
			_ = m.SetCurrentVersion(raw.ID)
		default:
			// Without a reusable RAW the transcript restarts from the first chunk.
			m.ProcessedChunks = 0
			r.rawID = t.newID()
			if err := m.AppendVersion(model.Version{
				ID:          r.rawID,
				StageKind:   model.StageRaw,
				CreatedAt:   t.now(),
				DisplayName: model.StageRaw.Label() + " (starting...)",
			}, true); err != nil {
				return err
			}
		}

		if err := m.Transition(model.StatusProcessing); err != nil {
			return err
		}
		m.SetError("", "")
		m.ProgressPercent = model.Percent(m.ProcessedChunks, m.TotalChunks)
		return nil
	})
	if err != nil {
		release()
		return nil, fmt.Errorf("start %s: %w", id, err)
	}
	r.sourcePath = claimed.SourcePath

	t.logger.Info("transcription claimed",
		"item_id", id,
		"resume", resume,
		"restart", restart,
		"processed", claimed.ProcessedChunks,
		"raw_version", r.rawID)
	t.publish(events.Event{ItemID: id, Type: events.TypeStatus, Status: claimed.Status, Progress: claimed.ProgressPercent, VersionID: r.rawID})
	return r, nil
}

// execute resolves the duration and walks the remaining windows.
func (t *Transcriber) execute(ctx context.Context, r *run) error {
	item, ok := t.items.Get(r.itemID)
	if !ok {
		return fmt.Errorf("execute %s: %w", r.itemID, ErrItemNotFound)
	}

	duration := item.DurationSeconds
	if duration <= 0 {
		d, err := t.decoder.Probe(ctx, r.sourcePath)
		if err != nil {
			t.fail(r, model.StatusError, model.ErrorCodeSource, err)
			return fmt.Errorf("probe %s: %w: %v", r.itemID, ErrSourceUnavailable, err)
		}
		duration = d
	}

	windows := audio.Windows(duration, audio.WindowSeconds)
	total := len(windows)
	item, err := t.items.Update(r.itemID, func(m *model.MediaItem) error {
		m.DurationSeconds = duration
		// Always trust the duration over a stored total.
		m.TotalChunks = total
		if m.ProcessedChunks > total {
			m.ProcessedChunks = total
		}
		m.ProgressPercent = model.Percent(m.ProcessedChunks, total)
		return nil
	})
	if err != nil {
		return err
	}

	for i := item.ProcessedChunks; i < total; i++ {
		current, ok := t.items.Get(r.itemID)
		if !ok {
			return fmt.Errorf("execute %s: %w", r.itemID, ErrItemNotFound)
		}
		if current.UserPaused() {
			t.logger.Info("transcription paused by user", "item_id", r.itemID, "processed", i, "total", total)
			return nil
		}
		if current.Status != model.StatusProcessing {
			t.logger.Info("transcription no longer processing", "item_id", r.itemID, "status", current.Status)
			return nil
		}

		t.setProgress(r.itemID, model.Percent(i, total))

		key, ok := t.creds.Get()
		if !ok {
			t.fail(r, model.StatusPaused, model.ErrorCodeCredentialMissing, ErrCredentialMissing)
			return ErrCredentialMissing
		}

		chunk, err := t.decoder.Encode(ctx, r.sourcePath, windows[i])
		if err != nil {
			t.fail(r, model.StatusPaused, model.ErrorCodeSource, err)
			return fmt.Errorf("encode chunk %d: %w", i, err)
		}

		text, err := t.policy.Do(ctx, t.models, func(ctx context.Context, modelName string) (string, error) {
			return t.provider.Transcribe(ctx, stt.Request{
				Audio:    chunk.Data,
				MimeType: chunk.MimeType,
				Model:    modelName,
				APIKey:   key,
			})
		})
		if err != nil {
			code := model.ErrorCodeRemote
			if ctx.Err() != nil {
				code = model.ErrorCodeInterrupted
			}
			t.fail(r, model.StatusPaused, code, err)
			return fmt.Errorf("transcribe chunk %d: %w", i, err)
		}

		r.transcript += text + " "
		if err := t.checkpoint(r, i+1, total); err != nil {
			return err
		}
	}

	return t.complete(ctx, r, total)
}

// checkpoint commits chunk done-1 as durably part of the transcript.
func (t *Transcriber) checkpoint(r *run, done, total int) error {
	name := fmt.Sprintf("%s (in progress %d/%d)", model.StageRaw.Label(), done, total)
	item, err := t.items.Update(r.itemID, func(m *model.MediaItem) error {
		if err := m.PatchVersion(r.rawID, r.transcript, name); err != nil {
			return err
		}
		m.ProcessedChunks = done
		m.ProgressPercent = model.Percent(done, total)
		return nil
	})
	if err != nil {
		return fmt.Errorf("checkpoint %s chunk %d: %w", r.itemID, done-1, err)
	}
	t.publish(events.Event{ItemID: r.itemID, Type: events.TypeProgress, Status: item.Status, Progress: item.ProgressPercent, VersionID: r.rawID})
	return nil
}

func (t *Transcriber) complete(ctx context.Context, r *run, total int) error {
	item, err := t.items.Update(r.itemID, func(m *model.MediaItem) error {
		// A pause that arrives after the last checkpoint has nothing left to stop.
		if m.UserPaused() {
			if err := m.Transition(model.StatusProcessing); err != nil {
				return err
			}
		}
		if err := m.FinalizeVersion(r.rawID, r.transcript, model.StageRaw.Label()); err != nil {
			return err
		}
		if err := m.SetCurrentVersion(r.rawID); err != nil {
			return err
		}
		if err := m.Transition(model.StatusCompleted); err != nil {
			return err
		}
		m.ProcessedChunks = total
		m.ProgressPercent = 100
		return nil
	})
	if err != nil {
		return fmt.Errorf("complete %s: %w", r.itemID, err)
	}

	t.logger.Info("transcription completed", "item_id", r.itemID, "chunks", total, "chars", len(r.transcript))
	t.publish(events.Event{ItemID: r.itemID, Type: events.TypeStatus, Status: item.Status, Progress: 100, VersionID: r.rawID})

	if t.saver != nil {
		if err := t.saver.Save(ctx, item); err != nil {
			t.logger.Error("save after transcription failed", "item_id", r.itemID, "error", err)
		}
	}
	return nil
}

// fail records a stop reason. Checkpointed progress is kept.
func (t *Transcriber) fail(r *run, status model.Status, code string, cause error) {
	msg := displayError(cause)
	item, err := t.items.Update(r.itemID, func(m *model.MediaItem) error {
		m.SetError(code, msg)
		return m.Transition(status)
	})
	if err != nil {
		t.logger.Error("failed to record transcription error", "item_id", r.itemID, "error", err)
		return
	}
	t.logger.Warn("transcription stopped", "item_id", r.itemID, "status", item.Status, "code", code, "error", cause)
	t.publish(events.Event{ItemID: r.itemID, Type: events.TypeError, Status: item.Status, Progress: item.ProgressPercent, Message: msg})
}

func (t *Transcriber) setProgress(id string, percent int) {
	item, err := t.items.Update(id, func(m *model.MediaItem) error {
		m.ProgressPercent = percent
		return nil
	})
	if err != nil {
		return
	}
	t.publish(events.Event{ItemID: id, Type: events.TypeProgress, Status: item.Status, Progress: percent})
}

func (t *Transcriber) publish(e events.Event) {
	if t.bus != nil {
		t.bus.Publish(e)
	}
}
