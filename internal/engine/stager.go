package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"audioscribe/internal/ai"
	"audioscribe/internal/events"
	"audioscribe/internal/jobs"
	"audioscribe/internal/model"
	"audioscribe/internal/remote"
	"audioscribe/internal/storage"

	"github.com/google/uuid"
)

// FailureMarker replaces the content of a stage version whose call failed.
const FailureMarker = "[Processing failed. Run this stage again from the same or another version.]"

// StageRequest derives a new version from an existing one.
type StageRequest struct {
	Kind     model.StageKind
	ParentID string
	Prompt   string
}

// StagerDeps wires a Stager.
type StagerDeps struct {
	Items       *storage.Items
	Jobs        *jobs.Registry
	Bus         *events.Bus
	Transformer ai.Transformer
	Policy      remote.Policy
	Models      []string
	Credentials Credentials
	Saver       Saver
	Logger      *slog.Logger
	BaseContext context.Context
	// Tick is the cosmetic progress interval. Defaults to 700ms.
	Tick time.Duration
}

// Stager runs single-call text transformations over a parent version.
type Stager struct {
	items       *storage.Items
	jobs        *jobs.Registry
	bus         *events.Bus
	transformer ai.Transformer
	policy      remote.Policy
	models      []string
	creds       Credentials
	saver       Saver
	logger      *slog.Logger
	baseCtx     context.Context
	tick        time.Duration
	newID       func() string
	now         func() time.Time

	wg sync.WaitGroup
}

// NewStager creates a stager.
func NewStager(d StagerDeps) *Stager {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := d.BaseContext
	if base == nil {
		base = context.Background()
	}
	tick := d.Tick
	if tick <= 0 {
		tick = 700 * time.Millisecond
	}
	return &Stager{
		items:       d.Items,
		jobs:        d.Jobs,
		bus:         d.Bus,
		transformer: d.Transformer,
		policy:      d.Policy,
		models:      d.Models,
		creds:       d.Credentials,
		saver:       d.Saver,
		logger:      logger.With("component", "engine.Stager"),
		baseCtx:     base,
		tick:        tick,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

type stageRun struct {
	itemID    string
	versionID string
	req       StageRequest
	source    string
	apiKey    string
	release   func()
}

// Run executes the stage synchronously. An unknown parent is a no-op.
func (s *Stager) Run(ctx context.Context, itemID string, req StageRequest) (string, error) {
	r, err := s.prepare(itemID, req)
	if err != nil || r == nil {
		return "", err
	}
	defer r.release()
	return r.versionID, s.execute(ctx, r)
}

// Start claims synchronously and runs the remote call in the background.
// It returns the id of the placeholder version, or "" for a no-op.
func (s *Stager) Start(itemID string, req StageRequest) (string, error) {
	r, err := s.prepare(itemID, req)
	if err != nil || r == nil {
		return "", err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer r.release()
		if err := s.execute(s.baseCtx, r); err != nil {
			s.logger.Warn("stage failed", "item_id", itemID, "kind", req.Kind, "error", err)
		}
	}()
	return r.versionID, nil
}

// Wait blocks until every stage started with Start has returned.
func (s *Stager) Wait() {
	s.wg.Wait()
}

func (s *Stager) prepare(itemID string, req StageRequest) (*stageRun, error) {
	if !req.Kind.Valid() || req.Kind == model.StageRaw {
		return nil, fmt.Errorf("%w: stage kind %q", ErrInvalidStage, req.Kind)
	}
	if req.Kind == model.StageCustom && strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: custom stage requires a prompt", ErrInvalidStage)
	}
	key, ok := s.creds.Get()
	if !ok {
		return nil, ErrCredentialMissing
	}
	item, ok := s.items.Get(itemID)
	if !ok {
		return nil, fmt.Errorf("stage %s: %w", itemID, ErrItemNotFound)
	}
	parent, ok := item.VersionByID(req.ParentID)
	if !ok {
		s.logger.Debug("stage parent not found, ignoring", "item_id", itemID, "parent_id", req.ParentID)
		return nil, nil
	}
	if item.Status == model.StatusProcessing {
		return nil, fmt.Errorf("stage %s: %w", itemID, ErrAlreadyRunning)
	}

	release, err := s.jobs.Acquire(itemID, jobs.KindStage)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", itemID, ErrAlreadyRunning)
	}

	r := &stageRun{
		itemID:    itemID,
		versionID: s.newID(),
		req:       req,
		source:    parent.Content,
		apiKey:    key,
		release:   release,
	}
	v := model.Version{
		ID:          r.versionID,
		StageKind:   req.Kind,
		ParentID:    parent.ID,
		CreatedAt:   s.now(),
		DisplayName: req.Kind.Label() + " (processing...)",
	}
	if req.Kind == model.StageCustom {
		v.PromptUsed = strings.TrimSpace(req.Prompt)
	}

	claimed, err := s.items.Update(itemID, func(m *model.MediaItem) error {
		if m.Status == model.StatusProcessing {
			return ErrAlreadyRunning
		}
		if err := m.Transition(model.StatusProcessing); err != nil {
			return err
		}
		if err := m.AppendVersion(v, true); err != nil {
			return err
		}
		m.SetError("", "")
		m.ProgressPercent = 0
		return nil
	})
	if err != nil {
		release()
		return nil, fmt.Errorf("stage %s: %w", itemID, err)
	}

	s.logger.Info("stage started", "item_id", itemID, "kind", req.Kind, "parent_id", parent.ID, "version_id", r.versionID)
	s.publish(events.Event{ItemID: itemID, Type: events.TypeVersion, Status: claimed.Status, VersionID: r.versionID})
	return r, nil
}

func (s *Stager) execute(ctx context.Context, r *stageRun) error {
	done := make(chan struct{})
	var ticker sync.WaitGroup
	ticker.Add(1)
	go func() {
		defer ticker.Done()
		s.fakeProgress(r, done)
	}()

	text, err := s.policy.Do(ctx, s.models, func(ctx context.Context, modelName string) (string, error) {
		return s.transformer.Transform(ctx, ai.TransformRequest{
			Source: r.source,
			Kind:   r.req.Kind,
			Model:  modelName,
			Prompt: r.req.Prompt,
			APIKey: r.apiKey,
		})
	})
	close(done)
	ticker.Wait()

	if err != nil {
		msg := displayError(err)
		item, uerr := s.items.Update(r.itemID, func(m *model.MediaItem) error {
			if err := m.MarkVersionFailed(r.versionID, FailureMarker, r.req.Kind.Label()+" (failed)"); err != nil {
				return err
			}
			m.SetError(model.ErrorCodeRemote, msg)
			return m.Transition(model.StatusError)
		})
		if uerr != nil {
			s.logger.Error("failed to record stage failure", "item_id", r.itemID, "error", uerr)
		}
		s.publish(events.Event{ItemID: r.itemID, Type: events.TypeError, Status: item.Status, VersionID: r.versionID, Message: msg})
		return fmt.Errorf("stage %s on %s: %w", r.req.Kind, r.itemID, err)
	}

	item, err := s.items.Update(r.itemID, func(m *model.MediaItem) error {
		if err := m.FinalizeVersion(r.versionID, text, r.req.Kind.Label()); err != nil {
			return err
		}
		if err := m.Transition(model.StatusCompleted); err != nil {
			return err
		}
		m.ProgressPercent = 100
		return nil
	})
	if err != nil {
		return fmt.Errorf("finalize stage %s on %s: %w", r.req.Kind, r.itemID, err)
	}

	s.logger.Info("stage completed", "item_id", r.itemID, "kind", r.req.Kind, "chars", len(text))
	s.publish(events.Event{ItemID: r.itemID, Type: events.TypeVersion, Status: item.Status, Progress: 100, VersionID: r.versionID})

	if s.saver != nil {
		if err := s.saver.Save(ctx, item); err != nil {
			s.logger.Error("save after stage failed", "item_id", r.itemID, "error", err)
		}
	}
	return nil
}

// fakeProgress nudges the progress bar toward 95% while the call is outstanding.
func (s *Stager) fakeProgress(r *stageRun, done <-chan struct{}) {
	t := time.NewTicker(s.tick)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			item, err := s.items.Update(r.itemID, func(m *model.MediaItem) error {
				if m.Status != model.StatusProcessing || m.CurrentVersionID != r.versionID {
					return errStopProgress
				}
				m.ProgressPercent = nextFakeProgress(m.ProgressPercent)
				return nil
			})
			if err != nil {
				return
			}
			s.publish(events.Event{ItemID: r.itemID, Type: events.TypeProgress, Status: item.Status, Progress: item.ProgressPercent, VersionID: r.versionID})
		}
	}
}

var errStopProgress = errors.New("stop progress")

func nextFakeProgress(p int) int {
	if p >= 95 {
		return 95
	}
	next := p + (95-p)/8 + 1
	if next > 95 {
		next = 95
	}
	return next
}

func (s *Stager) publish(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
