// Package engine runs the chunked transcription loop and text stages over
// live media items.
package engine

import (
	"context"
	"errors"
	"unicode/utf8"

	"audioscribe/internal/audio"
	"audioscribe/internal/model"
)

var (
	ErrCredentialMissing = errors.New("access credential is missing")
	ErrSourceUnavailable = errors.New("audio source is unavailable")
	ErrItemNotFound      = errors.New("media item not found")
	ErrAlreadyRunning    = errors.New("item is already processing")
	ErrNeedsDecision     = errors.New("item has prior progress: continue or restart")
	ErrAlreadyCompleted  = errors.New("transcription already completed")
	ErrNotProcessing     = errors.New("item is not processing")
	ErrInvalidStage      = errors.New("invalid stage request")
)

// Decision answers the continue-or-restart question for items with progress.
type Decision int

const (
	DecisionContinue Decision = iota + 1
	DecisionRestart
)

// Decider is asked when a non-resume start finds prior progress.
type Decider func(ctx context.Context, item model.MediaItem) (Decision, error)

// Always returns a Decider with a fixed answer.
func Always(d Decision) Decider {
	return func(context.Context, model.MediaItem) (Decision, error) { return d, nil }
}

// StartOptions controls a transcription start.
type StartOptions struct {
	Resume bool
	Decide Decider
}

// Decoder reads durations and encoded windows from a local source.
type Decoder interface {
	Check(path string) error
	Probe(ctx context.Context, path string) (float64, error)
	Encode(ctx context.Context, path string, w audio.Window) (audio.Chunk, error)
}

// Credentials supplies the current API key.
type Credentials interface {
	Get() (string, bool)
}

// Saver persists an item snapshot.
type Saver interface {
	Save(ctx context.Context, item model.MediaItem) error
}

const maxErrorLen = 300

// displayError shortens an error message for item state.
func displayError(err error) string {
	msg := err.Error()
	if utf8.RuneCountInString(msg) <= maxErrorLen {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:maxErrorLen]) + "..."
}
