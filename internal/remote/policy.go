// Package remote wraps calls to remote models with per-model retries and
// ordered model fallback.
package remote

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Default retry settings.
const (
	DefaultAttempts  = 3
	DefaultBaseDelay = time.Second
)

// Call performs one request against a single model.
type Call func(ctx context.Context, model string) (string, error)

// Policy retries each candidate model with exponential backoff before
// moving to the next one.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns 3 attempts per model with 1s/2s/4s backoff.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  DefaultAttempts,
		BaseDelay: DefaultBaseDelay,
		Sleep:     sleepContext,
	}
}

// RemoteFailure is returned after every candidate has exhausted its attempts.
type RemoteFailure struct {
	Attempts   int
	Candidates []string
	Last       error
}

func (e *RemoteFailure) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("remote call failed after %d attempts across [%s]: %v",
		e.Attempts, strings.Join(e.Candidates, ", "), e.Last)
}

func (e *RemoteFailure) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Last
}

// Do runs call against each candidate in order. An empty result is a success.
// The total number of calls never exceeds Attempts * len(candidates).
func (p Policy) Do(ctx context.Context, candidates []string, call Call) (string, error) {
	models := Dedupe(candidates)
	if len(models) == 0 {
		return "", &RemoteFailure{Last: fmt.Errorf("no model candidates configured")}
	}

	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	total := 0
	var last error
	for mi, model := range models {
		for attempt := 0; attempt < attempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			total++
			text, err := call(ctx, model)
			if err == nil {
				return text, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			last = fmt.Errorf("model %s attempt %d: %w", model, attempt+1, err)

			finalOverall := mi == len(models)-1 && attempt == attempts-1
			if finalOverall {
				break
			}
			if err := sleep(ctx, p.BaseDelay<<attempt); err != nil {
				return "", err
			}
		}
	}

	return "", &RemoteFailure{Attempts: total, Candidates: models, Last: last}
}

// Dedupe drops blank and repeated model names, keeping first-seen order.
func Dedupe(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
