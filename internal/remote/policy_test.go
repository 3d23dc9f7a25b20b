package remote

import (
	"context"
	"errors"
	"testing"
	"time"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func testPolicy(rec *sleepRecorder) Policy {
	return Policy{Attempts: 3, BaseDelay: time.Second, Sleep: rec.sleep}
}

// TestDoAttemptCeiling checks the total call count when every call fails.
func TestDoAttemptCeiling(t *testing.T) {
	rec := &sleepRecorder{}
	var models []string
	boom := errors.New("503")

	_, err := testPolicy(rec).Do(context.Background(), []string{"a", "b"}, func(ctx context.Context, model string) (string, error) {
		models = append(models, model)
		return "", boom
	})

	var failure *RemoteFailure
	if !errors.As(err, &failure) {
		t.Fatalf("error = %v, want RemoteFailure", err)
	}
	if len(models) != 6 || failure.Attempts != 6 {
		t.Fatalf("calls = %d attempts = %d, want 6", len(models), failure.Attempts)
	}
	want := []string{"a", "a", "a", "b", "b", "b"}
	for i := range want {
		if models[i] != want[i] {
			t.Fatalf("call order = %v, want %v", models, want)
		}
	}
	if !errors.Is(err, boom) {
		t.Fatalf("failure does not wrap last error")
	}
	// No sleep after the very last attempt.
	wantDelays := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, time.Second, 2 * time.Second}
	if len(rec.delays) != len(wantDelays) {
		t.Fatalf("delays = %v, want %v", rec.delays, wantDelays)
	}
	for i := range wantDelays {
		if rec.delays[i] != wantDelays[i] {
			t.Fatalf("delays = %v, want %v", rec.delays, wantDelays)
		}
	}
}

// TestDoDedupesCandidates checks repeated and blank models are collapsed.
func TestDoDedupesCandidates(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	_, err := testPolicy(rec).Do(context.Background(), []string{"a", " ", "a", "b", "a"}, func(ctx context.Context, model string) (string, error) {
		calls++
		return "", errors.New("fail")
	})
	var failure *RemoteFailure
	if !errors.As(err, &failure) {
		t.Fatalf("error = %v, want RemoteFailure", err)
	}
	if calls != 6 {
		t.Fatalf("calls = %d, want 6", calls)
	}
	if len(failure.Candidates) != 2 || failure.Candidates[0] != "a" || failure.Candidates[1] != "b" {
		t.Fatalf("candidates = %v", failure.Candidates)
	}
}

// TestDoFallsBackToNextModel checks success on the second candidate.
func TestDoFallsBackToNextModel(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	text, err := testPolicy(rec).Do(context.Background(), []string{"primary", "backup"}, func(ctx context.Context, model string) (string, error) {
		calls++
		if model == "primary" {
			return "", errors.New("unavailable")
		}
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if text != "hello" || calls != 4 {
		t.Fatalf("text = %q calls = %d, want hello 4", text, calls)
	}
}

// TestDoEmptyResultIsSuccess checks an empty transcript is not retried.
func TestDoEmptyResultIsSuccess(t *testing.T) {
	calls := 0
	text, err := testPolicy(&sleepRecorder{}).Do(context.Background(), []string{"a"}, func(ctx context.Context, model string) (string, error) {
		calls++
		return "", nil
	})
	if err != nil || text != "" || calls != 1 {
		t.Fatalf("text = %q err = %v calls = %d", text, err, calls)
	}
}

// TestDoStopsOnCancel checks a cancelled context aborts without more calls.
func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := testPolicy(&sleepRecorder{}).Do(ctx, []string{"a", "b"}, func(ctx context.Context, model string) (string, error) {
		calls++
		cancel()
		return "", errors.New("interrupted")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

// TestDoNoCandidates checks an empty list fails without calling out.
func TestDoNoCandidates(t *testing.T) {
	_, err := DefaultPolicy().Do(context.Background(), nil, func(ctx context.Context, model string) (string, error) {
		t.Fatal("call should not run")
		return "", nil
	})
	var failure *RemoteFailure
	if !errors.As(err, &failure) || failure.Attempts != 0 {
		t.Fatalf("error = %v, want zero-attempt RemoteFailure", err)
	}
}
