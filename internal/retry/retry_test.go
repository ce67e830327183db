package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskmill/taskmill/internal/types"
)

func fastPolicy(attempts uint64) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		MaxElapsed:  time.Second,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &types.TransientError{Op: "list", Err: errors.New("http 503")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return &types.TransientError{Op: "list", Err: errors.New("http 502")}
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (max attempts)", calls)
	}
	if !types.IsTransient(err) {
		t.Errorf("exhausted error should stay transient, got %v", err)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("malformed response body")
	err := fastPolicy(5).Do(context.Background(), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("err = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent error)", calls)
	}
}

func TestDoRetriesBareNetworkErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return errors.New("read tcp: connection reset by peer")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoHonorsCooldownHint(t *testing.T) {
	const hint = 60 * time.Millisecond
	calls := 0
	start := time.Now()
	err := fastPolicy(2).Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &types.TransientError{Op: "list", RetryAfter: hint, Err: errors.New("http 429")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < hint-10*time.Millisecond {
		t.Errorf("retried after %v, want at least the %v cooldown", elapsed, hint)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Policy{
		MaxAttempts: 10,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
		MaxElapsed:  time.Minute,
	}.Do(ctx, func() error {
		calls++
		cancel()
		return &types.TransientError{Op: "list", Err: errors.New("http 503")}
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (canceled during first backoff)", calls)
	}
}
