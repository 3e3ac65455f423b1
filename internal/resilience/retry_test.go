package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func fastCfg(retries int) RetryConfig {
	return RetryConfig{Name: "test", MaxRetries: retries, Backoff: time.Millisecond}
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastCfg(2), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Retry returned %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRetryRecoversWithinBudget(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastCfg(2), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errBoom
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("RetryWithResult = %q, %v", got, err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastCfg(2), func() error {
		calls++
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Retry returned %v, want the last error", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3 (initial + 2 retries)", calls)
	}
}

func TestRetryAbortStopsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastCfg(5), func() error {
		calls++
		return Abort(errBoom)
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Retry returned %v, want the aborted error", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRetryAbortNil(t *testing.T) {
	if Abort(nil) != nil {
		t.Error("Abort(nil) != nil")
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, RetryConfig{MaxRetries: 5, Backoff: time.Minute}, func() error {
		calls++
		cancel()
		return errBoom
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry returned %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRetryOnRetryCallback(t *testing.T) {
	var retries []int
	cfg := fastCfg(2)
	cfg.OnRetry = func(retry int, err error) { retries = append(retries, retry) }

	_ = Retry(context.Background(), cfg, func() error { return errBoom })

	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("OnRetry calls = %v, want [1 2]", retries)
	}
}

func TestRetryDefaults(t *testing.T) {
	cfg := RetryConfig{}.withDefaults()
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.MaxRetries)
	}
	if cfg.Backoff != 500*time.Millisecond {
		t.Errorf("Backoff = %v, want 500ms", cfg.Backoff)
	}
}
