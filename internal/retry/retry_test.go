package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	original := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = original })
	return &delays
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	delays := stubSleep(t)

	calls := 0
	err := Execute(context.Background(), Default(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if len(*delays) != 0 {
		t.Fatalf("no sleeps expected, got %v", *delays)
	}
}

func TestExecuteBackoffSequence(t *testing.T) {
	delays := stubSleep(t)

	boom := errors.New("portal unavailable")
	policy := Policy{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}

	calls := 0
	err := Execute(context.Background(), policy, func() error {
		calls++
		return boom
	})

	if !errors.Is(err, boom) {
		t.Fatalf("final error must be the original, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), *delays)
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Fatalf("sleep %d: expected %v, got %v", i, d, (*delays)[i])
		}
	}
}

func TestExecuteDelayCappedAtMax(t *testing.T) {
	delays := stubSleep(t)

	policy := Policy{MaxAttempts: 5, InitialDelay: 4 * time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}
	_ = Execute(context.Background(), policy, func() error {
		return errors.New("still failing")
	})

	want := []time.Duration{4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), *delays)
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Fatalf("sleep %d: expected %v, got %v", i, d, (*delays)[i])
		}
	}
}

func TestExecuteSucceedsAfterRetry(t *testing.T) {
	stubSleep(t)

	calls := 0
	err := Execute(context.Background(), Default(), func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestExecuteRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	original := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = original })

	calls := 0
	err := Execute(ctx, Default(), func() error {
		calls++
		return errors.New("failing")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("cancellation during backoff must stop attempts, got %d", calls)
	}
}
