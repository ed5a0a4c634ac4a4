// Package retry wraps fallible operations with exponential backoff.
package retry

import (
	"context"
	"time"
)

// Policy controls how many attempts are made and how long to wait between
// them. Delay grows geometrically and is capped at MaxDelay.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Default mirrors the workflow configuration defaults.
func Default() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

// sleep is stubbed in tests so backoff timing is asserted without waiting.
var sleep = sleepContext

// Execute runs op up to p.MaxAttempts times, waiting between attempts.
// The error from the final attempt is returned unchanged so callers can
// match on sentinel causes. Context cancellation aborts the wait and
// returns the context error.
func Execute(ctx context.Context, p Policy, op func() error) error {
	p = p.normalized()

	var lastErr error
	delay := p.InitialDelay
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
