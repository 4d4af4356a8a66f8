package orchestrator

import (
	"context"
	"time"
)

// Backoff returns the pause after a failed attempt (1-based).
type Backoff interface {
	GetDelay(attempt int) time.Duration
}

// LinearBackoff waits Step * attempt, capped at Max.
type LinearBackoff struct {
	Step time.Duration
	Max  time.Duration
}

// DefaultBackoff returns 2s, 4s, 5s, 5s, ...
func DefaultBackoff() LinearBackoff {
	return LinearBackoff{Step: 2 * time.Second, Max: 5 * time.Second}
}

// GetDelay calculates delay: Step * attempt
func (b LinearBackoff) GetDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := b.Step * time.Duration(attempt)
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
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
