package transport

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/danmuck/ipcril/internal/logging"
)

// Backoff controls how OpenWithRetry spaces its attempts.
type Backoff struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxAttempts  int
	Jitter       bool
}

func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		MaxAttempts:  5,
		Jitter:       true,
	}
}

// Delay returns the wait before attempt n (1-based). The first attempt
// waits InitialDelay.
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || b.InitialDelay <= 0 {
		return max(b.InitialDelay, 0)
	}
	mult := b.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	delay := float64(b.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// OpenWithRetry calls open until it succeeds, ctx ends or MaxAttempts is
// spent. Modem device nodes can appear late after a baseband reset.
func OpenWithRetry(ctx context.Context, open func(path string, baud int) (io.ReadWriteCloser, error), path string, baud int, b Backoff) (io.ReadWriteCloser, error) {
	log := logging.Component("transport")
	attempts := max(b.MaxAttempts, 1)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		rw, err := open(path, baud)
		if err == nil {
			return rw, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := b.Delay(attempt, rng)
		log.Warn().Err(err).Str("path", path).Int("attempt", attempt).Dur("retry_in", delay).Msg("link open failed")
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrOpen, path, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}
