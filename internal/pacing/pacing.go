// Package pacing provides the politeness primitives used between upstream requests:
// cancellable pauses, jittered delays and a minimum gap between proxy requests.
package pacing

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"golang.org/x/time/rate"
)

// Pauser blocks for a delay or until ctx is done.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration) error
}

// Timer is the real-clock Pauser.
type Timer struct{}

// Pause waits for delay and returns ctx.Err() if the context ends first.
func (Timer) Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Between returns a uniformly random duration in [lo, hi].
func Between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + randomJitter(hi-lo+1)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// Spacer enforces a minimum gap between consecutive requests.
type Spacer struct {
	limiter *rate.Limiter
}

// NewSpacer builds a Spacer allowing one request per gap. A non-positive gap never blocks.
func NewSpacer(gap time.Duration) *Spacer {
	if gap <= 0 {
		return &Spacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Spacer{limiter: rate.NewLimiter(rate.Every(gap), 1)}
}

// Wait blocks until the next request may start.
func (s *Spacer) Wait(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}
