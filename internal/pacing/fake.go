package pacing

import (
	"context"
	"sync"
	"time"
)

// Recorder is a Pauser that records requested delays without sleeping.
type Recorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

// Pause records delay and returns ctx.Err().
func (r *Recorder) Pause(ctx context.Context, delay time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, delay)
	r.mu.Unlock()
	return ctx.Err()
}

// Delays returns a copy of the recorded delays.
func (r *Recorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)
	return out
}

// Total returns the sum of the recorded delays.
func (r *Recorder) Total() time.Duration {
	var total time.Duration
	for _, d := range r.Delays() {
		total += d
	}
	return total
}
