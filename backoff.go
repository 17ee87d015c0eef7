package scclient

import (
	"math"
	"math/rand"
	"time"
)

// AutoReconnectOptions tunes the delay between reconnect attempts.
// Defaults match the reference client: a 10s base delay, up to 10s of
// jitter, a 1.5x multiplier per consecutive failure, capped at 60s.
type AutoReconnectOptions struct {
	InitialDelay time.Duration
	Randomness   time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultAutoReconnectOptions returns the reference client's defaults.
func DefaultAutoReconnectOptions() AutoReconnectOptions {
	return AutoReconnectOptions{
		InitialDelay: 10 * time.Second,
		Randomness:   10 * time.Second,
		Multiplier:   1.5,
		MaxDelay:     60 * time.Second,
	}
}

// backoff computes successive reconnect delays: each delay is
// InitialDelay plus a fresh random jitter of up to Randomness, scaled by
// Multiplier for each attempt since the last reset, capped at MaxDelay.
type backoff struct {
	opts     AutoReconnectOptions
	attempts int
}

func newBackoff(opts AutoReconnectOptions) *backoff {
	return &backoff{opts: opts}
}

// next returns the delay before the next reconnect attempt and advances
// the attempt counter.
func (b *backoff) next() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(b.opts.Randomness) + 1))
	base := b.opts.InitialDelay + jitter
	scaled := float64(base) * math.Pow(b.opts.Multiplier, float64(b.attempts))
	b.attempts++

	d := time.Duration(scaled)
	if d > b.opts.MaxDelay {
		d = b.opts.MaxDelay
	}
	return d
}

// reset zeroes the attempt counter after a successful connection.
func (b *backoff) reset() {
	b.attempts = 0
}
