package realtime

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff configures reconnection delays: Min doubled per attempt up to Max,
// each delay randomized by up to Jitter in either direction.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Jitter float64 // 0..1
}

// DefaultBackoff is 1s..5s with a 0.5 randomization factor.
func DefaultBackoff() Backoff {
	return Backoff{Min: time.Second, Max: 5 * time.Second, Jitter: 0.5}
}

// policy builds the delay schedule for one connection run. It yields at most
// maxAttempts delays and then backoff.Stop; Reset starts it over.
func (b Backoff) policy(clk backoff.Clock, maxAttempts int) backoff.BackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     b.Min,
		RandomizationFactor: b.Jitter,
		Multiplier:          2,
		MaxInterval:         b.Max,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               clk,
	}
	exp.Reset()
	return backoff.WithMaxRetries(exp, uint64(maxAttempts))
}
