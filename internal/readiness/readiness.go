// Package readiness polls a probe at a fixed interval until it reports true
// or an attempt cap is reached.
package readiness

import (
	"context"
	"errors"
	"time"
)

var ErrNotReady = errors.New("readiness: gave up waiting")

type Options struct {
	Interval time.Duration
	Attempts int
}

// DefaultOptions waits at most five seconds.
var DefaultOptions = Options{Interval: 100 * time.Millisecond, Attempts: 50}

// Wait returns nil as soon as probe reports true. The probe is evaluated
// immediately, then once per interval, for at most opts.Attempts evaluations.
func Wait(ctx context.Context, probe func() bool, opts Options) error {
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions.Interval
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultOptions.Attempts
	}
	if probe() {
		return nil
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt < opts.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if probe() {
				return nil
			}
		}
	}
	return ErrNotReady
}
