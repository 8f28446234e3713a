// Package retry provides the backoff engine used by the request layer.
//
// The delay before attempt n+1 is BaseDelay × 2^(n-1): with the defaults a
// fetch is tried three times with 2s and 4s pauses in between. No delay
// follows the final attempt.
//
// Usage:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func(attempt int) error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return err
//	    }
//	    if resp.StatusCode < 500 {
//	        return retry.Stop(errClient)
//	    }
//	    return errServer
//	})
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/duration"
)

// ErrExhausted is returned (wrapping the last failure) when every attempt failed.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Config controls retry behaviour.
type Config struct {
	MaxAttempts int           // Total attempts (including the first). 0 means no-op.
	BaseDelay   time.Duration // Delay before the second attempt.
	MaxDelay    time.Duration // Upper bound on any single delay. 0 means unbounded.

	// OnRetry, if set, is called before every backoff sleep with the
	// 1-indexed attempt that just failed.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Sleeper waits between attempts. Nil uses a timer.
	Sleeper Sleeper
}

// DefaultConfig returns the request layer defaults: 3 attempts, 2s base.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: defaults.MaxRetries,
		BaseDelay:   duration.BackoffBase,
		MaxDelay:    duration.BackoffMax,
	}
}

// StopError wraps an error to signal that retrying should stop immediately.
// Use this when the caller knows the error is permanent (e.g. 4xx HTTP status).
type StopError struct {
	Err error
}

func (e *StopError) Error() string { return e.Err.Error() }
func (e *StopError) Unwrap() error { return e.Err }

// Stop wraps err so that Do returns it without further retries.
func Stop(err error) error {
	return &StopError{Err: err}
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper is the production Sleeper.
type TimerSleeper struct{}

// Sleep implements Sleeper.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do executes fn up to cfg.MaxAttempts times, sleeping between failures.
// fn receives the 1-indexed attempt number. It returns nil on the first
// successful call. If fn returns a StopError, Do returns the wrapped error
// without retrying. When all attempts fail the last error is returned
// wrapped in ErrExhausted. Context cancellation returns ctx.Err().
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	if cfg.MaxAttempts <= 0 {
		return nil
	}
	s := cfg.Sleeper
	if s == nil {
		s = TimerSleeper{}
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		var stop *StopError
		if errors.As(lastErr, &stop) {
			return stop.Err
		}

		if attempt < cfg.MaxAttempts {
			delay := CalcDelay(cfg, attempt)
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, delay, lastErr)
			}
			if err := s.Sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return errors.Join(ErrExhausted, lastErr)
}

// CalcDelay computes the sleep after the given failed attempt (1-indexed):
// BaseDelay × 2^(attempt-1), capped at MaxDelay.
func CalcDelay(cfg Config, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if cfg.MaxDelay > 0 && delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
