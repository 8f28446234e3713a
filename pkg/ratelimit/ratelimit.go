// Package ratelimit paces requests of a single session so traffic looks
// like a person browsing: every request after the first waits a fixed base
// delay plus uniform random jitter. An optional requests-per-second ceiling
// (golang.org/x/time/rate) can be layered on top.
//
// Waiting is done in short steps so a cancelled traversal stops within one
// poll interval.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/soda-recon/soda/pkg/duration"
)

// Config holds pacing configuration
type Config struct {
	// BaseDelay is the fixed part of every inter-request delay
	BaseDelay time.Duration

	// JitterMin and JitterMax bound the uniform random extra delay
	JitterMin time.Duration
	JitterMax time.Duration

	// RequestsPerSecond is a hard ceiling applied after the jittered delay (0 = none)
	RequestsPerSecond float64

	// Burst for the ceiling limiter (default 1)
	Burst int

	// PollInterval is the largest single sleep step (default duration.SleepPoll)
	PollInterval time.Duration

	// Sleeper performs the individual sleep steps. Nil uses a timer.
	Sleeper Sleeper

	// Float64 returns a uniform value in [0, 1). Nil uses math/rand/v2.
	Float64 func() float64
}

// DefaultConfig returns the browsing cadence: 1s + uniform(0.3s, 1s).
func DefaultConfig() Config {
	return Config{
		BaseDelay:    duration.DelayBase,
		JitterMin:    duration.JitterMin,
		JitterMax:    duration.JitterMax,
		PollInterval: duration.SleepPoll,
	}
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Limiter paces one session. It is safe for concurrent use, though the
// engines drive it from a single goroutine.
type Limiter struct {
	config  Config
	ceiling *rate.Limiter

	mu        sync.Mutex
	started   bool
	baseDelay time.Duration
	waited    time.Duration
	waits     int
}

// New creates a limiter. Zero PollInterval falls back to duration.SleepPoll.
func New(cfg Config) *Limiter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = duration.SleepPoll
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = timerSleeper{}
	}
	if cfg.Float64 == nil {
		cfg.Float64 = rand.Float64
	}
	if cfg.JitterMax < cfg.JitterMin {
		cfg.JitterMin, cfg.JitterMax = cfg.JitterMax, cfg.JitterMin
	}

	l := &Limiter{config: cfg, baseDelay: cfg.BaseDelay}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		l.ceiling = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return l
}

// Wait blocks until the next request may be sent. The first call of a
// limiter returns immediately. On cancellation ctx.Err() is returned and
// the caller should not send the request.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	first := !l.started
	l.started = true
	var delay time.Duration
	if !first {
		delay = l.nextDelayLocked()
	}
	l.mu.Unlock()

	if delay > 0 {
		if err := l.sleep(ctx, delay); err != nil {
			return err
		}
		l.mu.Lock()
		l.waited += delay
		l.waits++
		l.mu.Unlock()
	}

	if l.ceiling != nil {
		return l.ceiling.Wait(ctx)
	}
	return ctx.Err()
}

// sleep waits d in PollInterval steps, checking ctx between steps.
func (l *Limiter) sleep(ctx context.Context, d time.Duration) error {
	for remaining := d; remaining > 0; {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := min(remaining, l.config.PollInterval)
		if err := l.config.Sleeper.Sleep(ctx, step); err != nil {
			return err
		}
		remaining -= step
	}
	return ctx.Err()
}

func (l *Limiter) nextDelayLocked() time.Duration {
	spread := l.config.JitterMax - l.config.JitterMin
	jitter := l.config.JitterMin + time.Duration(l.config.Float64()*float64(spread))
	return l.baseDelay + jitter
}

// RaiseBaseDelay lifts the base delay to at least d. Used to honor a
// robots.txt Crawl-delay.
func (l *Limiter) RaiseBaseDelay(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d > l.baseDelay {
		l.baseDelay = d
	}
}

// ExpectedDelay is the mean delay between requests under the current settings.
func (l *Limiter) ExpectedDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.baseDelay + (l.config.JitterMin+l.config.JitterMax)/2
}

// Stats returns pacing statistics
type Stats struct {
	Waits        int
	TotalWaited  time.Duration
	AverageDelay time.Duration
}

// Stats reports how much time the limiter has spent waiting so far.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Stats{Waits: l.waits, TotalWaited: l.waited}
	if l.waits > 0 {
		s.AverageDelay = l.waited / time.Duration(l.waits)
	}
	return s
}
