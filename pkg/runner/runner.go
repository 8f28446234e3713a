// Package runner runs one traversal on its own goroutine and hands the
// result back over a channel, so callers can keep serving signals, metrics
// or other work while the traversal blocks on the network.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/soda-recon/soda/pkg/result"
)

// Traverser is a traversal engine.
type Traverser interface {
	// Run traverses until done, capped or cancelled and always returns a
	// well-formed result.
	Run(ctx context.Context) *result.TraversalResult

	// Target is the start URL, used for the failure record.
	Target() string
}

// Outcome is the delivered result with its wall-clock duration.
type Outcome struct {
	Result   *result.TraversalResult
	Duration time.Duration
}

// Handle tracks a started traversal.
type Handle struct {
	done    chan struct{}
	outcome Outcome
}

// Start runs t on a new goroutine. A panic inside t is recovered into a
// failed result carrying ErrPanic.
func Start(ctx context.Context, t Traverser, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handle{done: make(chan struct{})}

	go func() {
		start := time.Now()
		var res *result.TraversalResult
		defer func() {
			if r := recover(); r != nil {
				logger.Error("traversal panicked",
					slog.String("target", t.Target()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				res = result.Failed(t.Target(), nil, fmt.Errorf("%w: %v", ErrPanic, r))
			}
			if res == nil {
				res = result.Failed(t.Target(), nil, ErrNoResult)
			}
			h.outcome = Outcome{Result: res, Duration: time.Since(start)}
			close(h.done)
		}()
		res = t.Run(ctx)
	}()
	return h
}

// Done is closed once the result is available.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the traversal ends and returns its outcome. It may be
// called any number of times.
func (h *Handle) Wait() Outcome {
	<-h.done
	return h.outcome
}
