// Package cli holds the process-level plumbing of the soda command: signal
// handling and log routing.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soda-recon/soda/pkg/defaults"
)

// SignalContext returns a context cancelled on SIGINT/SIGTERM. The engines
// stop at their next cancellation check and return a partial result. If a
// second signal arrives during gracePeriod, the process exits with
// defaults.ExitInterrupted.
//
// Usage:
//
//	ctx, cancel := cli.SignalContext(context.Background(), duration.GracePeriod, os.Stderr)
//	defer cancel()
func SignalContext(parent context.Context, gracePeriod time.Duration, w io.Writer) (context.Context, context.CancelFunc) {
	return signalContextWithNotifier(parent, gracePeriod, w, nil, nil)
}

// signalContextWithNotifier is the internal implementation for testing.
// sigChan, if non-nil, overrides the real signal channel.
// exitFn, if non-nil, overrides os.Exit for testing.
func signalContextWithNotifier(
	parent context.Context,
	gracePeriod time.Duration,
	w io.Writer,
	sigChan chan os.Signal,
	exitFn func(int),
) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	ownChannel := sigChan == nil
	if ownChannel {
		sigChan = make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	}
	if exitFn == nil {
		exitFn = os.Exit
	}
	if w == nil {
		w = io.Discard
	}

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Interrupt received, saving partial results (press Ctrl+C again to abort)...")
			cancel()

			select {
			case <-sigChan:
				exitFn(defaults.ExitInterrupted)
			case <-time.After(gracePeriod):
			}
		case <-ctx.Done():
		}
		if ownChannel {
			signal.Stop(sigChan)
		}
	}()

	return ctx, cancel
}
