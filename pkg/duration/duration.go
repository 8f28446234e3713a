// Package duration provides canonical time constants for soda.
// Every timeout, delay, and polling interval used by the engines is defined
// here so that traversal pacing can be reasoned about in one place.
//
// Usage:
//
//	client.Timeout = duration.RequestDefault
//	throttle.Config{BaseDelay: duration.DelayBase}
//
// DO NOT use hardcoded time.Duration values like `5 * time.Second` in
// struct literals. Reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// HTTP REQUEST TIMEOUTS
// ============================================================================

const (
	// RequestDefault is the per-request timeout of a session (5s)
	RequestDefault = 5 * time.Second

	// RequestCLI is the per-request timeout the CLI starts from (10s)
	RequestCLI = 10 * time.Second

	// DialTimeout bounds TCP connect plus TLS handshake (10s)
	DialTimeout = 10 * time.Second

	// IdleConnTimeout is how long an idle keep-alive connection is kept (90s)
	IdleConnTimeout = 90 * time.Second
)

// ============================================================================
// THROTTLING
// ============================================================================
//
// Every request after the first in a session waits
// DelayBase + uniform(JitterMin, JitterMax).
// ============================================================================

const (
	// DelayBase is the fixed part of the inter-request delay (1s)
	DelayBase = 1 * time.Second

	// JitterMin is the lower bound of the random extra delay (300ms)
	JitterMin = 300 * time.Millisecond

	// JitterMax is the upper bound of the random extra delay (1s)
	JitterMax = 1 * time.Second

	// SleepPoll is the granularity at which throttle sleeps check for
	// cancellation (200ms)
	SleepPoll = 200 * time.Millisecond
)

// ============================================================================
// RETRY BACKOFF
// ============================================================================

const (
	// BackoffBase is the delay before the second attempt; it doubles for
	// every attempt after that (2s, 4s, 8s, ...)
	BackoffBase = 2 * time.Second

	// BackoffMax caps any single backoff delay (30s)
	BackoffMax = 30 * time.Second
)

// ============================================================================
// SHUTDOWN / TELEMETRY
// ============================================================================

const (
	// GracePeriod is how long a second interrupt is awaited before the
	// process is left to finish on its own (5s)
	GracePeriod = 5 * time.Second

	// TelemetryShutdown bounds exporter flush and metrics server shutdown (5s)
	TelemetryShutdown = 5 * time.Second

	// TelemetryConnect bounds the OTLP exporter connection attempt (10s)
	TelemetryConnect = 10 * time.Second

	// MetricsReadTimeout is the read timeout of the /metrics server (5s)
	MetricsReadTimeout = 5 * time.Second

	// MetricsWriteTimeout is the write timeout of the /metrics server (10s)
	MetricsWriteTimeout = 10 * time.Second
)
