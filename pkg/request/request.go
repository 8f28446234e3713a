// Package request is the anti-detection request layer shared by the
// traversal engines.
//
// A Session holds one TLS fingerprint for its whole life, draws a fresh
// User-Agent per fetch, sends the previously fetched page as Referer, paces
// requests through a ratelimit.Limiter and retries transient failures with
// exponential backoff. Fetches are meant to be issued sequentially.
//
// Usage:
//
//	s, err := request.Open(request.Config{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	resp, err := s.Fetch(ctx, "https://example.com/", http.MethodGet)
package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/duration"
	"github.com/soda-recon/soda/pkg/fingerprint"
	"github.com/soda-recon/soda/pkg/iohelper"
	"github.com/soda-recon/soda/pkg/ratelimit"
	"github.com/soda-recon/soda/pkg/retry"
	"github.com/soda-recon/soda/pkg/telemetry"
)

// Config configures a Session.
type Config struct {
	// Timeout bounds a single attempt (default duration.RequestDefault).
	Timeout time.Duration

	// MaxRetries is the total number of attempts per fetch (default defaults.MaxRetries).
	MaxRetries int

	// BackoffBase is the delay before the second attempt (default duration.BackoffBase).
	BackoffBase time.Duration

	// Throttle paces requests. Nil uses ratelimit.DefaultConfig().
	Throttle *ratelimit.Config

	// Fingerprint supplies the TLS profile and User-Agents (default fingerprint.DefaultPool()).
	Fingerprint fingerprint.Provider

	// Proxy routes requests through an HTTP or SOCKS5 proxy.
	Proxy *url.URL

	// SkipVerify disables certificate verification.
	SkipVerify bool

	// MaxBodySize bounds the bytes read per response (default defaults.MaxBodySize).
	MaxBodySize int64

	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	// Transport replaces the fingerprinted transport. Tests use it.
	Transport http.RoundTripper

	// Sleeper waits between retry attempts. Nil uses a timer.
	Sleeper retry.Sleeper
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = duration.RequestDefault
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = duration.BackoffBase
	}
	if c.Throttle == nil {
		throttle := ratelimit.DefaultConfig()
		c.Throttle = &throttle
	}
	if c.Fingerprint == nil {
		c.Fingerprint = fingerprint.DefaultPool()
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = defaults.MaxBodySize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Response is a fetched page.
type Response struct {
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Header     http.Header

	// Body is the response body decoded to UTF-8.
	Body string
}

// IsHTML reports whether the response declares an HTML or XHTML body.
func (r *Response) IsHTML() bool {
	if r == nil {
		return false
	}
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// Client is the fetch capability the engines depend on.
type Client interface {
	// Fetch requests rawURL. A nil error means a response below 400.
	Fetch(ctx context.Context, rawURL, method string) (*Response, error)
	Close() error
}

// Paced is implemented by clients that expose their throttle.
type Paced interface {
	Limiter() *ratelimit.Limiter
}

// ExpectedDelay is the mean pause between requests of c. Clients that are
// not Paced are assumed to use the default cadence.
func ExpectedDelay(c Client) time.Duration {
	if p, ok := c.(Paced); ok {
		return p.Limiter().ExpectedDelay()
	}
	return duration.DelayBase + (duration.JitterMin+duration.JitterMax)/2
}

// Opener creates the Client of one traversal.
type Opener func() (Client, error)

// NewOpener returns an Opener creating Sessions from cfg.
func NewOpener(cfg Config) Opener {
	return func() (Client, error) {
		return Open(cfg)
	}
}

var _ Paced = (*Session)(nil)

// Session is one browsing identity. Create it with Open and release it with Close.
type Session struct {
	config  Config
	client  *http.Client
	limiter *ratelimit.Limiter
	profile *fingerprint.Profile
	logger  *slog.Logger

	mu      sync.Mutex
	history []string
	closed  bool
}

// Open creates a session. The TLS profile is chosen here and kept until Close.
func Open(cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()

	profile := cfg.Fingerprint.SessionProfile()
	if profile == nil {
		return nil, fmt.Errorf("request: %w", fingerprint.ErrEmptyPool)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = fingerprint.NewTransport(profile, fingerprint.TransportOptions{
			Proxy:      cfg.Proxy,
			SkipVerify: cfg.SkipVerify,
		})
	}

	s := &Session{
		config:  cfg,
		limiter: ratelimit.New(*cfg.Throttle),
		profile: profile,
		logger:  cfg.Logger,
	}
	s.client = &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= defaults.MaxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}

	s.logger.Debug("session opened",
		slog.String("tls_profile", profile.Name),
		slog.Bool("proxy", cfg.Proxy != nil),
	)
	return s, nil
}

// Limiter exposes the session throttle.
func (s *Session) Limiter() *ratelimit.Limiter { return s.limiter }

// Profile is the TLS profile of the session.
func (s *Session) Profile() *fingerprint.Profile { return s.profile }

// Close releases idle connections. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.CloseIdleConnections()
	s.logger.Debug("session closed", slog.String("tls_profile", s.profile.Name))
	return nil
}

// Fetch requests rawURL after the throttle delay, retrying transient
// failures. A 4xx returns a *StatusError matching ErrClientStatus without
// retrying. When attempts run out the error matches ErrUnreachable.
// Cancellation returns ctx.Err().
func (s *Session) Fetch(ctx context.Context, rawURL, method string) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}

	ctx, span := telemetry.Tracer().Start(ctx, "request.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("url.full", rawURL),
			attribute.String("tls.profile", s.profile.Name),
		),
	)
	defer span.End()

	if err := s.limiter.Wait(ctx); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return nil, err
	}

	agent := s.config.Fingerprint.UserAgent()
	referer := s.referer(rawURL)

	var resp *Response
	attempts := 0
	cfg := retry.Config{
		MaxAttempts: s.config.MaxRetries,
		BaseDelay:   s.config.BackoffBase,
		MaxDelay:    duration.BackoffMax,
		Sleeper:     s.config.Sleeper,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			s.config.Metrics.ObserveRetry()
			s.logger.Debug("retrying request",
				slog.String("url", rawURL),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
				slog.String("error", err.Error()),
			)
		},
	}
	err := retry.Do(ctx, cfg, func(attempt int) error {
		attempts = attempt
		r, err := s.attempt(ctx, rawURL, method, agent, referer)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	span.SetAttributes(attribute.Int("http.attempts", attempts))

	switch {
	case err == nil:
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		s.remember(rawURL)
		return resp, nil
	case ctx.Err() != nil:
		span.SetStatus(codes.Error, "cancelled")
		return nil, ctx.Err()
	case errors.Is(err, ErrClientStatus):
		var se *StatusError
		if errors.As(err, &se) {
			span.SetAttributes(attribute.Int("http.status_code", se.StatusCode))
		}
		s.logger.Debug("client error", slog.String("url", rawURL), slog.String("error", err.Error()))
		return nil, err
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "unreachable")
		s.logger.Debug("giving up on URL",
			slog.String("url", rawURL),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, rawURL, err)
	}
}

// attempt performs one request. Errors that must not be retried are
// wrapped with retry.Stop.
func (s *Session) attempt(ctx context.Context, rawURL, method, agent, referer string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, retry.Stop(fmt.Errorf("request: build %s: %w", rawURL, err))
	}
	for k, v := range defaults.SessionHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", agent)
	req.Header.Set("Referer", referer)

	start := time.Now()
	httpResp, err := s.client.Do(req)
	if err != nil {
		s.config.Metrics.ObserveRequest(telemetry.OutcomeNetwork, time.Since(start))
		if ctx.Err() != nil || errors.Is(err, ErrTooManyRedirects) {
			return nil, retry.Stop(err)
		}
		return nil, err
	}
	defer iohelper.DrainAndClose(httpResp.Body)

	switch {
	case httpResp.StatusCode >= 500:
		s.config.Metrics.ObserveRequest(telemetry.OutcomeServerError, time.Since(start))
		return nil, &StatusError{URL: rawURL, StatusCode: httpResp.StatusCode}
	case httpResp.StatusCode >= 400:
		s.config.Metrics.ObserveRequest(telemetry.OutcomeClientError, time.Since(start))
		return nil, retry.Stop(&StatusError{URL: rawURL, StatusCode: httpResp.StatusCode})
	}

	raw, err := iohelper.ReadBody(httpResp.Body, s.config.MaxBodySize)
	if err != nil {
		s.config.Metrics.ObserveRequest(telemetry.OutcomeNetwork, time.Since(start))
		if ctx.Err() != nil {
			return nil, retry.Stop(err)
		}
		return nil, fmt.Errorf("request: read body of %s: %w", rawURL, err)
	}
	s.config.Metrics.ObserveRequest(telemetry.OutcomeSuccess, time.Since(start))

	contentType := httpResp.Header.Get("Content-Type")
	body := string(raw)
	if isText(contentType) {
		body = iohelper.DecodeBody(raw, contentType, s.logger)
	}
	return &Response{
		URL:        httpResp.Request.URL.String(),
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

// isText reports whether a body of contentType should be charset-decoded.
func isText(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	return strings.HasPrefix(mediaType, "text/") || strings.Contains(mediaType, "xml") || strings.Contains(mediaType, "html")
}

// referer is the last successfully fetched URL, or the root of rawURL.
func (s *Session) referer(rawURL string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.history); n > 0 {
		return s.history[n-1]
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

func (s *Session) remember(rawURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, rawURL)
	if len(s.history) > defaults.RefererHistory {
		s.history = s.history[len(s.history)-defaults.RefererHistory:]
	}
}

// History returns the remembered referer URLs, oldest first.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}
