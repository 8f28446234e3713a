// Package telemetry exposes Prometheus metrics and OpenTelemetry traces for
// the request layer and the traversal engines.
//
// All Metrics methods are safe on a nil receiver so engines can run without
// a registry.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soda-recon/soda/pkg/duration"
)

// Request outcomes used as the "outcome" label.
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeServerError = "server_error"
	OutcomeNetwork     = "network_error"
)

// Metrics holds the soda collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal  *prometheus.CounterVec
	retriesTotal   prometheus.Counter
	requestSeconds *prometheus.HistogramVec

	urlsDiscovered *prometheus.GaugeVec
	truncatedDirs  *prometheus.GaugeVec
	subdomains     *prometheus.GaugeVec
	maxDepth       *prometheus.GaugeVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soda_requests_total",
			Help: "HTTP request attempts by outcome",
		},
		[]string{"outcome"},
	)
	m.retriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soda_retries_total",
		Help: "Backoff retries issued by the request layer",
	})
	m.requestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soda_request_duration_seconds",
			Help:    "Request latency distribution in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"outcome"},
	)
	m.urlsDiscovered = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soda_urls_discovered",
			Help: "URLs in the latest traversal result",
		},
		[]string{"engine"},
	)
	m.truncatedDirs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soda_truncated_directories",
			Help: "Directories collapsed into a wildcard marker",
		},
		[]string{"engine"},
	)
	m.subdomains = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soda_subdomains",
			Help: "Distinct subdomains observed in links",
		},
		[]string{"engine"},
	)
	m.maxDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soda_max_depth_reached",
			Help: "Deepest level reached by the latest traversal",
		},
		[]string{"engine"},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.retriesTotal,
		m.requestSeconds,
		m.urlsDiscovered,
		m.truncatedDirs,
		m.subdomains,
		m.maxDepth,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one request attempt.
func (m *Metrics) ObserveRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveRetry records one backoff retry.
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

// TraversalSummary is what the engines report once a run ends.
type TraversalSummary struct {
	Engine          string
	URLs            int
	Truncated       int
	Subdomains      int
	MaxDepthReached int
}

// ObserveTraversal records the outcome of a traversal.
func (m *Metrics) ObserveTraversal(s TraversalSummary) {
	if m == nil {
		return
	}
	m.urlsDiscovered.WithLabelValues(s.Engine).Set(float64(s.URLs))
	m.truncatedDirs.WithLabelValues(s.Engine).Set(float64(s.Truncated))
	m.subdomains.WithLabelValues(s.Engine).Set(float64(s.Subdomains))
	m.maxDepth.WithLabelValues(s.Engine).Set(float64(s.MaxDepthReached))
}

// ServerOptions configures the metrics endpoint.
type ServerOptions struct {
	// Addr to listen on, e.g. ":9090" or "127.0.0.1:0".
	Addr string

	// Path for the metrics endpoint (default: "/metrics").
	Path string

	Logger *slog.Logger
}

// Server serves a Metrics registry over HTTP.
type Server struct {
	srv  *http.Server
	addr string
	path string

	mu     sync.Mutex
	closed bool
}

// Serve starts the metrics endpoint. It returns once the listener is bound.
func (m *Metrics) Serve(opts ServerOptions) (*Server, error) {
	if m == nil {
		return nil, errors.New("telemetry: nil metrics")
	}
	if opts.Path == "" {
		opts.Path = "/metrics"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("telemetry: listen %s: %w", opts.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(opts.Path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	s := &Server{
		srv: &http.Server{
			Handler:      mux,
			ReadTimeout:  duration.MetricsReadTimeout,
			WriteTimeout: duration.MetricsWriteTimeout,
		},
		addr: ln.Addr().String(),
		path: opts.Path,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	return s, nil
}

// URL returns the metrics endpoint URL.
func (s *Server) URL() string {
	return "http://" + s.addr + s.path
}

// Close shuts the server down. Safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), duration.TelemetryShutdown)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
