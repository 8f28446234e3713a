package telemetry

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest(OutcomeSuccess, time.Second)
		m.ObserveRetry()
		m.ObserveTraversal(TraversalSummary{Engine: "crawler"})
	})
	assert.Nil(t, m.Registry())
	_, err := m.Serve(ServerOptions{Addr: "127.0.0.1:0"})
	assert.Error(t, err)
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ObserveRequest(OutcomeSuccess, 120*time.Millisecond)
	m.ObserveRequest(OutcomeSuccess, 80*time.Millisecond)
	m.ObserveRequest(OutcomeServerError, time.Second)
	m.ObserveRetry()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(OutcomeServerError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retriesTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(m.requestSeconds))
}

func TestMetrics_ObserveTraversal(t *testing.T) {
	m := NewMetrics()
	m.ObserveTraversal(TraversalSummary{Engine: "discoverer", URLs: 42, Truncated: 2, Subdomains: 3, MaxDepthReached: 3})

	assert.Equal(t, 42.0, testutil.ToFloat64(m.urlsDiscovered.WithLabelValues("discoverer")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.truncatedDirs.WithLabelValues("discoverer")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.subdomains.WithLabelValues("discoverer")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.maxDepth.WithLabelValues("discoverer")))
}

func TestServer_ServesRegistry(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest(OutcomeSuccess, time.Millisecond)

	srv, err := m.Serve(ServerOptions{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer srv.Close()

	resp, err := http.Get(srv.URL())
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "soda_requests_total")

	require.NoError(t, srv.Close())
	assert.NoError(t, srv.Close(), "second close is a no-op")
}

func TestSetupTracing_RequiresEndpoint(t *testing.T) {
	_, err := SetupTracing(context.Background(), TracingOptions{})
	assert.Error(t, err)
}

func TestTracer_NoopByDefault(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "test")
	defer span.End()
	assert.NotNil(t, span)
}
