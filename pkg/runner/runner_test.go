package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soda-recon/soda/pkg/result"
	"github.com/soda-recon/soda/pkg/testutil"
)

type fakeTraverser struct {
	run func(ctx context.Context) *result.TraversalResult
}

func (f fakeTraverser) Run(ctx context.Context) *result.TraversalResult { return f.run(ctx) }
func (fakeTraverser) Target() string                                   { return "http://site.test/" }

func TestStart_DeliversResult(t *testing.T) {
	tracker := testutil.TrackGoroutines()
	want := &result.TraversalResult{BaseURL: "http://site.test/", Status: result.StatusCompleted}

	h := Start(context.Background(), fakeTraverser{run: func(context.Context) *result.TraversalResult {
		return want
	}}, nil)

	testutil.AssertTimeout(t, "wait", 2*time.Second, func() {
		<-h.Done()
	})
	got := h.Wait()
	assert.Same(t, want, got.Result)
	assert.GreaterOrEqual(t, got.Duration, time.Duration(0))
	assert.Same(t, want, h.Wait().Result, "Wait can be called again")

	tracker.CheckLeaks(t, 0)
}

func TestStart_DoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	h := Start(context.Background(), fakeTraverser{run: func(context.Context) *result.TraversalResult {
		<-release
		return &result.TraversalResult{}
	}}, nil)

	select {
	case <-h.Done():
		t.Fatal("traversal finished before it was released")
	default:
	}
	close(release)
	assert.NotNil(t, h.Wait().Result)
}

func TestStart_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := Start(ctx, fakeTraverser{run: func(ctx context.Context) *result.TraversalResult {
		<-ctx.Done()
		return &result.TraversalResult{Status: result.StatusCancelled}
	}}, nil)

	cancel()
	assert.Equal(t, result.StatusCancelled, h.Wait().Result.Status)
}

func TestStart_RecoversPanic(t *testing.T) {
	h := Start(context.Background(), fakeTraverser{run: func(context.Context) *result.TraversalResult {
		panic("frontier corrupted")
	}}, nil)

	res := h.Wait().Result
	require.NotNil(t, res)
	assert.False(t, res.OK())
	assert.Equal(t, result.StatusFailed, res.Status)
	assert.Equal(t, "http://site.test/", res.BaseURL)
	assert.Contains(t, *res.Error, "frontier corrupted")
	assert.Contains(t, *res.Error, ErrPanic.Error())
}

func TestStart_NilResult(t *testing.T) {
	h := Start(context.Background(), fakeTraverser{run: func(context.Context) *result.TraversalResult {
		return nil
	}}, nil)

	res := h.Wait().Result
	require.NotNil(t, res)
	assert.Equal(t, ErrNoResult.Error(), *res.Error)
}
