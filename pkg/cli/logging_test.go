package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soda-recon/soda/pkg/jsonutil"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

func (b *syncBuffer) String() string { return string(b.Bytes()) }

func TestNewLogger_ConsoleLevels(t *testing.T) {
	tests := []struct {
		name                string
		opts                LogOptions
		wantDebug, wantInfo bool
	}{
		{"default", LogOptions{}, false, true},
		{"verbose", LogOptions{Verbose: true}, true, true},
		{"silent", LogOptions{Silent: true, Verbose: true}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var console syncBuffer
			tt.opts.Console = &console
			logger, closeFn, err := NewLogger(tt.opts)
			require.NoError(t, err)
			defer closeFn()

			logger.Debug("debug line")
			logger.Info("info line", slog.String("url", "http://site.test/"))
			logger.Warn("warn line")

			out := console.String()
			assert.Equal(t, tt.wantDebug, bytes.Contains([]byte(out), []byte("debug line")))
			assert.Equal(t, tt.wantInfo, bytes.Contains([]byte(out), []byte("info line")))
			assert.Contains(t, out, "warn line")
			assert.NotContains(t, out, "time=")
		})
	}
}

func TestNewLogger_File(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports", "site.test")
	var console syncBuffer
	logger, closeFn, err := NewLogger(LogOptions{Console: &console, Dir: dir})
	require.NoError(t, err)

	logger.With(slog.String("module", "crawler")).Debug("fetching", slog.Int("depth", 2))
	logger.Info("done")
	require.NoError(t, closeFn())

	assert.NotContains(t, console.String(), "fetching", "debug stays out of the console")

	f, err := os.Open(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, jsonutil.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 2)
	assert.Equal(t, "fetching", records[0]["msg"])
	assert.Equal(t, "crawler", records[0]["module"])
	assert.Equal(t, "DEBUG", records[0]["level"])
	assert.Contains(t, records[0], "time")
	assert.Equal(t, "done", records[1]["msg"])
}

func TestNewLogger_BadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, _, err := NewLogger(LogOptions{Dir: filepath.Join(file, "sub")})
	assert.Error(t, err)
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestFanout(t *testing.T) {
	var a, b syncBuffer
	h := Fanout(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	ctx := context.Background()
	assert.True(t, h.Enabled(ctx, slog.LevelDebug))

	logger := slog.New(h).WithGroup("req").With(slog.String("id", "7"))
	logger.Info("only b")
	logger.Error("both")

	assert.NotContains(t, a.String(), "only b")
	assert.Contains(t, a.String(), "both")
	assert.Contains(t, b.String(), "only b")
	assert.Contains(t, b.String(), "req.id=7")

	quiet := Fanout(slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelError}))
	assert.False(t, quiet.Enabled(ctx, slog.LevelInfo))

	var c syncBuffer
	broken := Fanout(failingHandler{slog.NewTextHandler(&c, nil)}, slog.NewTextHandler(&c, nil))
	err := slog.New(broken).Handler().Handle(ctx, slog.NewRecord(time.Time{}, slog.LevelInfo, "x", 0))
	assert.EqualError(t, err, "sink down")
	assert.Contains(t, c.String(), "msg=x", "other handlers still receive the record")
}
