// Package testutil provides shared test helpers for soda.
// An in-memory website for the traversal engines, goroutine leak
// detection and timeout assertions.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/soda-recon/soda/pkg/request"
)

// ErrFault is the sentinel error returned by fault injection helpers.
var ErrFault = errors.New("injected fault")

// Page is one resource of a Site.
type Page struct {
	Status      int
	ContentType string
	Body        string

	// Err makes every fetch of the page fail as unreachable.
	Err error
}

// HTML returns a 200 text/html page whose body links to every href.
func HTML(hrefs ...string) Page {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	for _, h := range hrefs {
		fmt.Fprintf(&b, "<a href=%q>%s</a>\n", h, h)
	}
	b.WriteString("</body></html>")
	return Page{Status: http.StatusOK, ContentType: "text/html; charset=utf-8", Body: b.String()}
}

// Text returns a 200 page with the given content type.
func Text(contentType, body string) Page {
	return Page{Status: http.StatusOK, ContentType: contentType, Body: body}
}

// Site is an in-memory website implementing request.Client. URLs without
// a page answer 404.
type Site struct {
	mu       sync.Mutex
	pages    map[string]Page
	requests []string
	closes   int

	// OnFetch runs before every fetch with the number of fetches so far.
	OnFetch func(n int, rawURL string)
}

// NewSite creates a site from absolute URL -> page.
func NewSite(pages map[string]Page) *Site {
	if pages == nil {
		pages = map[string]Page{}
	}
	return &Site{pages: pages}
}

// Set adds or replaces a page.
func (s *Site) Set(rawURL string, p Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[rawURL] = p
}

// Fetch implements request.Client.
func (s *Site) Fetch(ctx context.Context, rawURL, _ string) (*request.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.requests = append(s.requests, rawURL)
	n := len(s.requests)
	page, ok := s.pages[rawURL]
	hook := s.OnFetch
	s.mu.Unlock()

	if hook != nil {
		hook(n, rawURL)
	}
	if !ok {
		return nil, &request.StatusError{URL: rawURL, StatusCode: http.StatusNotFound}
	}
	if page.Err != nil {
		return nil, fmt.Errorf("%w: %s: %w", request.ErrUnreachable, rawURL, page.Err)
	}
	status := page.Status
	if status == 0 {
		status = http.StatusOK
	}
	if status >= 400 {
		return nil, &request.StatusError{URL: rawURL, StatusCode: status}
	}
	return &request.Response{
		URL:        rawURL,
		StatusCode: status,
		Header:     http.Header{"Content-Type": {page.ContentType}},
		Body:       page.Body,
	}, nil
}

// Close implements request.Client.
func (s *Site) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Opener hands out the site itself.
func (s *Site) Opener() request.Opener {
	return func() (request.Client, error) { return s, nil }
}

// Requests returns the fetched URLs in order.
func (s *Site) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Fetched reports whether rawURL was requested.
func (s *Site) Fetched(rawURL string) bool {
	for _, r := range s.Requests() {
		if r == rawURL {
			return true
		}
	}
	return false
}

// Closes is how many times Close was called.
func (s *Site) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// FailingOpener is an Opener that always fails with ErrFault.
func FailingOpener() request.Opener {
	return func() (request.Client, error) { return nil, ErrFault }
}

// GoroutineTracker captures goroutine count before/after a test to detect leaks.
type GoroutineTracker struct {
	before int
}

// TrackGoroutines snapshots the current goroutine count. Call CheckLeaks after.
func TrackGoroutines() *GoroutineTracker {
	runtime.Gosched()
	return &GoroutineTracker{before: runtime.NumGoroutine()}
}

// CheckLeaks waits briefly for goroutines to drain, then fails the test if
// more goroutines are running than when tracking started.
// tolerance allows N extra goroutines (for runtime jitter).
func (g *GoroutineTracker) CheckLeaks(t *testing.T, tolerance int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		runtime.Gosched()
		if runtime.NumGoroutine() <= g.before+tolerance {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	if after := runtime.NumGoroutine(); after > g.before+tolerance {
		t.Errorf("goroutine leak: before=%d after=%d tolerance=%d", g.before, after, tolerance)
	}
}

// AssertTimeout runs fn and fails if it doesn't complete within d.
func AssertTimeout(t *testing.T, name string, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s: timed out after %v (possible deadlock)", name, d)
	}
}
