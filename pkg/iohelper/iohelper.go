// Package iohelper provides helper functions for I/O operations,
// particularly for safely reading and decoding HTTP response bodies.
package iohelper

import (
	"bytes"
	"io"
	"log/slog"

	"golang.org/x/net/html/charset"
)

// Standard body size limits
const (
	// SmallMaxBodySize is for robots.txt and error pages (512KB)
	SmallMaxBodySize int64 = 512 * 1024

	// DefaultMaxBodySize is for pages and sitemaps (10MB)
	DefaultMaxBodySize int64 = 10 * 1024 * 1024
)

// ReadBody reads from an io.Reader with a size limit.
// If r is nil, returns empty slice and no error.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadBodyDefault reads from an io.Reader with the default 10MB limit.
func ReadBodyDefault(r io.Reader) ([]byte, error) {
	return ReadBody(r, DefaultMaxBodySize)
}

// DecodeBody converts body to UTF-8 using the charset declared in
// contentType, falling back to <meta> sniffing and then to the raw bytes.
//
// Usage:
//
//	raw, _ := iohelper.ReadBodyDefault(resp.Body)
//	text := iohelper.DecodeBody(raw, resp.Header.Get("Content-Type"), logger)
func DecodeBody(body []byte, contentType string, logger *slog.Logger) string {
	if len(body) == 0 {
		return ""
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		if logger != nil {
			logger.Debug("charset detection failed", slog.String("content_type", contentType), slog.String("error", err.Error()))
		}
		return string(body)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

// DrainAndClose reads any remaining data from r and closes it if it's a ReadCloser.
// This ensures the connection can be reused for HTTP keep-alive.
// Always returns nil error to allow use in defer.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}

	// Drain remaining data (limited to 64KB to prevent DoS)
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))

	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}
