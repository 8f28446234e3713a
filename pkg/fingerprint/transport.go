package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"

	"github.com/soda-recon/soda/pkg/duration"
)

// TransportOptions configures NewTransport.
type TransportOptions struct {
	// Proxy routes all requests through an HTTP or SOCKS5 proxy. Proxied
	// HTTPS uses the standard TLS stack because the tunnel is set up by
	// net/http.
	Proxy *url.URL

	SkipVerify bool
}

// NewTransport returns an http.Transport that performs every TLS handshake
// with profile's ClientHello. ALPN is pinned to http/1.1 so the connection
// stays usable by net/http's HTTP/1 client.
func NewTransport(profile *Profile, opts TransportOptions) *http.Transport {
	dialer := &net.Dialer{Timeout: duration.DialTimeout}

	t := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: duration.DialTimeout,
		IdleConnTimeout:     duration.IdleConnTimeout,
		MaxIdleConnsPerHost: 2,
		ForceAttemptHTTP2:   false,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: opts.SkipVerify}, //nolint:gosec // operator opt-in
	}
	if opts.Proxy != nil {
		t.Proxy = http.ProxyURL(opts.Proxy)
	}
	if profile != nil && profile.ClientHello != nil {
		t.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSWithProfile(ctx, dialer, network, addr, profile, opts.SkipVerify)
		}
	}
	return t
}

// dialTLSWithProfile establishes a TLS connection with the profile's ClientHello.
func dialTLSWithProfile(ctx context.Context, dialer *net.Dialer, network, addr string, profile *Profile, skipVerify bool) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	cfg := &utls.Config{
		ServerName:         host,
		InsecureSkipVerify: skipVerify, //nolint:gosec // operator opt-in
	}
	var uConn *utls.UConn
	if spec, err := utls.UTLSIdToSpec(*profile.ClientHello); err == nil {
		for _, ext := range spec.Extensions {
			if alpn, ok := ext.(*utls.ALPNExtension); ok {
				alpn.AlpnProtocols = []string{"http/1.1"}
			}
		}
		uConn = utls.UClient(conn, cfg, utls.HelloCustom)
		if err := uConn.ApplyPreset(&spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("fingerprint: apply %s: %w", profile.Name, err)
		}
	} else {
		// Randomized IDs have no fixed spec; they are registered without ALPN.
		uConn = utls.UClient(conn, cfg, *profile.ClientHello)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := uConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})
	return uConn, nil
}
