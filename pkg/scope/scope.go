package scope

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrInvalidTarget is returned by New for URLs that cannot start a traversal.
var ErrInvalidTarget = errors.New("scope: invalid target URL")

// Relation classifies a URL against the target.
type Relation int

const (
	// Foreign URLs are off-domain and ignored.
	Foreign Relation = iota
	// SameSite URLs share the target host (after www. stripping) and are traversed.
	SameSite
	// Subdomain URLs are strict subdomains of the target's registrable domain;
	// they are recorded but never traversed.
	Subdomain
)

// Scope is the domain boundary and exclusion filter of one traversal.
type Scope struct {
	start       *url.URL
	host        string
	registrable string
	basePath    string
	excluded    []string
}

// New builds the scope for start. excluded are case-insensitive path substrings.
func New(start string, excluded []string) (*Scope, error) {
	u, err := url.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if !IsHTTP(u) {
		return nil, fmt.Errorf("%w: %q needs an http or https scheme and a host", ErrInvalidTarget, start)
	}

	s := &Scope{
		start:    u,
		host:     StripWWW(u.Host),
		basePath: strings.TrimRight(u.EscapedPath(), "/"),
	}
	s.registrable = registrableDomain(StripWWW(u.Hostname()))
	for _, e := range excluded {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			s.excluded = append(s.excluded, e)
		}
	}
	return s, nil
}

// StripWWW lowercases host and removes a leading "www.".
func StripWWW(host string) string {
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}

// registrableDomain is the eTLD+1 of hostname. IPs, single-label hosts and
// bare public suffixes fall back to the hostname itself.
func registrableDomain(hostname string) string {
	if hostname == "" || net.ParseIP(hostname) != nil || !strings.Contains(hostname, ".") {
		return hostname
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return hostname
	}
	return d
}

// Host is the target host:port without a leading "www.".
func (s *Scope) Host() string { return s.host }

// RegistrableDomain is the domain subdomains are matched against.
func (s *Scope) RegistrableDomain() string { return s.registrable }

// Root is scheme://host/ of the start URL.
func (s *Scope) Root() string {
	return s.start.Scheme + "://" + s.start.Host + "/"
}

// Classify relates rawURL to the target.
func (s *Scope) Classify(rawURL string) Relation {
	u, err := url.Parse(rawURL)
	if err != nil || !IsHTTP(u) {
		return Foreign
	}
	return s.ClassifyURL(u)
}

// ClassifyURL relates a parsed URL to the target.
func (s *Scope) ClassifyURL(u *url.URL) Relation {
	if StripWWW(u.Host) == s.host {
		return SameSite
	}
	hostname := StripWWW(u.Hostname())
	if hostname != s.registrable && strings.HasSuffix(hostname, "."+s.registrable) {
		return Subdomain
	}
	return Foreign
}

// SubdomainName is the value recorded for a subdomain URL: its host
// without a leading "www.".
func SubdomainName(u *url.URL) string {
	return StripWWW(u.Host)
}

// Excluded reports whether rawURL's path contains any excluded substring.
func (s *Scope) Excluded(rawURL string) bool {
	if len(s.excluded) == 0 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.EscapedPath())
	for _, e := range s.excluded {
		if strings.Contains(path, e) {
			return true
		}
	}
	return false
}

// OutsideStartPath reports whether a same-site rawURL lies outside the path
// the traversal started from. Other hosts are never outside.
func (s *Scope) OutsideStartPath(rawURL string) bool {
	if s.basePath == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || StripWWW(u.Host) != s.host {
		return false
	}
	return !strings.HasPrefix(u.EscapedPath(), s.basePath)
}
