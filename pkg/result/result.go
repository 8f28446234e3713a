// Package result defines the record a traversal hands to the report sink and
// the incremental indexes the engines fill while they run.
package result

import (
	"maps"
	"net/url"
	"slices"
	"strings"
)

// Status describes how a traversal ended.
type Status string

const (
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
	StatusLimitReached Status = "limit_reached"
	StatusFailed       Status = "failed"
)

// Param is one observed GET parameter occurrence: [value, path].
type Param [2]string

// Value is the decoded parameter value.
func (p Param) Value() string { return p[0] }

// Path is the path of the URL the parameter was seen on.
func (p Param) Path() string { return p[1] }

// TraversalResult is the terminal record of one traversal. It is built once
// when the run ends and never mutated afterwards.
type TraversalResult struct {
	URLs            []string            `json:"urls"`
	URLsByLevel     map[string][]string `json:"urls_by_level,omitzero"`
	Truncated       []string            `json:"truncated"`
	URLsDiscovered  int                 `json:"urls_discovered"`
	MaxDepthReached int                 `json:"max_depth_reached"`
	ExcludedPaths   []string            `json:"excluded_paths"`
	BaseURL         string              `json:"base_url"`
	Subdomains      []string            `json:"subdomains"`
	RobotsTxt       *string             `json:"robots_txt"`
	Sitemaps        []string            `json:"sitemaps"`
	GetParams       map[string][]Param  `json:"get_params"`
	Status          Status              `json:"status"`
	Error           *string             `json:"error"`
}

// Failed is the record of a traversal that could not start: only the base
// URL, the configured exclusions and the error are set, every other
// collection is empty.
func Failed(baseURL string, excluded []string, err error) *TraversalResult {
	msg := err.Error()
	return &TraversalResult{
		URLs:          []string{},
		Truncated:     []string{},
		ExcludedPaths: append([]string{}, excluded...),
		BaseURL:       baseURL,
		Subdomains:    []string{},
		Sitemaps:      []string{},
		GetParams:     map[string][]Param{},
		Status:        StatusFailed,
		Error:         &msg,
	}
}

// OK reports whether the traversal produced a usable record.
func (r *TraversalResult) OK() bool {
	return r != nil && r.Error == nil
}

// Partial reports whether the traversal stopped before exhausting its frontier.
func (r *TraversalResult) Partial() bool {
	return r != nil && (r.Status == StatusCancelled || r.Status == StatusLimitReached)
}

// ParamIndex records GET parameters seen in links: name -> at most limit
// distinct (value, path) pairs, kept in observation order.
type ParamIndex struct {
	limit  int
	values map[string][]Param
}

// NewParamIndex returns an index capped at limit pairs per name.
func NewParamIndex(limit int) *ParamIndex {
	return &ParamIndex{limit: limit, values: make(map[string][]Param)}
}

// Record adds the query parameters of u. Pairs without a value are ignored.
func (p *ParamIndex) Record(u *url.URL) {
	if u == nil || u.RawQuery == "" {
		return
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	for _, kv := range strings.Split(u.RawQuery, "&") {
		rawName, rawValue, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		name, err := url.QueryUnescape(rawName)
		if err != nil || name == "" {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil || value == "" {
			continue
		}
		p.add(name, Param{value, path})
	}
}

func (p *ParamIndex) add(name string, pair Param) {
	current := p.values[name]
	if len(current) >= p.limit || slices.Contains(current, pair) {
		return
	}
	p.values[name] = append(current, pair)
}

// Len is the number of distinct parameter names.
func (p *ParamIndex) Len() int { return len(p.values) }

// Map returns a copy of the index.
func (p *ParamIndex) Map() map[string][]Param {
	out := make(map[string][]Param, len(p.values))
	for name, pairs := range p.values {
		out[name] = slices.Clone(pairs)
	}
	return out
}

// SubdomainSet collects subdomain hostnames.
type SubdomainSet map[string]struct{}

// Add records host.
func (s SubdomainSet) Add(host string) {
	if host != "" {
		s[host] = struct{}{}
	}
}

// Sorted returns the hostnames in lexical order.
func (s SubdomainSet) Sorted() []string {
	out := slices.Sorted(maps.Keys(s))
	if out == nil {
		out = []string{}
	}
	return out
}
