// Package resolver fetches and parses the resources a site publishes about
// its own structure: robots.txt and XML sitemaps.
package resolver

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/soda-recon/soda/pkg/request"
)

var locRe = regexp.MustCompile(`(?i)<loc>\s*([^<]+)\s*</loc>`)

// Sitemaps is what ResolveSitemaps found.
type Sitemaps struct {
	// Sitemaps are the sitemap URLs that answered 200.
	Sitemaps []string

	// URLs are the <loc> entries of all sitemaps, first-seen order.
	URLs []string
}

// Resolver fetches robots.txt and sitemaps through a traversal's Client.
type Resolver struct {
	client request.Client
	logger *slog.Logger
}

// New creates a resolver using client for every fetch.
func New(client request.Client, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, logger: logger}
}

// origin is scheme://host of base, "" when base is not absolute.
func origin(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// RobotsURL is the robots.txt location for base.
func RobotsURL(base string) string {
	o := origin(base)
	if o == "" {
		return ""
	}
	return o + "/robots.txt"
}

// FetchRobots returns the robots.txt body of base's host when it answers 200
// with a non-blank body. A blank robots.txt counts as absent.
func (r *Resolver) FetchRobots(ctx context.Context, base string) (string, bool) {
	robotsURL := RobotsURL(base)
	if robotsURL == "" {
		return "", false
	}
	body, ok := r.get(ctx, robotsURL)
	if !ok || strings.TrimSpace(body) == "" {
		return "", false
	}
	r.logger.Debug("robots.txt found", slog.String("url", robotsURL))
	return body, true
}

// ResolveSitemaps fetches the sitemaps declared in robots, or the usual
// /sitemap.xml and /sitemap_index.xml when none are declared.
func (r *Resolver) ResolveSitemaps(ctx context.Context, base, robots string) Sitemaps {
	out := Sitemaps{Sitemaps: []string{}, URLs: []string{}}

	candidates := ExtractSitemapRefs(robots)
	if len(candidates) == 0 {
		o := origin(base)
		if o == "" {
			return out
		}
		candidates = []string{o + "/sitemap.xml", o + "/sitemap_index.xml"}
	}

	seen := make(map[string]struct{})
	for _, sitemapURL := range candidates {
		if ctx.Err() != nil {
			break
		}
		body, ok := r.get(ctx, sitemapURL)
		if !ok || body == "" {
			continue
		}
		out.Sitemaps = append(out.Sitemaps, sitemapURL)
		locs := ParseLocs(body)
		r.logger.Debug("sitemap parsed", slog.String("url", sitemapURL), slog.Int("locs", len(locs)))
		for _, loc := range locs {
			if _, dup := seen[loc]; dup {
				continue
			}
			seen[loc] = struct{}{}
			out.URLs = append(out.URLs, loc)
		}
	}
	return out
}

func (r *Resolver) get(ctx context.Context, rawURL string) (string, bool) {
	resp, err := r.client.Fetch(ctx, rawURL, http.MethodGet)
	if err != nil {
		r.logger.Debug("resource unavailable", slog.String("url", rawURL), slog.String("error", err.Error()))
		return "", false
	}
	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	return resp.Body, true
}

// ExtractSitemapRefs returns the values of "Sitemap:" lines (any case).
func ExtractSitemapRefs(robots string) []string {
	var refs []string
	for _, line := range strings.Split(robots, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < len("sitemap:") || !strings.EqualFold(line[:len("sitemap:")], "sitemap:") {
			continue
		}
		if ref := strings.TrimSpace(line[len("sitemap:"):]); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// ParseLocs extracts the <loc> values of a sitemap or sitemap index.
// Malformed XML yields whatever entries can be matched.
func ParseLocs(body string) []string {
	var locs []string
	for _, m := range locRe.FindAllStringSubmatch(body, -1) {
		if loc := strings.TrimSpace(m[1]); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs
}

// RobotsPaths turns the Allow and Disallow rules of robots into absolute
// URLs on base's host. Empty rules, "/" and rules starting with a wildcard
// are skipped; trailing "*" and "$" are trimmed.
func RobotsPaths(base, robots string) []string {
	o := origin(base)
	if o == "" {
		return nil
	}
	var paths []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(robots, "\n") {
		directive, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		directive = strings.ToLower(directive)
		if directive != "allow" && directive != "disallow" {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" || value == "/" || strings.HasPrefix(value, "*") {
			continue
		}
		value = strings.TrimSpace(strings.TrimRight(strings.TrimRight(value, "*"), "$"))
		if value == "" {
			continue
		}
		if !strings.HasPrefix(value, "/") {
			value = "/" + value
		}
		abs := o + value
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		paths = append(paths, abs)
	}
	return paths
}

// CrawlDelay is the Crawl-delay robots declares for agent, or 0.
func CrawlDelay(robots, agent string) time.Duration {
	if robots == "" {
		return 0
	}
	data, err := robotstxt.FromString(robots)
	if err != nil {
		return 0
	}
	group := data.FindGroup(agent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}
