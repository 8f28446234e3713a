// Package crawler implements the link-following traversal: a breadth-first
// walk from the start URL that admits every new same-site link one level
// deeper than the page it was found on, bounded by a depth and a global URL
// cap. Subdomains and GET parameters are recorded along the way.
package crawler

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/links"
	"github.com/soda-recon/soda/pkg/request"
	"github.com/soda-recon/soda/pkg/resolver"
	"github.com/soda-recon/soda/pkg/result"
	"github.com/soda-recon/soda/pkg/scope"
	"github.com/soda-recon/soda/pkg/telemetry"
)

// crawlDelayAgent is matched against robots.txt groups for Crawl-delay.
const crawlDelayAgent = "Mozilla"

// Config holds crawler configuration
type Config struct {
	// StartURL is where the crawl begins
	StartURL string

	// MaxDepth is the deepest link level that is still expanded into
	MaxDepth int

	// MaxURLs stops the crawl once this many URLs are known
	MaxURLs int

	// ExcludedPaths are case-insensitive path substrings never crawled
	ExcludedPaths []string

	// IncludeRobots seeds robots.txt Allow/Disallow paths at level 1
	IncludeRobots bool

	// IncludeSitemaps seeds sitemap URLs at level 1
	IncludeSitemaps bool

	// HonorCrawlDelay raises the session delay to the robots.txt Crawl-delay
	HonorCrawlDelay bool

	// Opener creates the session of the run (default request.NewOpener(request.Config{}))
	Opener request.Opener

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// DefaultConfig returns default crawler configuration
func DefaultConfig() *Config {
	return &Config{
		MaxDepth: defaults.MaxDepth,
		MaxURLs:  defaults.MaxURLsCrawler,
	}
}

// Crawler performs one link-following traversal.
type Crawler struct {
	config *Config
	logger *slog.Logger
}

// New creates a crawler. Zero limits fall back to the defaults.
func New(config *Config) *Crawler {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaults.MaxDepth
	}
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = defaults.MaxURLsCrawler
	}
	if cfg.Opener == nil {
		cfg.Opener = request.NewOpener(request.Config{Logger: cfg.Logger, Metrics: cfg.Metrics})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		config: &cfg,
		logger: logger.With(slog.String("module", defaults.ModuleCrawler)),
	}
}

// Target is the start URL.
func (c *Crawler) Target() string { return c.config.StartURL }

// entry is one frontier slot.
type entry struct {
	url   string
	level int
}

// state is everything one run mutates. It never outlives Run.
type state struct {
	scope      *scope.Scope
	known      map[string]int
	visited    map[string]struct{}
	frontier   []entry
	params     *result.ParamIndex
	subdomains result.SubdomainSet
	pages      int
}

func newState(sc *scope.Scope, start string) *state {
	return &state{
		scope:      sc,
		known:      map[string]int{start: 0},
		visited:    make(map[string]struct{}),
		frontier:   []entry{{url: start, level: 0}},
		params:     result.NewParamIndex(defaults.MaxParamValues),
		subdomains: result.SubdomainSet{},
	}
}

func (s *state) pop() entry {
	e := s.frontier[0]
	s.frontier[0] = entry{}
	s.frontier = s.frontier[1:]
	return e
}

// admit classifies a discovered link and queues it at level when it is a
// new, in-scope page of the target site.
func (s *state) admit(link string, level int) bool {
	u, err := url.Parse(link)
	if err != nil || !scope.IsHTTP(u) {
		return false
	}
	switch s.scope.ClassifyURL(u) {
	case scope.Subdomain:
		s.subdomains.Add(scope.SubdomainName(u))
		return false
	case scope.Foreign:
		return false
	}

	s.params.Record(u)
	canonical := scope.Canonical(link)
	if _, ok := s.known[canonical]; ok {
		return false
	}
	if s.scope.Excluded(canonical) || s.scope.OutsideStartPath(canonical) {
		return false
	}
	s.known[canonical] = level
	s.frontier = append(s.frontier, entry{url: canonical, level: level})
	return true
}

// Run crawls the target. It always returns a result: cancellation and the
// URL cap yield a partial one, a start failure yields result.Failed.
func (c *Crawler) Run(ctx context.Context) *result.TraversalResult {
	ctx, span := telemetry.Tracer().Start(ctx, "crawler.run")
	defer span.End()

	start := scope.StartURL(c.config.StartURL)
	sc, err := scope.New(start, c.config.ExcludedPaths)
	if err != nil {
		c.logger.Error("invalid start URL", slog.String("url", c.config.StartURL), slog.String("error", err.Error()))
		return result.Failed(c.config.StartURL, c.config.ExcludedPaths, err)
	}
	client, err := c.config.Opener()
	if err != nil {
		err = fmt.Errorf("crawler: open session: %w", err)
		c.logger.Error("cannot open session", slog.String("error", err.Error()))
		return result.Failed(c.config.StartURL, c.config.ExcludedPaths, err)
	}
	defer client.Close()

	c.logger.Info("crawl started",
		slog.String("url", start),
		slog.Int("max_depth", c.config.MaxDepth),
		slog.Int("max_urls", c.config.MaxURLs),
	)
	st := newState(sc, start)

	res := resolver.New(client, c.logger)
	robots, hasRobots := res.FetchRobots(ctx, start)
	sitemaps := res.ResolveSitemaps(ctx, start, robots)
	if hasRobots && c.config.HonorCrawlDelay {
		c.honorCrawlDelay(client, robots)
	}
	if hasRobots && c.config.IncludeRobots {
		added := 0
		for _, p := range resolver.RobotsPaths(start, robots) {
			if st.admit(p, 1) {
				added++
			}
		}
		c.logger.Info("robots.txt paths queued", slog.Int("count", added))
	}
	if c.config.IncludeSitemaps && len(sitemaps.URLs) > 0 {
		added := 0
		for _, u := range sitemaps.URLs {
			if st.admit(u, 1) {
				added++
			}
		}
		c.logger.Info("sitemap URLs queued", slog.Int("count", added))
	}

	status := c.crawl(ctx, client, st)

	out := c.buildResult(st, status, hasRobots, start, sitemaps.Sitemaps)
	c.config.Metrics.ObserveTraversal(telemetry.TraversalSummary{
		Engine:          defaults.ModuleCrawler,
		URLs:            out.URLsDiscovered,
		Subdomains:      len(out.Subdomains),
		MaxDepthReached: out.MaxDepthReached,
	})
	span.SetAttributes(
		attribute.String("soda.status", string(status)),
		attribute.Int("soda.urls", out.URLsDiscovered),
		attribute.Int("soda.pages", st.pages),
	)
	return out
}

// crawl drains the frontier.
func (c *Crawler) crawl(ctx context.Context, client request.Client, st *state) result.Status {
	delay := request.ExpectedDelay(client)

	for len(st.frontier) > 0 {
		if ctx.Err() != nil {
			c.logger.Warn("crawl cancelled", slog.Int("urls", len(st.known)))
			return result.StatusCancelled
		}
		if len(st.known) >= c.config.MaxURLs {
			c.logger.Warn("URL limit reached", slog.Int("max_urls", c.config.MaxURLs))
			c.logger.Warn("narrow the crawl: exclude large directories with -E, map specific sections, or lower -D")
			return result.StatusLimitReached
		}

		e := st.pop()
		if _, seen := st.visited[e.url]; seen {
			continue
		}
		if st.scope.Excluded(e.url) || st.scope.OutsideStartPath(e.url) {
			continue
		}

		resp, err := client.Fetch(ctx, e.url, http.MethodGet)
		st.visited[e.url] = struct{}{}
		st.pages++
		if err != nil {
			continue
		}
		if e.level >= c.config.MaxDepth {
			continue
		}
		if !resp.IsHTML() {
			c.logger.Debug("skipping non-HTML response", slog.String("url", e.url))
			continue
		}

		for _, link := range links.Extract(resp.Body, resp.URL, false) {
			if ctx.Err() != nil {
				break
			}
			st.admit(link, e.level+1)
		}

		pending := len(st.frontier)
		c.logger.Info("page crawled",
			slog.Int("pages", st.pages),
			slog.Int("depth", e.level),
			slog.Int("pending", pending),
			slog.Duration("eta", (time.Duration(pending)*delay).Round(time.Second)),
		)
	}
	return result.StatusCompleted
}

func (c *Crawler) buildResult(st *state, status result.Status, hasRobots bool, start string, sitemaps []string) *result.TraversalResult {
	type ranked struct {
		url   string
		level int
	}
	ordered := make([]ranked, 0, len(st.known))
	maxLevel := 0
	for u, level := range st.known {
		ordered = append(ordered, ranked{u, level})
		maxLevel = max(maxLevel, level)
	}
	slices.SortFunc(ordered, func(a, b ranked) int {
		return cmp.Or(cmp.Compare(a.level, b.level), cmp.Compare(a.url, b.url))
	})
	urls := make([]string, len(ordered))
	for i, r := range ordered {
		urls[i] = r.url
	}

	var robotsURL *string
	if hasRobots {
		u := resolver.RobotsURL(start)
		robotsURL = &u
	}

	out := &result.TraversalResult{
		URLs:            urls,
		Truncated:       []string{},
		URLsDiscovered:  len(urls),
		MaxDepthReached: maxLevel,
		ExcludedPaths:   append([]string{}, c.config.ExcludedPaths...),
		BaseURL:         c.config.StartURL,
		Subdomains:      st.subdomains.Sorted(),
		RobotsTxt:       robotsURL,
		Sitemaps:        append([]string{}, sitemaps...),
		GetParams:       st.params.Map(),
		Status:          status,
	}

	switch status {
	case result.StatusCancelled:
		c.logger.Warn("crawl interrupted", slog.Int("urls", len(urls)))
	case result.StatusLimitReached:
		c.logger.Warn("crawl partial", slog.Int("urls", len(urls)))
	default:
		c.logger.Info("crawl completed", slog.Int("urls", len(urls)))
	}
	c.logger.Info("pages explored", slog.Int("pages", st.pages))
	if len(out.Subdomains) > 0 {
		c.logger.Info("subdomains detected", slog.Int("count", len(out.Subdomains)))
	}
	return out
}

func (c *Crawler) honorCrawlDelay(client request.Client, robots string) {
	d := resolver.CrawlDelay(robots, crawlDelayAgent)
	if d <= 0 {
		return
	}
	if p, ok := client.(request.Paced); ok {
		p.Limiter().RaiseBaseDelay(d)
		c.logger.Info("honoring robots.txt crawl-delay", slog.Duration("delay", d))
	}
}
