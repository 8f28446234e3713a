// Package discovery implements the level-by-level structure discovery: the
// site is mapped one directory level at a time, links deeper than the level
// being expanded promote their ancestor directories, and directories with
// more than MaxChildren children are collapsed into a "parent/*" marker
// instead of being explored.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/links"
	"github.com/soda-recon/soda/pkg/request"
	"github.com/soda-recon/soda/pkg/resolver"
	"github.com/soda-recon/soda/pkg/result"
	"github.com/soda-recon/soda/pkg/runner"
	"github.com/soda-recon/soda/pkg/scope"
	"github.com/soda-recon/soda/pkg/telemetry"
)

var _ runner.Traverser = (*Discoverer)(nil)

// crawlDelayAgent is matched against robots.txt groups for Crawl-delay.
const crawlDelayAgent = "Mozilla"

// Config holds discoverer configuration
type Config struct {
	// StartURL is the root of the map
	StartURL string

	// MaxDepth is the deepest directory level listed. Pages at this level
	// are listed but not fetched.
	MaxDepth int

	// MaxChildren is the density threshold: a directory with more children
	// at one level, or more files, is truncated
	MaxChildren int

	// ExcludedPaths are case-insensitive path substrings never mapped
	ExcludedPaths []string

	// HonorCrawlDelay raises the session delay to the robots.txt Crawl-delay
	HonorCrawlDelay bool

	// Opener creates the session of the run (default request.NewOpener(request.Config{}))
	Opener request.Opener

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// DefaultConfig returns default discoverer configuration
func DefaultConfig() *Config {
	return &Config{
		MaxDepth:    defaults.MaxDepth,
		MaxChildren: defaults.MaxChildrenDiscoverer,
	}
}

// Discoverer performs one structure discovery.
type Discoverer struct {
	config *Config
	logger *slog.Logger
}

// New creates a discoverer. Zero limits fall back to the defaults.
func New(config *Config) *Discoverer {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaults.MaxDepth
	}
	if cfg.MaxChildren <= 0 {
		cfg.MaxChildren = defaults.MaxChildrenDiscoverer
	}
	if cfg.Opener == nil {
		cfg.Opener = request.NewOpener(request.Config{Logger: cfg.Logger, Metrics: cfg.Metrics})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		config: &cfg,
		logger: logger.With(slog.String("module", defaults.ModuleDiscoverer)),
	}
}

// Target is the start URL.
func (d *Discoverer) Target() string { return d.config.StartURL }

// Run maps the target. It always returns a result: cancellation yields a
// partial one, a start failure yields result.Failed.
func (d *Discoverer) Run(ctx context.Context) *result.TraversalResult {
	ctx, span := telemetry.Tracer().Start(ctx, "discovery.run")
	defer span.End()

	root := scope.StartURL(d.config.StartURL)
	sc, err := scope.New(root, d.config.ExcludedPaths)
	if err != nil {
		d.logger.Error("invalid start URL", slog.String("url", d.config.StartURL), slog.String("error", err.Error()))
		return d.failed(err)
	}
	client, err := d.config.Opener()
	if err != nil {
		err = fmt.Errorf("discovery: open session: %w", err)
		d.logger.Error("cannot open session", slog.String("error", err.Error()))
		return d.failed(err)
	}
	defer client.Close()

	d.logger.Info("discovery started",
		slog.String("url", root),
		slog.Int("max_depth", d.config.MaxDepth),
		slog.Int("max_children", d.config.MaxChildren),
	)
	st := newState(sc, root, d.config.MaxChildren)

	hasRobots, sitemaps := d.seed(ctx, client, st)
	status := d.walk(ctx, client, st)

	urls, byLevel, maxReached := st.assemble()
	var robotsURL *string
	if hasRobots {
		u := resolver.RobotsURL(root)
		robotsURL = &u
	}
	out := &result.TraversalResult{
		URLs:            urls,
		URLsByLevel:     byLevel,
		Truncated:       append([]string{}, st.truncated...),
		URLsDiscovered:  len(urls),
		MaxDepthReached: maxReached,
		ExcludedPaths:   append([]string{}, d.config.ExcludedPaths...),
		BaseURL:         d.config.StartURL,
		Subdomains:      st.subdomains.Sorted(),
		RobotsTxt:       robotsURL,
		Sitemaps:        append([]string{}, sitemaps...),
		GetParams:       st.params.Map(),
		Status:          status,
	}

	if status == result.StatusCancelled {
		d.logger.Warn("discovery interrupted", slog.Int("urls", len(urls)))
	} else {
		d.logger.Info("discovery completed",
			slog.Int("urls", len(urls)),
			slog.Int("truncated", len(out.Truncated)),
			slog.Int("max_depth_reached", maxReached),
		)
	}
	if len(out.Subdomains) > 0 {
		d.logger.Info("subdomains detected", slog.Int("count", len(out.Subdomains)))
	}

	d.config.Metrics.ObserveTraversal(telemetry.TraversalSummary{
		Engine:          defaults.ModuleDiscoverer,
		URLs:            out.URLsDiscovered,
		Truncated:       len(out.Truncated),
		Subdomains:      len(out.Subdomains),
		MaxDepthReached: maxReached,
	})
	span.SetAttributes(
		attribute.String("soda.status", string(status)),
		attribute.Int("soda.urls", out.URLsDiscovered),
		attribute.Int("soda.pages", st.pages),
		attribute.Int("soda.truncated", len(out.Truncated)),
	)
	return out
}

// failed is the record of a run that could not start. It keeps the level
// map so failed and successful records have the same shape.
func (d *Discoverer) failed(err error) *result.TraversalResult {
	res := result.Failed(d.config.StartURL, d.config.ExcludedPaths, err)
	res.URLsByLevel = map[string][]string{}
	return res
}

// seed is phase 0: links of the root page, robots.txt paths and sitemap
// URLs become the level 1 candidates.
func (d *Discoverer) seed(ctx context.Context, client request.Client, st *state) (bool, []string) {
	var candidates []string

	resp, err := client.Fetch(ctx, st.root, http.MethodGet)
	switch {
	case err != nil:
		d.logger.Warn("root page unavailable", slog.String("url", st.root), slog.String("error", err.Error()))
	case resp.IsHTML():
		candidates = append(candidates, links.Extract(resp.Body, resp.URL, false)...)
	}

	res := resolver.New(client, d.logger)
	robots, hasRobots := res.FetchRobots(ctx, st.root)
	if hasRobots {
		if d.config.HonorCrawlDelay {
			d.honorCrawlDelay(client, robots)
		}
		candidates = append(candidates, resolver.RobotsPaths(st.root, robots)...)
	}
	sitemaps := res.ResolveSitemaps(ctx, st.root, robots)
	candidates = append(candidates, sitemaps.URLs...)

	st.seed(candidates)
	d.logger.Info("level 1 seeded",
		slog.Int("candidates", len(candidates)),
		slog.Int("level_1", len(st.level(1))),
		slog.Int("files", len(st.files)),
		slog.Int("pending", len(st.pending)),
	)
	return hasRobots, sitemaps.Sitemaps
}

// walk expands level after level until MaxDepth, an empty level or
// cancellation.
func (d *Discoverer) walk(ctx context.Context, client request.Client, st *state) result.Status {
	maxDepth := d.config.MaxDepth
	delay := request.ExpectedDelay(client)

	for level := 1; level <= maxDepth; level++ {
		if ctx.Err() != nil {
			break
		}
		visit, cut, unvisited := st.plan(level)
		if unvisited == 0 {
			d.logger.Info("no URLs left to explore", slog.Int("level", level))
			break
		}
		for _, t := range cut {
			d.logger.Warn("directory truncated",
				slog.String("parent", t.parent),
				slog.Int("children", t.children),
				slog.Int("max_children", d.config.MaxChildren),
			)
		}
		d.logger.Info("exploring level",
			slog.Int("level", level),
			slog.Int("urls", len(visit)),
			slog.Duration("eta", (time.Duration(len(visit))*delay).Round(time.Second)),
		)

		if level < maxDepth {
			st.level(level + 1)
		}
		for i, u := range visit {
			if ctx.Err() != nil {
				break
			}
			st.visited.add(u)
			st.pages++
			if level >= maxDepth {
				continue
			}
			resp, err := client.Fetch(ctx, u, http.MethodGet)
			if err != nil || !resp.IsHTML() {
				continue
			}
			st.expand(ctx, links.Extract(resp.Body, resp.URL, false), level+1)
			d.logger.Info("page explored",
				slog.Int("level", level),
				slog.String("progress", fmt.Sprintf("%d/%d", i+1, len(visit))),
				slog.String("url", u),
			)
		}

		if level < maxDepth {
			st.reconcile(ctx, level+1)
		}
		d.logger.Info("level completed", slog.Int("level", level), slog.Int("pages", st.pages))
	}

	if ctx.Err() != nil {
		return result.StatusCancelled
	}
	return result.StatusCompleted
}

func (d *Discoverer) honorCrawlDelay(client request.Client, robots string) {
	delay := resolver.CrawlDelay(robots, crawlDelayAgent)
	if delay <= 0 {
		return
	}
	if p, ok := client.(request.Paced); ok {
		p.Limiter().RaiseBaseDelay(delay)
		d.logger.Info("honoring robots.txt crawl-delay", slog.Duration("delay", delay))
	}
}
