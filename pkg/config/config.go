// Package config resolves the settings of one soda run. Values come from
// the built-in defaults, then an optional YAML file (--config), then
// command-line flags, each layer overriding the previous one.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/duration"
	"github.com/soda-recon/soda/pkg/fingerprint"
	"github.com/soda-recon/soda/pkg/input"
	"github.com/soda-recon/soda/pkg/ratelimit"
	"github.com/soda-recon/soda/pkg/request"
	"github.com/soda-recon/soda/pkg/telemetry"
)

// Mode selects the engine a command runs.
type Mode int

const (
	ModeCrawl Mode = iota
	ModeDiscover
)

// Config holds the options of a crawl or discover command.
type Config struct {
	mode Mode

	// Target settings
	Target     string
	OutputDir  string // empty = reports/<host>[_<path>]
	ConfigFile string

	// Traversal settings
	MaxDepth        int
	MaxURLs         int // crawl only
	MaxChildren     int // discover only
	ExcludedPaths   input.StringSliceFlag
	IncludeRobots   bool // crawl only
	IncludeSitemaps bool // crawl only
	HonorCrawlDelay bool

	// Request settings
	Timeout    time.Duration
	Wait       time.Duration
	JitterMin  time.Duration
	JitterMax  time.Duration
	Retries    int
	RateLimit  float64 // hard requests-per-second ceiling, 0 = none
	Proxy      string
	SkipVerify bool
	Profiles   []string
	UserAgents []string

	// Output settings
	Verbose      bool
	Silent       bool
	NoColor      bool
	MetricsAddr  string
	OTelEndpoint string

	// flag-bound units
	timeoutSeconds   int
	waitSeconds      float64
	jitterMinSeconds float64
	jitterMaxSeconds float64
}

// New returns the defaults of mode.
func New(mode Mode) *Config {
	return &Config{
		mode:             mode,
		MaxDepth:         defaults.MaxDepth,
		MaxURLs:          defaults.MaxURLsCrawler,
		MaxChildren:      defaults.MaxChildrenDiscoverer,
		Timeout:          duration.RequestCLI,
		Wait:             duration.DelayBase,
		JitterMin:        duration.JitterMin,
		JitterMax:        duration.JitterMax,
		Retries:          defaults.MaxRetries,
		timeoutSeconds:   int(duration.RequestCLI / time.Second),
		waitSeconds:      duration.DelayBase.Seconds(),
		jitterMinSeconds: duration.JitterMin.Seconds(),
		jitterMaxSeconds: duration.JitterMax.Seconds(),
	}
}

// Mode is the engine the config was created for.
func (c *Config) Mode() Mode { return c.mode }

// RegisterFlags binds the command-line flags of c's mode to fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	// === TARGET ===
	fs.StringVar(&c.Target, "u", "", "Target URL (https:// is assumed when no scheme is given)")
	fs.StringVar(&c.Target, "url", "", "Target URL (alias)")
	fs.StringVar(&c.OutputDir, "o", "", "Output directory (default: reports/<host>[_<path>])")
	fs.StringVar(&c.OutputDir, "output", "", "Output directory (alias)")
	fs.StringVar(&c.ConfigFile, "config", "", "YAML configuration file")

	// === TRAVERSAL ===
	fs.IntVar(&c.MaxDepth, "D", c.MaxDepth, "Maximum depth")
	fs.IntVar(&c.MaxDepth, "depth", c.MaxDepth, "Maximum depth (alias)")
	fs.Var(&c.ExcludedPaths, "E", "Path to exclude, repeatable or comma-separated (e.g. /admin,/api)")
	fs.Var(&c.ExcludedPaths, "exclude", "Path to exclude (alias)")
	fs.BoolVar(&c.HonorCrawlDelay, "honor-crawl-delay", false, "Raise the request delay to the robots.txt Crawl-delay")
	switch c.mode {
	case ModeCrawl:
		fs.IntVar(&c.MaxURLs, "max-urls", c.MaxURLs, "Stop once this many URLs are known")
		fs.BoolVar(&c.IncludeRobots, "include-robots", false, "Seed robots.txt paths at depth 1")
		fs.BoolVar(&c.IncludeSitemaps, "include-sitemaps", false, "Seed sitemap URLs at depth 1")
	case ModeDiscover:
		fs.IntVar(&c.MaxChildren, "max-children", c.MaxChildren, "Children per directory before it is truncated with /*")
	}

	// === NETWORK ===
	fs.IntVar(&c.timeoutSeconds, "T", c.timeoutSeconds, "Timeout in seconds per request")
	fs.IntVar(&c.timeoutSeconds, "timeout", c.timeoutSeconds, "Timeout in seconds (alias)")
	fs.Float64Var(&c.waitSeconds, "W", c.waitSeconds, "Base wait in seconds between requests")
	fs.Float64Var(&c.waitSeconds, "wait", c.waitSeconds, "Base wait in seconds (alias)")
	fs.Float64Var(&c.jitterMinSeconds, "jitter-min", c.jitterMinSeconds, "Lower bound in seconds of the random delay added to the wait")
	fs.Float64Var(&c.jitterMaxSeconds, "jitter-max", c.jitterMaxSeconds, "Upper bound in seconds of the random delay added to the wait")
	fs.IntVar(&c.Retries, "retries", c.Retries, "Attempts per request")
	fs.Float64Var(&c.RateLimit, "rps", 0, "Hard ceiling in requests per second (0 = none)")
	fs.StringVar(&c.Proxy, "p", "", "HTTP/SOCKS5 proxy URL")
	fs.StringVar(&c.Proxy, "proxy", "", "Proxy (alias)")
	fs.BoolVar(&c.SkipVerify, "k", false, "Skip TLS verification")
	fs.BoolVar(&c.SkipVerify, "skip-verify", false, "Skip TLS (alias)")

	// === OUTPUT ===
	fs.BoolVar(&c.Verbose, "v", false, "Verbose output")
	fs.BoolVar(&c.Verbose, "verbose", false, "Verbose (alias)")
	fs.BoolVar(&c.Silent, "silent", false, "Silent mode - no banner or summary")
	fs.BoolVar(&c.NoColor, "no-color", false, "Disable colored output")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	fs.StringVar(&c.OTelEndpoint, "otel-endpoint", "", "Export traces to this OTLP gRPC endpoint (host:port)")
}

// Parse parses args into c, overlays the --config file under the flags
// that were given explicitly and validates the result.
func (c *Config) Parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	c.Timeout = time.Duration(c.timeoutSeconds) * time.Second
	c.Wait = seconds(c.waitSeconds)
	c.JitterMin = seconds(c.jitterMinSeconds)
	c.JitterMax = seconds(c.jitterMaxSeconds)

	if c.ConfigFile != "" {
		f, err := Load(c.ConfigFile)
		if err != nil {
			return err
		}
		set := make(map[string]bool)
		fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
		c.apply(f, set)
	}
	return c.Validate()
}

// apply copies the values f sets into c, unless one of the flags naming
// that value was given.
func (c *Config) apply(f *File, set map[string]bool) {
	given := func(names ...string) bool {
		for _, n := range names {
			if set[n] {
				return true
			}
		}
		return false
	}

	if f.OutputDir != "" && !given("o", "output") {
		c.OutputDir = f.OutputDir
	}
	if len(f.ExcludedPaths) > 0 && !given("E", "exclude") {
		c.ExcludedPaths = append(input.StringSliceFlag{}, f.ExcludedPaths...)
	}

	engineDepth := f.Crawler.MaxDepth
	if c.mode == ModeDiscover {
		engineDepth = f.Discoverer.MaxDepth
	}
	if engineDepth > 0 && !given("D", "depth") {
		c.MaxDepth = engineDepth
	}
	if f.Crawler.MaxURLs > 0 && !given("max-urls") {
		c.MaxURLs = f.Crawler.MaxURLs
	}
	if f.Crawler.IncludeRobots && !given("include-robots") {
		c.IncludeRobots = true
	}
	if f.Crawler.IncludeSitemaps && !given("include-sitemaps") {
		c.IncludeSitemaps = true
	}
	if f.Discoverer.MaxChildren > 0 && !given("max-children") {
		c.MaxChildren = f.Discoverer.MaxChildren
	}

	r := f.Request
	if r.Timeout > 0 && !given("T", "timeout") {
		c.Timeout = r.Timeout
	}
	if r.Wait > 0 && !given("W", "wait") {
		c.Wait = r.Wait
	}
	if r.JitterMin != nil && !given("jitter-min") {
		c.JitterMin = *r.JitterMin
	}
	if r.JitterMax != nil && !given("jitter-max") {
		c.JitterMax = *r.JitterMax
	}
	if r.Retries > 0 && !given("retries") {
		c.Retries = r.Retries
	}
	if r.RateLimit > 0 && !given("rps") {
		c.RateLimit = r.RateLimit
	}
	if r.Proxy != "" && !given("p", "proxy") {
		c.Proxy = r.Proxy
	}
	if r.SkipVerify && !given("k", "skip-verify") {
		c.SkipVerify = true
	}
	if r.HonorCrawlDelay && !given("honor-crawl-delay") {
		c.HonorCrawlDelay = true
	}

	if len(f.Fingerprint.Profiles) > 0 {
		c.Profiles = append([]string(nil), f.Fingerprint.Profiles...)
	}
	if len(f.Fingerprint.UserAgents) > 0 {
		c.UserAgents = append([]string(nil), f.Fingerprint.UserAgents...)
	}

	if f.Telemetry.MetricsAddr != "" && !given("metrics-addr") {
		c.MetricsAddr = f.Telemetry.MetricsAddr
	}
	if f.Telemetry.OTelEndpoint != "" && !given("otel-endpoint") {
		c.OTelEndpoint = f.Telemetry.OTelEndpoint
	}
}

// Validate normalizes the target and checks every limit.
func (c *Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("%w: target (-u)", ErrMissingRequired)
	}
	target, err := input.NormalizeTarget(c.Target)
	if err != nil {
		return fmt.Errorf("%w: target %q: %v", ErrInvalidConfig, c.Target, err)
	}
	c.Target = target

	switch {
	case c.MaxDepth < 1:
		return fmt.Errorf("%w: depth must be at least 1", ErrInvalidConfig)
	case c.mode == ModeCrawl && c.MaxURLs < 1:
		return fmt.Errorf("%w: max-urls must be at least 1", ErrInvalidConfig)
	case c.mode == ModeDiscover && c.MaxChildren < 1:
		return fmt.Errorf("%w: max-children must be at least 1", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	case c.Wait < 0:
		return fmt.Errorf("%w: wait must not be negative", ErrInvalidConfig)
	case c.JitterMin < 0 || c.JitterMax < 0:
		return fmt.Errorf("%w: jitter must not be negative", ErrInvalidConfig)
	case c.JitterMin > c.JitterMax:
		return fmt.Errorf("%w: jitter-min %s exceeds jitter-max %s", ErrInvalidConfig, c.JitterMin, c.JitterMax)
	case c.Retries < 1:
		return fmt.Errorf("%w: retries must be at least 1", ErrInvalidConfig)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rps must not be negative", ErrInvalidConfig)
	}

	if c.Proxy != "" {
		if _, err := c.proxyURL(); err != nil {
			return err
		}
	}
	if c.OutputDir == "" {
		c.OutputDir = input.OutputDir(c.Target)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c *Config) proxyURL() (*url.URL, error) {
	u, err := url.Parse(c.Proxy)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: proxy %q must be a URL like http://host:port or socks5://host:port", ErrInvalidConfig, c.Proxy)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
		return u, nil
	}
	return nil, fmt.Errorf("%w: unsupported proxy scheme %q", ErrInvalidConfig, u.Scheme)
}

// RequestConfig is the request layer configuration of c. Sessions routed
// through a proxy skip certificate verification.
func (c *Config) RequestConfig(logger *slog.Logger, metrics *telemetry.Metrics) (request.Config, error) {
	pool, err := fingerprint.NewPool(c.Profiles, c.UserAgents)
	if err != nil {
		return request.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	throttle := ratelimit.DefaultConfig()
	throttle.BaseDelay = c.Wait
	throttle.JitterMin = c.JitterMin
	throttle.JitterMax = c.JitterMax
	throttle.RequestsPerSecond = c.RateLimit

	rc := request.Config{
		Timeout:     c.Timeout,
		MaxRetries:  c.Retries,
		Throttle:    &throttle,
		Fingerprint: pool,
		SkipVerify:  c.SkipVerify,
		Metrics:     metrics,
		Logger:      logger,
	}
	if c.Proxy != "" {
		proxy, err := c.proxyURL()
		if err != nil {
			return request.Config{}, err
		}
		rc.Proxy = proxy
		rc.SkipVerify = true
	}
	return rc, nil
}
