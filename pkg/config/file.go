package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soda-recon/soda/pkg/fingerprint"
)

// File is the YAML configuration file. Zero values mean "not set" and keep
// the built-in default.
//
//	request:
//	  timeout: 10s
//	  wait: 1.5s
//	  jitter_min: 300ms
//	  jitter_max: 1s
//	  retries: 3
//	  rps: 2
//	  proxy: socks5://127.0.0.1:9050
//	fingerprint:
//	  profiles: [chrome120, firefox120]
//	  user_agents: ["Mozilla/5.0 ..."]
//	crawler:
//	  max_depth: 4
//	  max_urls: 5000
//	discoverer:
//	  max_children: 50
//	excluded_paths: [/logout, /static/]
type File struct {
	Request       RequestFile     `yaml:"request"`
	Fingerprint   FingerprintFile `yaml:"fingerprint"`
	Crawler       CrawlerFile     `yaml:"crawler"`
	Discoverer    DiscovererFile  `yaml:"discoverer"`
	Telemetry     TelemetryFile   `yaml:"telemetry"`
	ExcludedPaths []string        `yaml:"excluded_paths"`
	OutputDir     string          `yaml:"output_dir"`
}

// RequestFile configures the request layer. The jitter bounds are pointers
// so that an explicit 0 disables jitter.
type RequestFile struct {
	Timeout         time.Duration  `yaml:"timeout"`
	Wait            time.Duration  `yaml:"wait"`
	JitterMin       *time.Duration `yaml:"jitter_min"`
	JitterMax       *time.Duration `yaml:"jitter_max"`
	Retries         int            `yaml:"retries"`
	RateLimit       float64        `yaml:"rps"`
	Proxy           string         `yaml:"proxy"`
	SkipVerify      bool           `yaml:"skip_verify"`
	HonorCrawlDelay bool           `yaml:"honor_crawl_delay"`
}

// FingerprintFile replaces the built-in TLS profiles and User-Agents.
type FingerprintFile struct {
	Profiles   []string `yaml:"profiles"`
	UserAgents []string `yaml:"user_agents"`
}

// CrawlerFile configures the crawl command.
type CrawlerFile struct {
	MaxDepth        int  `yaml:"max_depth"`
	MaxURLs         int  `yaml:"max_urls"`
	IncludeRobots   bool `yaml:"include_robots"`
	IncludeSitemaps bool `yaml:"include_sitemaps"`
}

// DiscovererFile configures the discover command.
type DiscovererFile struct {
	MaxDepth    int `yaml:"max_depth"`
	MaxChildren int `yaml:"max_children"`
}

// TelemetryFile configures metrics and tracing export.
type TelemetryFile struct {
	MetricsAddr  string `yaml:"metrics_addr"`
	OTelEndpoint string `yaml:"otel_endpoint"`
}

// Load reads and validates the YAML file at path. Unknown keys are errors.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	for name, v := range map[string]int{
		"request.retries":         f.Request.Retries,
		"crawler.max_depth":       f.Crawler.MaxDepth,
		"crawler.max_urls":        f.Crawler.MaxURLs,
		"discoverer.max_depth":    f.Discoverer.MaxDepth,
		"discoverer.max_children": f.Discoverer.MaxChildren,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}
	if f.Request.Timeout < 0 || f.Request.Wait < 0 || f.Request.RateLimit < 0 ||
		negative(f.Request.JitterMin) || negative(f.Request.JitterMax) {
		return fmt.Errorf("%w: request timings must not be negative", ErrInvalidConfig)
	}
	for _, name := range f.Fingerprint.Profiles {
		if _, err := fingerprint.ProfileByName(name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func negative(d *time.Duration) bool { return d != nil && *d < 0 }
