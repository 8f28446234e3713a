package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/duration"
	"github.com/soda-recon/soda/pkg/input"
)

func parse(t *testing.T, mode Mode, args ...string) (*Config, error) {
	t.Helper()
	cfg := New(mode)
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.RegisterFlags(fs)
	return cfg, cfg.Parse(fs, args)
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soda.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(t, ModeCrawl, "-u", "site.test")
	require.NoError(t, err)

	assert.Equal(t, "https://site.test", cfg.Target)
	assert.Equal(t, filepath.Join("reports", "site.test"), cfg.OutputDir)
	assert.Equal(t, defaults.MaxDepth, cfg.MaxDepth)
	assert.Equal(t, defaults.MaxURLsCrawler, cfg.MaxURLs)
	assert.Equal(t, duration.RequestCLI, cfg.Timeout)
	assert.Equal(t, duration.DelayBase, cfg.Wait)
	assert.Equal(t, duration.JitterMin, cfg.JitterMin)
	assert.Equal(t, duration.JitterMax, cfg.JitterMax)
	assert.Equal(t, defaults.MaxRetries, cfg.Retries)
	assert.Zero(t, cfg.RateLimit)
	assert.Empty(t, cfg.ExcludedPaths)
	assert.False(t, cfg.IncludeRobots)
	assert.Equal(t, ModeCrawl, cfg.Mode())
}

func TestParse_Flags(t *testing.T) {
	cfg, err := parse(t, ModeCrawl,
		"-url", "http://site.test/docs/",
		"-D", "5", "-E", "/admin", "-exclude", "/api,/static",
		"-T", "3", "-W", "0.5", "--max-urls", "100",
		"--include-robots", "--include-sitemaps", "--honor-crawl-delay",
		"-p", "socks5://127.0.0.1:9050", "-k", "-v",
		"--rps", "2.5", "--metrics-addr", ":9090",
		"--jitter-min", "0", "--jitter-max", "0.25",
	)
	require.NoError(t, err)

	assert.Equal(t, "http://site.test/docs/", cfg.Target)
	assert.Equal(t, filepath.Join("reports", "site.test_docs"), cfg.OutputDir)
	assert.Equal(t, 5, cfg.MaxDepth)
	assert.Equal(t, input.StringSliceFlag{"/admin", "/api", "/static"}, cfg.ExcludedPaths)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Wait)
	assert.Zero(t, cfg.JitterMin)
	assert.Equal(t, 250*time.Millisecond, cfg.JitterMax)
	assert.Equal(t, 100, cfg.MaxURLs)
	assert.True(t, cfg.IncludeRobots)
	assert.True(t, cfg.IncludeSitemaps)
	assert.True(t, cfg.HonorCrawlDelay)
	assert.True(t, cfg.SkipVerify)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestParse_ModeFlags(t *testing.T) {
	_, err := parse(t, ModeDiscover, "-u", "site.test", "--max-urls", "5")
	assert.Error(t, err, "max-urls is a crawl flag")

	cfg, err := parse(t, ModeDiscover, "-u", "site.test", "--max-children", "12")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.MaxChildren)

	_, err = parse(t, ModeCrawl, "-u", "site.test", "--max-children", "12")
	assert.Error(t, err)
}

func TestParse_Validation(t *testing.T) {
	_, err := parse(t, ModeCrawl)
	assert.ErrorIs(t, err, ErrMissingRequired)

	for _, args := range [][]string{
		{"-u", "http://"},
		{"-u", "site.test", "-D", "0"},
		{"-u", "site.test", "--max-urls", "0"},
		{"-u", "site.test", "-T", "0"},
		{"-u", "site.test", "-W", "-1"},
		{"-u", "site.test", "--jitter-min", "-0.1"},
		{"-u", "site.test", "--jitter-min", "2", "--jitter-max", "1"},
		{"-u", "site.test", "--retries", "0"},
		{"-u", "site.test", "--rps", "-2"},
		{"-u", "site.test", "-p", "not a proxy"},
		{"-u", "site.test", "-p", "ftp://proxy.test:21"},
	} {
		_, err := parse(t, ModeCrawl, args...)
		assert.ErrorIs(t, err, ErrInvalidConfig, args)
	}
}

func TestParse_ConfigFile(t *testing.T) {
	path := writeFile(t, `
request:
  timeout: 7s
  wait: 250ms
  jitter_min: 0s
  jitter_max: 400ms
  retries: 5
  rps: 4
  proxy: http://127.0.0.1:8080
  honor_crawl_delay: true
fingerprint:
  profiles: [firefox120]
  user_agents: ["agent-a"]
crawler:
  max_depth: 6
  max_urls: 900
  include_robots: true
discoverer:
  max_depth: 2
  max_children: 40
telemetry:
  otel_endpoint: localhost:4317
excluded_paths: [/logout]
output_dir: out/site
`)

	t.Run("crawl", func(t *testing.T) {
		cfg, err := parse(t, ModeCrawl, "-u", "site.test", "--config", path, "-T", "2", "-E", "/cli")
		require.NoError(t, err)

		assert.Equal(t, 2*time.Second, cfg.Timeout, "flags win over the file")
		assert.Equal(t, input.StringSliceFlag{"/cli"}, cfg.ExcludedPaths)
		assert.Equal(t, 250*time.Millisecond, cfg.Wait)
		assert.Zero(t, cfg.JitterMin, "an explicit 0 in the file disables the lower bound")
		assert.Equal(t, 400*time.Millisecond, cfg.JitterMax)
		assert.Equal(t, 5, cfg.Retries)
		assert.Equal(t, 4.0, cfg.RateLimit)
		assert.Equal(t, "http://127.0.0.1:8080", cfg.Proxy)
		assert.True(t, cfg.HonorCrawlDelay)
		assert.Equal(t, []string{"firefox120"}, cfg.Profiles)
		assert.Equal(t, []string{"agent-a"}, cfg.UserAgents)
		assert.Equal(t, 6, cfg.MaxDepth)
		assert.Equal(t, 900, cfg.MaxURLs)
		assert.True(t, cfg.IncludeRobots)
		assert.False(t, cfg.IncludeSitemaps)
		assert.Equal(t, "localhost:4317", cfg.OTelEndpoint)
		assert.Equal(t, "out/site", cfg.OutputDir)
	})

	t.Run("discover", func(t *testing.T) {
		cfg, err := parse(t, ModeDiscover, "-u", "site.test", "--config", path)
		require.NoError(t, err)

		assert.Equal(t, 2, cfg.MaxDepth)
		assert.Equal(t, 40, cfg.MaxChildren)
		assert.Equal(t, input.StringSliceFlag{"/logout"}, cfg.ExcludedPaths)
		assert.Equal(t, 7*time.Second, cfg.Timeout)
	})

	t.Run("jitter flag wins", func(t *testing.T) {
		cfg, err := parse(t, ModeDiscover, "-u", "site.test", "--config", path, "--jitter-max", "0.6")
		require.NoError(t, err)

		assert.Zero(t, cfg.JitterMin)
		assert.Equal(t, 600*time.Millisecond, cfg.JitterMax)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := parse(t, ModeCrawl, "-u", "site.test", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestParseFile_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"syntax":          "request: [",
		"unknown key":     "request:\n  tiemout: 5s\n",
		"bad duration":    "request:\n  timeout: soon\n",
		"negative":        "crawler:\n  max_urls: -1\n",
		"negative timing": "request:\n  wait: -1s\n",
		"negative jitter": "request:\n  jitter_max: -1s\n",
		"unknown profile": "fingerprint:\n  profiles: [netscape4]\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseFile_Empty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, &File{}, f)
}

func TestRequestConfig(t *testing.T) {
	cfg, err := parse(t, ModeDiscover, "-u", "site.test", "-T", "4", "-W", "2", "--retries", "2", "--rps", "1",
		"--jitter-min", "0.1", "--jitter-max", "0.5")
	require.NoError(t, err)

	rc, err := cfg.RequestConfig(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, rc.Timeout)
	assert.Equal(t, 2, rc.MaxRetries)
	require.NotNil(t, rc.Throttle)
	assert.Equal(t, 2*time.Second, rc.Throttle.BaseDelay)
	assert.Equal(t, 1.0, rc.Throttle.RequestsPerSecond)
	assert.Equal(t, 100*time.Millisecond, rc.Throttle.JitterMin)
	assert.Equal(t, 500*time.Millisecond, rc.Throttle.JitterMax)
	assert.NotNil(t, rc.Fingerprint)
	assert.Nil(t, rc.Proxy)
	assert.False(t, rc.SkipVerify)

	cfg.Proxy = "socks5://127.0.0.1:9050"
	rc, err = cfg.RequestConfig(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rc.Proxy)
	assert.Equal(t, "127.0.0.1:9050", rc.Proxy.Host)
	assert.True(t, rc.SkipVerify, "proxied sessions skip verification")

	cfg.Profiles = []string{"bogus"}
	_, err = cfg.RequestConfig(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
