package crawler

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soda-recon/soda/pkg/result"
	"github.com/soda-recon/soda/pkg/telemetry"
	"github.com/soda-recon/soda/pkg/testutil"
)

const root = "http://site.test/"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCrawler(site *testutil.Site, cfg Config) *Crawler {
	if cfg.StartURL == "" {
		cfg.StartURL = root
	}
	cfg.Opener = site.Opener()
	cfg.Logger = quietLogger()
	return New(&cfg)
}

func TestRun_BreadthFirst(t *testing.T) {
	site := testutil.NewSite(map[string]testutil.Page{
		root: testutil.HTML(
			"/a/", "/b", "/c?x=1#frag", "/c?x=2",
			"http://blog.site.test/", "http://www.blog.site.test/news",
			"http://evil.test/x", "/img/logo.png", "mailto:me@site.test",
		),
		root + "a/":     testutil.HTML("deep", "/b", "http://site.test/a/?page=1"),
		root + "a/deep": testutil.HTML("/a/deep/deeper"),
		root + "b":      testutil.HTML("/"),
	})

	res := newCrawler(site, Config{MaxDepth: 2}).Run(context.Background())

	require.True(t, res.OK())
	assert.Equal(t, result.StatusCompleted, res.Status)
	assert.Equal(t, []string{
		root,
		root + "a/",
		root + "b",
		root + "c",
		root + "a/deep",
	}, res.URLs)
	assert.Equal(t, 5, res.URLsDiscovered)
	assert.Equal(t, 2, res.MaxDepthReached)
	assert.Nil(t, res.URLsByLevel)
	assert.Equal(t, []string{}, res.Truncated)
	assert.Equal(t, []string{"blog.site.test"}, res.Subdomains)
	assert.Equal(t, []result.Param{{"1", "/c"}, {"2", "/c"}}, res.GetParams["x"])
	assert.Equal(t, []result.Param{{"1", "/a/"}}, res.GetParams["page"])
	assert.Nil(t, res.RobotsTxt)
	assert.Equal(t, []string{}, res.Sitemaps)

	assert.Equal(t, []string{
		root + "robots.txt",
		root + "sitemap.xml",
		root + "sitemap_index.xml",
		root,
		root + "a/",
		root + "b",
		root + "c",
		root + "a/deep",
	}, site.Requests(), "pages are fetched level by level, each once")
	assert.False(t, site.Fetched(root+"a/deep/deeper"), "links on max-depth pages are not followed")
	assert.Equal(t, 1, site.Closes())

	for _, u := range res.URLs {
		assert.NotContains(t, u, "evil.test")
	}
}

func TestRun_RobotsAndSitemapSeeds(t *testing.T) {
	pages := map[string]testutil.Page{
		root + "robots.txt": testutil.Text("text/plain",
			"User-agent: *\nDisallow: /admin/\nAllow: /open*\nSitemap: http://site.test/sm.xml\n"),
		root + "sm.xml": testutil.Text("application/xml",
			"<urlset><url><loc>http://site.test/from-sitemap?ref=sm</loc></url>"+
				"<url><loc>http://shop.site.test/p</loc></url>"+
				"<url><loc>http://site.test/</loc></url></urlset>"),
		root: testutil.HTML(),
	}

	t.Run("seeded", func(t *testing.T) {
		site := testutil.NewSite(pages)
		res := newCrawler(site, Config{IncludeRobots: true, IncludeSitemaps: true}).Run(context.Background())

		assert.Equal(t, []string{
			root,
			root + "admin/",
			root + "from-sitemap",
			root + "open",
		}, res.URLs)
		assert.Equal(t, 1, res.MaxDepthReached)
		require.NotNil(t, res.RobotsTxt)
		assert.Equal(t, root+"robots.txt", *res.RobotsTxt)
		assert.Equal(t, []string{root + "sm.xml"}, res.Sitemaps)
		assert.Equal(t, []string{"shop.site.test"}, res.Subdomains)
		assert.Equal(t, []result.Param{{"sm", "/from-sitemap"}}, res.GetParams["ref"])
		assert.True(t, site.Fetched(root+"admin/"))
	})

	t.Run("pointers only", func(t *testing.T) {
		site := testutil.NewSite(pages)
		res := newCrawler(site, Config{}).Run(context.Background())

		assert.Equal(t, []string{root}, res.URLs)
		require.NotNil(t, res.RobotsTxt)
		assert.Equal(t, []string{root + "sm.xml"}, res.Sitemaps)
		assert.Empty(t, res.Subdomains)
	})
}

func TestRun_Exclusions(t *testing.T) {
	site := testutil.NewSite(map[string]testutil.Page{
		root + "docs/": testutil.HTML("/docs/guide", "/docs/PRIVATE/keys", "/blog/", "/"),
	})
	res := newCrawler(site, Config{
		StartURL:      root + "docs/",
		ExcludedPaths: []string{"/private"},
	}).Run(context.Background())

	assert.Equal(t, []string{root + "docs/", root + "docs/guide"}, res.URLs)
	assert.Equal(t, []string{"/private"}, res.ExcludedPaths)
	assert.False(t, site.Fetched(root+"docs/PRIVATE/keys"))
	assert.False(t, site.Fetched(root+"blog/"), "pages outside the start path are not crawled")
}

func TestRun_URLLimit(t *testing.T) {
	site := testutil.NewSite(map[string]testutil.Page{
		root: testutil.HTML("/1", "/2", "/3", "/4", "/5", "/6", "/7"),
	})
	res := newCrawler(site, Config{MaxURLs: 5}).Run(context.Background())

	assert.Equal(t, result.StatusLimitReached, res.Status)
	assert.True(t, res.Partial())
	assert.Equal(t, 8, res.URLsDiscovered, "links of the page being expanded are all admitted")
	assert.False(t, site.Fetched(root+"1"))
}

func TestRun_Cancellation(t *testing.T) {
	site := testutil.NewSite(map[string]testutil.Page{
		root:       testutil.HTML("/a", "/b", "/c"),
		root + "a": testutil.HTML("/a/x"),
		root + "b": testutil.HTML(),
		root + "c": testutil.HTML(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	site.OnFetch = func(_ int, rawURL string) {
		if rawURL == root+"a" {
			cancel()
		}
	}

	res := newCrawler(site, Config{}).Run(ctx)

	require.True(t, res.OK())
	assert.Equal(t, result.StatusCancelled, res.Status)
	assert.Equal(t, []string{root, root + "a", root + "b", root + "c"}, res.URLs)
	assert.Equal(t, 4, res.URLsDiscovered, "visited plus admitted-but-unvisited")
	assert.False(t, site.Fetched(root+"b"))
	assert.Equal(t, 1, site.Closes())
}

func TestRun_UnexpandableResponses(t *testing.T) {
	site := testutil.NewSite(map[string]testutil.Page{
		root:           testutil.HTML("/api", "/down/", "/gone"),
		root + "api":   testutil.Text("application/json", `{"next": "<a href='/hidden'>"}`),
		root + "down/": {Err: testutil.ErrFault},
	})
	res := newCrawler(site, Config{}).Run(context.Background())

	assert.Equal(t, []string{root, root + "api", root + "down/", root + "gone"}, res.URLs)
	assert.False(t, site.Fetched(root+"hidden"))
	assert.Equal(t, result.StatusCompleted, res.Status)
}

func TestRun_StartFailures(t *testing.T) {
	res := New(&Config{StartURL: "ftp://site.test/", Opener: testutil.FailingOpener(), Logger: quietLogger()}).
		Run(context.Background())
	assert.False(t, res.OK())
	assert.Equal(t, "ftp://site.test/", res.BaseURL)
	assert.Empty(t, res.URLs)

	res = New(&Config{StartURL: root, ExcludedPaths: []string{"/private"}, Opener: testutil.FailingOpener(), Logger: quietLogger()}).
		Run(context.Background())
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, testutil.ErrFault.Error())
	assert.Equal(t, result.StatusFailed, res.Status)
	assert.Equal(t, map[string][]result.Param{}, res.GetParams)
	assert.Equal(t, []string{"/private"}, res.ExcludedPaths)
	assert.Nil(t, res.URLsByLevel, "the crawler writes no level map")
}

func TestRun_BareHostStart(t *testing.T) {
	site := testutil.NewSite(map[string]testutil.Page{
		root: testutil.HTML("/"),
	})
	res := newCrawler(site, Config{StartURL: "http://site.test"}).Run(context.Background())

	assert.Equal(t, []string{root}, res.URLs)
	assert.Equal(t, "http://site.test", res.BaseURL)
}

func TestRun_Metrics(t *testing.T) {
	site := testutil.NewSite(map[string]testutil.Page{
		root: testutil.HTML("/a", "http://m.site.test/"),
	})
	m := telemetry.NewMetrics()
	c := New(&Config{StartURL: root, Opener: site.Opener(), Logger: quietLogger(), Metrics: m})
	c.Run(context.Background())

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if g := metric.GetGauge(); g != nil {
				values[f.GetName()] = g.GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, values["soda_urls_discovered"])
	assert.Equal(t, 1.0, values["soda_subdomains"])
	assert.Equal(t, 1.0, values["soda_max_depth_reached"])
}

func TestNew_Defaults(t *testing.T) {
	c := New(nil)
	assert.Equal(t, DefaultConfig().MaxDepth, c.config.MaxDepth)
	assert.Equal(t, DefaultConfig().MaxURLs, c.config.MaxURLs)
	assert.NotNil(t, c.config.Opener)
}
