package main

import (
	"log/slog"
	"strconv"

	"github.com/soda-recon/soda/pkg/config"
	"github.com/soda-recon/soda/pkg/crawler"
	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/request"
	"github.com/soda-recon/soda/pkg/runner"
	"github.com/soda-recon/soda/pkg/telemetry"
	"github.com/soda-recon/soda/pkg/ui"
)

var crawlEngine = engine{
	command: "crawl",
	module:  defaults.ModuleCrawler,
	title:   "Web Crawler",
	options: func(cfg *config.Config) []ui.Option {
		opts := []ui.Option{
			{Name: "Target", Value: cfg.Target},
			{Name: "Mode", Value: "crawl (breadth-first)"},
			{Name: "Depth", Value: strconv.Itoa(cfg.MaxDepth)},
			{Name: "Max URLs", Value: strconv.Itoa(cfg.MaxURLs)},
			{Name: "Seeds", Value: seeds(cfg)},
		}
		return append(opts, commonOptions(cfg)...)
	},
	build: func(cfg *config.Config, opener request.Opener, logger *slog.Logger, metrics *telemetry.Metrics) runner.Traverser {
		return crawler.New(&crawler.Config{
			StartURL:        cfg.Target,
			MaxDepth:        cfg.MaxDepth,
			MaxURLs:         cfg.MaxURLs,
			ExcludedPaths:   cfg.ExcludedPaths,
			IncludeRobots:   cfg.IncludeRobots,
			IncludeSitemaps: cfg.IncludeSitemaps,
			HonorCrawlDelay: cfg.HonorCrawlDelay,
			Opener:          opener,
			Logger:          logger,
			Metrics:         metrics,
		})
	},
}

func seeds(cfg *config.Config) string {
	switch {
	case cfg.IncludeRobots && cfg.IncludeSitemaps:
		return "robots.txt, sitemaps"
	case cfg.IncludeRobots:
		return "robots.txt"
	case cfg.IncludeSitemaps:
		return "sitemaps"
	}
	return ""
}
