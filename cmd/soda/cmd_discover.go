package main

import (
	"log/slog"
	"strconv"

	"github.com/soda-recon/soda/pkg/config"
	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/discovery"
	"github.com/soda-recon/soda/pkg/request"
	"github.com/soda-recon/soda/pkg/runner"
	"github.com/soda-recon/soda/pkg/telemetry"
	"github.com/soda-recon/soda/pkg/ui"
)

var discoverEngine = engine{
	command: "discover",
	module:  defaults.ModuleDiscoverer,
	title:   "Structure Discovery",
	options: func(cfg *config.Config) []ui.Option {
		opts := []ui.Option{
			{Name: "Target", Value: cfg.Target},
			{Name: "Mode", Value: "discover (level by level)"},
			{Name: "Depth", Value: strconv.Itoa(cfg.MaxDepth)},
			{Name: "Max Children", Value: strconv.Itoa(cfg.MaxChildren)},
		}
		return append(opts, commonOptions(cfg)...)
	},
	build: func(cfg *config.Config, opener request.Opener, logger *slog.Logger, metrics *telemetry.Metrics) runner.Traverser {
		return discovery.New(&discovery.Config{
			StartURL:        cfg.Target,
			MaxDepth:        cfg.MaxDepth,
			MaxChildren:     cfg.MaxChildren,
			ExcludedPaths:   cfg.ExcludedPaths,
			HonorCrawlDelay: cfg.HonorCrawlDelay,
			Opener:          opener,
			Logger:          logger,
			Metrics:         metrics,
		})
	},
}
