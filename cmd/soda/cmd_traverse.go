package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/soda-recon/soda/pkg/cli"
	"github.com/soda-recon/soda/pkg/config"
	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/duration"
	"github.com/soda-recon/soda/pkg/report"
	"github.com/soda-recon/soda/pkg/request"
	"github.com/soda-recon/soda/pkg/result"
	"github.com/soda-recon/soda/pkg/runner"
	"github.com/soda-recon/soda/pkg/telemetry"
	"github.com/soda-recon/soda/pkg/ui"
)

// newOpener builds the session factory handed to the engines.
var newOpener = request.NewOpener

// engine is what a traversal command needs from its mode.
type engine struct {
	command string
	module  string
	title   string
	options func(cfg *config.Config) []ui.Option
	build   func(cfg *config.Config, opener request.Opener, logger *slog.Logger, metrics *telemetry.Metrics) runner.Traverser
}

func engineFor(mode config.Mode) engine {
	if mode == config.ModeDiscover {
		return discoverEngine
	}
	return crawlEngine
}

// runTraversal runs the crawl or discover command.
func runTraversal(mode config.Mode, args []string, stderr io.Writer) int {
	eng := engineFor(mode)

	fs := flag.NewFlagSet(eng.command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg := config.New(mode)
	cfg.RegisterFlags(fs)
	if err := cfg.Parse(fs, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return defaults.ExitSuccess
		}
		return exitWithUsage(stderr, err, "soda "+eng.command+" -u <url> [flags]")
	}

	ui.SetSilent(cfg.Silent)
	ui.SetNoColor(cfg.NoColor)
	ui.PrintBanner()
	ui.PrintSection(eng.title)
	ui.PrintConfigBanner(eng.options(cfg))

	logger, closeLog, err := cli.NewLogger(cli.LogOptions{
		Console: stderr,
		Verbose: cfg.Verbose,
		Silent:  cfg.Silent,
		Dir:     cfg.OutputDir,
	})
	if err != nil {
		return exitWithError("logging: %v", err)
	}
	defer closeLog()

	ctx, cancel := cli.SignalContext(context.Background(), duration.GracePeriod, stderr)
	defer cancel()

	metrics, stopTelemetry, err := startTelemetry(ctx, cfg, logger)
	if err != nil {
		return exitWithError("telemetry: %v", err)
	}
	defer stopTelemetry()

	rc, err := cfg.RequestConfig(logger, metrics)
	if err != nil {
		return exitWithUsage(stderr, err, "soda "+eng.command+" -u <url> [flags]")
	}
	traverser := eng.build(cfg, newOpener(rc), logger, metrics)

	logger.Info("traversal started", slog.String("module", eng.module), slog.String("target", cfg.Target))
	outcome := runner.Start(ctx, traverser, logger).Wait()
	res := outcome.Result
	logger.Info("traversal finished",
		slog.String("module", eng.module),
		slog.String("status", string(res.Status)),
		slog.Int("urls", len(res.URLs)),
		slog.Duration("elapsed", outcome.Duration),
	)

	path := filepath.Join(cfg.OutputDir, report.FileName)
	if err := saveFinding(path, cfg.Target, eng.module, res, logger); err != nil {
		return exitWithError("report: %v", err)
	}

	ui.PrintSummary(eng.module, res, outcome.Duration, cfg.Verbose)
	ui.PrintSuccess("Report saved to " + path)
	return traversalExitCode(res)
}

// saveFinding stores res as the module's map finding in the report at path,
// keeping the findings of other modules already there.
func saveFinding(path, target, module string, res *result.TraversalResult, logger *slog.Logger) error {
	rep := report.New(target, logger)
	n, err := rep.LoadExisting(path)
	if err != nil {
		logger.Warn("existing report unreadable, starting a new one",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	} else if n > 0 {
		logger.Debug("merged existing findings", slog.Int("count", n))
	}
	if err := rep.AddFinding(module, defaults.CategoryMap, res); err != nil {
		return err
	}
	return rep.ExportJSON(path)
}

// commonOptions are the banner lines shared by both engines, after the
// engine specific limits.
func commonOptions(cfg *config.Config) []ui.Option {
	excluded := "none"
	if len(cfg.ExcludedPaths) > 0 {
		excluded = strings.Join(cfg.ExcludedPaths, ", ")
	}
	return []ui.Option{
		{Name: "Excluded", Value: excluded},
		{Name: "Timeout", Value: cfg.Timeout.String()},
		{Name: "Wait", Value: fmt.Sprintf("%s + %s-%s jitter", cfg.Wait, cfg.JitterMin, cfg.JitterMax)},
		{Name: "Retries", Value: strconv.Itoa(cfg.Retries)},
		{Name: "Proxy", Value: cfg.Proxy},
		{Name: "Output", Value: cfg.OutputDir},
	}
}
