package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/input"
	"github.com/soda-recon/soda/pkg/report"
	"github.com/soda-recon/soda/pkg/ui"
)

const reportUsage = "soda report (-u <url> | -o <dir>) [-urls] [-all]"

// runReport prints the findings of an existing report. With -urls the
// discovered URLs go to stdout, one per line, for piping into other tools.
func runReport(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var target, dir string
	fs.StringVar(&target, "u", "", "Target URL the report was written for")
	fs.StringVar(&target, "url", "", "Target URL (alias)")
	fs.StringVar(&dir, "o", "", "Output directory holding report.json")
	fs.StringVar(&dir, "output", "", "Output directory (alias)")
	urlsOnly := fs.Bool("urls", false, "Print discovered URLs to stdout, one per line")
	all := fs.Bool("all", false, "List every URL in the summary")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return defaults.ExitSuccess
		}
		return exitWithUsage(stderr, err, reportUsage)
	}
	ui.SetSilent(false)
	ui.SetNoColor(*noColor)

	if dir == "" {
		if target == "" {
			return exitWithUsage(stderr, errors.New("a target (-u) or an output directory (-o) is required"), reportUsage)
		}
		normalized, err := input.NormalizeTarget(target)
		if err != nil {
			return exitWithUsage(stderr, err, reportUsage)
		}
		dir = input.OutputDir(normalized)
	}

	path := filepath.Join(dir, report.FileName)
	meta, findings, err := report.Load(path)
	if err != nil {
		return exitWithError("%v", err)
	}

	if *urlsOnly {
		seen := make(map[string]struct{})
		for _, f := range findings {
			if f.Category != defaults.CategoryMap {
				continue
			}
			res, err := f.Traversal()
			if err != nil {
				return exitWithError("%v", err)
			}
			for _, u := range res.URLs {
				if _, dup := seen[u]; dup {
					continue
				}
				seen[u] = struct{}{}
				fmt.Fprintln(stdout, u)
			}
		}
		return defaults.ExitSuccess
	}

	ui.PrintSection("Report")
	ui.PrintConfigBanner([]ui.Option{
		{Name: "Target", Value: meta.Target},
		{Name: "Scan ID", Value: meta.ScanID},
		{Name: "Tool", Value: meta.Tool + " " + meta.Version},
		{Name: "Started", Value: formatTime(meta.ScanStarted)},
		{Name: "Completed", Value: formatTime(meta.ScanCompleted)},
		{Name: "Findings", Value: fmt.Sprint(len(findings))},
	})

	for _, f := range findings {
		if f.Category != defaults.CategoryMap {
			ui.PrintInfo(fmt.Sprintf("%s: %s finding (%s)", f.Module, f.Category, formatTime(f.Timestamp)))
			continue
		}
		res, err := f.Traversal()
		if err != nil {
			ui.PrintWarning(err.Error())
			continue
		}
		ui.PrintSummary(f.Module, res, 0, *all)
	}
	return defaults.ExitSuccess
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.DateTime)
}
