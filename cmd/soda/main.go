// Command soda maps the structure of a website: reachable URLs, subdomains,
// GET parameters and robots/sitemap resources.
//
//	soda crawl    -u https://example.com -D 3
//	soda discover -u https://example.com --max-children 30
//	soda report   -u https://example.com
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/soda-recon/soda/pkg/config"
	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/ui"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ui.SetOutput(stderr)

	if len(args) < 1 {
		printUsage(stderr)
		return defaults.ExitUserError
	}

	switch args[0] {
	case "crawl":
		return runTraversal(config.ModeCrawl, args[1:], stderr)
	case "discover":
		return runTraversal(config.ModeDiscover, args[1:], stderr)
	case "report":
		return runReport(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return defaults.ExitSuccess
	case "-v", "--version", "version":
		fmt.Fprintf(stdout, "%s %s\n", defaults.ToolName, defaults.Version)
		return defaults.ExitSuccess
	default:
		ui.PrintError(fmt.Sprintf("unknown command %q", args[0]))
		printUsage(stderr)
		return defaults.ExitUserError
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `%s %s - web structure discovery

Usage:
  soda <command> [flags]

Commands:
  crawl      Follow links breadth-first from the target
  discover   Walk the target level by level, truncating dense directories
  report     Summarize an existing report.json

Common flags:
  -u, -url URL           Target (https:// is assumed without a scheme)
  -o, -output DIR        Output directory (default: reports/<host>[_<path>])
  -D, -depth N           Maximum depth
  -E, -exclude PATH      Path to exclude, repeatable
  -T, -timeout SEC       Per-request timeout
  -W, -wait SEC          Base wait between requests
  -p, -proxy URL         HTTP or SOCKS5 proxy
  -config FILE           YAML configuration file

Run 'soda <command> -h' for every flag of a command.
`, defaults.ToolName, defaults.Version)
}
