package ui

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/soda-recon/soda/pkg/result"
)

// SummaryPreview is how many URLs PrintSummary lists before eliding.
const SummaryPreview = 20

// PrintSummary prints the statistics of one traversal. With listAll every
// URL is listed, otherwise the first SummaryPreview.
func PrintSummary(module string, res *result.TraversalResult, elapsed time.Duration, listAll bool) {
	WriteSummary(writer(), module, res, elapsed, listAll)
}

// WriteSummary is PrintSummary to an explicit writer.
func WriteSummary(w io.Writer, module string, res *result.TraversalResult, elapsed time.Duration, listAll bool) {
	if res == nil {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render(title(module)+" summary"))
	fmt.Fprintln(w, DividerStyle.Render(bannerSeparator))

	stat(w, "Target", URLStyle.Render(res.BaseURL))
	stat(w, "Status", StatusStyle(res.Status).Render(string(res.Status)))
	if res.Error != nil {
		stat(w, "Error", ErrorStyle.Render(*res.Error))
	}
	stat(w, "URLs", StatValueStyle.Render(strconv.Itoa(len(res.URLs))))
	stat(w, "Discovered", StatValueStyle.Render(strconv.Itoa(res.URLsDiscovered)))
	stat(w, "Max depth", StatValueStyle.Render(strconv.Itoa(res.MaxDepthReached)))
	if len(res.Truncated) > 0 {
		stat(w, "Truncated", WarningStyle.Render(strconv.Itoa(len(res.Truncated))))
	}
	if len(res.Subdomains) > 0 {
		stat(w, "Subdomains", strings.Join(res.Subdomains, ", "))
	}
	if res.RobotsTxt != nil {
		stat(w, "robots.txt", *res.RobotsTxt)
	}
	if len(res.Sitemaps) > 0 {
		stat(w, "Sitemaps", strings.Join(res.Sitemaps, ", "))
	}
	if len(res.GetParams) > 0 {
		names := make([]string, 0, len(res.GetParams))
		for name := range res.GetParams {
			names = append(names, name)
		}
		slices.Sort(names)
		stat(w, "GET params", strings.Join(names, ", "))
	}
	if elapsed > 0 {
		stat(w, "Duration", elapsed.Round(time.Millisecond).String())
	}

	if len(res.URLs) == 0 {
		return
	}
	fmt.Fprintln(w)
	urls := res.URLs
	if !listAll && len(urls) > SummaryPreview {
		urls = urls[:SummaryPreview]
	}
	for _, u := range urls {
		fmt.Fprintf(w, "  %s\n", URLStyle.Render(u))
	}
	if hidden := len(res.URLs) - len(urls); hidden > 0 {
		fmt.Fprintf(w, "  %s\n", StatLabelStyle.Render(fmt.Sprintf("... %d more in the report", hidden)))
	}
}

func title(module string) string {
	if module == "" {
		return "Traversal"
	}
	return strings.ToUpper(module[:1]) + module[1:]
}

func stat(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", StatLabelStyle.Render(fmt.Sprintf("%-12s", label+":")), value)
}
