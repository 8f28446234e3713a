// Package defaults provides canonical default values for soda.
// This is the SINGLE SOURCE OF TRUTH for traversal limits, request layer
// settings, and the browser identity pools.
//
// Usage:
//
//	opts.MaxURLs = defaults.MaxURLsCrawler
//	cfg.MaxRetries = defaults.MaxRetries
//
// DO NOT use hardcoded values like `MaxDepth: 3` anywhere.
// Instead, reference the appropriate constant from this package.
package defaults

// Version is the current soda version
const Version = "1.4.0"

// ToolName identifies the tool in reports and telemetry
const ToolName = "soda"

// ============================================================================
// TRAVERSAL LIMITS
// ============================================================================

const (
	// MaxDepth is the default traversal depth for both engines (3)
	MaxDepth = 3

	// MaxURLsCrawler stops the crawler once this many URLs are known (25000)
	MaxURLsCrawler = 25000

	// MaxChildrenDiscoverer is the per-directory density threshold of the
	// discoverer; larger groups collapse into a "parent/*" marker (30)
	MaxChildrenDiscoverer = 30

	// MaxParamValues caps the (value, path) samples kept per GET parameter (5)
	MaxParamValues = 5
)

// ============================================================================
// REQUEST LAYER
// ============================================================================

const (
	// MaxRetries is the total number of attempts per fetch (3)
	MaxRetries = 3

	// RefererHistory is how many successfully fetched URLs are remembered (10)
	RefererHistory = 10

	// MaxRedirects bounds redirect following per request (10)
	MaxRedirects = 10

	// MaxBodySize bounds how much of a response body is read (10MB)
	MaxBodySize int64 = 10 * 1024 * 1024
)

// ============================================================================
// REPORT
// ============================================================================

const (
	// ReportFile is the report file name inside the output directory
	ReportFile = "report.json"

	// LogFile is the debug log written next to the report
	LogFile = "scan.log"

	// ReportsDir is the parent of per-target output directories
	ReportsDir = "reports"

	// ModuleCrawler and ModuleDiscoverer name findings in the report
	ModuleCrawler    = "crawler"
	ModuleDiscoverer = "discoverer"

	// CategoryMap is the report category of traversal results
	CategoryMap = "map"
)
