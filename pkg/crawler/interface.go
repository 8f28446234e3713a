package crawler

import "github.com/soda-recon/soda/pkg/runner"

// Ensure the concrete Crawler satisfies the runner interface at compile time.
var _ runner.Traverser = (*Crawler)(nil)
