package main

import (
	"fmt"
	"io"

	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/result"
	"github.com/soda-recon/soda/pkg/ui"
)

// exitWithError prints a formatted error message and returns the failure code.
func exitWithError(format string, args ...any) int {
	ui.PrintError(fmt.Sprintf(format, args...))
	return defaults.ExitFailure
}

// exitWithUsage prints err followed by a usage hint and returns the usage code.
func exitWithUsage(w io.Writer, err error, usage string) int {
	ui.PrintError(err.Error())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:", usage)
	return defaults.ExitUserError
}

// traversalExitCode maps how a traversal ended to the process exit code.
// Hitting the URL limit is a normal end.
func traversalExitCode(res *result.TraversalResult) int {
	switch res.Status {
	case result.StatusFailed:
		return defaults.ExitFailure
	case result.StatusCancelled:
		return defaults.ExitInterrupted
	default:
		return defaults.ExitSuccess
	}
}
