package defaults

// Exit codes for the CLI.
const (
	ExitSuccess     = 0   // Traversal finished and the report was written
	ExitFailure     = 1   // Fatal initialization or report write failure
	ExitUserError   = 2   // Invalid arguments or configuration
	ExitInterrupted = 130 // Cancelled by signal; partial result was saved
)
