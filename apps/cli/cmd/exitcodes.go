package cmd

// Exit codes for apischema CLI
const (
	// ExitSuccess indicates the call succeeded and every expectation held
	ExitSuccess = 0

	// ExitTestFailure indicates an expectation or tester failed
	ExitTestFailure = 1

	// ExitParseError indicates a schema file could not be loaded or is invalid
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
