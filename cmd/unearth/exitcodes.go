package main

import "os"

// Exit codes, matching §6's contract so scripts can distinguish a
// not-found result from a usage error.
const (
	// ExitSuccess indicates a match was found (and downloaded, if requested).
	ExitSuccess = 0

	// ExitNoMatch indicates the requirement could not be satisfied by any
	// configured source.
	ExitNoMatch = 1

	// ExitUsage indicates invalid arguments, an unparsable requirement, or
	// any other failure (network, download, I/O) returned by the command.
	ExitUsage = 2
)

// exitWithCode exits with the specified exit code.
func exitWithCode(code int) {
	os.Exit(code)
}
