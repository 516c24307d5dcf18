package main

import (
	"fmt"
	"os"
)

// exitInterrupted is the conventional exit status after SIGINT.
const exitInterrupted = 130

// exitStatus is 130 once the run was interrupted and 1 otherwise, so
// wrapper scripts can tell a cancelled migration from a failed one.
func exitStatus() int {
	if rootCtx != nil && rootCtx.Err() != nil {
		return exitInterrupted
	}
	return 1
}

// FatalError prints "Error: ..." on stderr and exits.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(exitStatus())
}

// FatalErrorWithHint is FatalError followed by a "Hint: ..." line naming
// the setting or file to fix.
func FatalErrorWithHint(message, hint string) {
	fmt.Fprintf(os.Stderr, "Error: %s\nHint: %s\n", message, hint)
	os.Exit(exitStatus())
}

// WarnError reports a failed auxiliary step (report file, telemetry,
// user export) and lets the command continue.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
