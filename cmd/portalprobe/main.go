// File: cmd/portalprobe/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/portalprobe/cmd"
	"github.com/xkilldash9x/portalprobe/internal/observability"
)

const panicLogFile = "portalprobe-panic.log"

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitPanic   = 2
)

// Function variables replaced in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	// Interrupts cancel the run; sessions and the browser are still torn down.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	osExit(exitCode(err))
}

// exitCode maps the command result to a process exit code. An interrupted run is
// not a failure.
func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return exitOK
	}
	return exitFailure
}

// handlePanic records an unrecovered panic with its stack trace in panicLogFile.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(exitPanic)
		return
	}
	fmt.Fprintf(os.Stderr, "portalprobe crashed; details logged to %s\n", panicLogFile)
	osExit(exitPanic)
}
