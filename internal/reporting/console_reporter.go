// internal/reporting/console_reporter.go
package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/portalprobe/internal/scenario"
)

// ConsoleReporter prints one line per scenario as results arrive and the full outcome
// report of every failed step. It is thread safe.
type ConsoleReporter struct {
	writer io.WriteCloser
	mu     sync.Mutex
	passed int
	failed int
}

// NewConsoleReporter creates a reporter that writes human readable text to writer.
func NewConsoleReporter(writer io.WriteCloser) *ConsoleReporter {
	return &ConsoleReporter{writer: writer}
}

// Write prints the result.
func (r *ConsoleReporter) Write(result *scenario.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sb strings.Builder
	status := "PASS"
	if result.Passed {
		r.passed++
	} else {
		r.failed++
		status = "FAIL"
	}
	fmt.Fprintf(&sb, "%s  %s (%v)\n", status, result.Scenario, result.Elapsed.Round(time.Millisecond))
	if !result.Passed {
		if result.FailedStep >= 0 && result.FailedStep < len(result.Outcomes) {
			fmt.Fprintf(&sb, "  step %d failed:\n", result.FailedStep+1)
			for _, line := range strings.Split(strings.TrimRight(result.Outcomes[result.FailedStep].Report(), "\n"), "\n") {
				fmt.Fprintf(&sb, "  %s\n", line)
			}
		}
		if result.Error != "" {
			fmt.Fprintf(&sb, "  error: %s\n", result.Error)
		}
	}
	_, err := io.WriteString(r.writer, sb.String())
	return err
}

// Close prints the summary and closes the writer.
func (r *ConsoleReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, writeErr := fmt.Fprintf(r.writer, "\n%d passed, %d failed\n", r.passed, r.failed)
	closeErr := r.writer.Close()
	if writeErr != nil {
		return fmt.Errorf("failed to write summary: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
