// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/portalprobe/internal/scenario"
)

// Reporter defines the interface for writing scenario results to an output.
type Reporter interface {
	// Write records a single scenario result.
	Write(result *scenario.Result) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path. An empty
// path or "stdout" writes to stdout.
func New(format, outputPath, toolVersion string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		expanded, err := homedir.Expand(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to expand output path %s: %w", outputPath, err)
		}
		f, err := os.Create(expanded)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "console", "":
		return NewConsoleReporter(writer), nil
	case "json":
		return NewJSONReporter(writer, toolVersion), nil
	default:
		if !isStdOut {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
