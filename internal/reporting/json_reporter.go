// internal/reporting/json_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portalprobe/internal/observability"
	"github.com/xkilldash9x/portalprobe/internal/scenario"
)

// ToolName identifies the tool in JSON reports.
const ToolName = "portalprobe"

// Document is the top level JSON report.
type Document struct {
	Tool        string             `json:"tool"`
	Version     string             `json:"version"`
	GeneratedAt time.Time          `json:"generated_at"`
	Summary     Summary            `json:"summary"`
	Results     []*scenario.Result `json:"results"`
}

// Summary counts scenario results.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// JSONReporter buffers results and writes a single Document on Close. It is thread safe.
type JSONReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	doc    Document
	mu     sync.Mutex
}

// NewJSONReporter creates a reporter that writes a JSON document to writer.
func NewJSONReporter(writer io.WriteCloser, toolVersion string) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		logger: observability.GetLogger().Named("json_reporter"),
		doc: Document{
			Tool:    ToolName,
			Version: toolVersion,
			// Initialize an empty slice (not nil) for proper JSON marshalling.
			Results: []*scenario.Result{},
		},
	}
}

// Write adds result to the document.
func (r *JSONReporter) Write(result *scenario.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.doc.Results = append(r.doc.Results, result)
	r.doc.Summary.Total++
	if result.Passed {
		r.doc.Summary.Passed++
	} else {
		r.doc.Summary.Failed++
	}
	return nil
}

// Close encodes the document and closes the writer.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.doc.GeneratedAt = time.Now().UTC()
	r.logger.Debug("Finalizing JSON report.", zap.Int("total_results", r.doc.Summary.Total))

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(r.doc)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode JSON report.", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode JSON output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer.", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
