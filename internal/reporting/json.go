// internal/reporting/json.go
package reporting

import (
	"fmt"
	"io"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/regbot-cli/internal/results"
)

// JSONReporter writes the machine-readable run envelope.
type JSONReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
}

// NewJSONReporter creates a reporter that takes ownership of the writer.
func NewJSONReporter(writer io.WriteCloser, logger *zap.Logger) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		logger: logger.Named("json_reporter"),
	}
}

type jsonEnvelope struct {
	RunID      string               `json:"run_id"`
	CSVPath    string               `json:"csv_path"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Summary    results.Summary      `json:"summary"`
	Results    []results.CaseResult `json:"results"`
}

// Write encodes the envelope with indentation for diff-friendly output.
func (r *JSONReporter) Write(report *results.RunReport) error {
	envelope := jsonEnvelope{
		RunID:      report.RunID,
		CSVPath:    report.CSVPath,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Summary:    report.Summary(),
		Results:    report.Results,
	}
	if envelope.Results == nil {
		envelope.Results = []results.CaseResult{}
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(envelope); err != nil {
		return fmt.Errorf("failed to encode json report: %w", err)
	}

	r.logger.Debug("Wrote json report.", zap.Int("cases", len(envelope.Results)))
	return nil
}

// Close closes the underlying writer.
func (r *JSONReporter) Close() error {
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
