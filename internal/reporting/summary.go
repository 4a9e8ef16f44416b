// internal/reporting/summary.go
package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/regbot-cli/internal/results"
)

// SummaryReporter renders the human-readable results file: one block per case
// followed by the run totals.
type SummaryReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
}

// NewSummaryReporter creates a reporter that takes ownership of the writer.
func NewSummaryReporter(writer io.WriteCloser, logger *zap.Logger) *SummaryReporter {
	return &SummaryReporter{
		writer: writer,
		logger: logger.Named("summary_reporter"),
	}
}

// Write renders the report.
func (r *SummaryReporter) Write(report *results.RunReport) error {
	var sb strings.Builder

	sb.WriteString("Event Registration Bot - Test Results\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	for _, res := range report.Results {
		status := "FAILURE"
		if res.Success {
			status = "SUCCESS"
		}

		fmt.Fprintf(&sb, "Test Case #%d\n", res.Index)
		fmt.Fprintf(&sb, "Name: %s\n", res.Name)
		fmt.Fprintf(&sb, "Email: %s\n", res.Email)
		fmt.Fprintf(&sb, "Phone: %s\n", res.Phone)
		fmt.Fprintf(&sb, "Event: %s\n", res.Event)
		fmt.Fprintf(&sb, "URL: %s\n", res.URL)
		fmt.Fprintf(&sb, "Status: %s\n", status)
		fmt.Fprintf(&sb, "Message: %s\n", res.Message)
		if res.ScreenshotPath != "" {
			fmt.Fprintf(&sb, "Screenshot: %s\n", res.ScreenshotPath)
		}
		fmt.Fprintf(&sb, "Timestamp: %s\n", res.FinishedAt.Format(time.RFC3339))
		sb.WriteString(strings.Repeat("-", 30) + "\n")
	}

	summary := report.Summary()
	sb.WriteString("\nSUMMARY:\n")
	fmt.Fprintf(&sb, "Total Tests: %d\n", summary.Total)
	fmt.Fprintf(&sb, "Successful: %d\n", summary.Passed)
	fmt.Fprintf(&sb, "Failed: %d\n", summary.Failed)
	if summary.Total > 0 {
		fmt.Fprintf(&sb, "Success Rate: %.1f%%\n", summary.SuccessRate)
	}

	if _, err := io.WriteString(r.writer, sb.String()); err != nil {
		return fmt.Errorf("failed to write summary report: %w", err)
	}

	r.logger.Debug("Wrote summary report.", zap.Int("cases", summary.Total))
	return nil
}

// Close closes the underlying writer.
func (r *SummaryReporter) Close() error {
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
