// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/regbot-cli/internal/results"
)

// Reporter defines the interface for writing a finished run to an output.
type Reporter interface {
	// Write renders the full run report.
	Write(report *results.RunReport) error
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

// New creates a new reporter based on the specified format and output path.
// An empty path or "stdout" writes to standard output.
func New(format, outputPath string, logger *zap.Logger) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create report directory %s: %w", dir, err)
			}
		}
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	// Close the file handle if format dispatch fails.
	cleanup := func() {
		if !isStdOut {
			writer.Close()
		}
	}

	switch format {
	case "", "summary", "text":
		return NewSummaryReporter(writer, logger), nil
	case "json":
		return NewJSONReporter(writer, logger), nil
	case "junit":
		return NewJUnitReporter(writer, logger), nil
	default:
		cleanup()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// DefaultReportPath builds the timestamped per-run report path. Embedding the
// run timestamp keeps repeated runs from overwriting each other.
func DefaultReportPath(outputDir, format string, now time.Time) string {
	var ext string
	switch format {
	case "json":
		ext = "json"
	case "junit":
		ext = "xml"
	default:
		ext = "txt"
	}
	name := fmt.Sprintf("results_%s.%s", now.Format("20060102_150405"), ext)
	return filepath.Join(outputDir, name)
}
