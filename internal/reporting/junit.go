// internal/reporting/junit.go
package reporting

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/xkilldash9x/regbot-cli/internal/results"
)

// JUnitReporter renders the run as JUnit-style XML so CI systems can ingest
// registration results like any other test suite.
type JUnitReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
}

// NewJUnitReporter creates a reporter that takes ownership of the writer.
func NewJUnitReporter(writer io.WriteCloser, logger *zap.Logger) *JUnitReporter {
	return &JUnitReporter{
		writer: writer,
		logger: logger.Named("junit_reporter"),
	}
}

// Write renders one testsuite with one testcase per registration row.
// Indeterminate cases count as failures, matching the run's exit semantics.
func (r *JUnitReporter) Write(report *results.RunReport) error {
	summary := report.Summary()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	suite := doc.CreateElement("testsuite")
	suite.CreateAttr("name", "registration")
	suite.CreateAttr("tests", strconv.Itoa(summary.Total))
	suite.CreateAttr("failures", strconv.Itoa(summary.Failed))
	suite.CreateAttr("errors", "0")
	suite.CreateAttr("timestamp", report.StartedAt.Format(time.RFC3339))
	suite.CreateAttr("time", fmt.Sprintf("%.3f", report.FinishedAt.Sub(report.StartedAt).Seconds()))

	for _, res := range report.Results {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", fmt.Sprintf("case_%d_%s", res.Index, res.Name))
		tc.CreateAttr("classname", report.CSVPath)
		tc.CreateAttr("time", fmt.Sprintf("%.3f", res.Duration().Seconds()))

		if !res.Success {
			failure := tc.CreateElement("failure")
			failure.CreateAttr("message", res.Message)
			if res.Err != "" {
				failure.SetText(res.Err)
			}
		}
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(r.writer); err != nil {
		return fmt.Errorf("failed to write junit report: %w", err)
	}

	r.logger.Debug("Wrote junit report.", zap.Int("cases", summary.Total))
	return nil
}

// Close closes the underlying writer.
func (r *JUnitReporter) Close() error {
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
