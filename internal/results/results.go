// File: internal/results/results.go
package results

import (
	"time"

	"github.com/google/uuid"
)

// CaseResult captures the outcome of a single registration attempt.
type CaseResult struct {
	Index          int       `json:"index"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Event          string    `json:"event"`
	URL            string    `json:"url"`
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	Indeterminate  bool      `json:"indeterminate,omitempty"`
	ScreenshotPath string    `json:"screenshot_path,omitempty"`
	Err            string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Duration returns how long the case took end to end.
func (c CaseResult) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}

// RunReport is the final aggregated report for one registration run.
// Results are appended strictly in input order, one per CSV row.
type RunReport struct {
	RunID      string       `json:"run_id"`
	CSVPath    string       `json:"csv_path"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []CaseResult `json:"results"`
}

// Summary aggregates the pass/fail counts for a run.
type Summary struct {
	Total       int     `json:"total"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// NewRunReport creates an empty report for a run starting now.
func NewRunReport(csvPath string) *RunReport {
	return &RunReport{
		RunID:     uuid.New().String(),
		CSVPath:   csvPath,
		StartedAt: time.Now(),
	}
}

// Append records the outcome of one case.
func (r *RunReport) Append(res CaseResult) {
	r.Results = append(r.Results, res)
}

// Finish stamps the report's end time.
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
}

// Summary computes the aggregate counts over the recorded results.
func (r *RunReport) Summary() Summary {
	s := Summary{Total: len(r.Results)}
	for _, res := range r.Results {
		if res.Success {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Passed) / float64(s.Total) * 100.0
	}
	return s
}
