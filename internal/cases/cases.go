// File: internal/cases/cases.go
package cases

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"
)

// expectedHeader lists the required CSV columns, in order.
var expectedHeader = []string{"name", "email", "phone", "event", "url"}

// ErrEmptyFile indicates the CSV carried a header but no test cases.
var ErrEmptyFile = errors.New("test case file contains no data rows")

// RowError describes a row that could not be parsed into a test case.
type RowError struct {
	Line   int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("malformed row at line %d: %s", e.Line, e.Reason)
}

// TestCase is one registration attempt read from the input CSV.
// Index is the 1-based position of the row in the file.
type TestCase struct {
	Index int
	Name  string
	Email string
	Phone string
	Event string
	URL   string
}

// Load reads and validates registration test cases from a CSV file.
// The first row must be the header "name,email,phone,event,url". Any
// malformed data row aborts the load with a RowError naming the line, so
// the operator can fix the file instead of silently losing cases.
func Load(path string, logger *zap.Logger) ([]TestCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open test case file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	// Field count is validated per row to produce precise errors.
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	if err != nil {
		return nil, wrapCSVError(err)
	}
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	var testCases []TestCase
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapCSVError(err)
		}

		line, _ := r.FieldPos(0)
		tc, err := parseRecord(record, line, len(testCases)+1)
		if err != nil {
			return nil, err
		}
		testCases = append(testCases, tc)
	}

	if len(testCases) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	logger.Info("Loaded test cases.",
		zap.String("path", path),
		zap.Int("count", len(testCases)))
	return testCases, nil
}

// validateHeader checks the first row against the expected column set.
// A UTF-8 BOM on the first column is tolerated.
func validateHeader(header []string) error {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	if len(header) != len(expectedHeader) {
		return &RowError{
			Line:   1,
			Reason: fmt.Sprintf("expected header %q, got %d columns", strings.Join(expectedHeader, ","), len(header)),
		}
	}
	for i, col := range header {
		if !strings.EqualFold(strings.TrimSpace(col), expectedHeader[i]) {
			return &RowError{
				Line:   1,
				Reason: fmt.Sprintf("expected header column %d to be %q, got %q", i+1, expectedHeader[i], col),
			}
		}
	}
	return nil
}

// parseRecord turns one CSV record into a TestCase, trimming surrounding
// whitespace and rejecting missing or empty fields.
func parseRecord(record []string, line, index int) (TestCase, error) {
	if len(record) != len(expectedHeader) {
		return TestCase{}, &RowError{
			Line:   line,
			Reason: fmt.Sprintf("expected %d fields, got %d", len(expectedHeader), len(record)),
		}
	}

	trimmed := make([]string, len(record))
	for i, field := range record {
		trimmed[i] = strings.TrimSpace(field)
		if trimmed[i] == "" {
			return TestCase{}, &RowError{
				Line:   line,
				Reason: fmt.Sprintf("field %q is empty", expectedHeader[i]),
			}
		}
	}

	rawURL := trimmed[4]
	if err := validateURL(rawURL); err != nil {
		return TestCase{}, &RowError{
			Line:   line,
			Reason: fmt.Sprintf("invalid url %q: %v", rawURL, err),
		}
	}

	return TestCase{
		Index: index,
		Name:  trimmed[0],
		Email: trimmed[1],
		Phone: trimmed[2],
		Event: trimmed[3],
		URL:   rawURL,
	}, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// wrapCSVError converts a csv.ParseError into a RowError carrying the line
// number; other reader errors pass through wrapped.
func wrapCSVError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &RowError{Line: parseErr.Line, Reason: parseErr.Err.Error()}
	}
	return fmt.Errorf("reading test case file: %w", err)
}
