// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/regbot-cli/internal/config"
	"github.com/xkilldash9x/regbot-cli/internal/observability"
	"github.com/xkilldash9x/regbot-cli/internal/orchestrator"
)

// fakeSession is an in-memory stand-in for a browser tab. Page text is looked
// up by the URL of the last successful navigation, so tests can script what
// the result checker will see per registration page.
type fakeSession struct {
	pageText   map[string]string
	currentURL string
	closed     bool
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.currentURL = url
	return nil
}

func (s *fakeSession) WaitVisible(ctx context.Context, selector string) error { return ctx.Err() }
func (s *fakeSession) SendKeys(ctx context.Context, selector, value string) error {
	return ctx.Err()
}
func (s *fakeSession) Click(ctx context.Context, selector string) error { return ctx.Err() }
func (s *fakeSession) Evaluate(ctx context.Context, js string, out any) error {
	// The filler's option-select and submit scripts expect a boolean result.
	if b, ok := out.(*bool); ok {
		*b = true
	}
	return ctx.Err()
}
func (s *fakeSession) Text(ctx context.Context) (string, error) {
	return s.pageText[s.currentURL], nil
}
func (s *fakeSession) HTML(ctx context.Context) (string, error)     { return "", nil }
func (s *fakeSession) Location(ctx context.Context) (string, error) { return s.currentURL, nil }
func (s *fakeSession) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	return []byte("png"), nil
}
func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeSessionProvider struct {
	session *fakeSession
}

func (p *fakeSessionProvider) NewSession(ctx context.Context) (orchestrator.Session, error) {
	return p.session, nil
}

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
}

// swapSessionProvider installs a fake browser session for the duration of one
// test so commands never launch a real Chrome process.
func swapSessionProvider(t *testing.T, session *fakeSession, launchErr error) {
	t.Helper()
	prev := newSessionProvider
	newSessionProvider = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (orchestrator.SessionProvider, func(), error) {
		if launchErr != nil {
			return nil, nil, launchErr
		}
		return &fakeSessionProvider{session: session}, func() {}, nil
	}
	t.Cleanup(func() { newSessionProvider = prev })
}

// writeTestConfig writes a config file that keeps every run artifact inside
// the test's temporary directory and silences the console logger.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`logger:
  level: error
  log_file: ""
browser:
  settle_delay: 0s
  post_submit_wait: 0s
run:
  output_dir: %q
  screenshot_dir: %q
  case_interval: 0s
`, filepath.Join(dir, "logs"), filepath.Join(dir, "screenshots"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath
}

func writeTestCSV(t *testing.T, dir string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, "test_data.csv")
	content := "name,email,phone,event,url\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// runRoot executes a pristine root command with the given args, capturing its
// combined output.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
