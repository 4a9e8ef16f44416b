// internal/browser/helpers_test.go
package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/regbot-cli/internal/config"
)

// maxConcurrentBrowsers caps how many browser processes the test suite may
// hold open at once. Browser tests are expensive; running them all in
// parallel starves CI machines.
const maxConcurrentBrowsers = 2

var browserSemaphore = semaphore.NewWeighted(maxConcurrentBrowsers)

// acquireBrowserSlot blocks until the test may launch a browser process and
// releases the slot when the test finishes.
func acquireBrowserSlot(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	require.NoError(t, browserSemaphore.Acquire(ctx, 1), "timed out waiting for a browser slot")
	t.Cleanup(func() { browserSemaphore.Release(1) })
}

// browserExecPath locates an installed browser binary, or returns "".
func browserExecPath() string {
	candidates := []string{
		"google-chrome",
		"google-chrome-stable",
		"chromium",
		"chromium-browser",
		"chrome",
		"headless-shell",
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// skipWithoutBrowser skips tests that need a real browser process when none
// is installed on the host.
func skipWithoutBrowser(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if browserExecPath() == "" {
		t.Skip("no chrome/chromium binary found in PATH")
	}
}

// testBrowserConfig returns a config suitable for driving a browser in tests.
func testBrowserConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Browser.Headless = true
	cfg.Browser.LaunchTimeout = 60 * time.Second
	cfg.Browser.NavigationTimeout = 30 * time.Second
	return cfg
}

// newTestManager launches a manager against the host browser and tears it
// down when the test completes.
func newTestManager(t *testing.T, cfg *config.Config) *Manager {
	t.Helper()

	m, err := NewManager(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = m.Shutdown(shutdownCtx)
	})
	return m
}

const registrationPage = `<!DOCTYPE html>
<html>
<head><title>Event Registration</title></head>
<body>
  <h1>Register for an event</h1>
  <form id="registration" method="POST" action="/register">
    <input type="text" name="name" id="name">
    <input type="email" name="email" id="email">
    <input type="tel" name="phone" id="phone">
    <select name="event" id="event">
      <option value="">Choose...</option>
      <option value="conference">Tech Conference</option>
      <option value="workshop">Workshop</option>
    </select>
    <button type="submit" id="submit">Register</button>
  </form>
</body>
</html>`

const confirmationPage = `<!DOCTYPE html>
<html>
<head><title>Registration Complete</title></head>
<body><h1>Thank you!</h1><p>Your registration is confirmed.</p></body>
</html>`

// newRegistrationServer serves a minimal registration form plus a
// confirmation page on POST.
func newRegistrationServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(registrationPage))
	})
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(confirmationPage))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}
