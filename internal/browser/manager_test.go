// internal/browser/manager_test.go
package browser

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/regbot-cli/internal/config"
)

func TestFlagOverrides(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		flags := flagOverrides(config.BrowserConfig{Headless: true})

		assert.Equal(t, true, flags["headless"])
		assert.Equal(t, false, flags["enable-automation"])
		assert.Equal(t, "AutomationControlled", flags["disable-blink-features"])
		assert.Equal(t, true, flags["disable-gpu"])
		if runtime.GOOS == "linux" {
			assert.Equal(t, true, flags["no-sandbox"])
			assert.Equal(t, true, flags["disable-dev-shm-usage"])
		}
	})

	t.Run("headful keeps the gpu", func(t *testing.T) {
		flags := flagOverrides(config.BrowserConfig{Headless: false})
		assert.Equal(t, false, flags["headless"])
		assert.Equal(t, false, flags["disable-gpu"])
	})

	t.Run("tls errors ignored", func(t *testing.T) {
		flags := flagOverrides(config.BrowserConfig{IgnoreTLSErrors: true})
		assert.Equal(t, true, flags["ignore-certificate-errors"])
		assert.Equal(t, true, flags["allow-insecure-localhost"])
	})

	t.Run("custom args", func(t *testing.T) {
		flags := flagOverrides(config.BrowserConfig{
			Args: []string{"--proxy-server=socks5://localhost:9050", "--incognito"},
		})
		assert.Equal(t, "socks5://localhost:9050", flags["proxy-server"])
		assert.Equal(t, true, flags["incognito"])
	})

	t.Run("custom args override builtins", func(t *testing.T) {
		flags := flagOverrides(config.BrowserConfig{
			Headless: true,
			Args:     []string{"--headless=false"},
		})
		assert.Equal(t, "false", flags["headless"])
	})
}

func TestDefaultAllocatorOptions(t *testing.T) {
	cfg := config.BrowserConfig{
		Headless:     true,
		UserAgent:    "test-agent",
		WindowWidth:  1280,
		WindowHeight: 800,
		ExecPath:     "/usr/bin/true",
	}
	opts := DefaultAllocatorOptions(cfg)

	// The set must extend the chromedp defaults with our overrides.
	assert.Greater(t, len(opts), len(chromedp.DefaultExecAllocatorOptions))
}

func TestManagerLifecycle(t *testing.T) {
	skipWithoutBrowser(t)
	acquireBrowserSlot(t)

	cfg := testBrowserConfig()
	m := newTestManager(t, cfg)
	server := newRegistrationServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session, err := m.NewSession(ctx)
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Navigate(ctx, server.URL))

	text, err := session.Text(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, "Register for an event")

	location, err := session.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/", location)
}

func TestManagerLaunchFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process launch test in short mode")
	}

	cfg := config.NewDefaultConfig()
	// Point at a binary that does not exist so the launch can never succeed.
	cfg.Browser.ExecPath = filepath.Join(t.TempDir(), "no-such-browser")
	cfg.Browser.LaunchTimeout = 5 * time.Second

	_, err := NewManager(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBrowserUnavailable)
}

func TestManagerShutdownWaitsForSessions(t *testing.T) {
	skipWithoutBrowser(t)
	acquireBrowserSlot(t)

	cfg := testBrowserConfig()
	m := newTestManager(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session, err := m.NewSession(ctx)
	require.NoError(t, err)

	released := make(chan struct{})
	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = session.Close()
		close(released)
	}()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	require.NoError(t, m.Shutdown(shutdownCtx))

	select {
	case <-released:
	default:
		t.Fatal("Shutdown returned before the open session was closed")
	}
}
