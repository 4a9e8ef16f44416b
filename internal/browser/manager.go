// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/regbot-cli/internal/config"
)

// ErrBrowserUnavailable indicates the browser process could not be launched
// or never became responsive. This is fatal at startup.
var ErrBrowserUnavailable = errors.New("browser unavailable")

// Manager handles the lifecycle of the browser process. One process serves
// the whole run; sessions are tabs derived from it.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	// allocatorCtx manages the entire browser process. All session contexts are derived from this.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// wg tracks active sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager initializes the browser manager and launches the browser process.
func NewManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}

	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrowserUnavailable, err)
	}

	return m, nil
}

// launchBrowser prepares allocator options and starts the browser process.
func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...",
		zap.Bool("headless", m.cfg.Browser.Headless),
		zap.String("exec_path", m.cfg.Browser.ExecPath))

	opts := DefaultAllocatorOptions(m.cfg.Browser)

	// Create the allocator context.
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	// Create a temporary context with a timeout to verify the browser starts and is responsive.
	probeCtx, cancelProbe := context.WithTimeout(allocCtx, m.cfg.Browser.LaunchTimeout)
	probeCtx, cancelProbeCtx := chromedp.NewContext(probeCtx)
	defer cancelProbeCtx()
	defer cancelProbe()

	// Run a simple task to confirm the browser is alive.
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel() // Ensure cleanup if the probe fails
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

// flagOverrides assembles the browser flags derived from configuration.
// Kept separate from the chromedp option list so the set stays testable
// without launching a browser.
func flagOverrides(cfg config.BrowserConfig) map[string]any {
	flags := map[string]any{
		"headless": cfg.Headless,
		// Later options override the defaults, so this turns off the
		// enable-automation flag chromedp sets out of the box.
		"enable-automation": false,
		// Disable the Blink feature used to detect automation (navigator.webdriver).
		"disable-blink-features": "AutomationControlled",
		"disable-extensions":     true,
		"disable-gpu":            cfg.Headless,
	}

	if cfg.IgnoreTLSErrors {
		flags["ignore-certificate-errors"] = true
		flags["allow-insecure-localhost"] = true
	}

	// Flags required for running inside containers (e.g., Docker on Linux).
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}

	// Custom arguments from config override anything set above.
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			flags[flagName] = parts[1]
		} else {
			flags[flagName] = true
		}
	}

	return flags
}

// DefaultAllocatorOptions builds the chromedp allocator options for a
// configurable browser instance that does not advertise automation.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := flagOverrides(cfg)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}

	return opts
}

// NewSession opens a new tab bound to this manager's browser process.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(m.allocatorCtx)

	// Ensure the target (tab) is created and CDP is connected before the
	// session is handed out.
	initCtx, cancelInit := CombineContext(tabCtx, ctx)
	defer cancelInit()
	if err := chromedp.Run(initCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	m.wg.Add(1)
	s := newSession(tabCtx, tabCancel, m.cfg, m.logger, m.wg.Done)

	if err := s.applyHeaders(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	m.logger.Info("Browser session opened.", zap.String("session_id", s.ID()))
	return s, nil
}

// Shutdown waits for all active sessions to complete and then terminates the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutdown initiated. Waiting for active sessions to close...")

	// Wait for all sessions (tracked by wg) to finish, respecting the caller's deadline.
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions have closed.")
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}

	// Terminate the main browser process.
	if m.allocatorCancel != nil {
		m.logger.Info("Shutting down browser process...")
		m.allocatorCancel()
		// Wait for the allocator context to confirm termination.
		<-m.allocatorCtx.Done()
	}
	return nil
}
