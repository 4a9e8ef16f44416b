// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/regbot-cli/internal/config"
)

// ErrNavigationTimeout indicates a page did not finish loading within the
// configured navigation timeout. Recorded per case; never fatal to the run.
var ErrNavigationTimeout = errors.New("navigation timed out")

// Session represents an active browser tab. One session is reused for every
// test case in a run.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

func newSession(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *zap.Logger, onClose func()) *Session {
	sessionID := uuid.New().String()
	return &Session{
		id:      sessionID,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.Named("session").With(zap.String("session_id", sessionID)),
		cfg:     cfg,
		onClose: onClose,
	}
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// applyHeaders installs the configured extra HTTP headers on the tab.
func (s *Session) applyHeaders(ctx context.Context) error {
	if len(s.cfg.Browser.Headers) == 0 {
		return nil
	}

	headers := make(network.Headers, len(s.cfg.Browser.Headers))
	for k, v := range s.cfg.Browser.Headers {
		headers[k] = v
	}

	if err := s.runActions(ctx, network.Enable(), network.SetExtraHTTPHeaders(headers)); err != nil {
		return fmt.Errorf("failed to apply extra headers: %w", err)
	}
	return nil
}

// Navigate loads the specified URL and blocks until the page is ready or the
// configured navigation timeout elapses.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL", zap.String("url", url))

	// Combine session context and the operational context.
	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	navTimeout := s.cfg.Browser.NavigationTimeout
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		// Distinguish the navigation deadline from an outer cancellation.
		if navCtx.Err() == context.DeadlineExceeded && opCtx.Err() == nil {
			return fmt.Errorf("%w after %s: %s", ErrNavigationTimeout, navTimeout, url)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("navigation failed for %s: %w", url, err)
	}

	return nil
}

// WaitVisible blocks until the element matching the selector is visible.
// The caller bounds the wait through ctx.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	if err := s.runActions(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for selector '%s' failed: %w", selector, err)
	}
	return nil
}

// SendKeys clears the element matching the selector and types the value into it.
func (s *Session) SendKeys(ctx context.Context, selector, value string) error {
	s.logger.Debug("Typing into element", zap.String("selector", selector), zap.Int("value_length", len(value)))

	tasks := chromedp.Tasks{
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	}
	if err := s.runActions(ctx, tasks); err != nil {
		return fmt.Errorf("type action failed for selector '%s': %w", selector, err)
	}
	return nil
}

// Click interacts with the element matching the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debug("Clicking element", zap.String("selector", selector))

	tasks := chromedp.Tasks{
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	}
	if err := s.runActions(ctx, tasks); err != nil {
		return fmt.Errorf("click action failed for selector '%s': %w", selector, err)
	}
	return nil
}

// Evaluate runs a JavaScript expression in the page, unmarshaling its result
// into out when out is non-nil.
func (s *Session) Evaluate(ctx context.Context, js string, out any) error {
	if err := s.runActions(ctx, chromedp.Evaluate(js, out)); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

// Text returns the visible text of the document body.
func (s *Session) Text(ctx context.Context) (string, error) {
	var text string
	if err := s.runActions(ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	return text, nil
}

// HTML returns the outer HTML of the document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.runActions(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}
	return html, nil
}

// Location returns the page's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	if err := s.runActions(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read page location: %w", err)
	}
	return url, nil
}

// CaptureScreenshot takes a full-page PNG screenshot of the current page.
func (s *Session) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.runActions(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("screenshot capture failed: %w", err)
	}
	return buf, nil
}

// Close terminates the browser tab. It is idempotent; second and later calls
// are no-ops returning nil, and resources are released even after earlier
// step errors.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// runActions executes chromedp actions, ensuring they respect both the session
// lifetime (s.ctx) and the incoming request context (ctx).
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}
