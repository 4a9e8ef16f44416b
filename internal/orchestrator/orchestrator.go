// File: internal/orchestrator/orchestrator.go
// Description: Manages the high-level lifecycle of a registration run. It is
// injected with fully configured components via interfaces, making it
// decoupled and testable.

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/regbot-cli/internal/cases"
	"github.com/xkilldash9x/regbot-cli/internal/checker"
	"github.com/xkilldash9x/regbot-cli/internal/config"
	"github.com/xkilldash9x/regbot-cli/internal/form"
	"github.com/xkilldash9x/regbot-cli/internal/reporting"
	"github.com/xkilldash9x/regbot-cli/internal/results"
	"github.com/xkilldash9x/regbot-cli/internal/screenshot"
)

// Session is the per-tab browser surface the orchestrator drives. The browser
// package's Session satisfies it.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, js string, out any) error
	Text(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
	CaptureScreenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// SessionProvider hands out browser sessions.
type SessionProvider interface {
	NewSession(ctx context.Context) (Session, error)
}

// FormFiller fills and submits the registration form for one case.
type FormFiller interface {
	Fill(ctx context.Context, d form.Driver, tc cases.TestCase) error
	SubmitForm(ctx context.Context, d form.Driver) error
}

// ResultChecker classifies the post-submission page.
type ResultChecker interface {
	Check(ctx context.Context, page checker.PageReader) checker.Outcome
}

// ScreenshotWriter persists a capture for a case.
type ScreenshotWriter interface {
	Capture(ctx context.Context, shooter screenshot.Screenshotter, caseIndex int) (string, error)
}

// caseState tracks where in its lifecycle a case currently is.
type caseState int

const (
	statePending caseState = iota
	stateFilling
	stateChecking
	stateLogged
)

func (s caseState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateFilling:
		return "filling"
	case stateChecking:
		return "checking"
	case stateLogged:
		return "logged"
	default:
		return "unknown"
	}
}

// activity names what the bot was doing in this state, for failure messages.
func (s caseState) activity() string {
	switch s {
	case statePending:
		return "navigation"
	case stateFilling:
		return "form filling"
	case stateChecking:
		return "result check"
	default:
		return "processing"
	}
}

// Deps bundles the injected components. Shots may be nil to disable
// screenshot capture; Reporters may be empty.
type Deps struct {
	Sessions  SessionProvider
	Filler    FormFiller
	Checker   ResultChecker
	Shots     ScreenshotWriter
	Reporters []reporting.Reporter
}

// Orchestrator runs every CSV row strictly in order over one shared browser
// session. Cases never retry and never run concurrently.
type Orchestrator struct {
	cfg       *config.Config
	logger    *zap.Logger
	sessions  SessionProvider
	filler    FormFiller
	checker   ResultChecker
	shots     ScreenshotWriter
	reporters []reporting.Reporter
}

// New creates a new Orchestrator with its dependencies injected.
func New(cfg *config.Config, logger *zap.Logger, deps Deps) (*Orchestrator, error) {
	if cfg == nil ||
		logger == nil ||
		deps.Sessions == nil ||
		deps.Filler == nil ||
		deps.Checker == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
		sessions:  deps.Sessions,
		filler:    deps.Filler,
		checker:   deps.Checker,
		shots:     deps.Shots,
		reporters: deps.Reporters,
	}, nil
}

// Run loads the CSV, opens one browser session, and processes each case in
// input order. Startup failures (unreadable CSV, no browser) abort before any
// case runs. Per-case failures are recorded as failed results and the run
// continues with the next row. Cancellation keeps the completed results and
// still writes the end-of-run reports.
func (o *Orchestrator) Run(ctx context.Context) (*results.RunReport, error) {
	testCases, err := cases.Load(o.cfg.Run.CSVPath, o.logger)
	if err != nil {
		return nil, err
	}

	report := results.NewRunReport(o.cfg.Run.CSVPath)

	session, err := o.sessions.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not open browser session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			o.logger.Warn("Failed to close browser session.", zap.Error(cerr))
		}
	}()

	// The bucket starts full, so the first case is never delayed and nothing
	// waits after the last one.
	limiter := rate.NewLimiter(rate.Every(o.cfg.Run.CaseInterval), 1)

	for _, tc := range testCases {
		if err := limiter.Wait(ctx); err != nil {
			o.logger.Warn("Run cancelled while pacing between cases.", zap.Error(err))
			break
		}

		res := o.runCase(ctx, session, tc)
		report.Append(res)
		o.logResult(res)

		if ctx.Err() != nil {
			o.logger.Warn("Run cancelled; remaining cases skipped.",
				zap.Int("completed", len(report.Results)),
				zap.Int("total", len(testCases)),
			)
			break
		}
	}

	report.Finish()
	o.writeReports(report)
	return report, nil
}

// runCase drives a single case through pending, filling, checking, logged.
// Every failure is caught here; a case never takes down the run.
func (o *Orchestrator) runCase(ctx context.Context, session Session, tc cases.TestCase) results.CaseResult {
	state := statePending
	logger := o.logger.With(zap.Int("case", tc.Index), zap.String("name", tc.Name))
	logger.Info("Processing test case.", zap.String("url", tc.URL))

	res := results.CaseResult{
		Index:     tc.Index,
		Name:      tc.Name,
		Email:     tc.Email,
		Phone:     tc.Phone,
		Event:     tc.Event,
		URL:       tc.URL,
		StartedAt: time.Now(),
	}

	err := func() error {
		if err := session.Navigate(ctx, tc.URL); err != nil {
			return err
		}

		state = stateFilling
		if err := o.filler.Fill(ctx, session, tc); err != nil {
			return err
		}
		if err := o.filler.SubmitForm(ctx, session); err != nil {
			return err
		}

		state = stateChecking
		if err := o.waitFor(ctx, o.cfg.Browser.PostSubmitWait); err != nil {
			return err
		}
		outcome := o.checker.Check(ctx, session)
		res.Success = outcome.Success
		res.Indeterminate = outcome.Indeterminate
		res.Message = outcome.Message
		return nil
	}()

	if err != nil {
		res.Success = false
		res.Message = fmt.Sprintf("%s failed: %v", state.activity(), err)
		res.Err = err.Error()
		logger.Error("Test case failed.", zap.String("state", state.String()), zap.Error(err))
	}

	// Capture for both outcomes; failed pages are the ones worth seeing.
	o.captureScreenshot(ctx, session, &res, logger)

	state = stateLogged
	res.FinishedAt = time.Now()
	logger.Debug("Case finalized.", zap.String("state", state.String()), zap.Bool("success", res.Success))
	return res
}

// captureScreenshot is best effort: a capture or write failure is logged and
// never changes the case outcome.
func (o *Orchestrator) captureScreenshot(ctx context.Context, session Session, res *results.CaseResult, logger *zap.Logger) {
	if o.shots == nil {
		return
	}
	path, err := o.shots.Capture(ctx, session, res.Index)
	if err != nil {
		logger.Warn("Screenshot capture failed.", zap.Error(err))
		return
	}
	res.ScreenshotPath = path
}

func (o *Orchestrator) logResult(res results.CaseResult) {
	status := "SUCCESS"
	if !res.Success {
		status = "FAILURE"
	}
	o.logger.Info(fmt.Sprintf("Test case #%d - %s", res.Index, status),
		zap.String("message", res.Message),
		zap.Duration("duration", res.Duration()),
	)
}

// writeReports renders the finished run through every configured reporter.
// Reporter failures are logged, not fatal; the results themselves are already
// in the rolling log.
func (o *Orchestrator) writeReports(report *results.RunReport) {
	for _, r := range o.reporters {
		if err := r.Write(report); err != nil {
			o.logger.Error("Failed to write report.", zap.Error(err))
		}
	}
}

func (o *Orchestrator) waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
