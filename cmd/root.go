// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/regbot-cli/internal/browser"
	"github.com/xkilldash9x/regbot-cli/internal/checker"
	"github.com/xkilldash9x/regbot-cli/internal/config"
	"github.com/xkilldash9x/regbot-cli/internal/form"
	"github.com/xkilldash9x/regbot-cli/internal/observability"
	"github.com/xkilldash9x/regbot-cli/internal/orchestrator"
	"github.com/xkilldash9x/regbot-cli/internal/reporting"
	"github.com/xkilldash9x/regbot-cli/internal/results"
	"github.com/xkilldash9x/regbot-cli/internal/screenshot"
)

// ErrCasesFailed is returned when the run itself completed but at least one
// test case did not succeed, so the process can exit non-zero.
var ErrCasesFailed = errors.New("one or more test cases failed")

// browserShutdownTimeout bounds how long we wait for Chrome to exit.
const browserShutdownTimeout = 15 * time.Second

type contextKey string

// configKey carries the loaded *config.Config from PersistentPreRunE to RunE.
const configKey contextKey = "config"

// newSessionProvider builds the browser-backed session provider. It is a
// package variable so tests can substitute a fake instead of launching Chrome.
var newSessionProvider = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (orchestrator.SessionProvider, func(), error) {
	manager, err := browser.NewManager(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), browserShutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser manager shutdown", zap.Error(err))
		}
	}
	return &managerProvider{manager: manager}, cleanup, nil
}

// managerProvider adapts the concrete browser manager to the orchestrator's
// provider interface.
type managerProvider struct {
	manager *browser.Manager
}

func (p *managerProvider) NewSession(ctx context.Context) (orchestrator.Session, error) {
	session, err := p.manager.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// NewRootCommand builds the root command. The root command itself runs the
// registration bot; a fresh instance is created per invocation so flag state
// never leaks between executions.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "regbot-cli [csv-file]",
		Short: "Regbot fills event registration web forms from a CSV of test cases.",
		Long: `Regbot drives a Chrome browser through a list of event registration pages.
Each row of the input CSV (name, email, phone, event, url) becomes one test
case: the bot navigates to the page, fills the form, submits it, classifies
the response page, and records the outcome in a report.`,
		Version:       Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			if err := bindFlags(cmd, v); err != nil {
				return fmt.Errorf("failed to bind command flags: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				// Fall back to a console logger so the failure is still visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "regbot-cli"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			logger := observability.GetLogger()
			logger.Info("Starting regbot-cli", zap.String("version", Version))

			// RunE reads the finalized config back out of the context.
			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			cmd.SetContext(ctx)
			return nil
		},
		RunE: runRegistration,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	flags := rootCmd.Flags()
	flags.String("csv", "test_data.csv", "CSV file of test cases (the positional argument wins when both are given)")
	flags.Bool("headless", true, "run the browser headless; use --headless=false to watch the run")
	flags.String("exec-path", "", "path to the Chrome/Chromium binary (auto-detected when empty)")
	flags.StringP("format", "f", "summary", "report format: 'summary', 'json' or 'junit'")
	flags.StringP("output", "o", "", "report file path (default is a timestamped file in the output dir)")
	flags.String("output-dir", "logs", "directory for generated reports")
	flags.String("profile", "", "YAML form profile overriding the built-in selectors and phrases")
	flags.Bool("screenshots", true, "capture a screenshot after every case")
	flags.String("screenshot-dir", "screenshots", "directory for captured screenshots")
	flags.Duration("interval", 2*time.Second, "pause between consecutive test cases")
	flags.String("log-level", "info", "log verbosity: debug, info, warn or error")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	return rootCmd
}

// Execute builds and runs the root command with the given signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger := observability.GetLogger()
		if errors.Is(err, context.Canceled) {
			logger.Warn("Run aborted by user signal.")
		} else {
			logger.Error("Command execution failed", zap.Error(err))
		}
		return err
	}
	return nil
}

// initializeConfig points viper at the config file and the environment.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("REGBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}
	return nil
}

// bindFlags maps the command flags onto their viper keys. This is the
// idiomatic way to ensure that command-line flags correctly override values
// from the config file and environment variables.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	bindings := map[string]string{
		"run.csv_path":            "csv",
		"browser.headless":        "headless",
		"browser.exec_path":       "exec-path",
		"run.report_format":       "format",
		"run.report_path":         "output",
		"run.output_dir":          "output-dir",
		"run.profile_path":        "profile",
		"run.screenshots_enabled": "screenshots",
		"run.screenshot_dir":      "screenshot-dir",
		"run.case_interval":       "interval",
		"logger.level":            "log-level",
	}
	for key, name := range bindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			return fmt.Errorf("flag %q is not defined", name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("cannot bind flag %q: %w", name, err)
		}
	}
	return nil
}

// runRegistration is the RunE for the root command: it wires the components
// together and drives one full registration run.
func runRegistration(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return fmt.Errorf("configuration was not loaded before execution")
	}
	if len(args) == 1 {
		cfg.Run.CSVPath = args[0]
	}

	out := cmd.OutOrStdout()
	banner := strings.Repeat("=", 60)
	fmt.Fprintf(out, "%s\nEVENT REGISTRATION FORM AUTOMATION\n%s\n", banner, banner)

	logger.Info("Starting registration run",
		zap.String("csv", cfg.Run.CSVPath),
		zap.Bool("headless", cfg.Browser.Headless),
		zap.String("report_format", cfg.Run.ReportFormat),
	)

	profile, err := loadProfile(cfg.Run.ProfilePath, logger)
	if err != nil {
		return err
	}

	provider, cleanupBrowser, err := newSessionProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize browser manager: %w", err)
	}
	defer cleanupBrowser()

	var shots orchestrator.ScreenshotWriter
	if cfg.Run.ScreenshotsEnabled {
		writer, err := screenshot.NewWriter(cfg.Run.ScreenshotDir, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize screenshot writer: %w", err)
		}
		shots = writer
	}

	reportPath := cfg.Run.ReportPath
	if reportPath == "" {
		reportPath = reporting.DefaultReportPath(cfg.Run.OutputDir, cfg.Run.ReportFormat, time.Now())
	}
	reporter, err := reporting.New(cfg.Run.ReportFormat, reportPath, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	defer func() {
		if err := reporter.Close(); err != nil {
			logger.Error("Failed to close reporter", zap.Error(err))
		}
	}()

	orch, err := orchestrator.New(cfg, logger, orchestrator.Deps{
		Sessions:  provider,
		Filler:    form.NewFiller(cfg.Browser, profile, logger),
		Checker:   checker.NewChecker(profile.Phrases, logger),
		Shots:     shots,
		Reporters: []reporting.Reporter{reporter},
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	report, err := orch.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Run aborted gracefully")
			return fmt.Errorf("run aborted by user signal: %w", err)
		}
		logger.Error("Registration run failed", zap.Error(err))
		return err
	}

	printRunSummary(out, report, reportPath)

	if summary := report.Summary(); summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrCasesFailed, summary.Failed, summary.Total)
	}
	return nil
}

// loadProfile returns the built-in form profile unless the operator supplied
// an override file.
func loadProfile(path string, logger *zap.Logger) (*form.Profile, error) {
	if path == "" {
		return form.DefaultProfile(), nil
	}
	profile, err := form.LoadProfile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load form profile: %w", err)
	}
	logger.Info("Loaded form profile overrides.", zap.String("path", path))
	return profile, nil
}

// printRunSummary writes the console recap shown at the end of a run.
func printRunSummary(w io.Writer, report *results.RunReport, reportPath string) {
	summary := report.Summary()
	banner := strings.Repeat("=", 60)

	fmt.Fprintf(w, "\n%s\nAUTOMATION COMPLETE\n%s\n", banner, banner)
	fmt.Fprintf(w, "Total Tests: %d\n", summary.Total)
	fmt.Fprintf(w, "Successful: %d\n", summary.Passed)
	fmt.Fprintf(w, "Failed: %d\n", summary.Failed)
	if summary.Total > 0 {
		fmt.Fprintf(w, "Success Rate: %.1f%%\n", summary.SuccessRate)
	}
	fmt.Fprintf(w, "Report: %s\n", reportPath)
}
