// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Run     RunConfig     `mapstructure:"run" yaml:"run"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the browser instance that fills the forms.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth     int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int      `mapstructure:"window_height" yaml:"window_height"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string `mapstructure:"args" yaml:"args"`
	// Headers are sent with every request the session makes, useful for
	// registration pages sitting behind basic auth or feature gates.
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`

	// LaunchTimeout bounds the startup probe that verifies the browser
	// process is alive and responsive.
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// FieldTimeout is the per-selector wait applied while locating a
	// single form field.
	FieldTimeout   time.Duration `mapstructure:"field_timeout" yaml:"field_timeout"`
	SettleDelay    time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	PostSubmitWait time.Duration `mapstructure:"post_submit_wait" yaml:"post_submit_wait"`
}

// RunConfig drives a single registration run.
type RunConfig struct {
	CSVPath            string        `mapstructure:"csv_path" yaml:"csv_path"`
	OutputDir          string        `mapstructure:"output_dir" yaml:"output_dir"`
	ScreenshotDir      string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	ScreenshotsEnabled bool          `mapstructure:"screenshots_enabled" yaml:"screenshots_enabled"`
	CaseInterval       time.Duration `mapstructure:"case_interval" yaml:"case_interval"`
	ReportFormat       string        `mapstructure:"report_format" yaml:"report_format"`
	// ReportPath overrides the timestamped default report location when set.
	ReportPath  string `mapstructure:"report_path" yaml:"report_path"`
	ProfilePath string `mapstructure:"profile_path" yaml:"profile_path"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "regbot-cli")
	v.SetDefault("logger.log_file", "logs/regbot.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.field_timeout", "10s")
	v.SetDefault("browser.settle_delay", "500ms")
	v.SetDefault("browser.post_submit_wait", "2s")

	// -- Run --
	v.SetDefault("run.csv_path", "test_data.csv")
	v.SetDefault("run.output_dir", "logs")
	v.SetDefault("run.screenshot_dir", "screenshots")
	v.SetDefault("run.screenshots_enabled", true)
	v.SetDefault("run.case_interval", "2s")
	v.SetDefault("run.report_format", "summary")
	v.SetDefault("run.report_path", "")
	v.SetDefault("run.profile_path", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("error expanding configured paths: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves "~" prefixes in every path-valued setting so the rest
// of the application only ever sees absolute or relative OS paths.
func (c *Config) expandPaths() error {
	paths := []*string{
		&c.Logger.LogFile,
		&c.Browser.ExecPath,
		&c.Run.CSVPath,
		&c.Run.OutputDir,
		&c.Run.ScreenshotDir,
		&c.Run.ReportPath,
		&c.Run.ProfilePath,
	}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("cannot expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.Run.Validate(); err != nil {
		return fmt.Errorf("run configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	if b.WindowWidth <= 0 || b.WindowHeight <= 0 {
		return fmt.Errorf("window dimensions must be positive integers")
	}
	durations := map[string]time.Duration{
		"launch_timeout":     b.LaunchTimeout,
		"navigation_timeout": b.NavigationTimeout,
		"field_timeout":      b.FieldTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}
	if b.SettleDelay < 0 || b.PostSubmitWait < 0 {
		return fmt.Errorf("settle_delay and post_submit_wait must not be negative")
	}
	return nil
}

// Validate checks the run settings.
func (r *RunConfig) Validate() error {
	if r.CSVPath == "" {
		return fmt.Errorf("csv_path is a required configuration field")
	}
	if r.OutputDir == "" {
		return fmt.Errorf("output_dir is a required configuration field")
	}
	if r.ScreenshotsEnabled && r.ScreenshotDir == "" {
		return fmt.Errorf("screenshot_dir is required when screenshots are enabled")
	}
	if r.CaseInterval < 0 {
		return fmt.Errorf("case_interval must not be negative")
	}
	switch r.ReportFormat {
	case "summary", "json", "junit":
	default:
		return fmt.Errorf("unsupported report format: %s", r.ReportFormat)
	}
	return nil
}
