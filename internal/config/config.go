// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Engine() EngineConfig
	Failover() FailoverConfig
	Providers() ProvidersConfig
	Sanitizer() SanitizerConfig
	Report() ReportConfig
	Platforms() map[string]PlatformConfig
	Platform(name string) (PlatformConfig, bool)

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserDebug(bool)

	// Engine Setters
	SetEngineStepBudget(int)
	SetEngineConcurrency(int)

	// Report Setter
	SetReportOutputDir(string)
}

// Config holds the entire application configuration. It uses private
// fields to enforce access through the Interface's getter methods;
// decoding happens through rawConfig because mapstructure cannot set
// unexported fields.
type Config struct {
	logger    LoggerConfig
	browser   BrowserConfig
	engine    EngineConfig
	failover  FailoverConfig
	providers ProvidersConfig
	sanitizer SanitizerConfig
	report    ReportConfig
	platforms map[string]PlatformConfig
}

// rawConfig mirrors Config with exported fields for viper decoding.
type rawConfig struct {
	Logger    LoggerConfig              `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig             `mapstructure:"browser" yaml:"browser"`
	Engine    EngineConfig              `mapstructure:"engine" yaml:"engine"`
	Failover  FailoverConfig            `mapstructure:"failover" yaml:"failover"`
	Providers ProvidersConfig           `mapstructure:"providers" yaml:"providers"`
	Sanitizer SanitizerConfig           `mapstructure:"sanitizer" yaml:"sanitizer"`
	Report    ReportConfig              `mapstructure:"report" yaml:"report"`
	Platforms map[string]PlatformConfig `mapstructure:"platforms" yaml:"platforms"`
}

func (r rawConfig) config() *Config {
	return &Config{
		logger:    r.Logger,
		browser:   r.Browser,
		engine:    r.Engine,
		failover:  r.Failover,
		providers: r.Providers,
		sanitizer: r.Sanitizer,
		report:    r.Report,
		platforms: r.Platforms,
	}
}

// -- Getters --

func (c *Config) Logger() LoggerConfig                  { return c.logger }
func (c *Config) Browser() BrowserConfig                { return c.browser }
func (c *Config) Engine() EngineConfig                  { return c.engine }
func (c *Config) Failover() FailoverConfig              { return c.failover }
func (c *Config) Providers() ProvidersConfig            { return c.providers }
func (c *Config) Sanitizer() SanitizerConfig            { return c.sanitizer }
func (c *Config) Report() ReportConfig                  { return c.report }
func (c *Config) Platforms() map[string]PlatformConfig  { return c.platforms }

// Platform looks up one platform by its registry key.
func (c *Config) Platform(name string) (PlatformConfig, bool) {
	p, ok := c.platforms[strings.ToLower(name)]
	return p, ok
}

// -- Setters (flag overrides) --

func (c *Config) SetBrowserHeadless(b bool)  { c.browser.Headless = b }
func (c *Config) SetBrowserDebug(b bool)     { c.browser.Debug = b }
func (c *Config) SetEngineStepBudget(n int)  { c.engine.StepBudget = n }
func (c *Config) SetEngineConcurrency(n int) { c.engine.Concurrency = n }
func (c *Config) SetReportOutputDir(d string) { c.report.OutputDir = d }

// LoggerConfig configures the zap logger and its lumberjack sink.
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

// ColorConfig maps log levels to terminal colors for the console format.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the Chrome instance driven over CDP.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
	UserDataDir       string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	// LoginTimeout bounds the whole authentication flow including the
	// wait for the post-login marker.
	LoginTimeout time.Duration `mapstructure:"login_timeout" yaml:"login_timeout"`
}

// EngineConfig bounds the perceive-act loop.
type EngineConfig struct {
	StepBudget int `mapstructure:"step_budget" yaml:"step_budget"`
	// Concurrency caps how many tasks run simultaneous browser
	// sessions in multi-target runs.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// CoordinateTolerancePx is the clamping slack for provider
	// coordinates that land just outside the viewport.
	CoordinateTolerancePx float64 `mapstructure:"coordinate_tolerance_px" yaml:"coordinate_tolerance_px"`
	// ScreenshotDir, when set, receives a PNG per step for debugging.
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// FailoverConfig controls provider retry and switchover behavior.
type FailoverConfig struct {
	// MaxAttemptsPerProvider is how many consecutive failed turns one
	// provider gets before the controller switches to the next.
	MaxAttemptsPerProvider int           `mapstructure:"max_attempts_per_provider" yaml:"max_attempts_per_provider"`
	InitialBackoff         time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff             time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
}

// ProviderConfig describes one vision-model backend.
type ProviderConfig struct {
	// Kind selects the binding: "gemini" or "anthropic".
	Kind    string `mapstructure:"kind" yaml:"kind"`
	Model   string `mapstructure:"model" yaml:"model"`
	APIKey  string `mapstructure:"api_key" yaml:"-"`
	// RequestTimeout bounds a single model turn.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// RequestsPerMinute paces calls to stay under the account quota.
	RequestsPerMinute float64 `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// ProvidersConfig pairs the primary backend with its fallback.
type ProvidersConfig struct {
	Primary  ProviderConfig `mapstructure:"primary" yaml:"primary"`
	Fallback ProviderConfig `mapstructure:"fallback" yaml:"fallback"`
}

// SanitizerConfig controls credential masking.
type SanitizerConfig struct {
	MaskToken string `mapstructure:"mask_token" yaml:"mask_token"`
}

// ReportConfig controls task result persistence.
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	Pretty    bool   `mapstructure:"pretty" yaml:"pretty"`
}

// PlatformConfig describes one expert-network platform the engine can
// work against.
type PlatformConfig struct {
	LoginURL     string `mapstructure:"login_url" yaml:"login_url"`
	DashboardURL string `mapstructure:"dashboard_url" yaml:"dashboard_url"`
	Username     string `mapstructure:"username" yaml:"-"`
	Password     string `mapstructure:"password" yaml:"-"`
	// OAuth marks platforms whose session lives in the persistent
	// browser profile instead of a login form.
	OAuth bool `mapstructure:"oauth" yaml:"oauth"`

	// Login form selectors, CSS. Empty selectors fall back to the
	// registry defaults for the platform.
	UsernameSelector string `mapstructure:"username_selector" yaml:"username_selector"`
	PasswordSelector string `mapstructure:"password_selector" yaml:"password_selector"`
	SubmitSelector   string `mapstructure:"submit_selector" yaml:"submit_selector"`

	// DashboardMarker is a text fragment or URL substring that proves
	// login landed on the authenticated dashboard.
	DashboardMarker string `mapstructure:"dashboard_marker" yaml:"dashboard_marker"`

	// InvitationSelector locates pending invitation rows in batch mode.
	InvitationSelector string `mapstructure:"invitation_selector" yaml:"invitation_selector"`
}

// NewDefaultConfig creates a new configuration struct populated with
// default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return raw.config()
}

// SetDefaults initializes default values for various configuration
// parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formpilot")
	v.SetDefault("logger.log_file", "formpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.action_timeout", "15s")
	v.SetDefault("browser.login_timeout", "90s")

	// -- Engine --
	v.SetDefault("engine.step_budget", 25)
	v.SetDefault("engine.concurrency", 2)
	v.SetDefault("engine.coordinate_tolerance_px", 24)

	// -- Failover --
	v.SetDefault("failover.max_attempts_per_provider", 3)
	v.SetDefault("failover.initial_backoff", "2s")
	v.SetDefault("failover.max_backoff", "30s")

	// -- Providers --
	v.SetDefault("providers.primary.kind", "gemini")
	v.SetDefault("providers.primary.model", "gemini-2.5-computer-use-preview-10-2025")
	v.SetDefault("providers.primary.request_timeout", "120s")
	v.SetDefault("providers.primary.requests_per_minute", 10)
	v.SetDefault("providers.primary.max_tokens", 8192)
	v.SetDefault("providers.fallback.kind", "anthropic")
	v.SetDefault("providers.fallback.model", "claude-sonnet-4-5")
	v.SetDefault("providers.fallback.request_timeout", "120s")
	v.SetDefault("providers.fallback.requests_per_minute", 10)
	v.SetDefault("providers.fallback.max_tokens", 4096)

	// -- Sanitizer --
	v.SetDefault("sanitizer.mask_token", "***REDACTED***")

	// -- Report --
	v.SetDefault("report.output_dir", "reports")
	v.SetDefault("report.pretty", true)
}

// NewConfigFromViper creates a new configuration instance from a viper
// object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("providers.primary.api_key", "FORMPILOT_GEMINI_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("providers.fallback.api_key", "FORMPILOT_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg := *raw.config()

	// Per-platform credentials come from the environment only, keyed
	// by the platform name: FORMPILOT_GLG_USERNAME and so on.
	for name, p := range cfg.platforms {
		if p.OAuth {
			continue
		}
		prefix := "FORMPILOT_" + strings.ToUpper(name) + "_"
		if p.Username == "" {
			p.Username = os.Getenv(prefix + "USERNAME")
		}
		if p.Password == "" {
			p.Password = os.Getenv(prefix + "PASSWORD")
		}
		cfg.platforms[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.engine.StepBudget <= 0 {
		return fmt.Errorf("engine.step_budget must be a positive integer")
	}
	if c.engine.Concurrency <= 0 {
		return fmt.Errorf("engine.concurrency must be a positive integer")
	}
	if c.browser.ViewportWidth <= 0 || c.browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive")
	}
	if c.failover.MaxAttemptsPerProvider <= 0 {
		return fmt.Errorf("failover.max_attempts_per_provider must be a positive integer")
	}
	if err := c.providers.Primary.Validate("providers.primary"); err != nil {
		return err
	}
	if err := c.providers.Fallback.Validate("providers.fallback"); err != nil {
		return err
	}
	for name, p := range c.platforms {
		if err := p.Validate(name); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks one provider block.
func (p *ProviderConfig) Validate(section string) error {
	switch p.Kind {
	case "gemini", "anthropic":
	case "":
		return fmt.Errorf("%s.kind is required", section)
	default:
		return fmt.Errorf("%s.kind must be gemini or anthropic, got %q", section, p.Kind)
	}
	if p.Model == "" {
		return fmt.Errorf("%s.model is required", section)
	}
	if p.RequestTimeout <= 0 {
		return fmt.Errorf("%s.request_timeout must be positive", section)
	}
	return nil
}

// Validate checks one platform block. URLs may be empty here because
// built-in platform profiles supply them; the platform registry
// rejects unknown platforms that configure no URLs at all.
func (p *PlatformConfig) Validate(name string) error {
	if p.OAuth && p.Username != "" {
		return fmt.Errorf("platforms.%s: oauth platforms take no username", name)
	}
	return nil
}
