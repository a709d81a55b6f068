// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/portalprobe/internal/interaction"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Interaction() InteractionConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserDriver(string)
	SetBrowserConcurrency(int)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	BrowserCfg     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	InteractionCfg InteractionConfig `mapstructure:"interaction" yaml:"interaction"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig         { return c.BrowserCfg }
func (c *Config) Interaction() InteractionConfig { return c.InteractionCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)    { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserDriver(d string)    { c.BrowserCfg.Driver = d }
func (c *Config) SetBrowserConcurrency(n int) { c.BrowserCfg.Concurrency = n }

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

// ColorConfig defines the color settings for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Supported browser drivers.
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

// BrowserConfig holds settings for the browser sessions scenarios run in.
type BrowserConfig struct {
	Driver            string         `mapstructure:"driver" yaml:"driver"`
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	DisableCache      bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Concurrency       int            `mapstructure:"concurrency" yaml:"concurrency"`
	Debug             bool           `mapstructure:"debug" yaml:"debug"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration  `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// ViewportSize returns the configured viewport, falling back to 1280x720.
func (b BrowserConfig) ViewportSize() (width, height int) {
	width, height = 1280, 720
	if w, ok := b.Viewport["width"]; ok && w > 0 {
		width = w
	}
	if h, ok := b.Viewport["height"]; ok && h > 0 {
		height = h
	}
	return width, height
}

// InteractionConfig holds the defaults of the interaction engine.
type InteractionConfig struct {
	ProbeTimeout        time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	RungTimeout         time.Duration `mapstructure:"rung_timeout" yaml:"rung_timeout"`
	PollInterval        time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxStrategyAttempts int           `mapstructure:"max_strategy_attempts" yaml:"max_strategy_attempts"`
}

// Policy converts the configured defaults into a retry policy.
func (c InteractionConfig) Policy() interaction.RetryPolicy {
	return interaction.RetryPolicy{
		PollInterval:        c.PollInterval,
		Timeout:             c.Timeout,
		MaxStrategyAttempts: c.MaxStrategyAttempts,
	}
}

// Options converts the configured defaults into orchestrator options.
func (c InteractionConfig) Options() interaction.Options {
	return interaction.Options{
		ProbeTimeout: c.ProbeTimeout,
		RungTimeout:  c.RungTimeout,
		Policy:       c.Policy(),
	}
}

// NewDefaultConfig creates a new configuration populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults sets the default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "portalprobe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.concurrency", 2)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 720})
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.post_load_wait", "500ms")

	// -- Interaction --
	v.SetDefault("interaction.probe_timeout", interaction.DefaultProbeTimeout)
	v.SetDefault("interaction.rung_timeout", interaction.DefaultRungTimeout)
	v.SetDefault("interaction.poll_interval", interaction.DefaultRetryPolicy.PollInterval)
	v.SetDefault("interaction.timeout", interaction.DefaultRetryPolicy.Timeout)
	v.SetDefault("interaction.max_strategy_attempts", 0)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LoggerCfg.LogFile != "" {
		expanded, err := homedir.Expand(cfg.LoggerCfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("expanding logger.log_file: %w", err)
		}
		cfg.LoggerCfg.LogFile = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	switch strings.ToLower(c.BrowserCfg.Driver) {
	case DriverChromedp, DriverPlaywright:
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverChromedp, DriverPlaywright, c.BrowserCfg.Driver)
	}
	if err := c.InteractionCfg.Validate(); err != nil {
		return fmt.Errorf("interaction configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the interaction engine settings.
func (c *InteractionConfig) Validate() error {
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be a positive duration")
	}
	if c.RungTimeout <= 0 {
		return fmt.Errorf("rung_timeout must be a positive duration")
	}
	if c.Timeout > 0 && c.ProbeTimeout > c.Timeout {
		return fmt.Errorf("probe_timeout (%v) must not exceed timeout (%v)", c.ProbeTimeout, c.Timeout)
	}
	return c.Policy().Validate()
}
