// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.simcoach/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Backend: base URL and environment segment of the training platform API
//   - HTTP: request timeout
//   - Scenario: fallback scenario content used to seed new sessions when the
//     module lookup fails (injected here so the lifecycle never hardcodes it)
//   - Telemetry: optional OTLP trace export (see internal/observability)
//
// Error handling uses sentinel errors so callers can check with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingBaseURL indicates no backend base URL is configured.
	ErrMissingBaseURL = errors.New("missing base URL")

	// ErrInvalidBaseURL indicates the backend base URL cannot be parsed.
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// ErrInvalidEnvironment indicates the environment segment is invalid.
	ErrInvalidEnvironment = errors.New("invalid environment")

	// ErrInvalidTimeout indicates the request timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid request timeout")

	// ErrInvalidPageSize indicates the default page size is out of range.
	ErrInvalidPageSize = errors.New("invalid page size")
)

// Environment segment identifiers used in Config.Environment.
// The backend mounts each deployment under its own path segment, so the
// effective API root is "{base_url}/{environment}".
const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

const (
	// DefaultRequestTimeout bounds every backend call.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultPageSize is the page size used by list commands when the user
	// does not override it.
	DefaultPageSize = 10

	// MaxPageSize is the largest page the backend accepts.
	MaxPageSize = 100

	// stateDirName is the per-user state directory under $HOME.
	stateDirName = ".simcoach"
)

// ScenarioConfig holds the fallback scenario content used when the module
// lookup fails. A new session is still seeded with a system prompt and an
// opening assistant line so the trainee never faces an empty chat.
type ScenarioConfig struct {
	Title        string `mapstructure:"title"`
	SystemPrompt string `mapstructure:"system_prompt"`
	Greeting     string `mapstructure:"greeting"`
}

// TelemetryConfig holds OTLP trace export configuration.
// Disabled by default; see internal/observability for setup.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
}

// Config stores application configuration.
type Config struct {
	// Backend location. The effective API root is BaseURL + "/" + Environment.
	BaseURL     string `mapstructure:"base_url"`
	Environment string `mapstructure:"environment"`

	// HTTP behaviour
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// List defaults
	PageSize int `mapstructure:"page_size"`

	// StateDir holds the credential file and other local state.
	// Defaults to ~/.simcoach.
	StateDir string `mapstructure:"state_dir"`

	Scenario  ScenarioConfig  `mapstructure:"scenario"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// APIRoot returns the fully qualified API root, base URL joined with the
// environment segment, without a trailing slash.
func (c *Config) APIRoot() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if c.Environment == "" {
		return base
	}
	return base + "/" + c.Environment
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, stateDirName)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("base_url", "https://api.simcoach.dev")
	v.SetDefault("environment", EnvDev)
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("page_size", DefaultPageSize)
	v.SetDefault("state_dir", configDir)

	// Fallback scenario shown when the module lookup fails
	v.SetDefault("scenario.title", "Customer Billing Issue")
	v.SetDefault("scenario.system_prompt",
		"This is a customer support training scenario. The customer has a billing issue. Please assist them professionally.")
	v.SetDefault("scenario.greeting",
		"Hi, I'm looking at my latest invoice and there's a charge I don't recognize. Can you help me figure out what it is?")

	// Telemetry defaults (disabled; local OTLP collector endpoint)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "simcoach")
	v.SetDefault("telemetry.environment", EnvDev)
}

// bindEnvVariables binds environment variable overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("base_url", "SIMCOACH_BASE_URL")
	mustBind("environment", "SIMCOACH_ENVIRONMENT")
	mustBind("state_dir", "SIMCOACH_STATE_DIR")
	mustBind("telemetry.enabled", "SIMCOACH_TELEMETRY_ENABLED")
	mustBind("telemetry.endpoint", "SIMCOACH_OTLP_ENDPOINT")
}

// Validate checks the configuration and fails fast on the first problem.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}
	if strings.ContainsAny(c.Environment, "/ ") {
		return fmt.Errorf("%w: %q", ErrInvalidEnvironment, c.Environment)
	}
	if c.RequestTimeout <= 0 || c.RequestTimeout > 5*time.Minute {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.RequestTimeout)
	}
	if c.PageSize <= 0 || c.PageSize > MaxPageSize {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, c.PageSize)
	}
	return nil
}
