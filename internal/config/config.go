// Package config provides configuration management for the catalog cache daemon.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultServerPort          = 8080
	DefaultLogLevel            = "info"
	DefaultShutdownTimeout     = 30 * time.Second
	DefaultMetricsEnabled      = true
	DefaultAuthMode            = "none"
	DefaultCatalogBaseURL      = "https://fakestoreapi.com"
	DefaultCatalogTimeout      = 10 * time.Second
	DefaultFetchTimeout        = 30 * time.Second
	DefaultRecordsStaleTime    = 5 * time.Minute
	DefaultCategoriesStaleTime = 10 * time.Minute
	DefaultPageSize            = 12
	DefaultSearchDebounce      = 300 * time.Millisecond
)

// Environment variable names.
const (
	EnvServerPort          = "APP_SERVER_PORT"
	EnvLogLevel            = "APP_LOG_LEVEL"
	EnvShutdownTimeout     = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled      = "APP_METRICS_ENABLED"
	EnvAuthMode            = "APP_AUTH_MODE"
	EnvBasicAuthUsers      = "APP_BASIC_AUTH_USERS"
	EnvAPIKeys             = "APP_API_KEYS" //nolint:gosec // env var name, not a credential
	EnvCatalogBaseURL      = "APP_CATALOG_BASE_URL"
	EnvCatalogTimeout      = "APP_CATALOG_TIMEOUT"
	EnvFetchTimeout        = "APP_FETCH_TIMEOUT"
	EnvRecordsStaleTime    = "APP_RECORDS_STALE_TIME"
	EnvCategoriesStaleTime = "APP_CATEGORIES_STALE_TIME"
	EnvPageSize            = "APP_PAGE_SIZE"
	EnvSearchDebounce      = "APP_SEARCH_DEBOUNCE"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int
	LogLevel        string
	ShutdownTimeout time.Duration
	MetricsEnabled  bool

	// Authentication mode: none, basic, apikey, multi.
	AuthMode string

	// Basic auth settings (format: "user1:bcrypt_hash,user2:bcrypt_hash").
	BasicAuthUsers string

	// API key settings (format: "key1:name1,key2:name2").
	APIKeys string

	// Remote catalog settings.
	CatalogBaseURL string
	CatalogTimeout time.Duration

	// Query cache settings.
	FetchTimeout        time.Duration
	RecordsStaleTime    time.Duration
	CategoriesStaleTime time.Duration

	// View settings.
	PageSize       int
	SearchDebounce time.Duration
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidAuthMode        = errors.New("auth mode must be one of: none, basic, apikey, multi")
	ErrInvalidBasicAuthConfig = errors.New(
		"basic auth users must be set when auth mode is basic",
	)
	ErrInvalidAPIKeyConfig = errors.New(
		"API keys must be set when auth mode is apikey",
	)
	ErrInvalidMultiAuthConfig = errors.New(
		"basic auth users or API keys must be set when auth mode is multi",
	)
	ErrInvalidCatalogBaseURL = errors.New("catalog base URL must be an absolute http(s) URL")
	ErrInvalidCatalogTimeout = errors.New("catalog timeout must not be negative")
	ErrInvalidFetchTimeout   = errors.New("fetch timeout must not be negative")
	ErrInvalidStaleTime      = errors.New("stale times must be positive")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrInvalidSearchDebounce = errors.New("search debounce must be between 0 and 5s")
)

// Limits.
const (
	MaxPageSize       = 100
	MaxSearchDebounce = 5 * time.Second
)

// Load reads configuration from environment variables with defaults.
// Environment variables have priority over default values.
func Load() (*Config, error) {
	cfg := Default()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config holding every default value.
func Default() *Config {
	return &Config{
		ServerPort:          DefaultServerPort,
		LogLevel:            DefaultLogLevel,
		ShutdownTimeout:     DefaultShutdownTimeout,
		MetricsEnabled:      DefaultMetricsEnabled,
		AuthMode:            DefaultAuthMode,
		CatalogBaseURL:      DefaultCatalogBaseURL,
		CatalogTimeout:      DefaultCatalogTimeout,
		FetchTimeout:        DefaultFetchTimeout,
		RecordsStaleTime:    DefaultRecordsStaleTime,
		CategoriesStaleTime: DefaultCategoriesStaleTime,
		PageSize:            DefaultPageSize,
		SearchDebounce:      DefaultSearchDebounce,
	}
}

// loadFromEnv loads configuration values from environment variables.
func (c *Config) loadFromEnv() error {
	if err := c.loadServerEnv(); err != nil {
		return err
	}

	c.loadAuthEnv()

	if err := c.loadCatalogEnv(); err != nil {
		return err
	}

	return c.loadCacheEnv()
}

// loadServerEnv loads server-related environment variables.
func (c *Config) loadServerEnv() error {
	if err := envInt(EnvServerPort, &c.ServerPort); err != nil {
		return err
	}

	if val := os.Getenv(EnvLogLevel); val != "" {
		c.LogLevel = val
	}

	if err := envDuration(EnvShutdownTimeout, &c.ShutdownTimeout); err != nil {
		return err
	}

	if val := os.Getenv(EnvMetricsEnabled); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMetricsEnabled, err)
		}
		c.MetricsEnabled = enabled
	}

	return nil
}

// loadAuthEnv loads authentication environment variables.
func (c *Config) loadAuthEnv() {
	if val := os.Getenv(EnvAuthMode); val != "" {
		c.AuthMode = val
	}

	if val := os.Getenv(EnvBasicAuthUsers); val != "" {
		c.BasicAuthUsers = val
	}

	if val := os.Getenv(EnvAPIKeys); val != "" {
		c.APIKeys = val
	}
}

// loadCatalogEnv loads the remote catalog environment variables.
func (c *Config) loadCatalogEnv() error {
	if val := os.Getenv(EnvCatalogBaseURL); val != "" {
		c.CatalogBaseURL = val
	}

	return envDuration(EnvCatalogTimeout, &c.CatalogTimeout)
}

// loadCacheEnv loads query cache and view environment variables.
func (c *Config) loadCacheEnv() error {
	if err := envDuration(EnvFetchTimeout, &c.FetchTimeout); err != nil {
		return err
	}

	if err := envDuration(EnvRecordsStaleTime, &c.RecordsStaleTime); err != nil {
		return err
	}

	if err := envDuration(EnvCategoriesStaleTime, &c.CategoriesStaleTime); err != nil {
		return err
	}

	if err := envInt(EnvPageSize, &c.PageSize); err != nil {
		return err
	}

	return envDuration(EnvSearchDebounce, &c.SearchDebounce)
}

func envInt(name string, dst *int) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = d
	return nil
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateAuth(); err != nil {
		return err
	}

	if err := c.validateCatalog(); err != nil {
		return err
	}

	return c.validateCache()
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	return nil
}

// validateAuth validates the auth mode and its requirements.
func (c *Config) validateAuth() error {
	switch c.authModeOrDefault() {
	case "none":
	case "basic":
		if c.BasicAuthUsers == "" {
			return ErrInvalidBasicAuthConfig
		}
	case "apikey":
		if c.APIKeys == "" {
			return ErrInvalidAPIKeyConfig
		}
	case "multi":
		if c.BasicAuthUsers == "" && c.APIKeys == "" {
			return ErrInvalidMultiAuthConfig
		}
	default:
		return ErrInvalidAuthMode
	}

	return nil
}

// authModeOrDefault returns the auth mode, defaulting to "none" if empty.
func (c *Config) authModeOrDefault() string {
	if c.AuthMode == "" {
		return DefaultAuthMode
	}
	return c.AuthMode
}

// validateCatalog validates the remote catalog settings.
func (c *Config) validateCatalog() error {
	u, err := url.Parse(c.CatalogBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidCatalogBaseURL
	}

	if c.CatalogTimeout < 0 {
		return ErrInvalidCatalogTimeout
	}

	return nil
}

// validateCache validates the query cache and view settings.
func (c *Config) validateCache() error {
	if c.FetchTimeout < 0 {
		return ErrInvalidFetchTimeout
	}

	if c.RecordsStaleTime <= 0 || c.CategoriesStaleTime <= 0 {
		return ErrInvalidStaleTime
	}

	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return ErrInvalidPageSize
	}

	if c.SearchDebounce < 0 || c.SearchDebounce > MaxSearchDebounce {
		return ErrInvalidSearchDebounce
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}
