// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Cache() CacheConfig
	Optimizer() OptimizerConfig
	Oracle() OracleConfig
	Browser() BrowserConfig

	// Cache Setters
	SetCacheDirectory(dir string)
	SetCacheMaxEntries(n int)

	// Browser Setters
	SetBrowserHeadless(bool)
}

// Config holds the entire application configuration.
// It uses private fields to enforce access through the Interface's getter methods.
type Config struct {
	logger    LoggerConfig
	cache     CacheConfig
	optimizer OptimizerConfig
	oracle    OracleConfig
	browser   BrowserConfig
}

// fileConfig mirrors Config with exported fields so viper/mapstructure can
// populate it. Config itself stays read-only behind the Interface getters.
type fileConfig struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Optimizer OptimizerConfig `mapstructure:"optimizer" yaml:"optimizer"`
	Oracle    OracleConfig    `mapstructure:"oracle" yaml:"oracle"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
}

func (fc fileConfig) toConfig() *Config {
	return &Config{
		logger:    fc.Logger,
		cache:     fc.Cache,
		optimizer: fc.Optimizer,
		oracle:    fc.Oracle,
		browser:   fc.Browser,
	}
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.logger }
func (c *Config) Cache() CacheConfig         { return c.cache }
func (c *Config) Optimizer() OptimizerConfig { return c.optimizer }
func (c *Config) Oracle() OracleConfig       { return c.oracle }
func (c *Config) Browser() BrowserConfig     { return c.browser }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetCacheDirectory(dir string) { c.cache.Directory = dir }
func (c *Config) SetCacheMaxEntries(n int)     { c.cache.MaxEntries = n }
func (c *Config) SetBrowserHeadless(b bool)    { c.browser.Headless = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// CacheConfig tunes the tiered selector cache.
type CacheConfig struct {
	// MaxEntries bounds the in-memory tier. The least recently used entry is
	// evicted when the bound is exceeded.
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
	// ExpireAfterWrite drops entries a fixed duration after creation.
	ExpireAfterWrite time.Duration `mapstructure:"expire_after_write" yaml:"expire_after_write"`
	// ExpireAfterAccess drops entries that have not been touched recently.
	ExpireAfterAccess time.Duration `mapstructure:"expire_after_access" yaml:"expire_after_access"`
	// Directory holds the durable snapshot files. Empty means
	// ~/.healbeacon/cache.
	Directory string `mapstructure:"directory" yaml:"directory"`
	// FlushGracePeriod bounds how long Close waits for the background
	// flusher to drain.
	FlushGracePeriod time.Duration `mapstructure:"flush_grace_period" yaml:"flush_grace_period"`
}

// ResolveDirectory expands the cache directory, defaulting to a dot-directory
// under the user's home when unset.
func (c CacheConfig) ResolveDirectory() (string, error) {
	if c.Directory != "" {
		return homedir.Expand(c.Directory)
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".healbeacon", "cache"), nil
}

// OptimizerConfig tunes the DOM snapshot reducer.
type OptimizerConfig struct {
	// MaxChars hard-caps the optimized markup size.
	MaxChars int `mapstructure:"max_chars" yaml:"max_chars"`
	// MaxTextLength truncates an element's own text beyond this length.
	MaxTextLength int `mapstructure:"max_text_length" yaml:"max_text_length"`
	// MaxDepth prunes attribute-free elements nested deeper than this.
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth"`
	// AttributeFrequencyThreshold is the minimum number of occurrences an
	// attribute needs across the page to be retained.
	AttributeFrequencyThreshold int `mapstructure:"attribute_frequency_threshold" yaml:"attribute_frequency_threshold"`
}

// OracleConfig configures the external locator repair oracle.
type OracleConfig struct {
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	// RateLimit is the maximum number of repair requests per second.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// BrowserConfig holds settings for the execution backend.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ResolveTimeout    time.Duration `mapstructure:"resolve_timeout" yaml:"resolve_timeout"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return fc.toConfig()
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "healbeacon")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Cache --
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.expire_after_write", 24*time.Hour)
	v.SetDefault("cache.expire_after_access", 2*time.Hour)
	v.SetDefault("cache.directory", "")
	v.SetDefault("cache.flush_grace_period", 5*time.Second)

	// -- Optimizer --
	v.SetDefault("optimizer.max_chars", 100_000)
	v.SetDefault("optimizer.max_text_length", 120)
	v.SetDefault("optimizer.max_depth", 14)
	v.SetDefault("optimizer.attribute_frequency_threshold", 2)

	// -- Oracle --
	v.SetDefault("oracle.model", "gemini-2.5-flash")
	v.SetDefault("oracle.timeout", 30*time.Second)
	v.SetDefault("oracle.max_retries", 3)
	v.SetDefault("oracle.temperature", 0.1)
	v.SetDefault("oracle.rate_limit", 2.0)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", 90*time.Second)
	v.SetDefault("browser.resolve_timeout", 10*time.Second)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("oracle.api_key", "HEALBEACON_ORACLE_API_KEY")

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg := fc.toConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.cache.Validate(); err != nil {
		return fmt.Errorf("cache configuration invalid: %w", err)
	}
	if err := c.optimizer.Validate(); err != nil {
		return fmt.Errorf("optimizer configuration invalid: %w", err)
	}
	if err := c.oracle.Validate(); err != nil {
		return fmt.Errorf("oracle configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the CacheConfig settings.
func (c *CacheConfig) Validate() error {
	if c.MaxEntries <= 0 {
		return fmt.Errorf("max_entries must be a positive integer")
	}
	if c.ExpireAfterWrite <= 0 {
		return fmt.Errorf("expire_after_write must be a positive duration")
	}
	if c.ExpireAfterAccess <= 0 {
		return fmt.Errorf("expire_after_access must be a positive duration")
	}
	return nil
}

// Validate checks the OptimizerConfig settings.
func (o *OptimizerConfig) Validate() error {
	if o.MaxChars <= 0 {
		return fmt.Errorf("max_chars must be a positive integer")
	}
	if o.MaxTextLength <= 0 {
		return fmt.Errorf("max_text_length must be a positive integer")
	}
	if o.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be a positive integer")
	}
	if o.AttributeFrequencyThreshold < 1 {
		return fmt.Errorf("attribute_frequency_threshold must be at least 1")
	}
	return nil
}

// Validate checks the OracleConfig settings.
func (o *OracleConfig) Validate() error {
	if o.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if o.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if o.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be a positive number")
	}
	return nil
}
