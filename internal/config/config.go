// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`
	Text    TextConfig    `mapstructure:"text"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	DB      DBConfig      `mapstructure:"db"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CatalogConfig governs catalog archive download and extraction.
type CatalogConfig struct {
	FeedsURL string `mapstructure:"feeds_url"`
	DataDir  string `mapstructure:"data_dir"`
	// Limit caps how many catalog entries a run processes; 0 means all.
	Limit int `mapstructure:"limit"`
}

// TextConfig governs per-book text fetching.
type TextConfig struct {
	// BaseURL is the fallback URL pattern used when an RDF entry carries
	// no text/plain file link. It takes the book id twice.
	BaseURL   string `mapstructure:"base_url"`
	CacheDir  string `mapstructure:"cache_dir"`
	UserAgent string `mapstructure:"user_agent"`
}

// HTTPConfig configures HTTP client retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxConns     int32  `mapstructure:"max_conns"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

// ServerConfig controls the optional admin/metrics listener.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GUTENBERG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.feeds_url", "https://www.gutenberg.org/cache/epub/feeds/rdf-files.tar.zip")
	v.SetDefault("catalog.data_dir", "data")
	v.SetDefault("catalog.limit", 0)
	v.SetDefault("text.base_url", "https://www.gutenberg.org/cache/epub/%d/pg%d.txt")
	v.SetDefault("text.cache_dir", "data/texts")
	v.SetDefault("text.user_agent", "gutenberg-pipeline/1.0 (+https://github.com/gutenlab/gutenberg-pipeline)")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("http.backoff_max_ms", 30000)
	// No usable default exists for the DSN, but the key must be registered
	// or Unmarshal never consults the environment for it.
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.ensure_schema", true)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 9090)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Catalog.FeedsURL == "" {
		return fmt.Errorf("catalog.feeds_url must be set")
	}
	if c.Catalog.DataDir == "" {
		return fmt.Errorf("catalog.data_dir must be set")
	}
	if c.Catalog.Limit < 0 {
		return fmt.Errorf("catalog.limit must be >= 0")
	}
	if c.Text.CacheDir == "" {
		return fmt.Errorf("text.cache_dir must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when server is enabled")
	}
	return nil
}

// HTTPTimeout converts the configured timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
