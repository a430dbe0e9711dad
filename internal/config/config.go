// Package config loads and validates scan configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Scan      ScanConfig      `mapstructure:"scan"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Analyzers AnalyzersConfig `mapstructure:"analyzers"`
	Storage   StorageConfig   `mapstructure:"storage"`
	History   HistoryConfig   `mapstructure:"history"`
	Status    StatusConfig    `mapstructure:"status"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ScanConfig governs frontier and traversal behavior.
type ScanConfig struct {
	MaxDepth      int    `mapstructure:"max_depth"`
	MaxPages      int    `mapstructure:"max_pages"`
	Concurrency   int    `mapstructure:"concurrency"`
	UserAgent     string `mapstructure:"user_agent"`
	RespectRobots bool   `mapstructure:"respect_robots"`
	AllowExternal bool   `mapstructure:"allow_external"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRetries     int `mapstructure:"max_retries"`
	MaxBodyBytes   int `mapstructure:"max_body_bytes"`
	DomainDelayMs  int `mapstructure:"domain_delay_ms"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	MaxParallel    int     `mapstructure:"max_parallel"`
	NavTimeoutSec  int     `mapstructure:"nav_timeout_seconds"`
	DomainQPS      float64 `mapstructure:"domain_qps"`
	MinHTMLBytes   int     `mapstructure:"min_html_bytes"`
	ViewportWidth  int     `mapstructure:"viewport_width"`
	ViewportHeight int     `mapstructure:"viewport_height"`
	FullPage       bool    `mapstructure:"full_page"`
}

// AnalyzersConfig toggles the analysis stages.
type AnalyzersConfig struct {
	Links         bool   `mapstructure:"links"`
	CheckExternal bool   `mapstructure:"check_external"`
	Grammar       bool   `mapstructure:"grammar"`
	OCR           bool   `mapstructure:"ocr"`
	OCRBinary     string `mapstructure:"ocr_binary"`
	Screenshots   bool   `mapstructure:"screenshots"`
}

// StorageConfig sets the scan output location.
type StorageConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// HistoryConfig controls optional Postgres scan history.
type HistoryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// StatusConfig controls the operational HTTP listener.
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBSCAN")
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
	v.SetDefault("scan.max_depth", 2)
	v.SetDefault("scan.max_pages", 100)
	v.SetDefault("scan.concurrency", 4)
	v.SetDefault("scan.user_agent", "webscan-bot/0.1")
	v.SetDefault("scan.respect_robots", true)
	v.SetDefault("scan.allow_external", false)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.max_body_bytes", 10*1024*1024)
	v.SetDefault("http.domain_delay_ms", 200)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.domain_qps", 1.0)
	v.SetDefault("headless.min_html_bytes", 512)
	v.SetDefault("headless.viewport_width", 1280)
	v.SetDefault("headless.viewport_height", 800)
	v.SetDefault("headless.full_page", true)
	v.SetDefault("analyzers.links", true)
	v.SetDefault("analyzers.check_external", false)
	v.SetDefault("analyzers.grammar", true)
	v.SetDefault("analyzers.ocr", false)
	v.SetDefault("analyzers.ocr_binary", "tesseract")
	v.SetDefault("analyzers.screenshots", true)
	v.SetDefault("storage.output_dir", "scans")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.table", "scans")
	v.SetDefault("status.enabled", false)
	v.SetDefault("status.addr", ":8080")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scan.MaxDepth < 0 {
		return fmt.Errorf("scan.max_depth must be >= 0")
	}
	if c.Scan.MaxPages <= 0 {
		return fmt.Errorf("scan.max_pages must be > 0")
	}
	if c.Scan.Concurrency <= 0 {
		return fmt.Errorf("scan.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.History.Enabled && c.History.DSN == "" {
		return fmt.Errorf("history.dsn must be set when history is enabled")
	}
	if c.Status.Enabled && c.Status.Addr == "" {
		return fmt.Errorf("status.addr must be set when the status server is enabled")
	}
	return nil
}

// PageTimeout returns the per-page fetch budget.
func (c Config) PageTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NavTimeout returns the headless navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// DomainDelay returns the per-domain politeness delay.
func (c Config) DomainDelay() time.Duration {
	return time.Duration(c.HTTP.DomainDelayMs) * time.Millisecond
}
