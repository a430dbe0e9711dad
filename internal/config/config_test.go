package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scan.MaxDepth != 2 || cfg.Scan.MaxPages != 100 {
		t.Fatalf("unexpected scan defaults: %+v", cfg.Scan)
	}
	if !cfg.Scan.RespectRobots {
		t.Fatal("expected robots enforcement by default")
	}
	if cfg.PageTimeout() != 30*time.Second {
		t.Fatalf("expected 30s page timeout, got %v", cfg.PageTimeout())
	}
	if !cfg.Analyzers.Links || !cfg.Analyzers.Grammar {
		t.Fatalf("expected link and grammar analyzers enabled by default: %+v", cfg.Analyzers)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
scan:
  max_depth: 5
  max_pages: 500
  concurrency: 8
  user_agent: scan-agent
  respect_robots: false
  allow_external: true
http:
  timeout_seconds: 45
  max_retries: 5
  domain_delay_ms: 50
headless:
  enabled: true
  max_parallel: 3
  nav_timeout_seconds: 30
analyzers:
  links: true
  check_external: true
  grammar: false
  ocr: true
storage:
  output_dir: /var/scans
history:
  enabled: true
  dsn: postgres://localhost/webscan
status:
  enabled: true
  addr: ":9090"
logging:
  development: false
  level: warn
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scan.MaxDepth != 5 || cfg.Scan.Concurrency != 8 {
		t.Fatalf("expected scan overrides to apply: %+v", cfg.Scan)
	}
	if cfg.Scan.RespectRobots || !cfg.Scan.AllowExternal {
		t.Fatalf("expected scan toggles to apply: %+v", cfg.Scan)
	}
	if got := cfg.PageTimeout(); got != 45*time.Second {
		t.Fatalf("expected page timeout 45s, got %v", got)
	}
	if got := cfg.DomainDelay(); got != 50*time.Millisecond {
		t.Fatalf("expected domain delay 50ms, got %v", got)
	}
	if cfg.Analyzers.Grammar || !cfg.Analyzers.OCR {
		t.Fatalf("expected analyzer toggles to apply: %+v", cfg.Analyzers)
	}
	if !cfg.History.Enabled || cfg.History.DSN != "postgres://localhost/webscan" {
		t.Fatalf("expected history overrides to apply: %+v", cfg.History)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging overrides to apply: %+v", cfg.Logging)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Scan: ScanConfig{MaxDepth: 1, MaxPages: 10, Concurrency: 2},
		HTTP: HTTPConfig{TimeoutSeconds: 10, MaxRetries: 3},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid max pages",
			cfg: func() Config {
				c := base
				c.Scan.MaxPages = 0
				return c
			}(),
			want: "scan.max_pages",
		},
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Scan.Concurrency = 0
				return c
			}(),
			want: "scan.concurrency",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.TimeoutSeconds = 0
				return c
			}(),
			want: "http.timeout_seconds",
		},
		{
			name: "invalid retries",
			cfg: func() Config {
				c := base
				c.HTTP.MaxRetries = 0
				return c
			}(),
			want: "http.max_retries",
		},
		{
			name: "headless missing max parallel",
			cfg: func() Config {
				c := base
				c.Headless.Enabled = true
				c.Headless.MaxParallel = 0
				return c
			}(),
			want: "headless.max_parallel",
		},
		{
			name: "history missing dsn",
			cfg: func() Config {
				c := base
				c.History.Enabled = true
				return c
			}(),
			want: "history.dsn",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
