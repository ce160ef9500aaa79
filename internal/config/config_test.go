package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Processing.MaxConcurrentJobs != defaultMaxConcurrentJobs {
		t.Fatalf("expected default max_concurrent_jobs, got %d", cfg.Processing.MaxConcurrentJobs)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := strings.Join([]string{
		"[processing]",
		"max_concurrent_jobs = 5",
		"max_retries = 1",
		"[network]",
		`probe_address = "1.1.1.1:53"`,
		"[paths]",
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Processing.MaxConcurrentJobs != 5 || cfg.Processing.MaxRetries != 1 {
		t.Fatalf("overrides not applied: %+v", cfg.Processing)
	}
	if cfg.Network.ProbeAddress != "1.1.1.1:53" {
		t.Fatalf("probe address override not applied: %q", cfg.Network.ProbeAddress)
	}
	if !filepath.IsAbs(cfg.Paths.LogDir) {
		t.Fatalf("log dir not normalized: %q", cfg.Paths.LogDir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Processing.MaxConcurrentJobs = 0 }},
		{"negative retries", func(c *Config) { c.Processing.MaxRetries = -1 }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "tape" }},
		{"s3 without endpoint", func(c *Config) { c.Storage.Backend = BackendS3 }},
		{"empty probe", func(c *Config) { c.Network.ProbeAddress = "" }},
		{"email without host", func(c *Config) { c.Notifications.EmailEnabled = true }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"backoff inverted", func(c *Config) {
			c.Notifications.BackoffInitialSeconds = 30
			c.Notifications.BackoffMaxSeconds = 5
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	expanded, err := expandPath("~/videos")
	if err != nil {
		t.Fatalf("expandPath: %v", err)
	}
	if expanded != filepath.Join(home, "videos") {
		t.Fatalf("unexpected expansion: %q", expanded)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.VideoDir = filepath.Join(base, "videos")
	cfg.Paths.ResultsDir = filepath.Join(base, "results")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.VideoDir, cfg.Paths.ResultsDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q, err=%v", dir, err)
		}
	}
}
