// ABOUTME: Tests for configuration defaults, YAML loading, and validation
// ABOUTME: Uses temp files; never reads the user's real config

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.NATS.URL != "" || cfg.Redis.Addr != "" || cfg.Tracing.Enabled {
		t.Error("external dependencies should be disabled by default")
	}
	if cfg.NATS.Subject != "hikmaai.bytescan.scan" {
		t.Errorf("NATS.Subject = %q", cfg.NATS.Subject)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
data_dir: /srv/bytescan
engine:
  mode: all
  concurrency: 4
cache:
  ttl: 90m
redis:
  addr: localhost:6379
  lock_ttl: 45s
feeds:
  sources:
    - https://feeds.example.com/sigs.csv
  update_interval: 15m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DataDir != "/srv/bytescan" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Engine.Mode != "all" || cfg.Engine.Concurrency != 4 {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if cfg.Cache.TTL != 90*time.Minute {
		t.Errorf("Cache.TTL = %v", cfg.Cache.TTL)
	}
	if !cfg.Cache.Enabled {
		t.Error("unset fields should keep defaults")
	}
	if cfg.Redis.LockTTL != 45*time.Second || cfg.Redis.Prefix != "bytescan:" {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if len(cfg.Feeds.Sources) != 1 || cfg.Feeds.UpdateInterval != 15*time.Minute {
		t.Errorf("Feeds = %+v", cfg.Feeds)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "bad yaml", body: "engine: [", wantErr: "parsing config"},
		{name: "bad mode", body: "engine:\n  mode: fastest\n", wantErr: "engine.mode"},
		{name: "bad sampling", body: "tracing:\n  sampling_ratio: 2\n", wantErr: "sampling_ratio"},
		{name: "no interval", body: "feeds:\n  sources: [a.csv]\n  update_interval: 0s\n", wantErr: "update_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() should fail for a missing explicit path")
	}
}

func TestLoad_DefaultPathMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.Mode != "first" {
		t.Errorf("Engine.Mode = %q, want defaults", cfg.Engine.Mode)
	}
}
