package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
database:
  url: postgres://localhost:5432/app
redis:
  url: localhost:6379
worker:
  secret: shhh
`

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, minimalConfig), false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log defaults = %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Database.MaxConns != 10 {
		t.Errorf("max conns = %d, want 10", cfg.Database.MaxConns)
	}
	if cfg.Sweeper.Interval != time.Minute || cfg.Sweeper.BatchSize != 20 || cfg.Sweeper.Workers != 4 {
		t.Errorf("sweeper defaults = %+v", cfg.Sweeper)
	}
	if cfg.Poll.RateLimit != 5 || cfg.Poll.RateWindow != 10*time.Second {
		t.Errorf("poll defaults = %+v", cfg.Poll)
	}
	if cfg.Runtime.Dev {
		t.Error("dev mode enabled without the flag")
	}
}

func TestLoadConfigFullDocument(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, `
log:
  level: debug
  format: console
server:
  port: 9090
  base_url: https://gen.example.com
database:
  url: postgres://db:5432/app
  max_conns: 25
redis:
  url: redis:6379
  db: 2
render:
  endpoint: https://gpu.example.com/v2
  api_key: rk-123
  timeout: 45s
worker:
  secret: worker-token
admin:
  api_key: ak-123
  jwt_secret: js-123
  session_ttl: 1h
sweeper:
  interval: 30s
  batch_size: 50
  workers: 8
poll:
  rate_limit: 10
  rate_window: 5s
`), true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.BaseURL != "https://gen.example.com" {
		t.Errorf("base url = %q", cfg.Server.BaseURL)
	}
	if cfg.Render.Endpoint != "https://gpu.example.com/v2" || cfg.Render.Timeout != 45*time.Second {
		t.Errorf("render = %+v", cfg.Render)
	}
	if cfg.Admin.SessionTTL != time.Hour {
		t.Errorf("session ttl = %v", cfg.Admin.SessionTTL)
	}
	if cfg.Sweeper.BatchSize != 50 || cfg.Sweeper.Workers != 8 {
		t.Errorf("sweeper = %+v", cfg.Sweeper)
	}
	if !cfg.Runtime.Dev {
		t.Error("dev flag not carried into runtime config")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			"missing database url",
			"redis:\n  url: localhost:6379\nworker:\n  secret: s\n",
			"database.url",
		},
		{
			"missing redis url",
			"database:\n  url: postgres://x\nworker:\n  secret: s\n",
			"redis.url",
		},
		{
			"missing worker secret",
			"database:\n  url: postgres://x\nredis:\n  url: localhost:6379\n",
			"worker.secret",
		},
		{
			"render endpoint without api key",
			minimalConfig + "render:\n  endpoint: https://gpu.example.com\n",
			"render.api_key",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadConfig(writeConfig(t, tc.yaml), false)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), false); err == nil {
		t.Fatal("LoadConfig succeeded on a missing file")
	}
}
