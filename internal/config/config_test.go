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
	path := filepath.Join(t.TempDir(), "twrkit.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
	if cfg.API.RequestTokenURL != "https://api.twitter.com/oauth/request_token" {
		t.Errorf("request token url = %s", cfg.API.RequestTokenURL)
	}
	if cfg.Settings.Backend != BackendFile || cfg.Transport.Protocol != ProtocolHTTP {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: http://localhost:8080/1.1/
transport:
  protocol: http2
  timeout: 5s
  rate_limit: 2
  rate_burst: 0
settings:
  backend: memory
  path: ""
watch:
  interval: 1m
  entries: [a, b]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != "http://localhost:8080/1.1" {
		t.Errorf("base url = %s", cfg.API.BaseURL)
	}
	if cfg.API.AccessTokenURL == "" {
		t.Error("unset keys lost their defaults")
	}
	if cfg.Transport.Protocol != ProtocolHTTP2 || cfg.Transport.Timeout != 5*time.Second {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if cfg.Transport.RateBurst != 1 {
		t.Errorf("rate burst = %d, want 1", cfg.Transport.RateBurst)
	}
	if cfg.Watch.Interval != time.Minute || len(cfg.Watch.Entries) != 2 {
		t.Errorf("watch = %+v", cfg.Watch)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown protocol", "transport:\n  protocol: grpc\n"},
		{"unknown backend", "settings:\n  backend: etcd\n"},
		{"file backend without path", "settings:\n  backend: file\n  path: \"\"\n"},
		{"bad base url", "api:\n  base_url: not a url\n"},
		{"zero timeout", "transport:\n  timeout: 0s\n"},
		{"zero watch interval", "watch:\n  interval: 0s\n"},
		{"metrics path", "metrics:\n  enabled: true\n  path: metrics\n"},
		{"metrics address", "metrics:\n  enabled: true\n  address: \"\"\n"},
		{"not yaml", "api: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Errorf("Load accepted %q", tt.body)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("err = %v", err)
	}
}

func TestMarshalRoundTripsThroughLoad(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Interval = 2 * time.Minute
	data, err := Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(writeConfig(t, string(data)))
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Watch.Interval != 2*time.Minute {
		t.Errorf("interval = %s", loaded.Watch.Interval)
	}
}
