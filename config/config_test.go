package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: filesystem\nlease:\n  backend: local\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Render.FPS != 30 || cfg.Render.CRF != 23 {
		t.Fatalf("unexpected render defaults: %+v", cfg.Render)
	}
	if cfg.Queue.Timeout != 20*time.Minute {
		t.Fatalf("unexpected queue timeout: %v", cfg.Queue.Timeout)
	}
	if cfg.Lease.TTL <= cfg.Queue.Timeout {
		t.Fatalf("lease ttl %v should outlive task timeout %v", cfg.Lease.TTL, cfg.Queue.Timeout)
	}
	if !cfg.Providers.Image.MockEnabled() {
		t.Fatal("unset use_mock should resolve to mock")
	}
	if got := cfg.Queue.Weights["render"]; got != 1 {
		t.Fatalf("expected render weight 1, got %d", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("USE_MOCK_PROVIDERS", "false")
	t.Setenv("IMAGE_API_KEY", "secret")
	t.Setenv("STORAGE_BACKEND", "filesystem")
	path := writeConfig(t, "lease:\n  backend: local\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Image.MockEnabled() {
		t.Fatal("USE_MOCK_PROVIDERS=false should disable mocks")
	}
	if cfg.Providers.Image.APIKey != "secret" {
		t.Fatalf("expected api key override, got %q", cfg.Providers.Image.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"minio without endpoint", "storage:\n  backend: minio\n"},
		{"unknown storage", "storage:\n  backend: s4\n"},
		{"unknown lease", "storage:\n  backend: filesystem\nlease:\n  backend: etcd\n"},
		{"positive duck", "storage:\n  backend: filesystem\nrender:\n  music_duck_db: 3\n"},
		{"fps too high", "storage:\n  backend: filesystem\nrender:\n  fps: 500\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadKeepsExplicitZeroValues(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: filesystem\nlease:\n  backend: local\n"+
		"queue:\n  max_retry: 0\n  weights:\n    render: 4\n"+
		"render:\n  music_duck_db: 0\n  fcpxml_music_db: 0\n  crf: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.MaxRetry != 0 {
		t.Fatalf("max_retry = %d, want explicit 0", cfg.Queue.MaxRetry)
	}
	if cfg.Render.MusicDuckDB != 0 || cfg.Render.FCPXMLMusicDB != 0 {
		t.Fatalf("music levels = %v/%v, want explicit 0", cfg.Render.MusicDuckDB, cfg.Render.FCPXMLMusicDB)
	}
	if cfg.Render.CRF != 0 {
		t.Fatalf("crf = %d, want explicit 0", cfg.Render.CRF)
	}
	if cfg.Queue.Weights["render"] != 4 || cfg.Queue.Weights["storyboard"] != 3 {
		t.Fatalf("weights = %v, want render overridden and the rest kept", cfg.Queue.Weights)
	}
	if cfg.Render.FPS != 30 {
		t.Fatalf("fps = %d, absent keys keep their default", cfg.Render.FPS)
	}
}

func TestValidateRejectsNegativeRetry(t *testing.T) {
	if _, err := Load(writeConfig(t, "storage:\n  backend: filesystem\nqueue:\n  max_retry: -1\n")); err == nil {
		t.Fatal("expected validation error")
	}
}
