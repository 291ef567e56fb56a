package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"clipmill/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CLIPMILL_TTS_ENDPOINT", "http://tts.local/api")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStore := filepath.Join(tempHome, ".local", "share", "clipmill", "items.db")
	if cfg.Paths.StorePath != wantStore {
		t.Fatalf("unexpected store path: got %q want %q", cfg.Paths.StorePath, wantStore)
	}
	if cfg.Synthesis.Endpoint != "http://tts.local/api" {
		t.Fatalf("expected synthesis endpoint from env, got %q", cfg.Synthesis.Endpoint)
	}
	if cfg.Pipeline.Workers != 16 {
		t.Fatalf("expected 16 workers by default, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.MaxAttempts != 1 {
		t.Fatalf("expected max attempts 1 by default, got %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Transcription.Instances != 1 {
		t.Fatalf("expected single transcriber by default, got %d", cfg.Transcription.Instances)
	}
	if cfg.Publish.Enabled {
		t.Fatal("expected publish disabled by default")
	}
	if cfg.Compose.SegmentSeconds != 50 {
		t.Fatalf("unexpected segment seconds: %d", cfg.Compose.SegmentSeconds)
	}
	if got := cfg.CollectionNames(); len(got) != 4 || got[0] != "amitheasshole" {
		t.Fatalf("unexpected collections: %v", got)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{filepath.Dir(cfg.Paths.StorePath), cfg.Paths.AudioDir, cfg.Paths.SubtitleDir, cfg.Paths.VideoDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if _, err := os.Stat(cfg.Paths.BackgroundsDir); !os.IsNotExist(err) {
		t.Fatalf("expected backgrounds dir to be left alone, stat err=%v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "clipmill.toml")

	type payload struct {
		Paths struct {
			StorePath string `toml:"store_path"`
		} `toml:"paths"`
		Sources struct {
			Collections map[string]string `toml:"collections"`
		} `toml:"sources"`
		Pipeline struct {
			Workers     int `toml:"workers"`
			MaxAttempts int `toml:"max_attempts"`
		} `toml:"pipeline"`
	}
	custom := payload{}
	custom.Paths.StorePath = filepath.Join(tempDir, "store.db")
	custom.Sources.Collections = map[string]string{"tifu": "RSS "}
	custom.Pipeline.Workers = 4
	custom.Pipeline.MaxAttempts = 3
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.StorePath != custom.Paths.StorePath {
		t.Fatalf("expected store path override, got %q", cfg.Paths.StorePath)
	}
	if cfg.Sources.Collections["tifu"] != config.SourceKindRSS {
		t.Fatalf("expected normalized kind, got %q", cfg.Sources.Collections["tifu"])
	}
	if cfg.Pipeline.Workers != 4 || cfg.Pipeline.MaxAttempts != 3 {
		t.Fatalf("unexpected pipeline settings: %+v", cfg.Pipeline)
	}
}

func TestConfigFileValueWinsOverEnvFallback(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "clipmill.toml")
	contents := "[synthesis]\nendpoint = \"http://file/api\"\n\n[notifications]\nntfy_topic = \"https://ntfy.sh/file\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CLIPMILL_TTS_ENDPOINT", "http://env/api")
	t.Setenv("CLIPMILL_NTFY_TOPIC", "https://ntfy.sh/env")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Synthesis.Endpoint != "http://file/api" {
		t.Errorf("expected endpoint from file, got %q", cfg.Synthesis.Endpoint)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/file" {
		t.Errorf("expected topic from file, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[sources.collections]") {
		t.Fatalf("sample config missing collections table: %s", contents)
	}

	cfg := config.Default()
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config failed validation: %v", err)
	}
	if !strings.Contains(cfg.Paths.StorePath, "clipmill") {
		t.Fatalf("expected store path to contain clipmill, got %q", cfg.Paths.StorePath)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown source kind", func(c *config.Config) { c.Sources.Collections["pics"] = "ftp" }},
		{"zero workers", func(c *config.Config) { c.Pipeline.Workers = 0 }},
		{"zero attempts", func(c *config.Config) { c.Pipeline.MaxAttempts = 0 }},
		{"negative timeout", func(c *config.Config) { c.Pipeline.CallTimeoutSeconds = -1 }},
		{"zero instances", func(c *config.Config) { c.Transcription.Instances = 0 }},
		{"segment too long", func(c *config.Config) { c.Compose.SegmentSeconds = 90 }},
		{"bad hwaccel", func(c *config.Config) { c.Compose.HWAccel = "metal" }},
		{"unknown publish target", func(c *config.Config) {
			c.Publish.Enabled = true
			c.Publish.Target = "youtube"
		}},
		{"empty store path", func(c *config.Config) { c.Paths.StorePath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
