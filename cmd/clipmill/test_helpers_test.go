package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipmill/internal/config"
	"clipmill/internal/queue"
	"clipmill/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	home := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("CLIPMILL_TTS_ENDPOINT", "")
	t.Setenv("CLIPMILL_NTFY_TOPIC", "")

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

// seed stores items and closes the store before the CLI opens its own.
func (e *cliTestEnv) seed(t *testing.T, items ...*queue.Item) {
	t.Helper()
	store, err := queue.Open(e.cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	defer store.Close()
	for _, item := range items {
		if err := store.Put(context.Background(), item); err != nil {
			t.Fatalf("store.Put: %v", err)
		}
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
store_path = %q
audio_dir = %q
subtitle_dir = %q
video_dir = %q
backgrounds_dir = %q
outbox_dir = %q
log_dir = %q

[synthesis]
endpoint = %q
`,
		cfg.Paths.StorePath,
		cfg.Paths.AudioDir,
		cfg.Paths.SubtitleDir,
		cfg.Paths.VideoDir,
		cfg.Paths.BackgroundsDir,
		cfg.Paths.OutboxDir,
		cfg.Paths.LogDir,
		cfg.Synthesis.Endpoint,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
