package deps

import (
	"os"
	"path/filepath"
	"testing"

	"clipmill/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func TestRequirementsAndMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Compose.FFmpegBinary = "clearly-not-present-ffmpeg"
	cfg.Compose.FFprobeBinary = "clearly-not-present-ffprobe"

	reqs := Requirements(&cfg, false)
	if len(reqs) != 3 || !reqs[2].Optional {
		t.Fatalf("expected uvx optional without subtitles, got %#v", reqs)
	}
	missing := Missing(CheckBinaries(reqs))
	for _, status := range missing {
		if status.Optional {
			t.Fatalf("optional dependency reported missing: %#v", status)
		}
	}
	if len(missing) != 2 {
		t.Fatalf("expected ffmpeg and ffprobe missing, got %#v", missing)
	}
	if reqs := Requirements(&cfg, true); reqs[2].Optional {
		t.Fatal("uvx must be required when subtitles run")
	}
}
