package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"clipmill/internal/ingest"
	"clipmill/internal/services"
	"clipmill/internal/stage"
	"clipmill/internal/testsupport"
	"clipmill/internal/workflow"
)

func TestRunFlagsBuildRunConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublish())
	cfg.Pipeline.Workers = 8
	cfg.Pipeline.CallTimeoutSeconds = 30
	cfg.Transcription.Instances = 2

	rc := runFlags{noSubtitles: true, quick: true, quickLimit: 3}.runConfig(cfg)
	if !rc.Ingest || !rc.Audio || rc.Subtitles || !rc.Video || !rc.Publish {
		t.Fatalf("unexpected stage toggles %+v", rc)
	}
	if rc.Cap() != 3 || rc.Workers != 8 || rc.TranscriptionWorkers != 2 || rc.CallTimeout != 30*time.Second {
		t.Fatalf("unexpected run config %+v", rc)
	}

	cfg.Publish.Enabled = false
	if rc := (runFlags{workers: 2}).runConfig(cfg); rc.Publish || rc.Workers != 2 || rc.Cap() != 0 {
		t.Fatalf("publish must follow config and workers the flag, got %+v", rc)
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	writeReport(&buf, workflow.Report{
		RunID:   "run-1",
		Quick:   true,
		Cap:     1,
		Ingest:  &ingest.Stats{Inserted: 2},
		Stages:  []stage.Stats{{Stage: "subtitles", Eligible: 2, Succeeded: 1, Failed: 1}},
		Skipped: []string{"publish"},
		Elapsed: 1500 * time.Millisecond,
	})
	out := buf.String()
	requireContains(t, out, "Subtitles")
	requireContains(t, out, "Skipped: publish")
	requireContains(t, out, "capped at 1 per stage")
	requireContains(t, out, "Run run-1 finished in 1.5s")
}

func TestRunWithEverythingDisabledIsANoop(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"run", "--no-web-update", "--no-audio", "--no-subtitles", "--no-video", "--no-publish"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Skipped: ingest, audio, subtitles, video, publish")
}

func TestRunStopsBeforeSubtitlesWhenToolsAreMissing(t *testing.T) {
	env := setupCLITestEnv(t)
	narrated := testsupport.NewItem("Narrated story")
	narrated.AudioReady = true
	env.seed(t, narrated)
	testsupport.WriteFile(t, narrated.AudioPath(env.cfg.Paths.AudioDir), 32)
	t.Setenv("PATH", t.TempDir())

	_, _, err := runCLI(t, []string{"run", "--no-web-update", "--no-audio", "--no-video", "--no-publish"}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing tools, got %v", err)
	}

	store := testsupport.MustOpenStore(t, env.cfg)
	got := testsupport.MustGet(t, store, narrated.ID)
	if got.SubtitlesReady || got.FailureCount != 0 {
		t.Fatalf("item must be left untouched, got %+v", got)
	}
}
