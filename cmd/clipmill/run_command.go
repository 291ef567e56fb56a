package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"clipmill/internal/config"
	"clipmill/internal/deps"
	"clipmill/internal/encoding"
	"clipmill/internal/ingest"
	"clipmill/internal/logging"
	"clipmill/internal/narration"
	"clipmill/internal/notifications"
	"clipmill/internal/preflight"
	"clipmill/internal/publishing"
	"clipmill/internal/queue"
	"clipmill/internal/services"
	"clipmill/internal/services/compose"
	"clipmill/internal/services/publish"
	"clipmill/internal/services/source"
	"clipmill/internal/services/tts"
	"clipmill/internal/services/whisperx"
	"clipmill/internal/subtitles"
	"clipmill/internal/workflow"
)

type runFlags struct {
	noWebUpdate bool
	noAudio     bool
	noSubtitles bool
	noVideo     bool
	noPublish   bool
	quick       bool
	quickLimit  int
	workers     int
}

// runConfig builds the explicit run configuration from config defaults and flags.
func (f runFlags) runConfig(cfg *config.Config) workflow.RunConfig {
	rc := workflow.RunConfig{
		Ingest:               !f.noWebUpdate,
		Audio:                !f.noAudio,
		Subtitles:            !f.noSubtitles,
		Video:                !f.noVideo,
		Publish:              !f.noPublish && cfg.Publish.Enabled,
		Quick:                f.quick,
		QuickLimit:           cfg.Pipeline.QuickLimit,
		Workers:              cfg.Pipeline.Workers,
		TranscriptionWorkers: cfg.Transcription.Instances,
		CallTimeout:          time.Duration(cfg.Pipeline.CallTimeoutSeconds) * time.Second,
		MaxAttempts:          cfg.Pipeline.MaxAttempts,
	}
	if f.quickLimit > 0 {
		rc.QuickLimit = f.quickLimit
	}
	if f.workers > 0 {
		rc.Workers = f.workers
	}
	return rc
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one pipeline pass",
		Long: "Ingest new posts, then narrate, subtitle, render, and publish every item\n" +
			"whose earlier stages are done. Items resume where they stopped on the next run.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			baseLogger, err := ctx.logger()
			if err != nil {
				return err
			}
			runID := uuid.NewString()
			logger := logging.WithRunID(baseLogger, runID)
			runCtx := services.WithRunID(cmd.Context(), runID)

			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
				Dir:     cfg.Paths.LogDir,
				Pattern: logging.LogFilePattern,
				Exclude: []string{logging.LogFilePath(cfg.Paths.LogDir, time.Now())},
			})

			rc := flags.runConfig(cfg)
			if err := checkReadiness(runCtx, cfg, rc); err != nil {
				return err
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open item store: %w", err)
			}
			defer store.Close()

			stages, err := buildStages(cfg, rc, logger)
			if err != nil {
				return err
			}
			seq := workflow.New(store, stages, logger, workflow.WithNotifier(notifications.NewService(cfg)))
			for _, health := range seq.HealthCheck(runCtx, rc) {
				if !health.Ready {
					return fmt.Errorf("%s stage not ready: %s", health.Name, health.Detail)
				}
			}

			report, runErr := seq.Run(runCtx, rc)
			writeReport(cmd.OutOrStdout(), report)
			return runErr
		},
	}

	cmd.Flags().BoolVar(&flags.noWebUpdate, "no-web-update", false, "Skip fetching new posts")
	cmd.Flags().BoolVar(&flags.noAudio, "no-audio", false, "Skip the narration stage")
	cmd.Flags().BoolVar(&flags.noSubtitles, "no-subtitles", false, "Skip the subtitle stage")
	cmd.Flags().BoolVar(&flags.noVideo, "no-video", false, "Skip the video stage")
	cmd.Flags().BoolVar(&flags.noPublish, "no-publish", false, "Skip the publish stage")
	cmd.Flags().BoolVarP(&flags.quick, "quick", "q", false, "Process only a few items per stage")
	cmd.Flags().IntVar(&flags.quickLimit, "quick-limit", 0, "Items per stage in quick mode (default pipeline.quick_limit)")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "Worker pool width (default pipeline.workers)")
	return cmd
}

// checkReadiness verifies directories and tools before anything is ingested.
// The backgrounds directory is user content, so it only matters when videos
// are rendered. A missing tool must stop the run here: once items are
// dispatched it would count as an item failure and delete them.
func checkReadiness(ctx context.Context, cfg *config.Config, rc workflow.RunConfig) error {
	if rc.Video || rc.Publish {
		if failed := preflight.Failed(preflight.RunAll(ctx, cfg)); len(failed) > 0 {
			parts := make([]string, 0, len(failed))
			for _, r := range failed {
				parts = append(parts, r.Name+": "+r.Detail)
			}
			return services.Wrap(services.ErrConfiguration, "preflight", "directories", strings.Join(parts, "; "), nil)
		}
	}
	if rc.Audio || rc.Subtitles || rc.Video {
		if missing := deps.Missing(preflight.CheckSystemDeps(cfg, rc.Subtitles)); len(missing) > 0 {
			names := make([]string, 0, len(missing))
			for _, m := range missing {
				names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.Detail))
			}
			return services.Wrap(services.ErrConfiguration, "preflight", "dependencies", "missing "+strings.Join(names, ", "), nil)
		}
	}
	return nil
}

// buildStages wires the production collaborators for every enabled stage.
func buildStages(cfg *config.Config, rc workflow.RunConfig, logger *slog.Logger) (workflow.Stages, error) {
	stages := workflow.Stages{
		Ingest: ingest.Options{
			Source:       source.NewClient(cfg.Sources, logger),
			Collections:  cfg.CollectionNames(),
			Slang:        cfg.Ingest.Slang,
			BlockedWords: cfg.Ingest.BlockedWords,
		},
	}
	ffmpeg := compose.New(cfg)

	if rc.Audio {
		stages.Audio = narration.NewStage(cfg, tts.NewClient(cfg.Synthesis.Endpoint, nil), ffmpeg, logger)
	}
	if rc.Subtitles {
		instances := make([]whisperx.Transcriber, 0, rc.TranscriptionWorkers)
		for i := 0; i < max(rc.TranscriptionWorkers, 1); i++ {
			instances = append(instances, whisperx.NewService(whisperx.Config{
				Model:       cfg.Transcription.Model,
				CUDAEnabled: cfg.Transcription.CUDAEnabled,
				Language:    cfg.Transcription.Language,
			}, cfg.FFmpegBinary()))
		}
		pool, err := whisperx.NewPool(instances...)
		if err != nil {
			return stages, err
		}
		stages.Subtitles = subtitles.NewStage(cfg, pool, logger)
	}
	if rc.Video {
		stages.Video = encoding.NewStage(cfg, ffmpeg, logger)
	}
	if rc.Publish {
		publisher, err := publish.New(cfg)
		if err != nil {
			return stages, err
		}
		stages.Publish = publishing.NewStage(cfg, publisher, logger)
	}
	return stages, nil
}

func writeReport(out io.Writer, report workflow.Report) {
	if report.Ingest != nil {
		fmt.Fprintf(out, "Ingest: %s\n", report.Ingest.String())
	}
	if len(report.Stages) > 0 {
		rows := make([][]string, 0, len(report.Stages))
		for _, stats := range report.Stages {
			rows = append(rows, []string{
				stageTitle(stats.Stage),
				fmt.Sprintf("%d", stats.Eligible),
				fmt.Sprintf("%d", stats.Succeeded),
				fmt.Sprintf("%d", stats.Failed),
				fmt.Sprintf("%d", stats.Deleted),
				fmt.Sprintf("%d", stats.Skipped),
				formatDuration(stats.Elapsed),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Stage", "Eligible", "Succeeded", "Failed", "Deleted", "Capped", "Elapsed"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
		))
	}
	if len(report.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped: %s\n", strings.Join(report.Skipped, ", "))
	}
	if report.Quick {
		fmt.Fprintf(out, "Quick mode: capped at %d per stage\n", report.Cap)
	}
	fmt.Fprintf(out, "Run %s finished in %s\n", report.RunID, formatDuration(report.Elapsed))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
