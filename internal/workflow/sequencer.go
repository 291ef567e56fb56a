package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clipmill/internal/ingest"
	"clipmill/internal/logging"
	"clipmill/internal/notifications"
	"clipmill/internal/queue"
	"clipmill/internal/services"
	"clipmill/internal/stage"
	"clipmill/internal/stageexec"
)

// Stages holds the collaborators for one run. Ingest carries the source and
// filtering settings; Run fills in its Store, Limit, and Logger. A nil
// transform is treated as a disabled stage.
type Stages struct {
	Ingest    ingest.Options
	Audio     stage.Transform
	Subtitles stage.Transform
	Video     stage.Transform
	Publish   stage.Transform
}

// RunConfig is the explicit per-run configuration. It is built once by the
// caller and never read from globals.
type RunConfig struct {
	Ingest    bool
	Audio     bool
	Subtitles bool
	Video     bool
	Publish   bool

	// Quick caps ingestion and every stage at QuickLimit successes.
	Quick      bool
	QuickLimit int

	Workers              int
	TranscriptionWorkers int
	CallTimeout          time.Duration
	MaxAttempts          int
}

// Cap returns the sampling cap, or zero when quick mode is off.
func (c RunConfig) Cap() int {
	if !c.Quick {
		return 0
	}
	if c.QuickLimit <= 0 {
		return 1
	}
	return c.QuickLimit
}

// Option configures optional Sequencer behavior.
type Option func(*Sequencer)

// WithNotifier sends run outcomes through n.
func WithNotifier(n notifications.Service) Option {
	return func(s *Sequencer) {
		if n != nil {
			s.notifier = n
		}
	}
}

// Sequencer runs the pipeline stages in order.
type Sequencer struct {
	store    *queue.Store
	stages   Stages
	logger   *slog.Logger
	notifier notifications.Service
	lockPath string
}

// New constructs a sequencer over store.
func New(store *queue.Store, stages Stages, logger *slog.Logger, opts ...Option) *Sequencer {
	s := &Sequencer{
		store:  store,
		stages: stages,
		logger: logging.NewComponentLogger(logger, "workflow"),
	}
	if store != nil {
		s.lockPath = LockPathFor(store.Path())
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type plannedStage struct {
	name      string
	enabled   bool
	transform stage.Transform
	workers   int
}

// Run executes one pipeline pass. The returned error is reserved for
// failures that stop the run: configuration problems, store errors, a held
// run lock, or cancellation. Item failures only show up in the report.
func (s *Sequencer) Run(ctx context.Context, cfg RunConfig) (Report, error) {
	if s.store == nil {
		return Report{}, services.Wrap(services.ErrConfiguration, "workflow", "run", "item store is not configured", nil)
	}
	runID, ok := services.RunIDFromContext(ctx)
	if !ok {
		runID = uuid.NewString()
		ctx = services.WithRunID(ctx, runID)
	}
	report := Report{RunID: runID, Quick: cfg.Quick, Cap: cfg.Cap()}
	logger := logging.WithContext(ctx, logging.WithRunID(s.logger, runID))

	if s.lockPath != "" {
		lock, err := AcquireRunLock(s.lockPath)
		if err != nil {
			return report, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("failed to release run lock", logging.Error(err), logging.String("lock", lock.Path()))
			}
		}()
	}

	start := time.Now()
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Bool("quick", cfg.Quick),
		logging.Int("cap", report.Cap),
	)

	err := s.run(ctx, cfg, &report, logger)
	report.Elapsed = time.Since(start)
	if err != nil {
		logger.Error("run failed",
			logging.String(logging.FieldEventType, "run_failed"),
			logging.Error(err),
			logging.Duration("elapsed", report.Elapsed),
		)
		s.notify(ctx, logger, notifications.EventRunFailed, notifications.Payload{"error": err})
		return report, err
	}

	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("ingested", report.Ingested()),
		logging.Int("published", report.Published()),
		logging.Int("failed", report.Failed()),
		logging.Duration("elapsed", report.Elapsed),
	)
	s.notify(ctx, logger, notifications.EventRunCompleted, notifications.Payload{
		"ingested":  report.Ingested(),
		"published": report.Published(),
		"failed":    report.Failed(),
		"duration":  report.Elapsed,
	})
	return report, nil
}

func (s *Sequencer) run(ctx context.Context, cfg RunConfig, report *Report, logger *slog.Logger) error {
	if cfg.Ingest {
		opts := s.stages.Ingest
		opts.Store = s.store
		opts.Limit = report.Cap
		opts.Logger = logger
		stats, err := ingest.Run(ctx, opts)
		report.Ingest = &stats
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
	} else {
		report.Skipped = append(report.Skipped, "ingest")
	}

	transcriptionWorkers := cfg.TranscriptionWorkers
	if transcriptionWorkers <= 0 {
		transcriptionWorkers = 1
	}
	plan := []plannedStage{
		{"audio", cfg.Audio, s.stages.Audio, cfg.Workers},
		{"subtitles", cfg.Subtitles, s.stages.Subtitles, transcriptionWorkers},
		{"video", cfg.Video, s.stages.Video, cfg.Workers},
		{"publish", cfg.Publish, s.stages.Publish, cfg.Workers},
	}
	for _, planned := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !planned.enabled || planned.transform == nil {
			report.Skipped = append(report.Skipped, planned.name)
			logger.Debug("stage skipped", logging.String(logging.FieldStage, planned.name))
			continue
		}
		stats, err := stageexec.Run(ctx, stageexec.Options{
			Store:       s.store,
			Transform:   planned.transform,
			Workers:     planned.workers,
			Cap:         report.Cap,
			CallTimeout: cfg.CallTimeout,
			MaxAttempts: cfg.MaxAttempts,
			Logger:      logger,
		})
		report.Stages = append(report.Stages, stats)
		if err != nil {
			s.notify(ctx, logger, notifications.EventStageFailed, notifications.Payload{"stage": planned.name, "error": err})
			return fmt.Errorf("%s stage: %w", planned.name, err)
		}
	}
	return nil
}

func (s *Sequencer) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("run cancelled, notification not sent", logging.String("event", string(event)))
			return
		}
		logger.Warn("notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "run outcome not delivered to ntfy"),
		)
	}
}

// HealthCheck collects the readiness of every enabled stage that reports it.
func (s *Sequencer) HealthCheck(ctx context.Context, cfg RunConfig) []stage.Health {
	var out []stage.Health
	for _, candidate := range []struct {
		enabled   bool
		transform stage.Transform
	}{
		{cfg.Audio, s.stages.Audio},
		{cfg.Subtitles, s.stages.Subtitles},
		{cfg.Video, s.stages.Video},
		{cfg.Publish, s.stages.Publish},
	} {
		if !candidate.enabled || candidate.transform == nil {
			continue
		}
		if checker, ok := candidate.transform.(stage.HealthChecker); ok {
			out = append(out, checker.HealthCheck(ctx))
		}
	}
	return out
}
