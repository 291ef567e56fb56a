package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipmill/internal/logging"
	"clipmill/internal/queue"
	"clipmill/internal/services"
	"clipmill/internal/stage"
)

// DefaultWorkers is the pool width used when Options.Workers is unset.
const DefaultWorkers = 16

// Store is the persistence surface the runner needs.
type Store interface {
	List(ctx context.Context) ([]*queue.Item, error)
	Put(ctx context.Context, item *queue.Item) error
	Delete(ctx context.Context, id string) (bool, error)
}

// Options controls one stage run.
type Options struct {
	Store     Store
	Transform stage.Transform
	// Workers is the pool width.
	Workers int
	// Cap stops dispatching once this many items succeeded; zero disables it.
	Cap int
	// CallTimeout bounds each Execute call; zero disables it.
	CallTimeout time.Duration
	// MaxAttempts is the lifetime failure count at which an item is deleted.
	// Successes do not reset the count.
	MaxAttempts int
	Logger      *slog.Logger
	OnProgress  func(stage.Progress)
}

type runner struct {
	opts   Options
	name   string
	logger *slog.Logger

	mu        sync.Mutex
	stats     stage.Stats
	done      int
	sampler   *logging.ProgressSampler
	succeeded int
}

// Run snapshots the store, dispatches every eligible item to a bounded pool,
// and persists each outcome. A failing item never stops the others; the
// returned error is reserved for problems that prevent the stage from running
// at all.
func Run(ctx context.Context, opts Options) (stage.Stats, error) {
	if opts.Transform == nil {
		return stage.Stats{}, errors.New("stage transform unavailable")
	}
	if opts.Store == nil {
		return stage.Stats{}, errors.New("item store is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	name := opts.Transform.Name()
	stageCtx := logging.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Transform.(stage.LoggerAware); ok {
		aware.SetLogger(logger)
	}

	r := &runner{
		opts:    opts,
		name:    name,
		logger:  logger,
		stats:   stage.Stats{Stage: name},
		sampler: logging.NewProgressSampler(10),
	}
	start := time.Now()

	items, err := opts.Store.List(stageCtx)
	if err != nil {
		return r.stats, fmt.Errorf("%s: snapshot items: %w", name, err)
	}
	eligible := make([]*queue.Item, 0, len(items))
	for _, item := range items {
		if opts.Transform.Eligible(item) {
			eligible = append(eligible, item)
		}
	}
	r.stats.Eligible = len(eligible)

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("eligible", len(eligible)),
		logging.Int("workers", opts.Workers),
		logging.Int("cap", opts.Cap),
	)

	pool := NewWorkerPool(opts.Workers)
	var wg sync.WaitGroup
	var dispatchErr error
	for idx, item := range eligible {
		if r.capReached() {
			r.skip(len(eligible) - idx)
			break
		}
		if err := pool.Acquire(stageCtx); err != nil {
			dispatchErr = err
			r.skip(len(eligible) - idx)
			break
		}
		// A slot may free up only after enough successes landed.
		if r.capReached() {
			pool.Release()
			r.skip(len(eligible) - idx)
			break
		}
		r.mu.Lock()
		r.stats.Dispatched++
		r.mu.Unlock()

		wg.Add(1)
		go func(item *queue.Item) {
			defer wg.Done()
			defer pool.Release()
			r.process(stageCtx, item)
		}(item)
	}
	wg.Wait()

	r.stats.Elapsed = time.Since(start)
	stats := r.stats
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("eligible", stats.Eligible),
		logging.Int("dispatched", stats.Dispatched),
		logging.Int("succeeded", stats.Succeeded),
		logging.Int("failed", stats.Failed),
		logging.Int("deleted", stats.Deleted),
		logging.Int("skipped", stats.Skipped),
		logging.Duration("elapsed", stats.Elapsed),
		logging.Duration("per_item", stats.PerItem()),
	)
	if dispatchErr != nil {
		return stats, fmt.Errorf("%s: dispatch interrupted: %w", name, dispatchErr)
	}
	return stats, nil
}

func (r *runner) capReached() bool {
	if r.opts.Cap <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.succeeded >= r.opts.Cap
}

func (r *runner) skip(n int) {
	r.mu.Lock()
	r.stats.Skipped += n
	r.mu.Unlock()
	if n > 0 {
		r.logger.Debug("dispatch stopped", logging.Int("skipped", n), logging.Int("cap", r.opts.Cap))
	}
}

// process runs the transform for one item and persists the outcome. Panics
// are recovered here so one item cannot take down the stage.
func (r *runner) process(ctx context.Context, item *queue.Item) {
	itemCtx := services.WithItemID(ctx, item.ID)
	itemCtx = services.WithRequestID(itemCtx, uuid.NewString())
	logger := logging.WithContext(itemCtx, r.logger)
	snapshot := item.Clone()

	err := r.execute(itemCtx, item)
	if err == nil {
		r.opts.Transform.MarkDone(item)
		item.ClearFailure()
		if putErr := r.opts.Store.Put(itemCtx, item); putErr != nil {
			err = services.Wrap(services.ErrTransient, r.name, "persist result", "store write failed", putErr)
		}
	}
	if err != nil {
		deleted := r.fail(itemCtx, logger, snapshot, err)
		r.finish(false, deleted)
		return
	}
	logger.Debug("item completed", logging.String(logging.FieldEventType, "item_complete"))
	r.finish(true, false)
}

func (r *runner) execute(ctx context.Context, item *queue.Item) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = services.Wrap(services.ErrExternalTool, r.name, "execute",
				fmt.Sprintf("panic: %v", recovered), errors.New(strings.TrimSpace(string(debug.Stack()))))
		}
	}()

	callCtx := ctx
	if r.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.opts.CallTimeout)
		defer cancel()
	}
	err = r.opts.Transform.Execute(callCtx, item)
	if err == nil {
		return nil
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		return services.Wrap(services.ErrTimeout, r.name, "execute",
			fmt.Sprintf("exceeded %s", r.opts.CallTimeout), err)
	}
	return err
}

// fail applies the failure policy to the pre-execution snapshot: the failure
// is recorded and the item is deleted once it reached MaxAttempts.
func (r *runner) fail(ctx context.Context, logger *slog.Logger, snapshot *queue.Item, cause error) bool {
	details := services.Details(cause)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(cause.Error())
	}
	snapshot.RecordFailure(message)

	terminal := snapshot.FailureCount >= r.opts.MaxAttempts
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.String(logging.FieldErrorHint, failureHint(cause)),
		logging.String("title", snapshot.ShortTitle()),
		logging.Int("failure_count", snapshot.FailureCount),
		logging.Bool("deleted", terminal),
		logging.Error(cause),
	)

	if terminal {
		if _, err := r.opts.Store.Delete(ctx, snapshot.ID); err != nil {
			logger.Error("failed to delete item", logging.Error(err))
			return false
		}
		return true
	}
	if err := r.opts.Store.Put(ctx, snapshot); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}
	return false
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrConfiguration):
		return "fix the configuration and rerun"
	case errors.Is(err, services.ErrTimeout):
		return "raise pipeline.call_timeout_seconds or check the collaborator"
	case errors.Is(err, services.ErrNotFound):
		return "an earlier stage artifact is missing"
	case errors.Is(err, services.ErrExternalTool):
		return "check the external tool output above"
	default:
		return "check logs for details"
	}
}

func (r *runner) finish(ok, deleted bool) {
	r.mu.Lock()
	r.done++
	if ok {
		r.succeeded++
		r.stats.Succeeded++
	} else {
		r.stats.Failed++
	}
	if deleted {
		r.stats.Deleted++
	}
	progress := stage.Progress{
		Stage:     r.name,
		Done:      r.done,
		Total:     r.stats.Dispatched,
		Succeeded: r.stats.Succeeded,
		Failed:    r.stats.Failed,
	}
	shouldLog := r.sampler.ShouldLog(r.done, r.stats.Eligible)
	r.mu.Unlock()

	if shouldLog {
		r.logger.Info("stage progress",
			logging.Int("done", progress.Done),
			logging.Int("eligible", r.stats.Eligible),
			logging.Int("succeeded", progress.Succeeded),
			logging.Int("failed", progress.Failed),
		)
	}
	if r.opts.OnProgress != nil {
		r.opts.OnProgress(progress)
	}
}
