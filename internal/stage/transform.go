package stage

import (
	"context"
	"log/slog"

	"clipmill/internal/queue"
)

// Transform is the contract every pipeline stage implements.
//
// Eligible must depend only on the item's flags. Execute produces the
// stage's artifact and must honor ctx; it is called at most once per item per
// run. MarkDone flips the stage's readiness flag after Execute succeeded and
// must leave the item valid.
type Transform interface {
	Name() string
	Eligible(*queue.Item) bool
	Execute(ctx context.Context, item *queue.Item) error
	MarkDone(*queue.Item)
}

// HealthChecker is implemented by stages that can report readiness before a run.
type HealthChecker interface {
	HealthCheck(context.Context) Health
}

// LoggerAware is implemented by stages that want the runner's stage logger.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
