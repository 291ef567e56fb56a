// Package publishing runs the publish stage: each rendered segment of an item
// is handed to the configured publisher with a part-numbered title.
package publishing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"clipmill/internal/config"
	"clipmill/internal/encoding"
	"clipmill/internal/logging"
	"clipmill/internal/queue"
	"clipmill/internal/services"
	"clipmill/internal/services/publish"
	"clipmill/internal/stage"
	"clipmill/internal/textutil"
)

// Name is the stage label used in logs and reports.
const Name = "publish"

// MaxTitleLength is the longest title the publish targets accept.
const MaxTitleLength = 110

// Stage publishes rendered items.
type Stage struct {
	publisher publish.Publisher
	videoDir  string
	logger    *slog.Logger
}

// NewStage builds the publish stage.
func NewStage(cfg *config.Config, publisher publish.Publisher, logger *slog.Logger) *Stage {
	s := &Stage{publisher: publisher, videoDir: cfg.Paths.VideoDir}
	s.SetLogger(logger)
	return s
}

// SetLogger routes stage logs through logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "publisher")
}

// Name implements stage.Transform.
func (s *Stage) Name() string { return Name }

// Eligible implements stage.Transform. An item is eligible until the current
// target has been recorded, so switching targets republishes finished items.
func (s *Stage) Eligible(item *queue.Item) bool {
	if item == nil || !item.VideoReady || s.publisher == nil {
		return false
	}
	return !item.HasTarget(s.publisher.Target())
}

// MarkDone implements stage.Transform.
func (s *Stage) MarkDone(item *queue.Item) {
	item.Published = true
	item.AddTarget(s.publisher.Target())
}

// PartTitle builds the title for part of parts, shortening the item title so
// the suffix always survives.
func PartTitle(title string, part, parts int) string {
	suffix := fmt.Sprintf(" (Part %d/%d)", part, parts)
	room := MaxTitleLength - utf8.RuneCountInString(suffix)
	return textutil.Shorten(strings.TrimSpace(title), room) + suffix
}

// Description builds the segment description.
func Description(item *queue.Item) string {
	return fmt.Sprintf("Posted by %s in /r/%s #shorts", item.Author, item.SourceCollection)
}

// Execute publishes every segment in order.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	parts, err := encoding.Segments(item, s.videoDir)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return services.Wrap(services.ErrNotFound, Name, "execute", "rendered item has no segments", nil)
	}

	for idx, segment := range parts {
		meta := publish.Metadata{
			ItemID:      item.ID,
			Collection:  item.SourceCollection,
			Part:        idx + 1,
			Parts:       len(parts),
			Title:       PartTitle(item.Title, idx+1, len(parts)),
			Description: Description(item),
			Tags:        []string{"shorts", item.SourceCollection},
		}
		ref, err := s.publisher.Publish(ctx, segment, meta)
		if err != nil {
			return err
		}
		logger.Debug("segment published",
			logging.Int("part", meta.Part),
			logging.Int("parts", meta.Parts),
			logging.String("reference", ref),
		)
	}
	logger.Info("item published",
		logging.String(logging.FieldEventType, "item_published"),
		logging.String("target", s.publisher.Target()),
		logging.Int("segments", len(parts)),
	)
	return nil
}

// HealthCheck reports whether a publisher is configured.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.publisher == nil {
		return stage.Unhealthy(Name, "publisher unavailable")
	}
	if strings.TrimSpace(s.videoDir) == "" {
		return stage.Unhealthy(Name, "paths.video_dir not configured")
	}
	return stage.Healthy(Name)
}
