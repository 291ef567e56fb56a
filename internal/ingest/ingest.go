package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clipmill/internal/logging"
	"clipmill/internal/queue"
	"clipmill/internal/services"
	"clipmill/internal/services/source"
	"clipmill/internal/textutil"
)

// Options configures one ingestion pass.
type Options struct {
	Source       source.Source
	Store        *queue.Store
	Collections  []string
	Slang        map[string]string
	BlockedWords []string
	// Limit stops ingestion after this many new items; zero means no limit.
	Limit  int
	Logger *slog.Logger
	Now    func() time.Time
}

// Stats summarizes an ingestion pass.
type Stats struct {
	Collections       int
	FailedCollections int
	Fetched           int
	Inserted          int
	Duplicates        int
	Filtered          int
	Failed            int
	Elapsed           time.Duration
}

// Run fetches every collection in order and inserts new items. Configuration
// errors abort the pass; any other failure of a single collection is logged
// and the remaining collections are still read.
func Run(ctx context.Context, opts Options) (Stats, error) {
	if opts.Source == nil {
		return Stats{}, services.Wrap(services.ErrConfiguration, "ingest", "run", "content source is not configured", nil)
	}
	if opts.Store == nil {
		return Stats{}, services.Wrap(services.ErrConfiguration, "ingest", "run", "item store is not configured", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ingest")
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	fingerprinter := NewFingerprinter(opts.Slang)
	start := time.Now()
	var stats Stats
	limitReached := func() bool { return opts.Limit > 0 && stats.Inserted >= opts.Limit }

	logger.Info("ingestion started",
		logging.Int("collections", len(opts.Collections)),
		logging.Int("limit", opts.Limit),
		logging.String(logging.FieldEventType, "ingest_start"),
	)

	for _, collection := range opts.Collections {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if limitReached() {
			break
		}
		stats.Collections++

		batch, err := opts.Source.Fetch(ctx, collection)
		if err != nil {
			if errors.Is(err, services.ErrConfiguration) {
				return stats, err
			}
			stats.FailedCollections++
			logging.WarnWithContext(logger, "collection fetch failed", "collection_fetch_failed",
				logging.String("collection", collection),
				logging.String(logging.FieldErrorHint, "check network access and sources.base_url"),
				logging.String(logging.FieldImpact, "collection not ingested this run"),
				logging.Error(err),
			)
			continue
		}
		stats.Fetched += len(batch.Items)
		stats.Failed += batch.Skipped

		for _, raw := range batch.Items {
			if limitReached() {
				logger.Debug("ingest limit reached", logging.Int("inserted", stats.Inserted))
				break
			}
			item := fingerprinter.Item(raw, collection, now())
			if word, blocked := blockedWord(item, opts.BlockedWords); blocked {
				stats.Filtered++
				logger.Debug("item filtered",
					logging.String(logging.FieldItemID, item.ID),
					logging.String("word", word),
				)
				continue
			}
			if strings.TrimSpace(item.Title) == "" {
				stats.Failed++
				logger.Debug("item skipped", logging.String("reason", "empty title after normalization"))
				continue
			}
			inserted, err := opts.Store.Insert(ctx, item)
			if err != nil {
				stats.Failed++
				logger.Warn("item insert failed",
					logging.String(logging.FieldItemID, item.ID),
					logging.String(logging.FieldEventType, "item_insert_failed"),
					logging.Error(err),
				)
				continue
			}
			if !inserted {
				stats.Duplicates++
				continue
			}
			stats.Inserted++
			logger.Debug("item ingested",
				logging.String(logging.FieldItemID, item.ID),
				logging.String("title", item.ShortTitle()),
			)
		}
	}

	stats.Elapsed = time.Since(start)
	logger.Info("ingestion completed",
		logging.Int("fetched", stats.Fetched),
		logging.Int("inserted", stats.Inserted),
		logging.Int("duplicates", stats.Duplicates),
		logging.Int("filtered", stats.Filtered),
		logging.Int("failed", stats.Failed),
		logging.Int("failed_collections", stats.FailedCollections),
		logging.Duration("elapsed", stats.Elapsed),
		logging.String(logging.FieldEventType, "ingest_complete"),
	)
	return stats, nil
}

func blockedWord(item *queue.Item, words []string) (string, bool) {
	if word, ok := textutil.ContainsAnyWord(item.Title, words); ok {
		return word, true
	}
	return textutil.ContainsAnyWord(item.Body, words)
}

// String renders the stats as a one-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("fetched %d, inserted %d, duplicates %d, filtered %d, failed %d",
		s.Fetched, s.Inserted, s.Duplicates, s.Filtered, s.Failed)
}
