package workflow

import (
	"time"

	"clipmill/internal/ingest"
	"clipmill/internal/stage"
)

// Report aggregates the outcome of one run.
type Report struct {
	RunID string
	Quick bool
	Cap   int
	// Ingest is nil when ingestion was skipped.
	Ingest  *ingest.Stats
	Stages  []stage.Stats
	Skipped []string
	Elapsed time.Duration
}

// Stage returns the stats of the named stage, if it ran.
func (r Report) Stage(name string) (stage.Stats, bool) {
	for _, stats := range r.Stages {
		if stats.Stage == name {
			return stats, true
		}
	}
	return stage.Stats{}, false
}

// Ingested returns the number of new items stored.
func (r Report) Ingested() int {
	if r.Ingest == nil {
		return 0
	}
	return r.Ingest.Inserted
}

// Published returns the number of items published in this run.
func (r Report) Published() int {
	stats, _ := r.Stage("publish")
	return stats.Succeeded
}

// Failed sums item failures across ingestion and every stage.
func (r Report) Failed() int {
	total := 0
	if r.Ingest != nil {
		total += r.Ingest.Failed
	}
	for _, stats := range r.Stages {
		total += stats.Failed
	}
	return total
}
