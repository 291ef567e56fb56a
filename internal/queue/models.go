package queue

import (
	"slices"
	"strings"
	"time"

	"clipmill/internal/textutil"
)

// Status names the furthest stage an item has completed. It is derived from
// the readiness flags and never stored.
type Status string

const (
	StatusIngested  Status = "ingested"
	StatusNarrated  Status = "narrated"
	StatusSubtitled Status = "subtitled"
	StatusRendered  Status = "rendered"
	StatusPublished Status = "published"
)

// AllStatuses returns every status in pipeline order.
func AllStatuses() []Status {
	return []Status{StatusIngested, StatusNarrated, StatusSubtitled, StatusRendered, StatusPublished}
}

// ParseStatus normalizes a user-provided status string.
func ParseStatus(value string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	if slices.Contains(AllStatuses(), candidate) {
		return candidate, true
	}
	return "", false
}

// DatabaseHealth captures diagnostic information about the item database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// Item is one source post moving through the pipeline. Content fields are
// fixed at ingestion; only the readiness flags, publish targets, and failure
// bookkeeping change afterwards.
type Item struct {
	ID               string
	Title            string
	Body             string
	Author           string
	SourceCollection string
	IngestedAt       time.Time

	AudioReady     bool
	SubtitlesReady bool
	VideoReady     bool
	Published      bool
	PublishTargets []string

	FailureCount int
	LastError    string
	UpdatedAt    time.Time
}

// Validate checks the flag ordering every persisted item must satisfy.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return ErrMissingID
	}
	if i.SubtitlesReady && !i.AudioReady {
		return invalidTransition(i.ID, "subtitles ready without audio")
	}
	if i.VideoReady && !(i.AudioReady && i.SubtitlesReady) {
		return invalidTransition(i.ID, "video ready without audio and subtitles")
	}
	if i.Published && !i.VideoReady {
		return invalidTransition(i.ID, "published without video")
	}
	return nil
}

// Status derives the furthest completed stage from the readiness flags.
func (i *Item) Status() Status {
	switch {
	case i.Published:
		return StatusPublished
	case i.VideoReady:
		return StatusRendered
	case i.SubtitlesReady:
		return StatusSubtitled
	case i.AudioReady:
		return StatusNarrated
	default:
		return StatusIngested
	}
}

// ShortID abbreviates the fingerprint for listings and log subjects.
func (i *Item) ShortID() string {
	return textutil.ShortHash(i.ID)
}

// ShortTitle truncates the title to 20 characters for listings.
func (i *Item) ShortTitle() string {
	return textutil.Shorten(i.Title, 20)
}

// HasTarget reports whether the item was already published to target.
func (i *Item) HasTarget(target string) bool {
	return slices.Contains(i.PublishTargets, target)
}

// AddTarget records target once.
func (i *Item) AddTarget(target string) {
	target = strings.TrimSpace(target)
	if target == "" || i.HasTarget(target) {
		return
	}
	i.PublishTargets = append(i.PublishTargets, target)
}

// RecordFailure increments the failure counter and keeps the latest message.
func (i *Item) RecordFailure(message string) {
	i.FailureCount++
	i.LastError = strings.TrimSpace(message)
}

// ClearFailure drops the last error after a successful stage. FailureCount is
// kept: pipeline.max_attempts is a budget over the item's whole life, shared by
// every stage.
func (i *Item) ClearFailure() {
	i.LastError = ""
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	out := *i
	out.PublishTargets = slices.Clone(i.PublishTargets)
	return &out
}
