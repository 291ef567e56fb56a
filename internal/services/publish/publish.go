// Package publish delivers finished video segments to a publish target.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipmill/internal/config"
	"clipmill/internal/fileutil"
	"clipmill/internal/services"
	"clipmill/internal/textutil"
)

const stageName = "publish"

// Metadata describes one uploaded segment.
type Metadata struct {
	ItemID      string   `json:"item_id"`
	Collection  string   `json:"collection"`
	Part        int      `json:"part"`
	Parts       int      `json:"parts"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Publisher uploads a segment and returns a target-specific reference.
type Publisher interface {
	Target() string
	Publish(ctx context.Context, segment string, meta Metadata) (string, error)
}

// New returns the publisher configured under [publish].
func New(cfg *config.Config) (Publisher, error) {
	switch cfg.Publish.Target {
	case config.PublishTargetOutbox:
		return NewOutbox(cfg.Paths.OutboxDir), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, stageName, "new publisher",
			fmt.Sprintf("unsupported target %q", cfg.Publish.Target), nil)
	}
}

// Outbox publishes by copying each segment with a metadata sidecar into
// <dir>/<collection>/<item id>/, where an external uploader picks them up.
type Outbox struct {
	dir string
	now func() time.Time
}

// NewOutbox returns an outbox rooted at dir.
func NewOutbox(dir string) *Outbox {
	return &Outbox{dir: dir, now: time.Now}
}

// Target implements Publisher.
func (o *Outbox) Target() string {
	return config.PublishTargetOutbox
}

type sidecar struct {
	Metadata
	Segment     string    `json:"segment"`
	PublishedAt time.Time `json:"published_at"`
}

// Publish implements Publisher.
func (o *Outbox) Publish(ctx context.Context, segment string, meta Metadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrTimeout, stageName, "publish", "context done", err)
	}
	if strings.TrimSpace(o.dir) == "" {
		return "", services.Wrap(services.ErrConfiguration, stageName, "publish", "paths.outbox_dir is not set", nil)
	}
	if strings.TrimSpace(meta.ItemID) == "" {
		return "", services.Wrap(services.ErrValidation, stageName, "publish", "item id required", nil)
	}
	if _, err := os.Stat(segment); err != nil {
		return "", services.Wrap(services.ErrNotFound, stageName, "publish", "segment missing", err)
	}

	destDir := filepath.Join(o.dir, textutil.SanitizeToken(meta.Collection), meta.ItemID)
	dest := filepath.Join(destDir, fmt.Sprintf("%03d%s", meta.Part, filepath.Ext(segment)))
	if err := fileutil.CopyFileVerified(segment, dest); err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "copy segment", dest, err)
	}

	data, err := json.MarshalIndent(sidecar{Metadata: meta, Segment: filepath.Base(dest), PublishedAt: o.now().UTC()}, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "encode metadata", "", err)
	}
	if err := fileutil.WriteFileAtomic(strings.TrimSuffix(dest, filepath.Ext(dest))+".json", data, 0o644); err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "write metadata", dest, err)
	}
	return dest, nil
}
