package preflight

import (
	"context"

	"clipmill/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for the given config. The outbox is
// only checked when publishing is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Audio directory", cfg.Paths.AudioDir),
		CheckDirectoryAccess("Subtitle directory", cfg.Paths.SubtitleDir),
		CheckDirectoryAccess("Video directory", cfg.Paths.VideoDir),
		CheckDirectoryAccess("Backgrounds directory", cfg.Paths.BackgroundsDir),
	}
	if cfg.Publish.Enabled && cfg.Publish.Target == config.PublishTargetOutbox {
		results = append(results, CheckDirectoryAccess("Outbox directory", cfg.Paths.OutboxDir))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
