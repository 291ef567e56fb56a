package encoding

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"clipmill/internal/config"
	"clipmill/internal/logging"
	"clipmill/internal/queue"
	"clipmill/internal/services"
	"clipmill/internal/services/compose"
	"clipmill/internal/stage"
)

// Name is the stage label used in logs and reports.
const Name = "video"

// Stage composes subtitled videos.
type Stage struct {
	compositor     compose.Compositor
	audioDir       string
	subtitleDir    string
	videoDir       string
	backgroundsDir string
	ffmpegBinary   string
	logger         *slog.Logger
}

// NewStage builds the video stage.
func NewStage(cfg *config.Config, compositor compose.Compositor, logger *slog.Logger) *Stage {
	s := &Stage{
		compositor:     compositor,
		audioDir:       cfg.Paths.AudioDir,
		subtitleDir:    cfg.Paths.SubtitleDir,
		videoDir:       cfg.Paths.VideoDir,
		backgroundsDir: cfg.Paths.BackgroundsDir,
		ffmpegBinary:   cfg.FFmpegBinary(),
	}
	s.SetLogger(logger)
	return s
}

// SetLogger routes stage logs through logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "encoder")
}

// Name implements stage.Transform.
func (s *Stage) Name() string { return Name }

// Eligible implements stage.Transform.
func (s *Stage) Eligible(item *queue.Item) bool {
	return item != nil && item.AudioReady && item.SubtitlesReady && !item.VideoReady
}

// MarkDone implements stage.Transform.
func (s *Stage) MarkDone(item *queue.Item) {
	item.VideoReady = true
}

// Execute renders the item's segments.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	req := compose.Request{
		ItemID:       item.ID,
		AudioPath:    item.AudioPath(s.audioDir),
		SubtitlePath: item.SubtitlePath(s.subtitleDir),
		PartsDir:     item.PartsDir(s.videoDir),
		WorkDir:      s.videoDir,
	}
	logger.Debug("launching composition",
		logging.String("audio_path", req.AudioPath),
		logging.String("subtitle_path", req.SubtitlePath),
		logging.String("parts_dir", req.PartsDir),
	)
	parts, err := s.compositor.Compose(ctx, req)
	if err != nil {
		_ = os.RemoveAll(req.PartsDir)
		return err
	}
	if len(parts) == 0 {
		return services.Wrap(services.ErrExternalTool, Name, "compose", "no segments produced", nil)
	}
	logger.Info("video composed",
		logging.String(logging.FieldEventType, "video_composed"),
		logging.Int("segments", len(parts)),
		logging.String("parts_dir", req.PartsDir),
	)
	return nil
}

// Segments lists an item's rendered segments in playback order.
func Segments(item *queue.Item, videoDir string) ([]string, error) {
	dir := item.PartsDir(videoDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, Name, "list segments", dir, err)
	}
	var parts []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".mp4") {
			parts = append(parts, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(parts)
	return parts, nil
}

// HealthCheck verifies the compositor and its toolchain.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.compositor == nil {
		return stage.Unhealthy(Name, "compositor unavailable")
	}
	if strings.TrimSpace(s.videoDir) == "" {
		return stage.Unhealthy(Name, "paths.video_dir not configured")
	}
	if info, err := os.Stat(s.backgroundsDir); err != nil || !info.IsDir() {
		return stage.Unhealthy(Name, "backgrounds directory "+s.backgroundsDir+" not found")
	}
	if _, err := exec.LookPath(s.ffmpegBinary); err != nil {
		return stage.Unhealthy(Name, "ffmpeg binary "+s.ffmpegBinary+" not found")
	}
	return stage.Healthy(Name)
}
