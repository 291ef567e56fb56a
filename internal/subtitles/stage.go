package subtitles

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"clipmill/internal/config"
	"clipmill/internal/logging"
	"clipmill/internal/queue"
	"clipmill/internal/services"
	"clipmill/internal/services/whisperx"
	"clipmill/internal/stage"
)

// Name is the stage label used in logs and reports.
const Name = "subtitles"

// Stage transcribes narration into subtitles.
type Stage struct {
	transcriber whisperx.Transcriber
	audioDir    string
	subtitleDir string
	// tools must be on PATH before transcription can run.
	tools  []string
	logger *slog.Logger
}

// NewStage builds the subtitle stage. transcriber is usually a *whisperx.Pool
// so concurrent items share a fixed number of model instances.
func NewStage(cfg *config.Config, transcriber whisperx.Transcriber, logger *slog.Logger) *Stage {
	s := &Stage{
		transcriber: transcriber,
		audioDir:    cfg.Paths.AudioDir,
		subtitleDir: cfg.Paths.SubtitleDir,
		tools:       []string{cfg.FFmpegBinary(), whisperx.UVXCommand},
	}
	s.SetLogger(logger)
	return s
}

// SetLogger routes stage logs through logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "subtitle-stage")
}

// Name implements stage.Transform.
func (s *Stage) Name() string { return Name }

// Eligible implements stage.Transform.
func (s *Stage) Eligible(item *queue.Item) bool {
	return item != nil && item.AudioReady && !item.SubtitlesReady
}

// MarkDone implements stage.Transform.
func (s *Stage) MarkDone(item *queue.Item) {
	item.SubtitlesReady = true
}

// Execute transcribes the item's narration and leaves the SRT at its
// fingerprint-addressed path.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	audio := item.AudioPath(s.audioDir)
	if _, err := os.Stat(audio); err != nil {
		return services.Wrap(services.ErrNotFound, Name, "execute", "narration missing for audio-ready item", err)
	}

	produced, err := s.transcriber.Transcribe(ctx, audio, s.subtitleDir)
	if err != nil {
		return err
	}
	dest := item.SubtitlePath(s.subtitleDir)
	if filepath.Clean(produced) != filepath.Clean(dest) {
		if err := os.Rename(produced, dest); err != nil {
			return services.Wrap(services.ErrExternalTool, Name, "move subtitles", produced, err)
		}
	}
	cues, err := countCues(dest)
	if err != nil {
		_ = os.Remove(dest)
		return err
	}

	logger.Debug("subtitles written",
		logging.String("subtitle_path", dest),
		logging.Int("cues", cues),
	)
	return nil
}

// countCues returns the number of timed cues in an SRT file and rejects files
// without any.
func countCues(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, Name, "validate subtitles", path, err)
	}
	cues := bytes.Count(data, []byte("-->"))
	if cues == 0 {
		return 0, services.Wrap(services.ErrValidation, Name, "validate subtitles", "no timed cues in "+filepath.Base(path), nil)
	}
	return cues, nil
}

// HealthCheck reports whether the stage has what it needs to run.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	switch {
	case s.transcriber == nil:
		return stage.Unhealthy(Name, "transcriber unavailable")
	case strings.TrimSpace(s.subtitleDir) == "":
		return stage.Unhealthy(Name, "paths.subtitle_dir not configured")
	}
	for _, tool := range s.tools {
		if _, err := exec.LookPath(tool); err != nil {
			return stage.Unhealthy(Name, "binary "+tool+" not found")
		}
	}
	return stage.Healthy(Name)
}
