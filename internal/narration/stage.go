package narration

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"clipmill/internal/chunker"
	"clipmill/internal/config"
	"clipmill/internal/fileutil"
	"clipmill/internal/logging"
	"clipmill/internal/queue"
	"clipmill/internal/services"
	"clipmill/internal/services/compose"
	"clipmill/internal/services/tts"
	"clipmill/internal/stage"
)

// Name is the stage label used in logs and reports.
const Name = "audio"

// Stage synthesizes narration for items that have none.
type Stage struct {
	synth    tts.Synthesizer
	joiner   compose.AudioJoiner
	audioDir string
	voices   []string
	maxChunk int
	intn     func(n int) int
	logger   *slog.Logger
}

// NewStage builds the audio stage.
func NewStage(cfg *config.Config, synth tts.Synthesizer, joiner compose.AudioJoiner, logger *slog.Logger) *Stage {
	s := &Stage{
		synth:    synth,
		joiner:   joiner,
		audioDir: cfg.Paths.AudioDir,
		voices:   append([]string(nil), cfg.Synthesis.Voices...),
		maxChunk: cfg.Synthesis.MaxChunkLength,
		intn:     rand.IntN,
	}
	if s.maxChunk <= 0 {
		s.maxChunk = chunker.DefaultMaxLength
	}
	s.SetLogger(logger)
	return s
}

// WithRandom replaces voice selection; intn must return a value in [0, n).
func (s *Stage) WithRandom(intn func(n int) int) *Stage {
	if intn != nil {
		s.intn = intn
	}
	return s
}

// SetLogger routes stage logs through logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "narration")
}

// Name implements stage.Transform.
func (s *Stage) Name() string { return Name }

// Eligible implements stage.Transform.
func (s *Stage) Eligible(item *queue.Item) bool {
	return item != nil && !item.AudioReady
}

// MarkDone implements stage.Transform.
func (s *Stage) MarkDone(item *queue.Item) {
	item.AudioReady = true
}

// Texts returns the narration texts for item in speaking order: the title
// followed by the body chunks.
func Texts(item *queue.Item, maxChunk int) []string {
	texts := make([]string, 0, 8)
	if title := strings.TrimSpace(item.Title); title != "" {
		texts = append(texts, title)
	}
	return append(texts, chunker.Split(item.Body, maxChunk)...)
}

// Execute synthesizes every text and joins the clips into the item's audio file.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	texts := Texts(item, s.maxChunk)
	if len(texts) == 0 {
		return services.Wrap(services.ErrValidation, Name, "execute", "item has no title or body to narrate", nil)
	}
	if len(s.voices) == 0 {
		return services.Wrap(services.ErrConfiguration, Name, "execute", "synthesis.voices is empty", nil)
	}
	voice := s.voices[s.intn(len(s.voices))]

	clipDir := item.ClipDir(s.audioDir)
	if err := os.MkdirAll(clipDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, Name, "execute", "create clip dir", err)
	}
	defer os.RemoveAll(clipDir)

	clips := make([]string, 0, len(texts))
	for idx, text := range texts {
		data, err := s.synth.Synthesize(ctx, text, voice)
		if err != nil {
			return err
		}
		clip := filepath.Join(clipDir, fmt.Sprintf("%03d.mp3", idx))
		if err := fileutil.WriteFileAtomic(clip, data, 0o644); err != nil {
			return services.Wrap(services.ErrConfiguration, Name, "write clip", clip, err)
		}
		clips = append(clips, clip)
	}

	dest := item.AudioPath(s.audioDir)
	partial := strings.TrimSuffix(dest, ".mp3") + ".partial.mp3"
	if err := s.joiner.Concat(ctx, clips, partial); err != nil {
		_ = os.Remove(partial)
		return err
	}
	if err := os.Rename(partial, dest); err != nil {
		_ = os.Remove(partial)
		return services.Wrap(services.ErrConfiguration, Name, "finalize audio", dest, err)
	}

	logger.Debug("narration written",
		logging.String("audio_path", dest),
		logging.String("voice", voice),
		logging.Int("clips", len(clips)),
	)
	return nil
}

// HealthCheck reports whether the stage has what it needs to run.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	switch {
	case s.synth == nil:
		return stage.Unhealthy(Name, "synthesizer unavailable")
	case s.joiner == nil:
		return stage.Unhealthy(Name, "audio joiner unavailable")
	case strings.TrimSpace(s.audioDir) == "":
		return stage.Unhealthy(Name, "paths.audio_dir not configured")
	case len(s.voices) == 0:
		return stage.Unhealthy(Name, "synthesis.voices is empty")
	}
	return stage.Healthy(Name)
}
