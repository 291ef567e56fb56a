package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSources()
	c.normalizeIngest()
	c.normalizeSynthesis()
	c.normalizeTranscription()
	if err := c.normalizeCompose(); err != nil {
		return err
	}
	c.normalizePublish()
	c.normalizePipeline()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key   string
		value *string
		def   string
	}{
		{"paths.store_path", &c.Paths.StorePath, defaultStorePath},
		{"paths.audio_dir", &c.Paths.AudioDir, defaultAudioDir},
		{"paths.subtitle_dir", &c.Paths.SubtitleDir, defaultSubtitleDir},
		{"paths.video_dir", &c.Paths.VideoDir, defaultVideoDir},
		{"paths.backgrounds_dir", &c.Paths.BackgroundsDir, defaultBackgroundsDir},
		{"paths.outbox_dir", &c.Paths.OutboxDir, defaultOutboxDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeSources() {
	c.Sources.BaseURL = strings.TrimRight(strings.TrimSpace(c.Sources.BaseURL), "/")
	if c.Sources.BaseURL == "" {
		c.Sources.BaseURL = defaultSourceBaseURL
	}
	c.Sources.UserAgent = strings.TrimSpace(c.Sources.UserAgent)
	if c.Sources.UserAgent == "" {
		c.Sources.UserAgent = defaultSourceUserAgent
	}
	if c.Sources.Timeout <= 0 {
		c.Sources.Timeout = defaultSourceTimeout
	}
	normalized := make(map[string]string, len(c.Sources.Collections))
	for name, kind := range c.Sources.Collections {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		normalized[name] = strings.ToLower(strings.TrimSpace(kind))
	}
	c.Sources.Collections = normalized
}

func (c *Config) normalizeIngest() {
	words := make([]string, 0, len(c.Ingest.BlockedWords))
	seen := make(map[string]struct{}, len(c.Ingest.BlockedWords))
	for _, word := range c.Ingest.BlockedWords {
		normalized := strings.ToLower(strings.TrimSpace(word))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		words = append(words, normalized)
	}
	c.Ingest.BlockedWords = words
	if c.Ingest.Slang == nil {
		c.Ingest.Slang = copySlang(DefaultSlang)
	}
}

func (c *Config) normalizeSynthesis() {
	c.Synthesis.Endpoint = strings.TrimSpace(c.Synthesis.Endpoint)
	if c.Synthesis.Endpoint == "" {
		if value, ok := os.LookupEnv("CLIPMILL_TTS_ENDPOINT"); ok {
			c.Synthesis.Endpoint = strings.TrimSpace(value)
		}
	}
	voices := make([]string, 0, len(c.Synthesis.Voices))
	for _, voice := range c.Synthesis.Voices {
		if voice = strings.TrimSpace(voice); voice != "" {
			voices = append(voices, voice)
		}
	}
	if len(voices) == 0 {
		voices = append(voices, DefaultVoices...)
	}
	c.Synthesis.Voices = voices
	if c.Synthesis.MaxChunkLength <= 0 {
		c.Synthesis.MaxChunkLength = defaultMaxChunkLength
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperXModel
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	if c.Transcription.Language == "" {
		c.Transcription.Language = defaultTranscribeLanguage
	}
	if c.Transcription.Instances <= 0 {
		c.Transcription.Instances = 1
	}
}

func (c *Config) normalizeCompose() error {
	c.Compose.FFmpegBinary = strings.TrimSpace(c.Compose.FFmpegBinary)
	c.Compose.FFprobeBinary = strings.TrimSpace(c.Compose.FFprobeBinary)
	c.Compose.FontName = strings.TrimSpace(c.Compose.FontName)
	if c.Compose.FontName == "" {
		c.Compose.FontName = defaultFontName
	}
	if c.Compose.FontSize <= 0 {
		c.Compose.FontSize = defaultFontSize
	}
	if c.Compose.SegmentSeconds <= 0 {
		c.Compose.SegmentSeconds = defaultSegmentSeconds
	}
	c.Compose.HWAccel = strings.ToLower(strings.TrimSpace(c.Compose.HWAccel))
	c.Compose.VideoCodec = strings.TrimSpace(c.Compose.VideoCodec)
	if c.Compose.VideoCodec == "" {
		c.Compose.VideoCodec = defaultVideoCodec
	}
	if strings.TrimSpace(c.Compose.FontPath) != "" {
		expanded, err := expandPath(strings.TrimSpace(c.Compose.FontPath))
		if err != nil {
			return fmt.Errorf("compose.font_path: %w", err)
		}
		c.Compose.FontPath = expanded
	}
	return nil
}

func (c *Config) normalizePublish() {
	c.Publish.Target = strings.ToLower(strings.TrimSpace(c.Publish.Target))
	if c.Publish.Target == "" {
		c.Publish.Target = PublishTargetOutbox
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = defaultWorkers
	}
	if c.Pipeline.CallTimeoutSeconds < 0 {
		c.Pipeline.CallTimeoutSeconds = 0
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = defaultMaxAttempts
	}
	if c.Pipeline.QuickLimit <= 0 {
		c.Pipeline.QuickLimit = defaultQuickLimit
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("CLIPMILL_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
