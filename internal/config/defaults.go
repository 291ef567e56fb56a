package config

const (
	defaultStorePath          = "~/.local/share/clipmill/items.db"
	defaultAudioDir           = "~/.local/share/clipmill/audio"
	defaultSubtitleDir        = "~/.local/share/clipmill/subtitles"
	defaultVideoDir           = "~/.local/share/clipmill/videos"
	defaultBackgroundsDir     = "~/.local/share/clipmill/backgrounds"
	defaultOutboxDir          = "~/.local/share/clipmill/outbox"
	defaultLogDir             = "~/.local/share/clipmill/logs"
	defaultSourceBaseURL      = "https://www.reddit.com"
	defaultSourceUserAgent    = "clipmill/dev"
	defaultSourceTimeout      = 30
	defaultMaxChunkLength     = 300
	defaultWhisperXModel      = "small.en"
	defaultTranscribeLanguage = "en"
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultFontName           = "Montserrat Black"
	defaultFontSize           = 18
	defaultSegmentSeconds     = 50
	defaultVideoCodec         = "libx264"
	defaultWorkers            = 16
	defaultCallTimeoutSeconds = 600
	defaultMaxAttempts        = 1
	defaultQuickLimit         = 1
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30

	// maxSegmentSeconds is the platform ceiling for a single short.
	maxSegmentSeconds = 60
)

// Publish target identifiers.
const (
	PublishTargetOutbox = "outbox"
)

// DefaultSlang is the abbreviation expansion table applied to titles and bodies.
var DefaultSlang = map[string]string{
	"tifu":   "Today I f'ed up",
	"ilpt":   "Illegal Life Pro Tip",
	"ulpt":   "Unethical Life Pro Tip",
	"lpt":    "Life Pro Tip",
	"aita":   "Am I The Asshole",
	"til":    "Today I Learned",
	"tl,dr":  "In Summary;",
	"tldr":   "In Summary;",
	"cuz":    "because",
	"f*cked": "f'ed",
	"f*ck":   "f",
}

// DefaultVoices lists the synthesis voice identifiers chosen from at random per item.
var DefaultVoices = []string{
	"en_uk_001",
	"en_uk_003",
	"en_us_001",
	"en_us_002",
	"en_us_006",
	"en_us_007",
	"en_us_009",
	"en_us_010",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorePath:      defaultStorePath,
			AudioDir:       defaultAudioDir,
			SubtitleDir:    defaultSubtitleDir,
			VideoDir:       defaultVideoDir,
			BackgroundsDir: defaultBackgroundsDir,
			OutboxDir:      defaultOutboxDir,
			LogDir:         defaultLogDir,
		},
		Sources: Sources{
			BaseURL:   defaultSourceBaseURL,
			UserAgent: defaultSourceUserAgent,
			Timeout:   defaultSourceTimeout,
			Collections: map[string]string{
				"tifu":                SourceKindRSS,
				"confession":          SourceKindRSS,
				"relationship_advice": SourceKindWeb,
				"amitheasshole":       SourceKindRSS,
			},
		},
		Ingest: Ingest{
			BlockedWords: []string{"suicide", "kill"},
			Slang:        copySlang(DefaultSlang),
		},
		Synthesis: Synthesis{
			Voices:         append([]string(nil), DefaultVoices...),
			MaxChunkLength: defaultMaxChunkLength,
		},
		Transcription: Transcription{
			Model:     defaultWhisperXModel,
			Language:  defaultTranscribeLanguage,
			Instances: 1,
		},
		Compose: Compose{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			FontName:       defaultFontName,
			FontSize:       defaultFontSize,
			SegmentSeconds: defaultSegmentSeconds,
			VideoCodec:     defaultVideoCodec,
		},
		Publish: Publish{
			Target: PublishTargetOutbox,
		},
		Pipeline: Pipeline{
			Workers:            defaultWorkers,
			CallTimeoutSeconds: defaultCallTimeoutSeconds,
			MaxAttempts:        defaultMaxAttempts,
			QuickLimit:         defaultQuickLimit,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

func copySlang(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
