package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the on-disk locations for the item store and every derived artifact.
type Paths struct {
	StorePath      string `toml:"store_path"`
	AudioDir       string `toml:"audio_dir"`
	SubtitleDir    string `toml:"subtitle_dir"`
	VideoDir       string `toml:"video_dir"`
	BackgroundsDir string `toml:"backgrounds_dir"`
	OutboxDir      string `toml:"outbox_dir"`
	LogDir         string `toml:"log_dir"`
}

// Source kinds understood by the content source adapter.
const (
	SourceKindRSS = "rss"
	SourceKindWeb = "web"
)

// Sources maps a source-collection name to its acquisition kind and base URL.
type Sources struct {
	BaseURL     string            `toml:"base_url"`
	UserAgent   string            `toml:"user_agent"`
	Collections map[string]string `toml:"collections"`
	Timeout     int               `toml:"timeout"`
}

// Ingest contains text normalization and filtering settings applied at ingestion.
type Ingest struct {
	BlockedWords []string          `toml:"blocked_words"`
	Slang        map[string]string `toml:"slang"`
}

// Synthesis contains configuration for the speech-synthesis endpoint.
type Synthesis struct {
	Endpoint       string   `toml:"endpoint"`
	Voices         []string `toml:"voices"`
	MaxChunkLength int      `toml:"max_chunk_length"`
}

// Transcription contains configuration for WhisperX subtitle generation.
type Transcription struct {
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	Language    string `toml:"language"`
	// Instances is the number of independently loaded transcribers. The
	// subtitle stage never runs wider than this.
	Instances int `toml:"instances"`
}

// Compose contains configuration for the ffmpeg compositing toolchain.
type Compose struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	FontPath       string `toml:"font_path"`
	FontName       string `toml:"font_name"`
	FontSize       int    `toml:"font_size"`
	SegmentSeconds int    `toml:"segment_seconds"`
	HWAccel        string `toml:"hwaccel"`
	VideoCodec     string `toml:"video_codec"`
}

// Publish contains configuration for the final publish stage.
type Publish struct {
	Enabled bool   `toml:"enabled"`
	Target  string `toml:"target"`
}

// Pipeline contains stage execution knobs shared by every stage run.
type Pipeline struct {
	Workers            int `toml:"workers"`
	CallTimeoutSeconds int `toml:"call_timeout_seconds"`
	MaxAttempts        int `toml:"max_attempts"`
	QuickLimit         int `toml:"quick_limit"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for clipmill.
//
// Configuration sections by subsystem:
//   - Paths: item store and artifact directories
//   - Sources: collections polled during ingestion
//   - Ingest: normalization table and blocked words
//   - Synthesis: speech-synthesis endpoint and voices
//   - Transcription: WhisperX model and instance count
//   - Compose: ffmpeg compositing settings
//   - Publish: publish target selection
//   - Pipeline: worker pool width, per-call deadline, failure policy
//   - Notifications: ntfy run summaries
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sources       Sources       `toml:"sources"`
	Ingest        Ingest        `toml:"ingest"`
	Synthesis     Synthesis     `toml:"synthesis"`
	Transcription Transcription `toml:"transcription"`
	Compose       Compose       `toml:"compose"`
	Publish       Publish       `toml:"publish"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipmill/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipmill.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the store parent directory and every artifact directory.
// The backgrounds directory is user-provided content and is never created here.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Paths.StorePath),
		c.Paths.AudioDir,
		c.Paths.SubtitleDir,
		c.Paths.VideoDir,
		c.Paths.LogDir,
	}
	if c.Publish.Enabled && c.Publish.Target == PublishTargetOutbox {
		dirs = append(dirs, c.Paths.OutboxDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CollectionNames returns the configured source collections in a stable order.
func (c *Config) CollectionNames() []string {
	names := make([]string, 0, len(c.Sources.Collections))
	for name := range c.Sources.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FFmpegBinary returns the ffmpeg executable used for audio concatenation and compositing.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Compose.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for duration lookups.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Compose.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
