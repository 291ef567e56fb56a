package compose

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"clipmill/internal/config"
	"clipmill/internal/media/ffprobe"
	"clipmill/internal/services"
)

const stageName = "video"

// Request describes one composition.
type Request struct {
	ItemID       string
	AudioPath    string
	SubtitlePath string
	// PartsDir receives the numbered segments; it is emptied first.
	PartsDir string
	// WorkDir holds the intermediate full-length render.
	WorkDir string
}

// Compositor renders a request into ordered segment files.
type Compositor interface {
	Compose(ctx context.Context, req Request) ([]string, error)
}

// AudioJoiner concatenates audio clips into one file.
type AudioJoiner interface {
	Concat(ctx context.Context, clips []string, dest string) error
}

// MediaProber inspects media files.
type MediaProber interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Style controls the burned-in subtitle appearance.
type Style struct {
	FontPath string
	FontName string
	FontSize int
}

// FFmpeg implements Compositor and AudioJoiner.
type FFmpeg struct {
	binary         string
	backgroundsDir string
	segmentSeconds int
	hwaccel        string
	videoCodec     string
	style          Style
	prober         MediaProber
	run            CommandRunner
	intn           func(n int) int
}

// New builds an FFmpeg compositor from configuration.
func New(cfg *config.Config) *FFmpeg {
	return &FFmpeg{
		binary:         cfg.FFmpegBinary(),
		backgroundsDir: cfg.Paths.BackgroundsDir,
		segmentSeconds: cfg.Compose.SegmentSeconds,
		hwaccel:        cfg.Compose.HWAccel,
		videoCodec:     cfg.Compose.VideoCodec,
		style: Style{
			FontPath: cfg.Compose.FontPath,
			FontName: cfg.Compose.FontName,
			FontSize: cfg.Compose.FontSize,
		},
		prober: ffprobe.NewProber(cfg.FFprobeBinary()),
		run:    runCommand,
		intn:   rand.IntN,
	}
}

// WithCommandRunner replaces ffmpeg execution (for testing).
func (f *FFmpeg) WithCommandRunner(run CommandRunner) *FFmpeg {
	if run != nil {
		f.run = run
	}
	return f
}

// WithProber replaces media probing (for testing).
func (f *FFmpeg) WithProber(prober MediaProber) *FFmpeg {
	if prober != nil {
		f.prober = prober
	}
	return f
}

// WithRandom replaces the random source; intn must return a value in [0, n).
func (f *FFmpeg) WithRandom(intn func(n int) int) *FFmpeg {
	if intn != nil {
		f.intn = intn
	}
	return f
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Compose renders req and returns the segment paths in playback order.
func (f *FFmpeg) Compose(ctx context.Context, req Request) ([]string, error) {
	for label, path := range map[string]string{"audio": req.AudioPath, "subtitles": req.SubtitlePath} {
		if _, err := os.Stat(path); err != nil {
			return nil, services.Wrap(services.ErrNotFound, stageName, "compose", label+" file missing", err)
		}
	}
	if req.PartsDir == "" || req.WorkDir == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "compose", "parts and work directories are required", nil)
	}

	background, err := f.pickBackground()
	if err != nil {
		return nil, err
	}
	audioLen, err := f.streamLength(ctx, "probe audio", req.AudioPath, ffprobe.Result.AudioStreamCount)
	if err != nil {
		return nil, err
	}
	videoLen, err := f.streamLength(ctx, "probe background", background, ffprobe.Result.VideoStreamCount)
	if err != nil {
		return nil, err
	}
	if videoLen < audioLen {
		return nil, services.Wrap(services.ErrValidation, stageName, "compose",
			fmt.Sprintf("background %s (%s) is shorter than narration (%s)", filepath.Base(background), videoLen, audioLen), nil)
	}
	start := f.intn(int((videoLen-audioLen)/time.Second) + 1)

	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "compose", "ensure work dir", err)
	}
	if err := os.RemoveAll(req.PartsDir); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "compose", "clear parts dir", err)
	}
	if err := os.MkdirAll(req.PartsDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "compose", "ensure parts dir", err)
	}

	rendered := filepath.Join(req.WorkDir, req.ItemID+"_composed.mp4")
	defer os.Remove(rendered)

	if err := f.run(ctx, f.binary, f.renderArgs(background, req.AudioPath, req.SubtitlePath, start, audioLen, rendered)...); err != nil {
		return nil, wrapRunError(ctx, "render", err)
	}
	if err := f.run(ctx, f.binary, f.segmentArgs(rendered, req.PartsDir)...); err != nil {
		return nil, wrapRunError(ctx, "segment", err)
	}

	parts, err := listSegments(req.PartsDir)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "segment", "list segments", err)
	}
	if len(parts) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "segment", "ffmpeg produced no segments", nil)
	}
	return parts, nil
}

// streamLength probes path, requires at least one stream counted by streams,
// and returns the container duration.
func (f *FFmpeg) streamLength(ctx context.Context, op, path string, streams func(ffprobe.Result) int) (time.Duration, error) {
	result, err := f.prober.Inspect(ctx, path)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, stageName, op, path, err)
	}
	if streams(result) == 0 {
		return 0, services.Wrap(services.ErrValidation, stageName, op, filepath.Base(path)+" has no usable stream", nil)
	}
	length, err := result.Length()
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, stageName, op, path, err)
	}
	return length, nil
}

// Concat joins clips, in order, into dest with the concat demuxer.
func (f *FFmpeg) Concat(ctx context.Context, clips []string, dest string) error {
	if len(clips) == 0 {
		return services.Wrap(services.ErrValidation, "audio", "concat", "no clips to join", nil)
	}
	listPath := dest + ".concat.txt"
	var b strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return services.Wrap(services.ErrValidation, "audio", "concat", clip, err)
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, "audio", "concat", "write concat list", err)
	}
	defer os.Remove(listPath)

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		dest,
	}
	if err := f.run(ctx, f.binary, args...); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "audio", "concat", "deadline exceeded", err)
		}
		return services.Wrap(services.ErrExternalTool, "audio", "concat", "", err)
	}
	return nil
}

func (f *FFmpeg) pickBackground() (string, error) {
	root := f.backgroundsDir
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, stageName, "pick background", root, err)
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(root, entry.Name()))
		}
	}
	dir := root
	if len(dirs) > 0 {
		dir = dirs[f.intn(len(dirs))]
	}
	clips, err := mp4Files(dir)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, stageName, "pick background", dir, err)
	}
	if len(clips) == 0 {
		return "", services.Wrap(services.ErrNotFound, stageName, "pick background", "no .mp4 clips in "+dir, nil)
	}
	return clips[f.intn(len(clips))], nil
}

func mp4Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".mp4") {
			out = append(out, filepath.Join(dir, entry.Name()))
		}
	}
	return out, nil
}

func listSegments(dir string) ([]string, error) {
	parts, err := mp4Files(dir)
	if err != nil {
		return nil, err
	}
	slices.Sort(parts)
	return parts, nil
}

func (f *FFmpeg) inputPrefix() []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if f.hwaccel != "" {
		args = append(args, "-hwaccel", f.hwaccel)
	}
	return args
}

// renderArgs trims the background to the narration, crops it to 9:16 and
// burns in subtitles. Keyframes are forced on segment boundaries so the
// stream-copied segments split at segment_seconds.
func (f *FFmpeg) renderArgs(background, audio, subtitles string, start int, length time.Duration, dest string) []string {
	seconds := strconv.FormatFloat(length.Seconds(), 'f', 3, 64)
	filter := fmt.Sprintf(
		"[0:v]trim=start=%d:duration=%s,setpts=PTS-STARTPTS,crop=ih*9/16:ih,%s[v0];[1:a]atrim=start=0:duration=%s,asetpts=PTS-STARTPTS[a0]",
		start, seconds, f.subtitleFilter(subtitles), seconds,
	)
	args := f.inputPrefix()
	args = append(args,
		"-i", background,
		"-i", audio,
		"-filter_complex", filter,
		"-map", "[v0]",
		"-map", "[a0]",
		"-c:v", f.videoCodec,
		"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", f.segmentSeconds),
		"-c:a", "aac",
		dest,
	)
	return args
}

func (f *FFmpeg) subtitleFilter(path string) string {
	var b strings.Builder
	b.WriteString("subtitles=filename=")
	b.WriteString(escapeFilterValue(path))
	if f.style.FontPath != "" {
		b.WriteString(":fontsdir=")
		b.WriteString(escapeFilterValue(filepath.Dir(f.style.FontPath)))
	}
	fmt.Fprintf(&b, ":force_style='Fontname=%s,Fontsize=%d,MarginV=100,Alignment=6,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000'",
		f.style.FontName, f.style.FontSize)
	return b.String()
}

// escapeFilterValue escapes a value for use inside an ffmpeg filtergraph option.
func escapeFilterValue(value string) string {
	replacer := strings.NewReplacer(`\`, `\\\\`, `:`, `\\:`, `'`, `\\\'`, `,`, `\,`, `[`, `\[`, `]`, `\]`, `;`, `\;`)
	return replacer.Replace(value)
}

func (f *FFmpeg) segmentArgs(rendered, partsDir string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", rendered,
		"-c", "copy",
		"-f", "segment",
		"-segment_time", strconv.Itoa(f.segmentSeconds),
		"-reset_timestamps", "1",
		filepath.Join(partsDir, "%03d.mp4"),
	}
}

func wrapRunError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stageName, op, "deadline exceeded", err)
	}
	return services.Wrap(services.ErrExternalTool, stageName, op, "", err)
}
