package compose_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"clipmill/internal/media/ffprobe"
	"clipmill/internal/services"
	"clipmill/internal/services/compose"
	"clipmill/internal/testsupport"
)

type fakeProber map[string]time.Duration

func (p fakeProber) Inspect(_ context.Context, path string) (ffprobe.Result, error) {
	d, ok := p[filepath.Base(path)]
	if !ok {
		return ffprobe.Result{}, errors.New("unknown file")
	}
	kind := "video"
	if filepath.Ext(path) == ".mp3" {
		kind = "audio"
	}
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: kind}},
		Format:  ffprobe.Format{Filename: path, Duration: strconv.FormatFloat(d.Seconds(), 'f', 3, 64)},
	}, nil
}

type audioOnlyProber struct{ fakeProber }

func (p audioOnlyProber) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	result, err := p.fakeProber.Inspect(ctx, path)
	for i := range result.Streams {
		result.Streams[i].CodecType = "audio"
	}
	return result, err
}

type recorder struct {
	calls    [][]string
	segments int
}

func (r *recorder) run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	if slices.Contains(args, "segment") {
		pattern := args[len(args)-1]
		for i := r.segments - 1; i >= 0; i-- {
			path := strings.Replace(pattern, "%03d", padded(i), 1)
			if err := os.WriteFile(path, []byte("mp4"), 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

func padded(i int) string {
	s := "00" + string(rune('0'+i))
	return s[len(s)-3:]
}

func setup(t *testing.T) (*compose.FFmpeg, compose.Request, *recorder) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.BackgroundsDir, "minecraft", "run.mp4"), 16)
	audio := filepath.Join(cfg.Paths.AudioDir, "abc.mp3")
	subs := filepath.Join(cfg.Paths.SubtitleDir, "abc.srt")
	testsupport.WriteFile(t, audio, 8)
	testsupport.WriteFile(t, subs, 8)

	rec := &recorder{segments: 3}
	f := compose.New(cfg).
		WithCommandRunner(rec.run).
		WithProber(fakeProber{"abc.mp3": 120 * time.Second, "run.mp4": 600 * time.Second}).
		WithRandom(func(n int) int { return n - 1 })
	req := compose.Request{
		ItemID:       "abc",
		AudioPath:    audio,
		SubtitlePath: subs,
		PartsDir:     filepath.Join(base, "videos", "abc_parts"),
		WorkDir:      filepath.Join(base, "videos"),
	}
	return f, req, rec
}

func TestComposeRendersAndSegments(t *testing.T) {
	f, req, rec := setup(t)

	parts, err := f.Compose(context.Background(), req)
	if err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}
	want := []string{
		filepath.Join(req.PartsDir, "000.mp4"),
		filepath.Join(req.PartsDir, "001.mp4"),
		filepath.Join(req.PartsDir, "002.mp4"),
	}
	if !slices.Equal(parts, want) {
		t.Fatalf("parts = %v, want %v", parts, want)
	}
	if len(rec.calls) != 2 {
		t.Fatalf("expected render and segment calls, got %d", len(rec.calls))
	}
	render := strings.Join(rec.calls[0], " ")
	for _, want := range []string{
		"trim=start=480:duration=120.000",
		"crop=ih*9/16:ih",
		"subtitles=filename=",
		"Fontname=Montserrat Black",
		"-c:v libx264",
		"-force_key_frames expr:gte(t,n_forced*50)",
	} {
		if !strings.Contains(render, want) {
			t.Fatalf("render args missing %q: %s", want, render)
		}
	}
	segment := strings.Join(rec.calls[1], " ")
	if !strings.Contains(segment, "-segment_time 50") {
		t.Fatalf("segment args: %s", segment)
	}
}

func TestComposeRejectsShortBackground(t *testing.T) {
	f, req, _ := setup(t)
	f.WithProber(fakeProber{"abc.mp3": 120 * time.Second, "run.mp4": 30 * time.Second})

	_, err := f.Compose(context.Background(), req)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestComposeRejectsBackgroundWithoutVideo(t *testing.T) {
	f, req, rec := setup(t)
	f.WithProber(audioOnlyProber{fakeProber{"abc.mp3": 120 * time.Second, "run.mp4": 600 * time.Second}})

	_, err := f.Compose(context.Background(), req)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "run.mp4") {
		t.Fatalf("error should name the background: %v", err)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("ffmpeg should not run, got %v", rec.calls)
	}
}

func TestComposeRequiresInputs(t *testing.T) {
	f, req, _ := setup(t)
	req.SubtitlePath = filepath.Join(t.TempDir(), "missing.srt")

	_, err := f.Compose(context.Background(), req)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestConcatWritesListFile(t *testing.T) {
	f, _, _ := setup(t)
	dir := t.TempDir()
	var listContent string
	f.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		idx := slices.Index(args, "-i")
		data, err := os.ReadFile(args[idx+1])
		if err != nil {
			return err
		}
		listContent = string(data)
		return nil
	})

	clips := []string{filepath.Join(dir, "0.mp3"), filepath.Join(dir, "it's.mp3")}
	if err := f.Concat(context.Background(), clips, filepath.Join(dir, "out.mp3")); err != nil {
		t.Fatalf("Concat returned error: %v", err)
	}
	if !strings.Contains(listContent, "file '"+clips[0]+"'\n") || !strings.Contains(listContent, `it'\''s.mp3`) {
		t.Fatalf("unexpected concat list %q", listContent)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.mp3.concat.txt")); !os.IsNotExist(err) {
		t.Fatal("concat list should be removed")
	}
	if err := f.Concat(context.Background(), nil, filepath.Join(dir, "x.mp3")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty clip list, got %v", err)
	}
}
