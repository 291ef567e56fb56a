package whisperx_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clipmill/internal/services"
	"clipmill/internal/services/whisperx"
)

func writeAudio(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "abc123.mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestTranscribeProducesSRT(t *testing.T) {
	dir := t.TempDir()
	audio := writeAudio(t, dir)
	outDir := filepath.Join(dir, "subs")

	var calls [][]string
	svc := whisperx.NewService(whisperx.Config{Language: "en"}, "ffmpeg").WithCommandRunner(
		func(_ context.Context, name string, args ...string) error {
			calls = append(calls, append([]string{name}, args...))
			if name == whisperx.UVXCommand {
				return os.WriteFile(filepath.Join(outDir, "abc123.srt"), []byte("1\n00:00:00,000 --> 00:00:01,000\nHi\n"), 0o644)
			}
			return nil
		})

	path, err := svc.Transcribe(context.Background(), audio, outDir)
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if path != filepath.Join(outDir, "abc123.srt") {
		t.Fatalf("path = %s", path)
	}
	if len(calls) != 2 || calls[0][0] != "ffmpeg" || calls[1][0] != whisperx.UVXCommand {
		t.Fatalf("unexpected calls %v", calls)
	}
	uvx := calls[1]
	for _, want := range [][]string{
		{"--model", whisperx.DefaultModel},
		{"--output_format", "srt"},
		{"--language", "en"},
		{"--device", whisperx.CPUDevice},
	} {
		idx := slices.Index(uvx, want[0])
		if idx < 0 || idx+1 >= len(uvx) || uvx[idx+1] != want[1] {
			t.Fatalf("expected %s %s in %v", want[0], want[1], uvx)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "abc123.wav")); !os.IsNotExist(err) {
		t.Fatalf("intermediate wav should be removed, stat err=%v", err)
	}
}

func TestTranscribeFailures(t *testing.T) {
	dir := t.TempDir()
	audio := writeAudio(t, dir)

	noOutput := whisperx.NewService(whisperx.Config{}, "").WithCommandRunner(
		func(context.Context, string, ...string) error { return nil })
	if _, err := noOutput.Transcribe(context.Background(), audio, dir); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error when no srt is produced, got %v", err)
	}

	failing := whisperx.NewService(whisperx.Config{}, "").WithCommandRunner(
		func(context.Context, string, ...string) error { return errors.New("exit status 1") })
	if _, err := failing.Transcribe(context.Background(), audio, dir); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	if _, err := failing.Transcribe(context.Background(), filepath.Join(dir, "missing.mp3"), dir); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

type countingTranscriber struct {
	active *atomic.Int32
	peak   *atomic.Int32
	busy   atomic.Bool
	shared atomic.Bool
}

func (c *countingTranscriber) Transcribe(context.Context, string, string) (string, error) {
	if !c.busy.CompareAndSwap(false, true) {
		c.shared.Store(true)
	}
	n := c.active.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	c.active.Add(-1)
	c.busy.Store(false)
	return "ok.srt", nil
}

func TestPoolHandsOutExclusiveInstances(t *testing.T) {
	var active, peak atomic.Int32
	a := &countingTranscriber{active: &active, peak: &peak}
	b := &countingTranscriber{active: &active, peak: &peak}
	pool, err := whisperx.NewPool(a, b)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	if pool.Size() != 2 {
		t.Fatalf("size = %d", pool.Size())
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pool.Transcribe(context.Background(), "a.mp3", ""); err != nil {
				t.Errorf("Transcribe failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Fatalf("peak concurrency %d exceeds pool size", peak.Load())
	}
	if a.shared.Load() || b.shared.Load() {
		t.Fatal("an instance served two calls at once")
	}
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	var active, peak atomic.Int32
	pool, err := whisperx.NewPool(&countingTranscriber{active: &active, peak: &peak})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	inst, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := pool.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	pool.Release(inst)

	if _, err := whisperx.NewPool(); err == nil {
		t.Fatal("expected error for empty pool")
	}
}
