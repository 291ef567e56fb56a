package ffprobe

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{Duration: "123.45"},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if !math.IsNaN(Result{Format: Format{Duration: "bad"}}.DurationSeconds()) {
		t.Fatal("expected NaN for unparsable duration")
	}
}

func TestProberInspect(t *testing.T) {
	var gotArgs []string
	prober := NewProber("").WithOutputFunc(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffprobe" {
			t.Fatalf("binary = %s", name)
		}
		gotArgs = args
		return []byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"12.5"}}`), nil
	})

	result, err := prober.Inspect(context.Background(), "/tmp/a.mp3")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if result.AudioStreamCount() != 1 || result.VideoStreamCount() != 0 {
		t.Fatalf("unexpected streams: %+v", result.Streams)
	}
	d, err := result.Length()
	if err != nil {
		t.Fatalf("Length returned error: %v", err)
	}
	if d != 12500*time.Millisecond {
		t.Fatalf("duration = %v", d)
	}
	if gotArgs[len(gotArgs)-1] != "/tmp/a.mp3" {
		t.Fatalf("path not passed last: %v", gotArgs)
	}
}

func TestProberErrors(t *testing.T) {
	failing := NewProber("ffprobe").WithOutputFunc(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("No such file"), errors.New("exit status 1")
	})
	if _, err := failing.Inspect(context.Background(), "/missing.mp4"); err == nil {
		t.Fatal("expected error from failing ffprobe")
	}

	if _, err := (Result{Format: Format{Filename: "/a.mp4"}}).Length(); err == nil {
		t.Fatal("expected error for missing duration")
	}
	if _, err := (Result{Format: Format{Duration: "bad"}}).Length(); err == nil {
		t.Fatal("expected error for unparsable duration")
	}

	if _, err := NewProber("").Inspect(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
