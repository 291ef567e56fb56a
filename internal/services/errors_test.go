package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"clipmill/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "video", "ffmpeg", "compose failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"video", "ffmpeg", "compose failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestDetails(t *testing.T) {
	cause := errors.New("exit status 1")
	err := fmt.Errorf("outer: %w", services.Wrap(services.ErrTimeout, "audio", "synthesize", "", cause))

	details := services.Details(err)
	if details.Kind != "timeout" {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Stage != "audio" || details.Operation != "synthesize" {
		t.Fatalf("unexpected details %+v", details)
	}
	if details.Message != "exit status 1" {
		t.Fatalf("expected message to fall back to cause, got %q", details.Message)
	}

	plain := services.Details(errors.New("plain"))
	if plain.Kind != "unknown" || plain.Message != "plain" {
		t.Fatalf("unexpected plain details %+v", plain)
	}
	if got := services.Details(nil); got != (services.ErrorDetails{}) {
		t.Fatalf("expected zero details for nil, got %+v", got)
	}
}

func TestKind(t *testing.T) {
	cases := map[error]string{
		services.ErrExternalTool:  "external_tool",
		services.ErrValidation:    "validation",
		services.ErrConfiguration: "configuration",
		services.ErrNotFound:      "not_found",
		services.ErrTimeout:       "timeout",
		services.ErrTransient:     "transient",
	}
	for marker, want := range cases {
		if got := services.Kind(services.Wrap(marker, "s", "op", "m", nil)); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", marker, got, want)
		}
	}
}
