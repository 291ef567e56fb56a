package tts_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clipmill/internal/services"
	"clipmill/internal/services/tts"
)

func TestSynthesizeDecodesAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text  string `json:"text"`
			Voice string `json:"voice"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "Hello there." || req.Voice != "en_us_001" {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": base64.StdEncoding.EncodeToString([]byte("ID3audio"))})
	}))
	defer server.Close()

	audio, err := tts.NewClient(server.URL, server.Client()).Synthesize(context.Background(), " Hello there. ", "en_us_001")
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if string(audio) != "ID3audio" {
		t.Fatalf("audio = %q", audio)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rejected":
			http.Error(w, "too long", http.StatusBadRequest)
		case "/failed":
			_, _ = w.Write([]byte(`{"success": false, "error": "voice unavailable"}`))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		}
	}))
	defer server.Close()

	tests := []struct {
		name   string
		client *tts.Client
		text   string
		ctx    func() (context.Context, context.CancelFunc)
		marker error
	}{
		{"no endpoint", tts.NewClient("", nil), "x", nil, services.ErrConfiguration},
		{"empty text", tts.NewClient(server.URL, server.Client()), "  ", nil, services.ErrValidation},
		{"http error", tts.NewClient(server.URL+"/rejected", server.Client()), "x", nil, services.ErrExternalTool},
		{"reported failure", tts.NewClient(server.URL+"/failed", server.Client()), "x", nil, services.ErrExternalTool},
		{"deadline", tts.NewClient(server.URL+"/slow", server.Client()), "x", func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 20*time.Millisecond)
		}, services.ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.Background(), context.CancelFunc(func() {})
			if tt.ctx != nil {
				ctx, cancel = tt.ctx()
			}
			defer cancel()
			_, err := tt.client.Synthesize(ctx, tt.text, "en_us_001")
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
		})
	}
}
