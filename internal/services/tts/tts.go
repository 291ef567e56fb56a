// Package tts calls an HTTP speech-synthesis endpoint.
//
// The endpoint accepts {"text": ..., "voice": ...} and answers with base64
// encoded MP3 audio in the "data" field.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"clipmill/internal/services"
)

const stageName = "audio"

// Synthesizer turns a text chunk into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Client is a Synthesizer backed by an HTTP endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient returns a client for endpoint. A nil httpClient uses a default
// client without its own timeout; callers bound requests through ctx.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{endpoint: strings.TrimSpace(endpoint), http: httpClient}
}

type request struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type response struct {
	Data    string `json:"data"`
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Synthesize posts text to the endpoint and returns the decoded audio bytes.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if c.endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "synthesize",
			"synthesis.endpoint is not set (or CLIPMILL_TTS_ENDPOINT)", nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "synthesize", "empty text", nil)
	}

	payload, err := json.Marshal(request{Text: text, Voice: voice})
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "encode request", "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "build request", c.endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, stageName, "synthesize", "request deadline exceeded", err)
		}
		return nil, services.Wrap(services.ErrTransient, stageName, "synthesize", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "read response", "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "synthesize",
			fmt.Sprintf("endpoint returned %s", resp.Status), errors.New(strings.TrimSpace(string(body))))
	}

	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "decode response", "invalid JSON", err)
	}
	if decoded.Success != nil && !*decoded.Success {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "synthesize", "endpoint reported failure", errors.New(decoded.Error))
	}
	if decoded.Data == "" {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "synthesize", "response carried no audio", nil)
	}
	audio, err := base64.StdEncoding.DecodeString(decoded.Data)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "decode audio", "invalid base64", err)
	}
	return audio, nil
}
