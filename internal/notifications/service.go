package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipmill/internal/config"
)

const userAgent = "Clipmill-Go/0.1.0"

// Event names a pipeline milestone.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventRunFailed    Event = "run_failed"
	EventStageFailed  Event = "stage_failed"
	EventTest         Event = "test"
)

// Payload carries event fields; values are rendered with %v.
type Payload map[string]any

// Service defines the notification surface exposed to the sequencer and CLI.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// render formats an event. Events without a message are suppressed.
func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunCompleted:
		published := intValue(payload["published"])
		failed := intValue(payload["failed"])
		duration := durationText(payload["duration"])
		msg := message{
			title: "Clipmill - Run Complete",
			body:  fmt.Sprintf("✅ Run complete: %d ingested, %d published in %s", intValue(payload["ingested"]), published, duration),
			tags:  []string{"clipmill", "run", "completed"},
		}
		if failed > 0 {
			msg.title = "Clipmill - Run Complete (with errors)"
			msg.body = fmt.Sprintf("Run complete: %d ingested, %d published, %d failed in %s", intValue(payload["ingested"]), published, failed, duration)
		}
		return msg, true
	case EventRunFailed:
		return message{
			title:    "Clipmill - Run Failed",
			body:     fmt.Sprintf("❌ Run failed: %s", stringValue(payload["error"])),
			tags:     []string{"clipmill", "run", "error"},
			priority: "high",
		}, true
	case EventStageFailed:
		return message{
			title:    "Clipmill - Stage Failed",
			body:     fmt.Sprintf("❌ Stage %s failed: %s", stringValue(payload["stage"]), stringValue(payload["error"])),
			tags:     []string{"clipmill", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Clipmill - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"clipmill", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func stringValue(v any) string {
	if v == nil {
		return "unknown"
	}
	if err, ok := v.(error); ok {
		return strings.TrimSpace(err.Error())
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

func durationText(v any) string {
	d, _ := v.(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
