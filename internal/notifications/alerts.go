package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"suture/internal/config"
)

const userAgent = "Suture-Go/0.1.0"

// Alerts publishes operator-facing daemon events. The default implementation
// posts to ntfy; without a configured topic it is a no-op.
type Alerts interface {
	SubmissionCompleted(ctx context.Context, submissionID string, score float64) error
	SubmissionFailed(ctx context.Context, submissionID, reason string) error
	QueueSuspended(ctx context.Context, waiting int) error
	QueueResumed(ctx context.Context, waiting int) error
	TestNotification(ctx context.Context) error
}

// NewAlerts builds an alert service backed by ntfy when configured.
func NewAlerts(cfg *config.Config) Alerts {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopAlerts{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyAlerts{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyAlerts struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyAlerts) SubmissionCompleted(ctx context.Context, submissionID string, score float64) error {
	return n.send(ctx, payload{
		title:   "Suture - Analysis Complete",
		message: fmt.Sprintf("Submission %s scored %.1f/10", submissionID, score),
		tags:    []string{"suture", "analysis", "completed"},
	})
}

func (n *ntfyAlerts) SubmissionFailed(ctx context.Context, submissionID, reason string) error {
	message := fmt.Sprintf("Submission %s failed", submissionID)
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s: %s", message, reason)
	}
	return n.send(ctx, payload{
		title:    "Suture - Analysis Failed",
		message:  message,
		tags:     []string{"suture", "analysis", "failed"},
		priority: "high",
	})
}

func (n *ntfyAlerts) QueueSuspended(ctx context.Context, waiting int) error {
	return n.send(ctx, payload{
		title:    "Suture - Offline",
		message:  fmt.Sprintf("Internet connectivity lost; %d submission(s) waiting", waiting),
		tags:     []string{"suture", "network", "offline"},
		priority: "high",
	})
}

func (n *ntfyAlerts) QueueResumed(ctx context.Context, waiting int) error {
	return n.send(ctx, payload{
		title:   "Suture - Online",
		message: fmt.Sprintf("Connectivity restored; resuming %d submission(s)", waiting),
		tags:    []string{"suture", "network", "online"},
	})
}

func (n *ntfyAlerts) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Suture - Test",
		message:  "Notification system test",
		tags:     []string{"suture", "test"},
		priority: "low",
	})
}

func (n *ntfyAlerts) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

type noopAlerts struct{}

func (noopAlerts) SubmissionCompleted(context.Context, string, float64) error { return nil }
func (noopAlerts) SubmissionFailed(context.Context, string, string) error     { return nil }
func (noopAlerts) QueueSuspended(context.Context, int) error                  { return nil }
func (noopAlerts) QueueResumed(context.Context, int) error                    { return nil }
func (noopAlerts) TestNotification(context.Context) error                     { return nil }
