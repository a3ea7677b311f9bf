package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"batchflow/internal/config"
)

const userAgent = "batchflow/0.1.0"

// Quarantine describes a suspended run for the reviewer.
type Quarantine struct {
	ExecutionID string
	BatchID     string
	Collection  string
	ErrorCount  int
	ResumeToken string
}

// Completion describes a run that reached a terminal status.
type Completion struct {
	ExecutionID string
	BatchID     string
	Status      string
	Verdict     string
	Duration    time.Duration
}

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyQuarantined(ctx context.Context, q Quarantine) error
	NotifyRunCompleted(ctx context.Context, c Completion) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
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
		toggles:  cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	toggles  config.Notifications
}

func (n *ntfyService) NotifyQuarantined(ctx context.Context, q Quarantine) error {
	if !n.toggles.Quarantine {
		return nil
	}
	label := strings.TrimSpace(q.BatchID)
	if label == "" {
		label = q.ExecutionID
	}
	noun := "items"
	if q.ErrorCount == 1 {
		noun = "item"
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "Run %s quarantined: %d %s failed in %s", label, q.ErrorCount, noun, q.Collection)
	fmt.Fprintf(&builder, "\nExecution: %s", q.ExecutionID)
	fmt.Fprintf(&builder, "\nResume with: batchflow resume %s", q.ResumeToken)
	data := payload{
		title:    "batchflow - Review Required",
		message:  builder.String(),
		tags:     []string{"batchflow", "quarantine", "review"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, c Completion) error {
	if !n.toggles.RunCompleted {
		return nil
	}
	duration := c.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	label := strings.TrimSpace(c.BatchID)
	if label == "" {
		label = c.ExecutionID
	}
	message := fmt.Sprintf("Run %s finished %s in %s", label, c.Status, duration)
	if c.Verdict != "" {
		message = fmt.Sprintf("%s (verdict %s)", message, c.Verdict)
	}
	data := payload{
		title:   "batchflow - Run Complete",
		message: message,
		tags:    []string{"batchflow", "run", c.Status},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.toggles.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "batchflow - Error",
		message:  builder.String(),
		tags:     []string{"batchflow", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "batchflow - Test",
		message:  "Notification system test",
		tags:     []string{"batchflow", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
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

type noopService struct{}

func (noopService) NotifyQuarantined(context.Context, Quarantine) error { return nil }
func (noopService) NotifyRunCompleted(context.Context, Completion) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error     { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
