package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldline/internal/config"
	"fieldline/internal/pipeline"
)

const userAgent = "Fieldline-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyRunStarted(ctx context.Context, runID string, count int) error
	NotifyRunCompleted(ctx context.Context, run *pipeline.ExtractionRun) error
	NotifyRunFailed(ctx context.Context, run *pipeline.ExtractionRun, reason string) error
	NotifyVisitReady(ctx context.Context, property *pipeline.Property) error
	NotifyCaseSubmitted(ctx context.Context, property *pipeline.Property) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
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

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
		runs:     cfg.Notifications.Runs,
		visits:   cfg.Notifications.Visits,
		errors:   cfg.Notifications.Errors,
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
	runs     bool
	visits   bool
	errors   bool
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, runID string, count int) error {
	if !n.runs {
		return nil
	}
	data := payload{
		title:   "Fieldline - Run Started",
		message: fmt.Sprintf("Started extraction run %s with %d properties", runID, count),
		tags:    []string{"fieldline", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, run *pipeline.ExtractionRun) error {
	if !n.runs {
		return nil
	}
	var message string
	var title string
	if run.FailureCount == 0 {
		title = "Fieldline - Run Complete"
		message = fmt.Sprintf("Extraction run complete: %d properties processed", run.ProcessedCount)
	} else {
		title = "Fieldline - Run Complete (with errors)"
		message = fmt.Sprintf("Extraction run complete: %d succeeded, %d failed", run.SuccessCount, run.FailureCount)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"fieldline", "run", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, run *pipeline.ExtractionRun, reason string) error {
	if !n.runs {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Fieldline - Run Failed",
		message:  fmt.Sprintf("Extraction run %s failed: %s", run.ID, reason),
		tags:     []string{"fieldline", "run", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyVisitReady(ctx context.Context, property *pipeline.Property) error {
	if !n.visits {
		return nil
	}
	data := payload{
		title:   "Fieldline - Ready for Visit",
		message: fmt.Sprintf("Property ready for field visit: %s", property.FullAddress),
		tags:    []string{"fieldline", "visit", "ready"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCaseSubmitted(ctx context.Context, property *pipeline.Property) error {
	if !n.visits {
		return nil
	}
	message := fmt.Sprintf("Case submitted: %s", property.FullAddress)
	if property.SCECaseID != "" {
		message = fmt.Sprintf("%s\nCase ID: %s", message, property.SCECaseID)
	}
	data := payload{
		title:    "Fieldline - Case Submitted",
		message:  message,
		tags:     []string{"fieldline", "submission", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
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
		title:    "Fieldline - Error",
		message:  builder.String(),
		tags:     []string{"fieldline", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Fieldline - Test",
		message:  "Notification system test",
		tags:     []string{"fieldline", "test"},
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

func (noopService) NotifyRunStarted(context.Context, string, int) error                    { return nil }
func (noopService) NotifyRunCompleted(context.Context, *pipeline.ExtractionRun) error      { return nil }
func (noopService) NotifyRunFailed(context.Context, *pipeline.ExtractionRun, string) error { return nil }
func (noopService) NotifyVisitReady(context.Context, *pipeline.Property) error             { return nil }
func (noopService) NotifyCaseSubmitted(context.Context, *pipeline.Property) error          { return nil }
func (noopService) NotifyError(context.Context, error, string) error                       { return nil }
func (noopService) TestNotification(context.Context) error                                 { return nil }
