package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cardrender/internal/config"
	"cardrender/internal/logging"
)

const userAgent = "cardrender/0.1.0"

// Event names a batch milestone.
type Event string

const (
	EventBatchStarted   Event = "batch_started"
	EventBatchCompleted Event = "batch_completed"
	EventBatchFailed    Event = "batch_failed"
	EventTest           Event = "test"
)

// BatchSummary describes a finished batch.
type BatchSummary struct {
	RunID        string
	Cards        int
	Images       int
	FailedImages int
	Duration     time.Duration
	OutputDir    string
	Manifest     string
}

// Service defines the notification surface used by the pipeline.
type Service interface {
	NotifyBatchStarted(ctx context.Context, runID string, cards int) error
	NotifyBatchCompleted(ctx context.Context, summary BatchSummary) error
	NotifyBatchFailed(ctx context.Context, runID string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds the configured notifiers. Unconfigured transports are
// skipped; with none configured a no-op service is returned.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if cfg == nil {
		return noopService{}
	}
	timeout := cfg.NotificationTimeout()
	var notifiers []notifier
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		notifiers = append(notifiers, newNtfyNotifier(topic, timeout))
	}
	if broker := strings.TrimSpace(cfg.Notifications.MQTTBroker); broker != "" {
		notifiers = append(notifiers, newMQTTNotifier(broker, cfg.Notifications.MQTTTopic, cfg.Notifications.MQTTClientID, timeout))
	}
	if len(notifiers) == 0 {
		return noopService{}
	}
	return &service{
		notifiers: notifiers,
		logger:    logging.NewComponentLogger(logger, "notifications"),
	}
}

// Message is one rendered event.
type Message struct {
	Event    Event          `json:"event"`
	RunID    string         `json:"run_id,omitempty"`
	Title    string         `json:"title"`
	Body     string         `json:"message"`
	Tags     []string       `json:"tags,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
	Time     time.Time      `json:"time"`
}

type notifier interface {
	name() string
	send(ctx context.Context, msg Message) error
}

type service struct {
	notifiers []notifier
	logger    *slog.Logger
	now       func() time.Time
}

func (s *service) NotifyBatchStarted(ctx context.Context, runID string, cards int) error {
	return s.publish(ctx, Message{
		Event: EventBatchStarted,
		RunID: runID,
		Title: "cardrender - Batch Started",
		Body:  fmt.Sprintf("Rendering %d %s", cards, plural(cards, "card", "cards")),
		Tags:  []string{"cardrender", "batch", "started"},
		Fields: map[string]any{
			"cards": cards,
		},
	})
}

func (s *service) NotifyBatchCompleted(ctx context.Context, summary BatchSummary) error {
	duration := summary.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	title := "cardrender - Batch Complete"
	body := fmt.Sprintf("Rendered %d %s into %d %s in %s",
		summary.Cards, plural(summary.Cards, "card", "cards"),
		summary.Images, plural(summary.Images, "image", "images"),
		duration)
	if summary.FailedImages > 0 {
		title = "cardrender - Batch Complete (with errors)"
		body = fmt.Sprintf("%s, %d failed", body, summary.FailedImages)
	}
	return s.publish(ctx, Message{
		Event: EventBatchCompleted,
		RunID: summary.RunID,
		Title: title,
		Body:  body,
		Tags:  []string{"cardrender", "batch", "completed"},
		Fields: map[string]any{
			"cards":         summary.Cards,
			"images":        summary.Images,
			"failed_images": summary.FailedImages,
			"duration_ms":   summary.Duration.Milliseconds(),
			"output_dir":    summary.OutputDir,
			"manifest":      summary.Manifest,
		},
	})
}

func (s *service) NotifyBatchFailed(ctx context.Context, runID string, err error) error {
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	return s.publish(ctx, Message{
		Event:    EventBatchFailed,
		RunID:    runID,
		Title:    "cardrender - Batch Failed",
		Body:     "Batch failed: " + reason,
		Tags:     []string{"cardrender", "batch", "error"},
		Priority: "high",
	})
}

func (s *service) TestNotification(ctx context.Context) error {
	return s.publish(ctx, Message{
		Event:    EventTest,
		Title:    "cardrender - Test",
		Body:     "Notification system test",
		Tags:     []string{"cardrender", "test"},
		Priority: "low",
	})
}

// publish fans msg out to every notifier; one failing transport does not
// stop the others.
func (s *service) publish(ctx context.Context, msg Message) error {
	if s.now != nil {
		msg.Time = s.now()
	} else {
		msg.Time = time.Now().UTC()
	}
	var errs []error
	for _, n := range s.notifiers {
		if err := n.send(ctx, msg); err != nil {
			logging.WarnWithContext(s.logger, "notification failed", "notification_failed",
				logging.String("notifier", n.name()),
				logging.String("event", string(msg.Event)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "batch results are unaffected"),
			)
			errs = append(errs, fmt.Errorf("%s: %w", n.name(), err))
		}
	}
	return errors.Join(errs...)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

type noopService struct{}

func (noopService) NotifyBatchStarted(context.Context, string, int) error   { return nil }
func (noopService) NotifyBatchCompleted(context.Context, BatchSummary) error { return nil }
func (noopService) NotifyBatchFailed(context.Context, string, error) error   { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
