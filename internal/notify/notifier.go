// Package notify turns a validated attendance event into exactly one
// outbound WhatsApp message for the configured recipient.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"attendancehook/internal/apperr"
	"attendancehook/internal/attendance"
	"attendancehook/internal/metrics"
)

// Message types, also used as metric labels.
const (
	TypeText  = "text"
	TypeImage = "image"
)

// Messenger is the capability the notifier needs from a messaging backend.
// *whatsapp.Client implements it.
type Messenger interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendImage(ctx context.Context, to, link, caption string) (string, error)
}

// Result describes a delivered notification.
type Result struct {
	NotificationID string
	MessageID      string
	Type           string
	Event          attendance.Event
	ProcessedAt    time.Time
}

// HasPhoto reports whether the notification was sent as an image.
func (r *Result) HasPhoto() bool {
	return r.Type == TypeImage
}

// Notifier dispatches attendance notifications.
type Notifier struct {
	Messenger Messenger
	Recipient string
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// New creates a notifier that sends every event to recipient.
func New(messenger Messenger, recipient string, logger *slog.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		Messenger: messenger,
		Recipient: recipient,
		Logger:    logger,
		Metrics:   m,
		Now:       time.Now,
	}
}

// Notify formats ev and makes a single send attempt. Errors come from the
// messenger unchanged so the caller can map their category.
func (n *Notifier) Notify(ctx context.Context, ev attendance.Event) (*Result, error) {
	now := n.Now()
	result := &Result{
		NotificationID: uuid.NewString(),
		Type:           TypeText,
		Event:          ev,
		ProcessedAt:    now,
	}

	body := attendance.FormatMessage(ev, now)

	start := time.Now()
	var err error
	if ev.HasPhoto() {
		result.Type = TypeImage
		result.MessageID, err = n.Messenger.SendImage(ctx, n.Recipient, ev.PhotoURL, body)
	} else {
		result.MessageID, err = n.Messenger.SendText(ctx, n.Recipient, body)
	}
	elapsed := time.Since(start)

	if err != nil {
		n.Metrics.ObserveNotification(result.Type, metrics.OutcomeFailed, elapsed)
		n.Logger.Error("notification failed",
			"notification_id", result.NotificationID,
			"type", result.Type,
			"recipient", n.Recipient,
			"code", apperr.Code(err),
			"duration_ms", elapsed.Milliseconds(),
			"error", err)
		return nil, err
	}

	n.Metrics.ObserveNotification(result.Type, metrics.OutcomeSent, elapsed)
	n.Logger.Info("notification sent",
		"notification_id", result.NotificationID,
		"message_id", result.MessageID,
		"type", result.Type,
		"recipient", n.Recipient,
		"employee", ev.Name,
		"company", ev.Company,
		"duration_ms", elapsed.Milliseconds())

	return result, nil
}
