package application

import (
	"context"
	"fmt"
	"time"

	"github.com/stockroom/batch-service/internal/domain"
	"github.com/stockroom/batch-service/pkg/logging"
	"github.com/stockroom/batch-service/pkg/metrics"
)

// Notifier broadcasts stock-health notifications with a trailing
// dedup window: an identical message sent within the last 10 minutes
// is suppressed instead of re-broadcast.
type Notifier struct {
	notifications domain.NotificationRepository
	outbox        EventOutbox
	logger        *logging.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewNotifier creates a Notifier.
func NewNotifier(notifications domain.NotificationRepository, outbox EventOutbox, logger *logging.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		notifications: notifications,
		outbox:        outbox,
		logger:        logger.WithComponent("notifier"),
		metrics:       m,
		now:           time.Now,
	}
}

// Broadcast sends a plain notification.
func (n *Notifier) Broadcast(ctx context.Context, message string, severity domain.Severity) error {
	return n.broadcast(ctx, "", "", message, severity)
}

// BroadcastAlert sends a health alert, tagging the outgoing event with
// the rule and product that raised it.
func (n *Notifier) BroadcastAlert(ctx context.Context, rule, productID, message string, severity domain.Severity) error {
	return n.broadcast(ctx, rule, productID, message, severity)
}

func (n *Notifier) broadcast(ctx context.Context, rule, productID, message string, severity domain.Severity) error {
	since := n.now().Add(-domain.DedupWindow)

	duplicate, err := n.notifications.ExistsSince(ctx, message, since)
	if err != nil {
		return fmt.Errorf("failed to check notification dedup window: %w", err)
	}

	if duplicate {
		if n.metrics != nil {
			n.metrics.RecordNotificationSuppressed()
		}
		n.logger.WithContext(ctx).Debug("Notification suppressed by dedup window",
			"message", message,
			"severity", string(severity),
		)
		return nil
	}

	notification := domain.NewNotification(message, severity)
	if err := n.notifications.Insert(ctx, notification); err != nil {
		return fmt.Errorf("failed to persist notification: %w", err)
	}

	if err := n.outbox.Record(ctx, domain.NewAlertRaisedEvent(rule, productID, message, severity)); err != nil {
		return fmt.Errorf("failed to record alert event: %w", err)
	}

	if n.metrics != nil {
		n.metrics.RecordNotificationSent()
	}
	n.logger.WithContext(ctx).Info("Notification broadcast",
		"notificationId", notification.NotificationID,
		"severity", string(severity),
		"rule", rule,
	)

	return nil
}
