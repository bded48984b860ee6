package domain

import (
	"time"

	"github.com/google/uuid"
)

// Severity grades a broadcast notification.
type Severity string

// Notification severities.
const (
	SeverityInfo  Severity = "INFO"
	SeverityAlert Severity = "ALERT"
	SeverityError Severity = "ERROR"
)

// DedupWindow is the trailing window within which an identical message
// is suppressed instead of re-broadcast.
const DedupWindow = 10 * time.Minute

// Notification is a broadcast record, durable so the dedup window
// survives restarts.
type Notification struct {
	NotificationID string    `bson:"_id" json:"notificationId"`
	Message        string    `bson:"message" json:"message"`
	Severity       Severity  `bson:"severity" json:"severity"`
	SentAt         time.Time `bson:"sentAt" json:"sentAt"`
}

// NewNotification creates a notification stamped with the current time.
func NewNotification(message string, severity Severity) *Notification {
	return &Notification{
		NotificationID: uuid.New().String(),
		Message:        message,
		Severity:       severity,
		SentAt:         time.Now().UTC(),
	}
}
