package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stockroom/batch-service/internal/domain"
	"github.com/stockroom/batch-service/pkg/mongodb"
)

// NotificationCollection is the notifications collection name.
const NotificationCollection = "notifications"

// notificationTTL keeps broadcast records for 30 days. The dedup
// window only needs 10 minutes; the rest is for operators.
const notificationTTL = 30 * 24 * time.Hour

// NotificationRepository is the MongoDB implementation of
// domain.NotificationRepository. Durable records make the dedup window
// survive restarts.
type NotificationRepository struct {
	collection *mongodb.InstrumentedCollection
}

// NewNotificationRepository creates a NotificationRepository.
func NewNotificationRepository(client *mongodb.InstrumentedClient) *NotificationRepository {
	return &NotificationRepository{collection: client.Collection(NotificationCollection)}
}

// Insert stores one broadcast record.
func (r *NotificationRepository) Insert(ctx context.Context, notification *domain.Notification) error {
	if _, err := r.collection.InsertOne(ctx, notification); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ExistsSince reports whether an identical message was broadcast at or
// after the given time.
func (r *NotificationRepository) ExistsSince(ctx context.Context, message string, since time.Time) (bool, error) {
	filter := bson.M{
		"message": message,
		"sentAt":  bson.M{"$gte": since},
	}

	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to query notification window: %w", err)
	}
	return count > 0, nil
}

// ListRecent returns the most recent broadcasts, newest first.
func (r *NotificationRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Notification, error) {
	if limit < 1 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "sentAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var notifications []*domain.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

// EnsureIndexes creates the notification collection indexes.
func (r *NotificationRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "message", Value: 1}, {Key: "sentAt", Value: -1}},
			Options: options.Index().SetName("idx_message_sentAt"),
		},
		{
			Keys: bson.D{{Key: "sentAt", Value: 1}},
			Options: options.Index().
				SetName("idx_sentAt_ttl").
				SetExpireAfterSeconds(int32(notificationTTL.Seconds())),
		},
	}
	return r.collection.CreateIndexes(ctx, models)
}
