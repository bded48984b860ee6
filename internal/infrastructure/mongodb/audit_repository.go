package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stockroom/batch-service/internal/domain"
	"github.com/stockroom/batch-service/pkg/mongodb"
)

// AuditCollection is the audit log collection name.
const AuditCollection = "audit_log"

// AuditRepository is the MongoDB implementation of
// domain.AuditRepository. Entries are written inside the caller's
// transaction so an aborted mutation leaves no audit trace.
type AuditRepository struct {
	collection *mongodb.InstrumentedCollection
}

// NewAuditRepository creates an AuditRepository.
func NewAuditRepository(client *mongodb.InstrumentedClient) *AuditRepository {
	return &AuditRepository{collection: client.Collection(AuditCollection)}
}

// Record stores one audit entry.
func (r *AuditRepository) Record(ctx context.Context, entry *domain.AuditEntry) error {
	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// List returns a page of audit entries, newest first.
func (r *AuditRepository) List(ctx context.Context, page domain.Pagination) ([]*domain.AuditEntry, int64, error) {
	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "recordedAt", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit())

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*domain.AuditEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, 0, fmt.Errorf("failed to decode audit entries: %w", err)
	}
	return entries, total, nil
}

// EnsureIndexes creates the audit collection indexes.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "recordedAt", Value: -1}},
			Options: options.Index().SetName("idx_recordedAt"),
		},
		{
			Keys:    bson.D{{Key: "productId", Value: 1}, {Key: "recordedAt", Value: -1}},
			Options: options.Index().SetName("idx_product_recordedAt"),
		},
	}
	return r.collection.CreateIndexes(ctx, models)
}
