package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stockroom/batch-service/internal/domain"
	"github.com/stockroom/batch-service/pkg/errors"
	"github.com/stockroom/batch-service/pkg/mongodb"
)

// BatchCollection is the batches collection name.
const BatchCollection = "batches"

// BatchRepository is the MongoDB implementation of
// domain.BatchRepository.
type BatchRepository struct {
	collection *mongodb.InstrumentedCollection
}

// NewBatchRepository creates a BatchRepository.
func NewBatchRepository(client *mongodb.InstrumentedClient) *BatchRepository {
	return &BatchRepository{collection: client.Collection(BatchCollection)}
}

// Insert stores a new batch.
func (r *BatchRepository) Insert(ctx context.Context, batch *domain.Batch) error {
	if _, err := r.collection.InsertOne(ctx, batch); err != nil {
		return fmt.Errorf("failed to insert batch %s: %w", batch.BatchID, err)
	}
	return nil
}

// Update replaces an existing batch document.
func (r *BatchRepository) Update(ctx context.Context, batch *domain.Batch) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": batch.BatchID}, batch)
	if err != nil {
		return fmt.Errorf("failed to update batch %s: %w", batch.BatchID, err)
	}
	if result.MatchedCount == 0 {
		return errors.ErrNotFoundWithID("batch", batch.BatchID)
	}
	return nil
}

// Delete removes a batch.
func (r *BatchRepository) Delete(ctx context.Context, batchID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": batchID})
	if err != nil {
		return fmt.Errorf("failed to delete batch %s: %w", batchID, err)
	}
	if result.DeletedCount == 0 {
		return errors.ErrNotFoundWithID("batch", batchID)
	}
	return nil
}

// FindByID loads one batch.
func (r *BatchRepository) FindByID(ctx context.Context, batchID string) (*domain.Batch, error) {
	var batch domain.Batch
	err := r.collection.FindOne(ctx, bson.M{"_id": batchID}).Decode(&batch)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrNotFoundWithID("batch", batchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find batch %s: %w", batchID, err)
	}
	return &batch, nil
}

// FindByShelf loads all batches on one shelf, minus the exclusion.
func (r *BatchRepository) FindByShelf(ctx context.Context, shelf domain.ShelfAddress, excludeBatchID string) ([]*domain.Batch, error) {
	filter := bson.M{"shelfLocation": shelf.String()}
	if excludeBatchID != "" {
		filter["_id"] = bson.M{"$ne": excludeBatchID}
	}
	return r.findAll(ctx, filter, nil)
}

// FindDuplicate returns the batch occupying the merge key, or nil.
// A nil expiry matches only documents with no expiryDate field.
func (r *BatchRepository) FindDuplicate(ctx context.Context, productID string, shelf domain.ShelfAddress, expiry *time.Time, excludeBatchID string) (*domain.Batch, error) {
	filter := bson.M{
		"productId":     productID,
		"shelfLocation": shelf.String(),
		"expiryDate":    expiryFilter(expiry),
	}
	if excludeBatchID != "" {
		filter["_id"] = bson.M{"$ne": excludeBatchID}
	}

	var batch domain.Batch
	err := r.collection.FindOne(ctx, filter).Decode(&batch)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find duplicate batch: %w", err)
	}
	return &batch, nil
}

// FindByProduct loads all batches for one product.
func (r *BatchRepository) FindByProduct(ctx context.Context, productID string) ([]*domain.Batch, error) {
	return r.findAll(ctx, bson.M{"productId": productID}, nil)
}

// FindAll loads every batch, ordered by creation time. This is the
// sorter's load order.
func (r *BatchRepository) FindAll(ctx context.Context) ([]*domain.Batch, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return r.findAll(ctx, bson.M{}, opts)
}

// List returns one page of batches matching the filter and the total
// match count.
func (r *BatchRepository) List(ctx context.Context, filter domain.BatchFilter, page domain.Pagination) ([]*domain.Batch, int64, error) {
	query := bson.M{}
	if filter.ProductID != "" {
		query["productId"] = filter.ProductID
	}
	if filter.Shelf != "" {
		query["shelfLocation"] = filter.Shelf
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count batches: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit())

	batches, err := r.findAll(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

func (r *BatchRepository) findAll(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Batch, error) {
	var cursor *mongo.Cursor
	var err error
	if opts != nil {
		cursor, err = r.collection.Find(ctx, filter, opts)
	} else {
		cursor, err = r.collection.Find(ctx, filter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer cursor.Close(ctx)

	var batches []*domain.Batch
	if err := cursor.All(ctx, &batches); err != nil {
		return nil, fmt.Errorf("failed to decode batches: %w", err)
	}
	return batches, nil
}

// EnsureIndexes creates the batch collection indexes.
func (r *BatchRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "productId", Value: 1},
				{Key: "shelfLocation", Value: 1},
				{Key: "expiryDate", Value: 1},
			},
			Options: options.Index().SetName("idx_merge_key"),
		},
		{
			Keys:    bson.D{{Key: "shelfLocation", Value: 1}},
			Options: options.Index().SetName("idx_shelf"),
		},
		{
			Keys:    bson.D{{Key: "productId", Value: 1}},
			Options: options.Index().SetName("idx_product"),
		},
	}
	return r.collection.CreateIndexes(ctx, models)
}

// expiryFilter builds the expiry side of the merge-key filter. Batches
// without an expiry have no expiryDate field at all, so "no expiry"
// matches on field absence rather than null.
func expiryFilter(expiry *time.Time) interface{} {
	normalized := domain.NormalizeExpiry(expiry)
	if normalized == nil {
		return bson.M{"$exists": false}
	}
	return *normalized
}
