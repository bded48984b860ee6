package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stockroom/batch-service/internal/domain"
	"github.com/stockroom/batch-service/pkg/errors"
	"github.com/stockroom/batch-service/pkg/mongodb"
)

// ProductCollection is the products collection name.
const ProductCollection = "products"

// ProductRepository is the MongoDB implementation of
// domain.ProductRepository. Product master data is owned elsewhere;
// this service reads it and offers Save for seeding and ops tooling.
type ProductRepository struct {
	collection *mongodb.InstrumentedCollection
}

// NewProductRepository creates a ProductRepository.
func NewProductRepository(client *mongodb.InstrumentedClient) *ProductRepository {
	return &ProductRepository{collection: client.Collection(ProductCollection)}
}

// FindByID loads one live product. Soft-deleted products are treated
// as missing.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (*domain.Product, error) {
	filter := bson.M{"_id": productID, "isDeleted": false}

	var product domain.Product
	err := r.collection.FindOne(ctx, filter).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrNotFoundWithID("product", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product %s: %w", productID, err)
	}
	return &product, nil
}

// FindAllLive loads all non-deleted products.
func (r *ProductRepository) FindAllLive(ctx context.Context) ([]*domain.Product, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"isDeleted": false})
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []*domain.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

// FindByIDs loads products keyed by ID, soft-deleted rows included;
// their stock still occupies shelf space, so callers that care check
// IsLive themselves. Missing IDs are simply absent from the result.
func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]*domain.Product, error) {
	result := make(map[string]*domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	filter := bson.M{"_id": bson.M{"$in": productIDs}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by ids: %w", err)
	}
	defer cursor.Close(ctx)

	var products []*domain.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	for _, product := range products {
		result[product.ProductID] = product
	}
	return result, nil
}

// Save upserts a product document.
func (r *ProductRepository) Save(ctx context.Context, product *domain.Product) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": product.ProductID}, product, opts); err != nil {
		return fmt.Errorf("failed to save product %s: %w", product.ProductID, err)
	}
	return nil
}

// EnsureIndexes creates the product collection indexes.
func (r *ProductRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "isDeleted", Value: 1}, {Key: "category", Value: 1}},
			Options: options.Index().SetName("idx_live_category"),
		},
	}
	return r.collection.CreateIndexes(ctx, models)
}
