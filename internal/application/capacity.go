package application

import (
	"context"
	"fmt"

	"github.com/stockroom/batch-service/internal/domain"
	"github.com/stockroom/batch-service/pkg/errors"
)

// MaxShelfWeight is the hard weight ceiling per shelf, in weight units.
const MaxShelfWeight = 2000.0

// CapacityGuard computes current shelf load and enforces the ceiling.
type CapacityGuard struct {
	batches  domain.BatchRepository
	products domain.ProductRepository
}

// NewCapacityGuard creates a CapacityGuard.
func NewCapacityGuard(batches domain.BatchRepository, products domain.ProductRepository) *CapacityGuard {
	return &CapacityGuard{batches: batches, products: products}
}

// CheckCapacity fails with CAPACITY_EXCEEDED when placing
// additionalWeight onto the shelf would push its total over the limit.
// excludeBatchID removes the batch being moved or edited from the
// current-load sum, so an in-place edit does not count itself twice.
func (g *CapacityGuard) CheckCapacity(ctx context.Context, shelf domain.ShelfAddress, additionalWeight float64, excludeBatchID string) error {
	current, err := g.shelfLoad(ctx, shelf, excludeBatchID)
	if err != nil {
		return err
	}

	if current+additionalWeight > MaxShelfWeight {
		return errors.ErrCapacityExceeded(shelf.String(), MaxShelfWeight)
	}

	return nil
}

// ShelfLoad returns the current total weight on a shelf. Stock of
// soft-deleted products still sits on the shelf and still counts.
func (g *CapacityGuard) ShelfLoad(ctx context.Context, shelf domain.ShelfAddress) (float64, error) {
	return g.shelfLoad(ctx, shelf, "")
}

func (g *CapacityGuard) shelfLoad(ctx context.Context, shelf domain.ShelfAddress, excludeBatchID string) (float64, error) {
	batches, err := g.batches.FindByShelf(ctx, shelf, excludeBatchID)
	if err != nil {
		return 0, fmt.Errorf("failed to load batches on shelf %s: %w", shelf, err)
	}

	if len(batches) == 0 {
		return 0, nil
	}

	productIDs := make([]string, 0, len(batches))
	seen := make(map[string]bool, len(batches))
	for _, batch := range batches {
		if !seen[batch.ProductID] {
			seen[batch.ProductID] = true
			productIDs = append(productIDs, batch.ProductID)
		}
	}

	products, err := g.products.FindByIDs(ctx, productIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to load products for shelf %s: %w", shelf, err)
	}

	var total float64
	for _, batch := range batches {
		product, ok := products[batch.ProductID]
		if !ok {
			// No product row at all; there is nothing to weigh it with.
			continue
		}
		total += batch.Weight(product)
	}

	return total, nil
}
