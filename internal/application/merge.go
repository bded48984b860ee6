package application

import (
	"context"
	"fmt"
	"time"

	"github.com/stockroom/batch-service/internal/domain"
)

// BatchMerger locates an existing batch that duplicates a candidate
// placement by merge key (productId, shelf, normalized expiry).
type BatchMerger struct {
	batches domain.BatchRepository
}

// NewBatchMerger creates a BatchMerger.
func NewBatchMerger(batches domain.BatchRepository) *BatchMerger {
	return &BatchMerger{batches: batches}
}

// FindMergeTarget returns the duplicate-key batch, or nil when the
// placement has no merge target. Empty, absent and null expiry values
// all normalize to "no expiry" before comparison; excludeBatchID keeps
// a batch being moved from matching itself.
func (m *BatchMerger) FindMergeTarget(ctx context.Context, productID string, shelf domain.ShelfAddress, expiry *time.Time, excludeBatchID string) (*domain.Batch, error) {
	target, err := m.batches.FindDuplicate(ctx, productID, shelf, domain.NormalizeExpiry(expiry), excludeBatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up merge target on shelf %s: %w", shelf, err)
	}
	return target, nil
}
