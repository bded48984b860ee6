package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stockroom/batch-service/internal/domain"
	"github.com/stockroom/batch-service/pkg/errors"
	"github.com/stockroom/batch-service/pkg/logging"
	"github.com/stockroom/batch-service/pkg/metrics"
)

// CreateBatchCommand is the input for a new placement.
type CreateBatchCommand struct {
	ProductID     string `json:"productId" binding:"required"`
	ShelfLocation string `json:"shelfLocation" binding:"required"`
	Quantity      int    `json:"quantity"`
	ExpiryDate    string `json:"expiryDate"`
}

// OptionalString distinguishes an absent JSON field from one set
// explicitly, including set to null. A pointer cannot make that
// distinction: both absent and null decode to nil.
type OptionalString struct {
	Set   bool
	Value string
}

// UnmarshalJSON records that the field was present; null decodes as
// the empty string.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// UpdateBatchCommand patches a batch. Absent fields keep the current
// value; an ExpiryDate sent as "" or null clears the expiry.
type UpdateBatchCommand struct {
	ShelfLocation *string        `json:"shelfLocation"`
	Quantity      *int           `json:"quantity"`
	ExpiryDate    OptionalString `json:"expiryDate"`
}

// BatchAllocator orchestrates batch create/update/remove: validation,
// merge-or-write and audit inside one transaction, then best-effort
// health evaluation after commit.
type BatchAllocator struct {
	batches  domain.BatchRepository
	products domain.ProductRepository
	audits   domain.AuditRepository
	tx       TxRunner
	outbox   EventOutbox
	guard    *CapacityGuard
	merger   *BatchMerger
	health   *HealthEvaluator
	locks    *shelfLocks
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewBatchAllocator creates a BatchAllocator.
func NewBatchAllocator(
	batches domain.BatchRepository,
	products domain.ProductRepository,
	audits domain.AuditRepository,
	tx TxRunner,
	outbox EventOutbox,
	guard *CapacityGuard,
	merger *BatchMerger,
	health *HealthEvaluator,
	logger *logging.Logger,
	m *metrics.Metrics,
) *BatchAllocator {
	return &BatchAllocator{
		batches:  batches,
		products: products,
		audits:   audits,
		tx:       tx,
		outbox:   outbox,
		guard:    guard,
		merger:   merger,
		health:   health,
		locks:    newShelfLocks(),
		logger:   logger.WithComponent("batch-allocator"),
		metrics:  m,
	}
}

// Create places a new batch, merging into an existing duplicate-key
// batch when one exists.
func (a *BatchAllocator) Create(ctx context.Context, cmd CreateBatchCommand, actorID string) (*domain.Batch, error) {
	if cmd.Quantity < 1 {
		return nil, errors.ErrValidation("quantity must be at least 1").
			WithDetail("quantity", fmt.Sprintf("%d", cmd.Quantity))
	}

	shelf, err := domain.ParseShelfAddress(cmd.ShelfLocation)
	if err != nil {
		return nil, err
	}

	expiry, err := domain.ParseExpiry(cmd.ExpiryDate)
	if err != nil {
		return nil, errors.ErrValidation("malformed expiry date").
			WithDetail("expiryDate", cmd.ExpiryDate)
	}

	product, err := a.products.FindByID(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}

	unlock := a.locks.Lock(shelf.String())
	defer unlock()

	var result *domain.Batch
	var outcome string

	err = a.tx.RunTransaction(ctx, func(txCtx context.Context) error {
		additionalWeight := float64(cmd.Quantity) * product.WeightPerUnit
		if err := a.guard.CheckCapacity(txCtx, shelf, additionalWeight, ""); err != nil {
			return err
		}

		target, err := a.merger.FindMergeTarget(txCtx, cmd.ProductID, shelf, expiry, "")
		if err != nil {
			return err
		}

		if target != nil {
			before := target.Clone()
			target.Quantity += cmd.Quantity
			target.UpdatedAt = time.Now().UTC()

			if err := a.batches.Update(txCtx, target); err != nil {
				return err
			}
			if err := a.audits.Record(txCtx, domain.NewAuditEntry(actorID, domain.AuditBatchMerge, cmd.ProductID, target.BatchID, before, target.Clone())); err != nil {
				return err
			}
			if err := a.outbox.Record(txCtx, domain.NewBatchMergedEvent(target, "", cmd.Quantity)); err != nil {
				return err
			}

			result = target
			outcome = "merged"
			return nil
		}

		batch := domain.NewBatch(cmd.ProductID, shelf, cmd.Quantity, expiry)
		if err := a.batches.Insert(txCtx, batch); err != nil {
			return err
		}
		if err := a.audits.Record(txCtx, domain.NewAuditEntry(actorID, domain.AuditBatchCreate, cmd.ProductID, batch.BatchID, nil, batch.Clone())); err != nil {
			return err
		}
		if err := a.outbox.Record(txCtx, domain.NewBatchCreatedEvent(batch)); err != nil {
			return err
		}

		result = batch
		outcome = "created"
		return nil
	})
	if err != nil {
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.RecordBatchCreated(outcome)
	}
	a.logger.Audit(ctx, string(domain.AuditBatchCreate), "batch", result.BatchID, actorID, map[string]any{
		"productId": cmd.ProductID,
		"shelf":     shelf.String(),
		"quantity":  cmd.Quantity,
		"outcome":   outcome,
	})

	a.runHealthCheck(ctx, cmd.ProductID)
	return result, nil
}

// Update applies a patch to a batch. Moving onto a shelf that already
// holds a duplicate-key batch merges the full target quantity into it
// and removes the original row.
func (a *BatchAllocator) Update(ctx context.Context, batchID string, cmd UpdateBatchCommand, actorID string) (*domain.Batch, error) {
	existing, err := a.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	targetShelfRaw := existing.ShelfLocation
	if cmd.ShelfLocation != nil {
		targetShelfRaw = *cmd.ShelfLocation
	}
	shelf, err := domain.ParseShelfAddress(targetShelfRaw)
	if err != nil {
		return nil, err
	}

	quantity := existing.Quantity
	if cmd.Quantity != nil {
		quantity = *cmd.Quantity
	}
	if quantity < 0 {
		return nil, errors.ErrValidation("quantity must not be negative").
			WithDetail("quantity", fmt.Sprintf("%d", quantity))
	}

	expiry := existing.ExpiryDate
	if cmd.ExpiryDate.Set {
		expiry, err = domain.ParseExpiry(cmd.ExpiryDate.Value)
		if err != nil {
			return nil, errors.ErrValidation("malformed expiry date").
				WithDetail("expiryDate", cmd.ExpiryDate.Value)
		}
	}

	product, err := a.products.FindByID(ctx, existing.ProductID)
	if err != nil {
		return nil, err
	}

	unlock := a.locks.LockAll(existing.ShelfLocation, shelf.String())
	defer unlock()

	var result *domain.Batch
	var outcome string

	err = a.tx.RunTransaction(ctx, func(txCtx context.Context) error {
		additionalWeight := float64(quantity) * product.WeightPerUnit
		if err := a.guard.CheckCapacity(txCtx, shelf, additionalWeight, batchID); err != nil {
			return err
		}

		target, err := a.merger.FindMergeTarget(txCtx, existing.ProductID, shelf, expiry, batchID)
		if err != nil {
			return err
		}

		if target != nil {
			before := existing.Clone()

			if err := a.batches.Delete(txCtx, batchID); err != nil {
				return err
			}

			// The merge absorbs the full target quantity, not the delta.
			target.Quantity += quantity
			target.UpdatedAt = time.Now().UTC()
			if err := a.batches.Update(txCtx, target); err != nil {
				return err
			}

			if err := a.audits.Record(txCtx, domain.NewAuditEntry(actorID, domain.AuditBatchMergeUpdate, existing.ProductID, target.BatchID, before, target.Clone())); err != nil {
				return err
			}
			if err := a.outbox.Record(txCtx, domain.NewBatchMergedEvent(target, batchID, quantity)); err != nil {
				return err
			}

			result = target
			outcome = "merged"
			return nil
		}

		before := existing.Clone()
		existing.ShelfLocation = shelf.String()
		existing.Quantity = quantity
		existing.ExpiryDate = domain.NormalizeExpiry(expiry)
		existing.UpdatedAt = time.Now().UTC()

		if err := a.batches.Update(txCtx, existing); err != nil {
			return err
		}
		if err := a.audits.Record(txCtx, domain.NewAuditEntry(actorID, domain.AuditBatchUpdate, existing.ProductID, batchID, before, existing.Clone())); err != nil {
			return err
		}
		if err := a.outbox.Record(txCtx, domain.NewBatchUpdatedEvent(existing)); err != nil {
			return err
		}

		result = existing
		outcome = "updated"
		return nil
	})
	if err != nil {
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.RecordBatchUpdated(outcome)
	}
	a.logger.Audit(ctx, string(domain.AuditBatchUpdate), "batch", batchID, actorID, map[string]any{
		"productId": existing.ProductID,
		"shelf":     shelf.String(),
		"quantity":  quantity,
		"outcome":   outcome,
	})

	a.runHealthCheck(ctx, existing.ProductID)
	return result, nil
}

// Remove deletes a batch unconditionally. Removal has no capacity
// implications.
func (a *BatchAllocator) Remove(ctx context.Context, batchID, actorID string) error {
	existing, err := a.batches.FindByID(ctx, batchID)
	if err != nil {
		return err
	}

	err = a.tx.RunTransaction(ctx, func(txCtx context.Context) error {
		if err := a.batches.Delete(txCtx, batchID); err != nil {
			return err
		}
		if err := a.audits.Record(txCtx, domain.NewAuditEntry(actorID, domain.AuditBatchDelete, existing.ProductID, batchID, existing.Clone(), nil)); err != nil {
			return err
		}
		return a.outbox.Record(txCtx, domain.NewBatchDeletedEvent(existing))
	})
	if err != nil {
		return err
	}

	if a.metrics != nil {
		a.metrics.RecordBatchDeleted()
	}
	a.logger.Audit(ctx, string(domain.AuditBatchDelete), "batch", batchID, actorID, map[string]any{
		"productId": existing.ProductID,
	})

	a.runHealthCheck(ctx, existing.ProductID)
	return nil
}

// GetBatch loads one batch by ID.
func (a *BatchAllocator) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	return a.batches.FindByID(ctx, batchID)
}

// ListBatches returns a page of batches matching the filter, plus the
// total match count.
func (a *BatchAllocator) ListBatches(ctx context.Context, filter domain.BatchFilter, page domain.Pagination) ([]*domain.Batch, int64, error) {
	if filter.Shelf != "" {
		if _, err := domain.ParseShelfAddress(filter.Shelf); err != nil {
			return nil, 0, err
		}
	}
	return a.batches.List(ctx, filter, page.Normalize())
}

// runHealthCheck evaluates product health after a committed mutation.
// Failures here never surface as the mutation's result.
func (a *BatchAllocator) runHealthCheck(ctx context.Context, productID string) {
	if a.health == nil {
		return
	}
	if err := a.health.Run(ctx, productID); err != nil {
		a.logger.WithContext(ctx).WithError(err).Warn("Post-commit health check failed",
			"productId", productID,
		)
	}
}
