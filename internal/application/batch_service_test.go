package application

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockroom/batch-service/internal/domain"
	"github.com/stockroom/batch-service/pkg/errors"
)

type allocatorFixture struct {
	allocator     *BatchAllocator
	batches       *fakeBatchRepo
	products      *fakeProductRepo
	audits        *fakeAuditRepo
	notifications *fakeNotificationRepo
	outbox        *fakeOutbox
}

func newAllocatorFixture(products ...*domain.Product) *allocatorFixture {
	batchRepo := newFakeBatchRepo()
	productRepo := newFakeProductRepo(products...)
	auditRepo := &fakeAuditRepo{}
	notificationRepo := &fakeNotificationRepo{}
	outbox := &fakeOutbox{}
	logger := newTestLogger()

	guard := NewCapacityGuard(batchRepo, productRepo)
	merger := NewBatchMerger(batchRepo)
	notifier := NewNotifier(notificationRepo, outbox, logger, nil)
	health := NewHealthEvaluator(batchRepo, productRepo, notifier, logger, nil)
	allocator := NewBatchAllocator(batchRepo, productRepo, auditRepo, fakeTx{}, outbox, guard, merger, health, logger, nil)

	return &allocatorFixture{
		allocator:     allocator,
		batches:       batchRepo,
		products:      productRepo,
		audits:        auditRepo,
		notifications: notificationRepo,
		outbox:        outbox,
	}
}

func testProduct() *domain.Product {
	return &domain.Product{
		ProductID:     "prod-1",
		Name:          "Flour",
		WeightPerUnit: 10,
		MinimumStock:  0,
		Category:      domain.CategoryFood,
	}
}

func TestBatchAllocator_CreateNewBatch(t *testing.T) {
	ctx := context.Background()
	fx := newAllocatorFixture(testProduct())

	batch, err := fx.allocator.Create(ctx, CreateBatchCommand{
		ProductID:     "prod-1",
		ShelfLocation: "A1-1",
		Quantity:      150,
	}, "user-1")
	require.NoError(t, err)

	assert.Contains(t, batch.BatchID, "BAT-")
	assert.Equal(t, "A1-1", batch.ShelfLocation)
	assert.Equal(t, 150, batch.Quantity)
	assert.Nil(t, batch.ExpiryDate)

	assert.Equal(t, []domain.AuditKind{domain.AuditBatchCreate}, fx.audits.kinds())
	assert.Len(t, fx.outbox.byType("batch.created"), 1)
}

func TestBatchAllocator_CreateCapacityExceeded(t *testing.T) {
	ctx := context.Background()
	fx := newAllocatorFixture(testProduct())

	_, err := fx.allocator.Create(ctx, CreateBatchCommand{
		ProductID:     "prod-1",
		ShelfLocation: "A1-1",
		Quantity:      150,
	}, "user-1")
	require.NoError(t, err)

	// 1500 on the shelf; 60 more units add 600 and overshoot the 2000
	// limit, even though the placement would otherwise merge.
	_, err = fx.allocator.Create(ctx, CreateBatchCommand{
		ProductID:     "prod-1",
		ShelfLocation: "A1-1",
		Quantity:      60,
	}, "user-1")
	require.Error(t, err)

	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeCapacityExceeded, appErr.Code)

	all, _ := fx.batches.FindAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, 150, all[0].Quantity)
}

func TestBatchAllocator_CreateMergesDuplicateKey(t *testing.T) {
	ctx := context.Background()
	fx := newAllocatorFixture(testProduct())

	first, err := fx.allocator.Create(ctx, CreateBatchCommand{
		ProductID:     "prod-1",
		ShelfLocation: "A1-1",
		Quantity:      40,
	}, "user-1")
	require.NoError(t, err)

	second, err := fx.allocator.Create(ctx, CreateBatchCommand{
		ProductID:     "prod-1",
		ShelfLocation: "A1-1",
		Quantity:      10,
	}, "user-1")
	require.NoError(t, err)

	// One live row with the summed quantity; never two.
	assert.Equal(t, first.BatchID, second.BatchID)
	all, _ := fx.batches.FindAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, 50, all[0].Quantity)

	assert.Equal(t, []domain.AuditKind{domain.AuditBatchCreate, domain.AuditBatchMerge}, fx.audits.kinds())
	assert.Len(t, fx.outbox.byType("batch.merged"), 1)
}

func TestBatchAllocator_CreateExpiryNormalization(t *testing.T) {
	ctx := context.Background()
	fx := newAllocatorFixture(testProduct())

	// Empty and omitted expiry share the "no expiry" merge key.
	_, err := fx.allocator.Create(ctx, CreateBatchCommand{
		ProductID:     "prod-1",
		ShelfLocation: "B1-1",
		Quantity:      5,
		ExpiryDate:    "",
	}, "user-1")
	require.NoError(t, err)

	_, err = fx.allocator.Create(ctx, CreateBatchCommand{
		ProductID:     "prod-1",
		ShelfLocation: "B1-1",
		Quantity:      7,
	}, "user-1")
	require.NoError(t, err)

	all, _ := fx.batches.FindAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, 12, all[0].Quantity)
}

func TestBatchAllocator_CreateValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cmd      CreateBatchCommand
		wantCode string
	}{
		{
			name:     "zero quantity",
			cmd:      CreateBatchCommand{ProductID: "prod-1", ShelfLocation: "A1-1", Quantity: 0},
			wantCode: errors.CodeValidationError,
		},
		{
			name:     "invalid row",
			cmd:      CreateBatchCommand{ProductID: "prod-1", ShelfLocation: "A6-1", Quantity: 5},
			wantCode: errors.CodeInvalidShelf,
		},
		{
			name:     "malformed expiry",
			cmd:      CreateBatchCommand{ProductID: "prod-1", ShelfLocation: "A1-1", Quantity: 5, ExpiryDate: "not-a-date"},
			wantCode: errors.CodeValidationError,
		},
		{
			name:     "unknown product",
			cmd:      CreateBatchCommand{ProductID: "prod-missing", ShelfLocation: "A1-1", Quantity: 5},
			wantCode: errors.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newAllocatorFixture(testProduct())

			_, err := fx.allocator.Create(ctx, tt.cmd, "user-1")
			require.Error(t, err)

			appErr, ok := errors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, appErr.Code)

			// No row written, no audit entry, no event.
			all, _ := fx.batches.FindAll(ctx)
			assert.Empty(t, all)
			assert.Empty(t, fx.audits.kinds())
			assert.Empty(t, fx.outbox.events)
		})
	}
}

func TestBatchAllocator_UpdateInPlace(t *testing.T) {
	ctx := context.Background()
	fx := newAllocatorFixture(testProduct())

	batch, err := fx.allocator.Create(ctx, CreateBatchCommand{
		ProductID:     "prod-1",
		ShelfLocation: "A1-1",
		Quantity:      10,
		ExpiryDate:    "2026-12-01",
	}, "user-1")
	require.NoError(t, err)

	newQty := 25
	updated, err := fx.allocator.Update(ctx, batch.BatchID, UpdateBatchCommand{
		Quantity: &newQty,
	}, "user-2")
	require.NoError(t, err)

	// Omitted patch fields keep their current values.
	assert.Equal(t, "A1-1", updated.ShelfLocation)
	assert.Equal(t, 25, updated.Quantity)
	require.NotNil(t, updated.ExpiryDate)
	assert.Equal(t, "2026-12-01", updated.ExpiryDate.Format(domain.ExpiryDateLayout))

	assert.Contains(t, fx.audits.kinds(), domain.AuditBatchUpdate)
}

func TestBatchAllocator_UpdateClearsExpiry(t *testing.T) {
	ctx := context.Background()

	// Both an empty string and an explicit JSON null clear the expiry;
	// leaving the field out keeps it.
	tests := []struct {
		name    string
		body    string
		wantNil bool
	}{
		{name: "empty string clears", body: `{"expiryDate": ""}`, wantNil: true},
		{name: "explicit null clears", body: `{"expiryDate": null}`, wantNil: true},
		{name: "absent field keeps value", body: `{"quantity": 25}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newAllocatorFixture(testProduct())

			batch, err := fx.allocator.Create(ctx, CreateBatchCommand{
				ProductID:     "prod-1",
				ShelfLocation: "A1-1",
				Quantity:      10,
				ExpiryDate:    "2026-12-01",
			}, "user-1")
			require.NoError(t, err)

			var cmd UpdateBatchCommand
			require.NoError(t, json.Unmarshal([]byte(tt.body), &cmd))

			updated, err := fx.allocator.Update(ctx, batch.BatchID, cmd, "user-1")
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, updated.ExpiryDate)
			} else {
				require.NotNil(t, updated.ExpiryDate)
				assert.Equal(t, "2026-12-01", updated.ExpiryDate.Format(domain.ExpiryDateLayout))
			}
		})
	}
}

func TestBatchAllocator_UpdateMergesFullTargetQuantity(t *testing.T) {
	ctx := context.Background()
	fx := newAllocatorFixture(testProduct())

	target, err := fx.allocator.Create(ctx, CreateBatchCommand{
		ProductID:     "prod-1",
		ShelfLocation: "A2-1",
		Quantity:      3,
	}, "user-1")
	require.NoError(t, err)

	source, err := fx.allocator.Create(ctx, CreateBatchCommand{
		ProductID:     "prod-1",
		ShelfLocation: "A1-1",
		Quantity:      5,
	}, "user-1")
	require.NoError(t, err)

	shelf := "A2-1"
	merged, err := fx.allocator.Update(ctx, source.BatchID, UpdateBatchCommand{
		ShelfLocation: &shelf,
	}, "user-1")
	require.NoError(t, err)

	// The merge absorbs the full target quantity: 3 + 5 = 8.
	assert.Equal(t, target.BatchID, merged.BatchID)
	assert.Equal(t, 8, merged.Quantity)

	_, err = fx.batches.FindByID(ctx, source.BatchID)
	require.Error(t, err)

	assert.Contains(t, fx.audits.kinds(), domain.AuditBatchMergeUpdate)
}

func TestBatchAllocator_UpdateCapacityExcludesSelf(t *testing.T) {
	ctx := context.Background()
	fx := newAllocatorFixture(testProduct())

	batch, err := fx.allocator.Create(ctx, CreateBatchCommand{
		ProductID:     "prod-1",
		ShelfLocation: "A1-1",
		Quantity:      150,
		ExpiryDate:    "2026-12-01",
	}, "user-1")
	require.NoError(t, err)

	// 150 units weigh 1500; an in-place bump to 190 (1900) fits only
	// because the batch's own weight is excluded from the current load.
	newQty := 190
	updated, err := fx.allocator.Update(ctx, batch.BatchID, UpdateBatchCommand{
		Quantity: &newQty,
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 190, updated.Quantity)

	overQty := 210
	_, err = fx.allocator.Update(ctx, batch.BatchID, UpdateBatchCommand{
		Quantity: &overQty,
	}, "user-1")
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeCapacityExceeded, appErr.Code)
}

func TestBatchAllocator_UpdateAllowsZeroQuantity(t *testing.T) {
	ctx := context.Background()
	fx := newAllocatorFixture(testProduct())

	batch, err := fx.allocator.Create(ctx, CreateBatchCommand{
		ProductID:     "prod-1",
		ShelfLocation: "A1-1",
		Quantity:      10,
	}, "user-1")
	require.NoError(t, err)

	// Zero is a valid terminal state; the row is retained.
	zero := 0
	updated, err := fx.allocator.Update(ctx, batch.BatchID, UpdateBatchCommand{
		Quantity: &zero,
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Quantity)

	all, _ := fx.batches.FindAll(ctx)
	assert.Len(t, all, 1)
}

func TestBatchAllocator_Remove(t *testing.T) {
	ctx := context.Background()
	fx := newAllocatorFixture(testProduct())

	batch, err := fx.allocator.Create(ctx, CreateBatchCommand{
		ProductID:     "prod-1",
		ShelfLocation: "A1-1",
		Quantity:      10,
	}, "user-1")
	require.NoError(t, err)

	require.NoError(t, fx.allocator.Remove(ctx, batch.BatchID, "user-2"))

	all, _ := fx.batches.FindAll(ctx)
	assert.Empty(t, all)

	kinds := fx.audits.kinds()
	require.Contains(t, kinds, domain.AuditBatchDelete)
	last := fx.audits.entries[len(fx.audits.entries)-1]
	assert.Equal(t, "user-2", last.ActorID)
	assert.NotNil(t, last.Before)
	assert.Nil(t, last.After)

	assert.Len(t, fx.outbox.byType("batch.deleted"), 1)
}

func TestBatchAllocator_RemoveMissingBatch(t *testing.T) {
	ctx := context.Background()
	fx := newAllocatorFixture(testProduct())

	err := fx.allocator.Remove(ctx, "BAT-missing", "user-1")
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, appErr.Code)
}

func TestBatchAllocator_ListBatches(t *testing.T) {
	ctx := context.Background()
	fx := newAllocatorFixture(testProduct())

	for i := 0; i < 3; i++ {
		expiry := time.Now().AddDate(0, 0, 30+i).Format(domain.ExpiryDateLayout)
		_, err := fx.allocator.Create(ctx, CreateBatchCommand{
			ProductID:     "prod-1",
			ShelfLocation: "A1-1",
			Quantity:      5,
			ExpiryDate:    expiry,
		}, "user-1")
		require.NoError(t, err)
	}

	batches, total, err := fx.allocator.ListBatches(ctx, domain.BatchFilter{ProductID: "prod-1"}, domain.Pagination{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, batches, 2)

	_, _, err = fx.allocator.ListBatches(ctx, domain.BatchFilter{Shelf: "Z9-9"}, domain.Pagination{})
	require.Error(t, err)
}
