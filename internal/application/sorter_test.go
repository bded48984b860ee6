package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockroom/batch-service/internal/domain"
)

type sorterFixture struct {
	sorter   *WarehouseSorter
	batches  *fakeBatchRepo
	products *fakeProductRepo
	audits   *fakeAuditRepo
	outbox   *fakeOutbox
}

func newSorterFixture(products ...*domain.Product) *sorterFixture {
	batchRepo := newFakeBatchRepo()
	productRepo := newFakeProductRepo(products...)
	auditRepo := &fakeAuditRepo{}
	outbox := &fakeOutbox{}
	logger := newTestLogger()

	guard := NewCapacityGuard(batchRepo, productRepo)
	merger := NewBatchMerger(batchRepo)
	sorter := NewWarehouseSorter(batchRepo, productRepo, auditRepo, fakeTx{}, outbox, guard, merger, logger, nil)

	return &sorterFixture{
		sorter:   sorter,
		batches:  batchRepo,
		products: productRepo,
		audits:   auditRepo,
		outbox:   outbox,
	}
}

func categoryProduct(id string, category domain.Category) *domain.Product {
	return &domain.Product{ProductID: id, Name: id, WeightPerUnit: 1, Category: category}
}

func TestWarehouseSorter_SectorAssignmentIsLexicographic(t *testing.T) {
	ctx := context.Background()

	// Five distinct categories: sorted, the first four fill sector A
	// and the fifth lands in B, regardless of batch load order.
	fx := newSorterFixture(
		categoryProduct("p-household", domain.CategoryHousehold),
		categoryProduct("p-apparel", domain.CategoryApparel),
		categoryProduct("p-food", domain.CategoryFood),
		categoryProduct("p-beverage", domain.CategoryBeverage),
		categoryProduct("p-electronics", domain.CategoryElectronics),
	)

	// Insert in an order that differs from the lexicographic one.
	start := domain.MustParseShelfAddress("D5-4")
	for _, productID := range []string{"p-household", "p-food", "p-apparel", "p-electronics", "p-beverage"} {
		require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch(productID, start, 1, nil)))
	}

	report, err := fx.sorter.SortWarehouse(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 5, report.Moved)
	assert.Zero(t, report.Unplaced)

	sectorOf := func(productID string) string {
		batches, _ := fx.batches.FindByProduct(ctx, productID)
		require.Len(t, batches, 1)
		shelf, err := batches[0].Shelf()
		require.NoError(t, err)
		return shelf.Sector()
	}

	// Lexicographic order: apparel, beverage, electronics, food -> A;
	// household is the fifth category -> B.
	assert.Equal(t, "A", sectorOf("p-apparel"))
	assert.Equal(t, "A", sectorOf("p-beverage"))
	assert.Equal(t, "A", sectorOf("p-electronics"))
	assert.Equal(t, "A", sectorOf("p-food"))
	assert.Equal(t, "B", sectorOf("p-household"))
}

func TestWarehouseSorter_MergesDuplicatesDuringSweep(t *testing.T) {
	ctx := context.Background()
	fx := newSorterFixture(categoryProduct("p-food", domain.CategoryFood))

	// Two batches with the same merge key on different shelves: the
	// first moves to A1-1, the second merges into it.
	require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("p-food", domain.MustParseShelfAddress("C3-2"), 4, nil)))
	require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("p-food", domain.MustParseShelfAddress("D1-1"), 6, nil)))

	report, err := fx.sorter.SortWarehouse(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Moved)
	assert.Equal(t, 1, report.Merged)

	all, err := fx.batches.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "A1-1", all[0].ShelfLocation)
	assert.Equal(t, 10, all[0].Quantity)
}

func TestWarehouseSorter_MergedTargetKeepsQuantityWhenSweptLater(t *testing.T) {
	ctx := context.Background()

	crate := &domain.Product{ProductID: "p-crate", Name: "Crate", WeightPerUnit: 600, Category: domain.CategoryBeverage}
	flour := &domain.Product{ProductID: "p-food", Name: "Flour", WeightPerUnit: 10, Category: domain.CategoryFood}
	fx := newSorterFixture(crate, flour)

	// 600 weight units already sit on A1-1, so the 1500-weight source
	// skips it and merges into the target on A1-2. The sweep reaches
	// the target afterwards: its stored quantity is now 151 (1510
	// weight), which no longer fits on A1-1 either, so it must stay on
	// A1-2 with the merged quantity intact.
	require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("p-crate", domain.MustParseShelfAddress("A1-1"), 1, nil)))
	source := domain.NewBatch("p-food", domain.MustParseShelfAddress("B1-1"), 150, nil)
	require.NoError(t, fx.batches.Insert(ctx, source))
	target := domain.NewBatch("p-food", domain.MustParseShelfAddress("A1-2"), 1, nil)
	require.NoError(t, fx.batches.Insert(ctx, target))

	report, err := fx.sorter.SortWarehouse(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)
	assert.Zero(t, report.Moved)
	assert.Zero(t, report.Unplaced)

	merged, err := fx.batches.FindByID(ctx, target.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "A1-2", merged.ShelfLocation)
	assert.Equal(t, 151, merged.Quantity)

	_, err = fx.batches.FindByID(ctx, source.BatchID)
	require.Error(t, err)
}

func TestWarehouseSorter_DeletedProductBatchStaysPut(t *testing.T) {
	ctx := context.Background()

	gone := &domain.Product{ProductID: "p-gone", Name: "Discontinued", WeightPerUnit: 1, Category: domain.CategoryFood, IsDeleted: true}
	fx := newSorterFixture(gone)

	stranded := domain.NewBatch("p-gone", domain.MustParseShelfAddress("C2-2"), 5, nil)
	require.NoError(t, fx.batches.Insert(ctx, stranded))

	report, err := fx.sorter.SortWarehouse(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unplaced)

	reloaded, err := fx.batches.FindByID(ctx, stranded.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "C2-2", reloaded.ShelfLocation)
}

func TestWarehouseSorter_UnplaceableBatchStaysPut(t *testing.T) {
	ctx := context.Background()

	// A single unit outweighs every shelf; no candidate in the target
	// sector can take it and there is nothing to merge with.
	oversized := &domain.Product{ProductID: "p-anvil", Name: "Anvil", WeightPerUnit: 2500, Category: domain.CategoryOther}
	fx := newSorterFixture(oversized, categoryProduct("p-food", domain.CategoryFood))

	stuck := domain.NewBatch("p-anvil", domain.MustParseShelfAddress("B4-2"), 1, nil)
	require.NoError(t, fx.batches.Insert(ctx, stuck))
	require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("p-food", domain.MustParseShelfAddress("D2-2"), 3, nil)))

	report, err := fx.sorter.SortWarehouse(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unplaced)
	assert.Equal(t, 1, report.Moved)

	// The oversized batch keeps its original shelf.
	reloaded, err := fx.batches.FindByID(ctx, stuck.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "B4-2", reloaded.ShelfLocation)
}

func TestWarehouseSorter_BatchAlreadyOnFirstFitShelf(t *testing.T) {
	ctx := context.Background()
	fx := newSorterFixture(categoryProduct("p-food", domain.CategoryFood))

	settled := domain.NewBatch("p-food", domain.MustParseShelfAddress("A1-1"), 3, nil)
	require.NoError(t, fx.batches.Insert(ctx, settled))

	report, err := fx.sorter.SortWarehouse(ctx, "admin")
	require.NoError(t, err)
	assert.Zero(t, report.Moved)
	assert.Zero(t, report.Merged)
	assert.Zero(t, report.Unplaced)
}

func TestWarehouseSorter_RecordsSingleAuditEntryAndGlobalEvent(t *testing.T) {
	ctx := context.Background()
	fx := newSorterFixture(categoryProduct("p-food", domain.CategoryFood))

	require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("p-food", domain.MustParseShelfAddress("D1-1"), 2, nil)))
	require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("p-food", domain.MustParseShelfAddress("D2-1"), 2, nil)))

	_, err := fx.sorter.SortWarehouse(ctx, "admin")
	require.NoError(t, err)

	kinds := fx.audits.kinds()
	require.Len(t, kinds, 1)
	assert.Equal(t, domain.AuditWarehouseSort, kinds[0])

	events := fx.outbox.byType("warehouse.sorted")
	require.Len(t, events, 1)
	sorted := events[0].(*domain.WarehouseSortedEvent)
	assert.Equal(t, 1, sorted.Moved)
	assert.Equal(t, 1, sorted.Merged)
}

func TestWarehouseSorter_EmptyWarehouse(t *testing.T) {
	ctx := context.Background()
	fx := newSorterFixture()

	report, err := fx.sorter.SortWarehouse(ctx, "admin")
	require.NoError(t, err)
	assert.Zero(t, report.Moved)
	assert.Zero(t, report.Merged)
	assert.Zero(t, report.Unplaced)
	assert.NotEmpty(t, report.Message)
}
