package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stockroom/batch-service/internal/domain"
	"github.com/stockroom/batch-service/pkg/errors"
	"github.com/stockroom/batch-service/pkg/logging"
	"github.com/stockroom/batch-service/pkg/metrics"
)

// sectorGroupSize is the number of categories assigned to each of
// sectors A, B and C; remaining categories collapse into D.
const sectorGroupSize = 4

// SortReport summarizes one warehouse sort sweep.
type SortReport struct {
	Moved    int    `json:"moved"`
	Merged   int    `json:"merged"`
	Unplaced int    `json:"unplaced"`
	Message  string `json:"message"`
}

// WarehouseSorter re-balances all batches into category-aligned
// sectors with a first-fit scan. It is a deliberate heuristic, not a
// bin-packing optimum; shelf counts are small and fixed.
type WarehouseSorter struct {
	batches  domain.BatchRepository
	products domain.ProductRepository
	audits   domain.AuditRepository
	tx       TxRunner
	outbox   EventOutbox
	guard    *CapacityGuard
	merger   *BatchMerger
	logger   *logging.Logger
	metrics  *metrics.Metrics

	// One in-flight sort at a time; the sweep assumes exclusive access.
	mu sync.Mutex
}

// NewWarehouseSorter creates a WarehouseSorter.
func NewWarehouseSorter(
	batches domain.BatchRepository,
	products domain.ProductRepository,
	audits domain.AuditRepository,
	tx TxRunner,
	outbox EventOutbox,
	guard *CapacityGuard,
	merger *BatchMerger,
	logger *logging.Logger,
	m *metrics.Metrics,
) *WarehouseSorter {
	return &WarehouseSorter{
		batches:  batches,
		products: products,
		audits:   audits,
		tx:       tx,
		outbox:   outbox,
		guard:    guard,
		merger:   merger,
		logger:   logger.WithComponent("warehouse-sorter"),
		metrics:  m,
	}
}

// SortWarehouse runs one sweep inside a single transaction. Batches
// that fit nowhere in their target sector stay on their current shelf;
// one unplaceable batch never fails the sweep.
func (s *WarehouseSorter) SortWarehouse(ctx context.Context, actorID string) (*SortReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &SortReport{}

	err := s.tx.RunTransaction(ctx, func(txCtx context.Context) error {
		batches, err := s.batches.FindAll(txCtx)
		if err != nil {
			return fmt.Errorf("failed to load batches for sort: %w", err)
		}

		products, err := s.loadProducts(txCtx, batches)
		if err != nil {
			return err
		}

		categoryToSector := buildSectorAssignment(batches, products)

		for _, snapshot := range batches {
			// Earlier placements may have merged into or rewritten this
			// batch; place the stored row, not the sweep snapshot.
			batch, err := s.batches.FindByID(txCtx, snapshot.BatchID)
			if err != nil {
				if appErr, ok := errors.AsAppError(err); ok && appErr.Code == errors.CodeNotFound {
					continue
				}
				return err
			}

			product, ok := products[batch.ProductID]
			if !ok || !product.IsLive() {
				// Batch of a missing or deleted product; leave it where it is.
				report.Unplaced++
				continue
			}

			placed, moved, merged, err := s.placeBatch(txCtx, batch, product, categoryToSector[product.Category])
			if err != nil {
				return err
			}

			switch {
			case merged:
				report.Merged++
			case moved:
				report.Moved++
			case !placed:
				report.Unplaced++
			}
		}

		report.Message = fmt.Sprintf("warehouse sorted: %d moved, %d merged, %d left in place",
			report.Moved, report.Merged, report.Unplaced)

		if err := s.audits.Record(txCtx, domain.NewSortAuditEntry(actorID, report.Message)); err != nil {
			return err
		}

		return s.outbox.Record(txCtx, domain.NewWarehouseSortedEvent(report.Moved, report.Merged, report.Unplaced))
	})

	if s.metrics != nil {
		s.metrics.RecordSortRun(err == nil)
	}
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordSortResult("moved", report.Moved)
		s.metrics.RecordSortResult("merged", report.Merged)
		s.metrics.RecordSortResult("unplaced", report.Unplaced)
	}

	s.logger.Audit(ctx, string(domain.AuditWarehouseSort), "warehouse", "global", actorID, map[string]any{
		"moved":    report.Moved,
		"merged":   report.Merged,
		"unplaced": report.Unplaced,
	})

	return report, nil
}

// placeBatch scans the target sector's shelves in fixed order (rows
// 1-5, columns 1-4) and commits the first placement that fits. A merge
// target wins over an in-place move.
func (s *WarehouseSorter) placeBatch(ctx context.Context, batch *domain.Batch, product *domain.Product, targetSector string) (placed, moved, merged bool, err error) {
	for _, shelf := range domain.SectorShelves(targetSector) {
		target, err := s.merger.FindMergeTarget(ctx, batch.ProductID, shelf, batch.ExpiryDate, batch.BatchID)
		if err != nil {
			return false, false, false, err
		}

		if target != nil {
			target.Quantity += batch.Quantity
			target.UpdatedAt = time.Now().UTC()
			if err := s.batches.Update(ctx, target); err != nil {
				return false, false, false, err
			}
			if err := s.batches.Delete(ctx, batch.BatchID); err != nil {
				return false, false, false, err
			}
			return true, false, true, nil
		}

		if err := s.guard.CheckCapacity(ctx, shelf, batch.Weight(product), batch.BatchID); err == nil {
			if batch.ShelfLocation == shelf.String() {
				// Already on the first fitting shelf; nothing to do.
				return true, false, false, nil
			}

			batch.ShelfLocation = shelf.String()
			batch.UpdatedAt = time.Now().UTC()
			if err := s.batches.Update(ctx, batch); err != nil {
				return false, false, false, err
			}
			return true, true, false, nil
		}
	}

	return false, false, false, nil
}

func (s *WarehouseSorter) loadProducts(ctx context.Context, batches []*domain.Batch) (map[string]*domain.Product, error) {
	seen := make(map[string]bool, len(batches))
	ids := make([]string, 0, len(batches))
	for _, batch := range batches {
		if !seen[batch.ProductID] {
			seen[batch.ProductID] = true
			ids = append(ids, batch.ProductID)
		}
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products for sort: %w", err)
	}
	return products, nil
}

// buildSectorAssignment maps categories to sectors. Distinct
// categories are sorted lexicographically before bucketing so the
// assignment is deterministic regardless of load order, then assigned
// in groups of four to A, B and C; the 13th and later all land in D.
func buildSectorAssignment(batches []*domain.Batch, products map[string]*domain.Product) map[domain.Category]string {
	seen := make(map[domain.Category]bool)
	categories := make([]domain.Category, 0)
	for _, batch := range batches {
		product, ok := products[batch.ProductID]
		if !ok || !product.IsLive() {
			continue
		}
		if !seen[product.Category] {
			seen[product.Category] = true
			categories = append(categories, product.Category)
		}
	}

	sort.Slice(categories, func(i, j int) bool {
		return categories[i] < categories[j]
	})

	sectors := domain.AllSectors()
	assignment := make(map[domain.Category]string, len(categories))
	for i, category := range categories {
		sectorIdx := i / sectorGroupSize
		if sectorIdx >= len(sectors) {
			sectorIdx = len(sectors) - 1
		}
		assignment[category] = sectors[sectorIdx]
	}

	return assignment
}
