package application

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/stockroom/batch-service/internal/domain"
	"github.com/stockroom/batch-service/pkg/errors"
	"github.com/stockroom/batch-service/pkg/logging"
)

func newTestLogger() *logging.Logger {
	return logging.New(&logging.Config{
		Level:       logging.LevelError,
		ServiceName: "batch-service-test",
		Output:      io.Discard,
	})
}

// fakeTx runs the function directly; the fakes have no real
// transaction semantics.
type fakeTx struct{}

func (fakeTx) RunTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []domain.Event
}

func (o *fakeOutbox) Record(_ context.Context, event domain.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	return nil
}

func (o *fakeOutbox) byType(eventType string) []domain.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	var matched []domain.Event
	for _, event := range o.events {
		if event.EventType() == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// fakeBatchRepo mirrors the Mongo repository's value semantics: every
// read decodes a fresh document, so callers never share pointers with
// the stored state.
type fakeBatchRepo struct {
	mu      sync.Mutex
	batches map[string]*domain.Batch
	order   []string
}

func newFakeBatchRepo() *fakeBatchRepo {
	return &fakeBatchRepo{batches: make(map[string]*domain.Batch)}
}

func (r *fakeBatchRepo) Insert(_ context.Context, batch *domain.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.BatchID] = batch.Clone()
	r.order = append(r.order, batch.BatchID)
	return nil
}

func (r *fakeBatchRepo) Update(_ context.Context, batch *domain.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[batch.BatchID]; !ok {
		return errors.ErrNotFoundWithID("batch", batch.BatchID)
	}
	r.batches[batch.BatchID] = batch.Clone()
	return nil
}

func (r *fakeBatchRepo) Delete(_ context.Context, batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[batchID]; !ok {
		return errors.ErrNotFoundWithID("batch", batchID)
	}
	delete(r.batches, batchID)
	for i, id := range r.order {
		if id == batchID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakeBatchRepo) FindByID(_ context.Context, batchID string) (*domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[batchID]
	if !ok {
		return nil, errors.ErrNotFoundWithID("batch", batchID)
	}
	return batch.Clone(), nil
}

func (r *fakeBatchRepo) FindByShelf(_ context.Context, shelf domain.ShelfAddress, excludeBatchID string) ([]*domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Batch
	for _, id := range r.order {
		batch := r.batches[id]
		if batch.ShelfLocation == shelf.String() && batch.BatchID != excludeBatchID {
			result = append(result, batch.Clone())
		}
	}
	return result, nil
}

func (r *fakeBatchRepo) FindDuplicate(_ context.Context, productID string, shelf domain.ShelfAddress, expiry *time.Time, excludeBatchID string) (*domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		batch := r.batches[id]
		if batch.BatchID != excludeBatchID && batch.SameMergeKey(productID, shelf, expiry) {
			return batch.Clone(), nil
		}
	}
	return nil, nil
}

func (r *fakeBatchRepo) FindByProduct(_ context.Context, productID string) ([]*domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Batch
	for _, id := range r.order {
		if r.batches[id].ProductID == productID {
			result = append(result, r.batches[id].Clone())
		}
	}
	return result, nil
}

func (r *fakeBatchRepo) FindAll(_ context.Context) ([]*domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*domain.Batch, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.batches[id].Clone())
	}
	return result, nil
}

func (r *fakeBatchRepo) List(ctx context.Context, filter domain.BatchFilter, page domain.Pagination) ([]*domain.Batch, int64, error) {
	all, _ := r.FindAll(ctx)
	var matched []*domain.Batch
	for _, batch := range all {
		if filter.ProductID != "" && batch.ProductID != filter.ProductID {
			continue
		}
		if filter.Shelf != "" && batch.ShelfLocation != filter.Shelf {
			continue
		}
		matched = append(matched, batch)
	}

	total := int64(len(matched))
	start := int(page.Skip())
	if start > len(matched) {
		start = len(matched)
	}
	end := start + int(page.Limit())
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[string]*domain.Product
}

func newFakeProductRepo(products ...*domain.Product) *fakeProductRepo {
	repo := &fakeProductRepo{products: make(map[string]*domain.Product)}
	for _, product := range products {
		repo.products[product.ProductID] = product
	}
	return repo
}

func (r *fakeProductRepo) FindByID(_ context.Context, productID string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok || product.IsDeleted {
		return nil, errors.ErrNotFoundWithID("product", productID)
	}
	return product, nil
}

func (r *fakeProductRepo) FindAllLive(_ context.Context) ([]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Product
	for _, product := range r.products {
		if !product.IsDeleted {
			result = append(result, product)
		}
	}
	return result, nil
}

func (r *fakeProductRepo) FindByIDs(_ context.Context, productIDs []string) (map[string]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[string]*domain.Product, len(productIDs))
	for _, id := range productIDs {
		if product, ok := r.products[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

func (r *fakeProductRepo) Save(_ context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ProductID] = product
	return nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
}

func (r *fakeAuditRepo) Record(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, page domain.Pagination) ([]*domain.AuditEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries, int64(len(r.entries)), nil
}

func (r *fakeAuditRepo) kinds() []domain.AuditKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]domain.AuditKind, 0, len(r.entries))
	for _, entry := range r.entries {
		kinds = append(kinds, entry.Kind)
	}
	return kinds
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []*domain.Notification
}

func (r *fakeNotificationRepo) Insert(_ context.Context, notification *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notification)
	return nil
}

func (r *fakeNotificationRepo) ExistsSince(_ context.Context, message string, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, notification := range r.notifications {
		if notification.Message == message && !notification.SentAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotificationRepo) ListRecent(_ context.Context, limit int) ([]*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notifications, nil
}

func (r *fakeNotificationRepo) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	messages := make([]string, 0, len(r.notifications))
	for _, notification := range r.notifications {
		messages = append(messages, notification.Message)
	}
	return messages
}
