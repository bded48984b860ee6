package domain

import (
	"context"
	"time"
)

// Pagination bounds list queries.
type Pagination struct {
	Page     int
	PageSize int
}

// DefaultPageSize caps unbounded list requests.
const DefaultPageSize = 50

// MaxPageSize is the hard ceiling for a single page.
const MaxPageSize = 200

// Normalize clamps the pagination to sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Skip returns the number of documents to skip.
func (p Pagination) Skip() int64 {
	return int64((p.Page - 1) * p.PageSize)
}

// Limit returns the page size as a limit.
func (p Pagination) Limit() int64 {
	return int64(p.PageSize)
}

// BatchFilter narrows batch list queries.
type BatchFilter struct {
	ProductID string
	Shelf     string
}

// BatchRepository is the persistence port for batches. FindDuplicate
// and FindByShelf take an optional batch ID to exclude, so in-place
// edits never match or count themselves.
type BatchRepository interface {
	Insert(ctx context.Context, batch *Batch) error
	Update(ctx context.Context, batch *Batch) error
	Delete(ctx context.Context, batchID string) error
	FindByID(ctx context.Context, batchID string) (*Batch, error)
	FindByShelf(ctx context.Context, shelf ShelfAddress, excludeBatchID string) ([]*Batch, error)
	FindDuplicate(ctx context.Context, productID string, shelf ShelfAddress, expiry *time.Time, excludeBatchID string) (*Batch, error)
	FindByProduct(ctx context.Context, productID string) ([]*Batch, error)
	FindAll(ctx context.Context) ([]*Batch, error)
	List(ctx context.Context, filter BatchFilter, page Pagination) ([]*Batch, int64, error)
}

// ProductRepository is the read port for product master data.
// FindByID must not return soft-deleted products.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (*Product, error)
	FindAllLive(ctx context.Context) ([]*Product, error)
	FindByIDs(ctx context.Context, productIDs []string) (map[string]*Product, error)
	Save(ctx context.Context, product *Product) error
}

// AuditRepository records audit entries inside the caller's
// transaction.
type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, page Pagination) ([]*AuditEntry, int64, error)
}

// NotificationRepository persists broadcasts and answers the dedup
// window query.
type NotificationRepository interface {
	Insert(ctx context.Context, notification *Notification) error
	ExistsSince(ctx context.Context, message string, since time.Time) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]*Notification, error)
}
