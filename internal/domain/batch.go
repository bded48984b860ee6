package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExpiryDateLayout is the wire format for expiry dates.
const ExpiryDateLayout = "2006-01-02"

// Batch is a physical lot of one product on one shelf, optionally
// perishable. An absent expiryDate field means non-perishable.
type Batch struct {
	BatchID       string     `bson:"_id" json:"batchId"`
	ProductID     string     `bson:"productId" json:"productId"`
	ShelfLocation string     `bson:"shelfLocation" json:"shelfLocation"`
	Quantity      int        `bson:"quantity" json:"quantity"`
	ExpiryDate    *time.Time `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	CreatedAt     time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// NewBatch creates a batch with a generated ID and normalized expiry.
func NewBatch(productID string, shelf ShelfAddress, quantity int, expiry *time.Time) *Batch {
	now := time.Now().UTC()
	return &Batch{
		BatchID:       "BAT-" + uuid.New().String()[:8],
		ProductID:     productID,
		ShelfLocation: shelf.String(),
		Quantity:      quantity,
		ExpiryDate:    NormalizeExpiry(expiry),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Shelf parses the stored shelf location. Stored addresses are always
// written through ShelfAddress, so this only fails on corrupted data.
func (b *Batch) Shelf() (ShelfAddress, error) {
	return ParseShelfAddress(b.ShelfLocation)
}

// Weight returns the total weight of the batch given its product.
func (b *Batch) Weight(product *Product) float64 {
	return float64(b.Quantity) * product.WeightPerUnit
}

// SameMergeKey reports whether the batch occupies the merge key
// (productId, shelf, normalized expiry).
func (b *Batch) SameMergeKey(productID string, shelf ShelfAddress, expiry *time.Time) bool {
	return b.ProductID == productID &&
		b.ShelfLocation == shelf.String() &&
		SameExpiry(b.ExpiryDate, expiry)
}

// Clone returns a shallow copy, used for before/after audit snapshots.
func (b *Batch) Clone() *Batch {
	copied := *b
	if b.ExpiryDate != nil {
		expiry := *b.ExpiryDate
		copied.ExpiryDate = &expiry
	}
	return &copied
}

// NormalizeExpiry truncates an expiry to UTC midnight. A nil input
// stays nil (non-perishable).
func NormalizeExpiry(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	truncated := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &truncated
}

// ParseExpiry parses a wire-format expiry string. Empty strings mean
// non-perishable and normalize to nil, the same merge key as an absent
// date.
func ParseExpiry(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parsed, err := time.Parse(ExpiryDateLayout, raw)
	if err != nil {
		// Accept full RFC 3339 timestamps as well; only the date part matters.
		parsed, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, err
		}
	}

	return NormalizeExpiry(&parsed), nil
}

// SameExpiry compares two normalized expiry dates, treating nil as
// "no expiry".
func SameExpiry(a, b *time.Time) bool {
	na, nb := NormalizeExpiry(a), NormalizeExpiry(b)
	if na == nil || nb == nil {
		return na == nil && nb == nil
	}
	return na.Equal(*nb)
}
