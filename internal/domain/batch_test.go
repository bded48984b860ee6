package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatch(t *testing.T) {
	expiry := time.Date(2026, 12, 1, 16, 30, 0, 0, time.FixedZone("CET", 3600))
	batch := NewBatch("prod-1", MustParseShelfAddress("A1-1"), 10, &expiry)

	assert.Regexp(t, `^BAT-[0-9a-f]{8}$`, batch.BatchID)
	assert.Equal(t, "prod-1", batch.ProductID)
	assert.Equal(t, "A1-1", batch.ShelfLocation)
	assert.Equal(t, 10, batch.Quantity)

	// Expiry stored at UTC midnight regardless of the input zone.
	require.NotNil(t, batch.ExpiryDate)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), *batch.ExpiryDate)
	assert.False(t, batch.CreatedAt.IsZero())
}

func TestNormalizeExpiry(t *testing.T) {
	assert.Nil(t, NormalizeExpiry(nil))

	input := time.Date(2026, 6, 15, 23, 59, 59, 0, time.UTC)
	normalized := NormalizeExpiry(&input)
	require.NotNil(t, normalized)
	assert.Equal(t, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), *normalized)
}

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *time.Time
		wantErr bool
	}{
		{name: "empty means no expiry", raw: ""},
		{name: "whitespace means no expiry", raw: "   "},
		{name: "date form", raw: "2026-06-15", want: timePtr(time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC))},
		{name: "timestamp truncates to date", raw: "2026-06-15T18:45:00Z", want: timePtr(time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC))},
		{name: "garbage rejected", raw: "not-a-date", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpiry(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, *tt.want, *got)
			}
		})
	}
}

func TestSameExpiry(t *testing.T) {
	morning := time.Date(2026, 6, 15, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 6, 15, 20, 0, 0, 0, time.UTC)
	nextDay := time.Date(2026, 6, 16, 8, 0, 0, 0, time.UTC)

	assert.True(t, SameExpiry(nil, nil))
	assert.False(t, SameExpiry(&morning, nil))
	assert.False(t, SameExpiry(nil, &morning))

	// Same calendar day compares equal regardless of time of day.
	assert.True(t, SameExpiry(&morning, &evening))
	assert.False(t, SameExpiry(&morning, &nextDay))
}

func TestSameMergeKey(t *testing.T) {
	expiry := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	batch := NewBatch("prod-1", MustParseShelfAddress("A1-1"), 10, &expiry)

	assert.True(t, batch.SameMergeKey("prod-1", MustParseShelfAddress("A1-1"), &expiry))
	assert.False(t, batch.SameMergeKey("prod-2", MustParseShelfAddress("A1-1"), &expiry))
	assert.False(t, batch.SameMergeKey("prod-1", MustParseShelfAddress("A1-2"), &expiry))
	assert.False(t, batch.SameMergeKey("prod-1", MustParseShelfAddress("A1-1"), nil))

	nonPerishable := NewBatch("prod-1", MustParseShelfAddress("A1-1"), 10, nil)
	assert.True(t, nonPerishable.SameMergeKey("prod-1", MustParseShelfAddress("A1-1"), nil))
}

func TestBatchClone(t *testing.T) {
	expiry := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	batch := NewBatch("prod-1", MustParseShelfAddress("A1-1"), 10, &expiry)

	clone := batch.Clone()
	clone.Quantity = 99
	*clone.ExpiryDate = clone.ExpiryDate.AddDate(0, 1, 0)

	assert.Equal(t, 10, batch.Quantity)
	assert.Equal(t, expiry, *batch.ExpiryDate)
}

func TestBatchWeight(t *testing.T) {
	product := &Product{ProductID: "prod-1", WeightPerUnit: 2.5}
	batch := NewBatch("prod-1", MustParseShelfAddress("A1-1"), 4, nil)
	assert.InDelta(t, 10.0, batch.Weight(product), 0.0001)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
