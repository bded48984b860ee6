package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditKind identifies the mutation recorded by an audit entry.
type AuditKind string

// Audit entry kinds written by the engine.
const (
	AuditBatchCreate      AuditKind = "BATCH_CREATE"
	AuditBatchMerge       AuditKind = "BATCH_MERGE"
	AuditBatchUpdate      AuditKind = "BATCH_UPDATE"
	AuditBatchMergeUpdate AuditKind = "BATCH_MERGE_UPDATE"
	AuditBatchDelete      AuditKind = "BATCH_DELETE"
	AuditWarehouseSort    AuditKind = "WAREHOUSE_SORT"
)

// AuditEntry records one mutation with before/after snapshots. It is
// written inside the same transaction as the mutation it describes.
type AuditEntry struct {
	EntryID    string    `bson:"_id" json:"entryId"`
	ActorID    string    `bson:"actorId" json:"actorId"`
	Kind       AuditKind `bson:"kind" json:"kind"`
	ProductID  string    `bson:"productId,omitempty" json:"productId,omitempty"`
	BatchID    string    `bson:"batchId,omitempty" json:"batchId,omitempty"`
	Before     *Batch    `bson:"before,omitempty" json:"before,omitempty"`
	After      *Batch    `bson:"after,omitempty" json:"after,omitempty"`
	Detail     string    `bson:"detail,omitempty" json:"detail,omitempty"`
	RecordedAt time.Time `bson:"recordedAt" json:"recordedAt"`
}

// NewAuditEntry creates an audit entry for a batch mutation.
func NewAuditEntry(actorID string, kind AuditKind, productID, batchID string, before, after *Batch) *AuditEntry {
	return &AuditEntry{
		EntryID:    uuid.New().String(),
		ActorID:    actorID,
		Kind:       kind,
		ProductID:  productID,
		BatchID:    batchID,
		Before:     before,
		After:      after,
		RecordedAt: time.Now().UTC(),
	}
}

// NewSortAuditEntry creates the single entry recorded for a whole
// warehouse sort sweep. No per-batch diff is kept.
func NewSortAuditEntry(actorID, detail string) *AuditEntry {
	return &AuditEntry{
		EntryID:    uuid.New().String(),
		ActorID:    actorID,
		Kind:       AuditWarehouseSort,
		Detail:     detail,
		RecordedAt: time.Now().UTC(),
	}
}
