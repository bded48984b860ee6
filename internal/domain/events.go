package domain

import "time"

// Event is a domain event recorded during a mutation and delivered
// post-commit through the outbox.
type Event interface {
	EventType() string
	OccurredAt() time.Time
}

type baseEvent struct {
	at time.Time
}

func newBaseEvent() baseEvent {
	return baseEvent{at: time.Now().UTC()}
}

func (e baseEvent) OccurredAt() time.Time {
	return e.at
}

// BatchCreatedEvent signals a new batch row.
type BatchCreatedEvent struct {
	baseEvent
	Batch *Batch
}

// NewBatchCreatedEvent creates a BatchCreatedEvent.
func NewBatchCreatedEvent(batch *Batch) *BatchCreatedEvent {
	return &BatchCreatedEvent{baseEvent: newBaseEvent(), Batch: batch}
}

func (e *BatchCreatedEvent) EventType() string { return "batch.created" }

// BatchMergedEvent signals that an incoming placement was folded into
// an existing batch instead of materializing a new row.
type BatchMergedEvent struct {
	baseEvent
	Target         *Batch
	SourceBatchID  string
	MergedQuantity int
}

// NewBatchMergedEvent creates a BatchMergedEvent. sourceBatchID is
// empty when the merge came from a create rather than a move.
func NewBatchMergedEvent(target *Batch, sourceBatchID string, mergedQuantity int) *BatchMergedEvent {
	return &BatchMergedEvent{
		baseEvent:      newBaseEvent(),
		Target:         target,
		SourceBatchID:  sourceBatchID,
		MergedQuantity: mergedQuantity,
	}
}

func (e *BatchMergedEvent) EventType() string { return "batch.merged" }

// BatchUpdatedEvent signals an in-place batch update.
type BatchUpdatedEvent struct {
	baseEvent
	Batch *Batch
}

// NewBatchUpdatedEvent creates a BatchUpdatedEvent.
func NewBatchUpdatedEvent(batch *Batch) *BatchUpdatedEvent {
	return &BatchUpdatedEvent{baseEvent: newBaseEvent(), Batch: batch}
}

func (e *BatchUpdatedEvent) EventType() string { return "batch.updated" }

// BatchDeletedEvent signals a batch removal.
type BatchDeletedEvent struct {
	baseEvent
	Batch *Batch
}

// NewBatchDeletedEvent creates a BatchDeletedEvent.
func NewBatchDeletedEvent(batch *Batch) *BatchDeletedEvent {
	return &BatchDeletedEvent{baseEvent: newBaseEvent(), Batch: batch}
}

func (e *BatchDeletedEvent) EventType() string { return "batch.deleted" }

// WarehouseSortedEvent is the single global event emitted after a sort
// sweep; it is not scoped to one product because many may have moved.
type WarehouseSortedEvent struct {
	baseEvent
	Moved    int
	Merged   int
	Unplaced int
}

// NewWarehouseSortedEvent creates a WarehouseSortedEvent.
func NewWarehouseSortedEvent(moved, merged, unplaced int) *WarehouseSortedEvent {
	return &WarehouseSortedEvent{
		baseEvent: newBaseEvent(),
		Moved:     moved,
		Merged:    merged,
		Unplaced:  unplaced,
	}
}

func (e *WarehouseSortedEvent) EventType() string { return "warehouse.sorted" }

// AlertRaisedEvent carries a stock-health alert toward the realtime
// layer.
type AlertRaisedEvent struct {
	baseEvent
	Rule      string
	ProductID string
	Message   string
	Severity  Severity
}

// NewAlertRaisedEvent creates an AlertRaisedEvent.
func NewAlertRaisedEvent(rule, productID, message string, severity Severity) *AlertRaisedEvent {
	return &AlertRaisedEvent{
		baseEvent: newBaseEvent(),
		Rule:      rule,
		ProductID: productID,
		Message:   message,
		Severity:  severity,
	}
}

func (e *AlertRaisedEvent) EventType() string { return "alert.raised" }
