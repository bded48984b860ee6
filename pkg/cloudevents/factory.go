package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventFactory creates CloudEvents for inventory domain events
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent creates a new InventoryCloudEvent with the given parameters
func (f *EventFactory) CreateEvent(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
) *InventoryCloudEvent {
	return &InventoryCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// CreateBatchEvent creates a batch lifecycle event (created/updated/deleted)
func (f *EventFactory) CreateBatchEvent(
	ctx context.Context,
	eventType string,
	data BatchEventData,
) *InventoryCloudEvent {
	return f.CreateEvent(ctx, eventType, "batch/"+data.BatchID, data)
}

// CreateBatchMergedEvent creates a BatchMerged event
func (f *EventFactory) CreateBatchMergedEvent(
	ctx context.Context,
	data BatchMergedData,
) *InventoryCloudEvent {
	return f.CreateEvent(ctx, BatchMerged, "batch/"+data.TargetBatchID, data)
}

// CreateWarehouseSortedEvent creates the global sort event
func (f *EventFactory) CreateWarehouseSortedEvent(
	ctx context.Context,
	data WarehouseSortedData,
) *InventoryCloudEvent {
	data.Global = true
	return f.CreateEvent(ctx, WarehouseSorted, "warehouse", data)
}

// CreateAlertRaisedEvent creates an AlertRaised event
func (f *EventFactory) CreateAlertRaisedEvent(
	ctx context.Context,
	data AlertRaisedData,
) *InventoryCloudEvent {
	subject := "alert"
	if data.ProductID != "" {
		subject = "alert/" + data.ProductID
	}
	return f.CreateEvent(ctx, AlertRaised, subject, data)
}
