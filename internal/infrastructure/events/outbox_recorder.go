package events

import (
	"context"
	"fmt"

	"github.com/stockroom/batch-service/internal/domain"
	"github.com/stockroom/batch-service/pkg/cloudevents"
	"github.com/stockroom/batch-service/pkg/kafka"
	"github.com/stockroom/batch-service/pkg/logging"
	"github.com/stockroom/batch-service/pkg/outbox"
)

// OutboxRecorder turns domain events into CloudEvents and stores them
// in the transactional outbox. Called with a session context it joins
// the mutation's transaction; the background publisher delivers the
// rows to Kafka after commit.
type OutboxRecorder struct {
	repository outbox.Repository
	factory    *cloudevents.EventFactory
}

// NewOutboxRecorder creates an OutboxRecorder.
func NewOutboxRecorder(repository outbox.Repository, factory *cloudevents.EventFactory) *OutboxRecorder {
	return &OutboxRecorder{repository: repository, factory: factory}
}

// Record converts and stores one domain event.
func (r *OutboxRecorder) Record(ctx context.Context, event domain.Event) error {
	cloudEvent, aggregateID, aggregateType, topic, err := r.convert(ctx, event)
	if err != nil {
		return err
	}

	cloudEvent.CorrelationID = correlationIDFromContext(ctx)
	cloudEvent.ActorID = logging.ActorIDFromContext(ctx)

	outboxEvent, err := outbox.NewEventFromCloudEvent(aggregateID, aggregateType, topic, cloudEvent)
	if err != nil {
		return fmt.Errorf("failed to build outbox event: %w", err)
	}

	if err := r.repository.Save(ctx, outboxEvent); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}

func (r *OutboxRecorder) convert(ctx context.Context, event domain.Event) (*cloudevents.InventoryCloudEvent, string, string, string, error) {
	switch e := event.(type) {
	case *domain.BatchCreatedEvent:
		ce := r.factory.CreateBatchEvent(ctx, cloudevents.BatchCreated, batchData(e.Batch))
		return ce, e.Batch.BatchID, "batch", kafka.Topics.InventoryEvents, nil

	case *domain.BatchMergedEvent:
		ce := r.factory.CreateBatchMergedEvent(ctx, cloudevents.BatchMergedData{
			TargetBatchID:  e.Target.BatchID,
			SourceBatchID:  e.SourceBatchID,
			ProductID:      e.Target.ProductID,
			ShelfLocation:  e.Target.ShelfLocation,
			MergedQuantity: e.MergedQuantity,
			TotalQuantity:  e.Target.Quantity,
			ExpiryDate:     e.Target.ExpiryDate,
		})
		return ce, e.Target.BatchID, "batch", kafka.Topics.InventoryEvents, nil

	case *domain.BatchUpdatedEvent:
		ce := r.factory.CreateBatchEvent(ctx, cloudevents.BatchUpdated, batchData(e.Batch))
		return ce, e.Batch.BatchID, "batch", kafka.Topics.InventoryEvents, nil

	case *domain.BatchDeletedEvent:
		ce := r.factory.CreateBatchEvent(ctx, cloudevents.BatchDeleted, batchData(e.Batch))
		return ce, e.Batch.BatchID, "batch", kafka.Topics.InventoryEvents, nil

	case *domain.WarehouseSortedEvent:
		ce := r.factory.CreateWarehouseSortedEvent(ctx, cloudevents.WarehouseSortedData{
			Moved:    e.Moved,
			Merged:   e.Merged,
			Unplaced: e.Unplaced,
		})
		return ce, "warehouse", "warehouse", kafka.Topics.InventoryEvents, nil

	case *domain.AlertRaisedEvent:
		ce := r.factory.CreateAlertRaisedEvent(ctx, cloudevents.AlertRaisedData{
			Rule:      e.Rule,
			ProductID: e.ProductID,
			Message:   e.Message,
			Severity:  string(e.Severity),
		})
		aggregateID := e.ProductID
		if aggregateID == "" {
			aggregateID = "alert"
		}
		return ce, aggregateID, "alert", kafka.Topics.AlertEvents, nil

	default:
		return nil, "", "", "", fmt.Errorf("unknown domain event type %q", event.EventType())
	}
}

func batchData(batch *domain.Batch) cloudevents.BatchEventData {
	return cloudevents.BatchEventData{
		BatchID:       batch.BatchID,
		ProductID:     batch.ProductID,
		ShelfLocation: batch.ShelfLocation,
		Quantity:      batch.Quantity,
		ExpiryDate:    batch.ExpiryDate,
	}
}

func correlationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
		return v
	}
	return ""
}
