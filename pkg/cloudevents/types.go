package cloudevents

import (
	"time"
)

// EventType constants for inventory domain events
const (
	BatchCreated    = "inventory.batch.created"
	BatchMerged     = "inventory.batch.merged"
	BatchUpdated    = "inventory.batch.updated"
	BatchDeleted    = "inventory.batch.deleted"
	WarehouseSorted = "inventory.warehouse.sorted"
	AlertRaised     = "inventory.alert.raised"
)

// Source constant for events emitted by this service
const SourceBatchService = "/stockroom/batch-service"

// InventoryCloudEvent represents a CloudEvents v1.0 compliant event
type InventoryCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// Inventory-specific extensions
	CorrelationID string `json:"invcorrelationid,omitempty"`
	ActorID       string `json:"invactorid,omitempty"`
}

// BatchEventData is the payload for batch lifecycle events
type BatchEventData struct {
	BatchID       string     `json:"batchId"`
	ProductID     string     `json:"productId"`
	ShelfLocation string     `json:"shelfLocation"`
	Quantity      int        `json:"quantity"`
	ExpiryDate    *time.Time `json:"expiryDate,omitempty"`
}

// BatchMergedData is the payload for merge events
type BatchMergedData struct {
	TargetBatchID  string     `json:"targetBatchId"`
	SourceBatchID  string     `json:"sourceBatchId,omitempty"`
	ProductID      string     `json:"productId"`
	ShelfLocation  string     `json:"shelfLocation"`
	MergedQuantity int        `json:"mergedQuantity"`
	TotalQuantity  int        `json:"totalQuantity"`
	ExpiryDate     *time.Time `json:"expiryDate,omitempty"`
}

// WarehouseSortedData is the payload for the global sort event
type WarehouseSortedData struct {
	Moved    int  `json:"moved"`
	Merged   int  `json:"merged"`
	Unplaced int  `json:"unplaced"`
	Global   bool `json:"global"`
}

// AlertRaisedData is the payload for inventory health alerts
type AlertRaisedData struct {
	Rule      string `json:"rule"`
	ProductID string `json:"productId,omitempty"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
}
