package event

import (
	"time"

	"github.com/google/uuid"
)

// SupportedContractVersion is the only envelope version this deployment
// understands. Consumers hard-reject anything else.
const SupportedContractVersion = 1

// Type discriminates the concrete event carried by a payload.
type Type string

const (
	TypeProductCreated Type = "PRODUCT_CREATED"
	TypeProductUpdated Type = "PRODUCT_UPDATED"
	TypeProductDeleted Type = "PRODUCT_DELETED"
	TypeStockUpdated   Type = "STOCK_UPDATED"
)

// Kafka topics and consumer groups shared by all services.
const (
	TopicProductCreated = "inventory.product.created"
	TopicProductUpdated = "inventory.product.updated"
	TopicProductDeleted = "inventory.product.deleted"
	TopicStockUpdated   = "inventory.stock.updated"

	GroupInventoryService = "inventory-service-group"
	GroupReportingService = "reporting-service-group"
)

// Envelope carries the cross-cutting fields every domain event must have:
// an idempotency key, a timestamp and a contract version.
type Envelope struct {
	EventID         string    `json:"eventId"`
	Timestamp       time.Time `json:"timestamp"`
	ContractVersion int       `json:"contractVersion"`
	EventType       Type      `json:"eventType"`
}

// Meta lets any concrete event expose its envelope.
func (e Envelope) Meta() Envelope { return e }

// Event is any payload carrying a standard envelope.
type Event interface {
	Meta() Envelope
}

// NewEnvelope builds an envelope with a fresh event ID for the given type.
func NewEnvelope(t Type) Envelope {
	return Envelope{
		EventID:         uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		ContractVersion: SupportedContractVersion,
		EventType:       t,
	}
}

// StockChangeReason explains why a stock quantity changed.
type StockChangeReason string

const (
	ReasonSale       StockChangeReason = "SALE"
	ReasonRestock    StockChangeReason = "RESTOCK"
	ReasonAdjustment StockChangeReason = "ADJUSTMENT"
	ReasonReturn     StockChangeReason = "RETURN"
	ReasonInitial    StockChangeReason = "INITIAL"
)

// ProductCreated is published to inventory.product.created when a new
// product is registered. The inventory consumer auto-creates a stock row.
type ProductCreated struct {
	Envelope
	ProductID    int64   `json:"productId"`
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	InitialStock int     `json:"initialStock"`
}

// ProductUpdated is published to inventory.product.updated with the
// updated catalog fields.
type ProductUpdated struct {
	Envelope
	ProductID int64   `json:"productId"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
}

// ProductDeleted is published to inventory.product.deleted. The inventory
// consumer removes the corresponding stock row.
type ProductDeleted struct {
	Envelope
	ProductID int64  `json:"productId"`
	SKU       string `json:"sku"`
}

// StockUpdated is published to inventory.stock.updated on every quantity
// change. It carries both the previous and new quantity so consumers can
// derive deltas without assuming monotonic arrival.
type StockUpdated struct {
	Envelope
	ProductID        int64             `json:"productId"`
	SKU              string            `json:"sku"`
	PreviousQuantity int               `json:"previousQuantity"`
	NewQuantity      int               `json:"newQuantity"`
	MinThreshold     int               `json:"minThreshold"`
	ChangeAmount     int               `json:"changeAmount"`
	Reason           StockChangeReason `json:"reason"`
}
