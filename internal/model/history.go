package model

import "time"

// StockEventHistory is the consumer-side audit trail of applied stock
// events, written in the same transaction as the projection delta.
type StockEventHistory struct {
	ID               int64     `db:"id" json:"id"`
	EventID          string    `db:"event_id" json:"event_id"`
	SKU              string    `db:"sku" json:"sku"`
	ProductID        int64     `db:"product_id" json:"product_id"`
	PreviousQuantity int       `db:"previous_quantity" json:"previous_quantity"`
	NewQuantity      int       `db:"new_quantity" json:"new_quantity"`
	ChangeAmount     int       `db:"change_amount" json:"change_amount"`
	Reason           string    `db:"reason" json:"reason"`
	OccurredAt       time.Time `db:"occurred_at" json:"occurred_at"`
	RecordedAt       time.Time `db:"recorded_at" json:"recorded_at"`
}
