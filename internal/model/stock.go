package model

import "time"

// DefaultMinThreshold is applied when a stock row carries no explicit
// low-stock threshold.
const DefaultMinThreshold = 10

// Stock is the current quantity for one SKU. Version backs optimistic
// locking: quantity updates are conditional on the version read.
type Stock struct {
	ID           int64     `db:"id" json:"id"`
	ProductID    int64     `db:"product_id" json:"product_id"`
	SKU          string    `db:"sku" json:"sku"`
	Quantity     int       `db:"quantity" json:"quantity"`
	MinThreshold int       `db:"min_threshold" json:"min_threshold"`
	Version      int64     `db:"version" json:"version"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// LowStock reports whether the quantity is at or below the threshold.
func (s *Stock) LowStock() bool {
	threshold := s.MinThreshold
	if threshold <= 0 {
		threshold = DefaultMinThreshold
	}
	return s.Quantity <= threshold
}
