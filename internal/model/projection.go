package model

import "time"

// SummaryID is the identity of the single inventory summary row.
const SummaryID int64 = 1

// InventorySummary is the derived aggregate maintained by the projection
// engine. Its counters must always be re-derivable from the stock table;
// incremental deltas are an optimization, not the source of truth.
type InventorySummary struct {
	ID                 int64     `db:"id" json:"id"`
	TotalProducts      int64     `db:"total_products" json:"total_products"`
	TotalStockUnits    int64     `db:"total_stock_units" json:"total_stock_units"`
	LowStockProducts   int64     `db:"low_stock_products" json:"low_stock_products"`
	OutOfStockProducts int64     `db:"out_of_stock_products" json:"out_of_stock_products"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}
