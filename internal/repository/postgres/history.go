package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/inventory-api/internal/model"
	"github.com/jwalitptl/inventory-api/internal/repository"
)

type eventHistoryRepository struct {
	BaseRepository
}

func NewEventHistoryRepository(base BaseRepository) repository.EventHistoryRepository {
	return &eventHistoryRepository{base}
}

func (r *eventHistoryRepository) Insert(ctx context.Context, tx *sqlx.Tx, entry *model.StockEventHistory) error {
	entry.RecordedAt = time.Now()
	row := tx.QueryRowxContext(ctx, `
		INSERT INTO stock_event_history (
			event_id, sku, product_id, previous_quantity, new_quantity,
			change_amount, reason, occurred_at, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, entry.EventID, entry.SKU, entry.ProductID, entry.PreviousQuantity,
		entry.NewQuantity, entry.ChangeAmount, entry.Reason, entry.OccurredAt, entry.RecordedAt)
	if err := row.Scan(&entry.ID); err != nil {
		return fmt.Errorf("failed to record event history: %w", err)
	}
	return nil
}

func (r *eventHistoryRepository) ListRecent(ctx context.Context, limit int) ([]*model.StockEventHistory, error) {
	var entries []*model.StockEventHistory
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, event_id, sku, product_id, previous_quantity, new_quantity,
		       change_amount, reason, occurred_at, recorded_at
		FROM stock_event_history
		ORDER BY recorded_at DESC
		LIMIT $1
	`, limit)
	return entries, err
}
