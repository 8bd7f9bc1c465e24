package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/inventory-api/internal/model"
	"github.com/jwalitptl/inventory-api/internal/repository"
	apperrors "github.com/jwalitptl/inventory-api/pkg/errors"
)

type projectionRepository struct {
	BaseRepository
}

func NewProjectionRepository(base BaseRepository) repository.ProjectionRepository {
	return &projectionRepository{base}
}

const summaryColumns = `id, total_products, total_stock_units, low_stock_products, out_of_stock_products, updated_at`

func (r *projectionRepository) Get(ctx context.Context) (*model.InventorySummary, error) {
	var summary model.InventorySummary
	err := r.db.GetContext(ctx, &summary,
		`SELECT `+summaryColumns+` FROM inventory_summary WHERE id = $1`, model.SummaryID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("inventory summary", err)
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetForUpdate locks the summary row for the duration of the caller's
// transaction so concurrent deltas serialize instead of losing updates.
func (r *projectionRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx) (*model.InventorySummary, error) {
	var summary model.InventorySummary
	err := tx.GetContext(ctx, &summary,
		`SELECT `+summaryColumns+` FROM inventory_summary WHERE id = $1 FOR UPDATE`, model.SummaryID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("inventory summary", err)
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

const upsertSummaryQuery = `
	INSERT INTO inventory_summary (
		id, total_products, total_stock_units, low_stock_products,
		out_of_stock_products, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		total_products = EXCLUDED.total_products,
		total_stock_units = EXCLUDED.total_stock_units,
		low_stock_products = EXCLUDED.low_stock_products,
		out_of_stock_products = EXCLUDED.out_of_stock_products,
		updated_at = EXCLUDED.updated_at
`

func (r *projectionRepository) Upsert(ctx context.Context, tx *sqlx.Tx, summary *model.InventorySummary) error {
	summary.ID = model.SummaryID
	_, err := tx.ExecContext(ctx, upsertSummaryQuery,
		summary.ID, summary.TotalProducts, summary.TotalStockUnits,
		summary.LowStockProducts, summary.OutOfStockProducts, summary.UpdatedAt)
	return err
}

func (r *projectionRepository) UpsertNoTx(ctx context.Context, summary *model.InventorySummary) error {
	summary.ID = model.SummaryID
	_, err := r.db.ExecContext(ctx, upsertSummaryQuery,
		summary.ID, summary.TotalProducts, summary.TotalStockUnits,
		summary.LowStockProducts, summary.OutOfStockProducts, summary.UpdatedAt)
	return err
}

// Delete marks the projection stale: the next read or delta rebuilds it
// from the stock table.
func (r *projectionRepository) Delete(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM inventory_summary WHERE id = $1`, model.SummaryID)
	return err
}
