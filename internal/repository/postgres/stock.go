package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/inventory-api/internal/model"
	"github.com/jwalitptl/inventory-api/internal/repository"
	apperrors "github.com/jwalitptl/inventory-api/pkg/errors"
)

type stockRepository struct {
	BaseRepository
}

func NewStockRepository(base BaseRepository) repository.StockRepository {
	return &stockRepository{base}
}

const stockColumns = `id, product_id, sku, quantity, min_threshold, version, created_at, updated_at`

func (r *stockRepository) Create(ctx context.Context, tx *sqlx.Tx, stock *model.Stock) error {
	if stock.MinThreshold <= 0 {
		stock.MinThreshold = model.DefaultMinThreshold
	}
	now := time.Now()
	stock.CreatedAt = now
	stock.UpdatedAt = now
	stock.Version = 1

	row := tx.QueryRowxContext(ctx, `
		INSERT INTO stock (product_id, sku, quantity, min_threshold, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, stock.ProductID, stock.SKU, stock.Quantity, stock.MinThreshold, stock.Version, stock.CreatedAt, stock.UpdatedAt)
	if err := row.Scan(&stock.ID); err != nil {
		return fmt.Errorf("failed to create stock for %s: %w", stock.SKU, err)
	}
	return nil
}

func (r *stockRepository) GetBySKU(ctx context.Context, sku string) (*model.Stock, error) {
	var stock model.Stock
	err := r.db.GetContext(ctx, &stock,
		`SELECT `+stockColumns+` FROM stock WHERE sku = $1`, sku)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("stock", err)
	}
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *stockRepository) GetBySKUTx(ctx context.Context, tx *sqlx.Tx, sku string) (*model.Stock, error) {
	var stock model.Stock
	err := tx.GetContext(ctx, &stock,
		`SELECT `+stockColumns+` FROM stock WHERE sku = $1`, sku)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("stock", err)
	}
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *stockRepository) ExistsBySKU(ctx context.Context, sku string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM stock WHERE sku = $1)`, sku)
	return exists, err
}

func (r *stockRepository) List(ctx context.Context, limit, offset int) ([]*model.Stock, error) {
	var stocks []*model.Stock
	err := r.db.SelectContext(ctx, &stocks,
		`SELECT `+stockColumns+` FROM stock ORDER BY sku ASC LIMIT $1 OFFSET $2`,
		limit, offset)
	return stocks, err
}

// UpdateQuantity bumps the version and is conditional on the version the
// caller read. Zero rows affected means a concurrent writer won.
func (r *stockRepository) UpdateQuantity(ctx context.Context, tx *sqlx.Tx, stock *model.Stock) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE stock
		SET quantity = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
	`, stock.Quantity, time.Now(), stock.ID, stock.Version)
	if err != nil {
		return false, fmt.Errorf("failed to update stock %s: %w", stock.SKU, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 1 {
		stock.Version++
	}
	return affected == 1, nil
}

func (r *stockRepository) UpdateThreshold(ctx context.Context, tx *sqlx.Tx, sku string, threshold int) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE stock
		SET min_threshold = $1, version = version + 1, updated_at = $2
		WHERE sku = $3
	`, threshold, time.Now(), sku)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected == 1, err
}

func (r *stockRepository) DeleteBySKU(ctx context.Context, tx *sqlx.Tx, sku string) (bool, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM stock WHERE sku = $1`, sku)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected == 1, err
}

func (r *stockRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM stock`)
	return count, err
}

func (r *stockRepository) SumQuantity(ctx context.Context) (int64, error) {
	var sum int64
	err := r.db.GetContext(ctx, &sum, `SELECT COALESCE(SUM(quantity), 0) FROM stock`)
	return sum, err
}

func (r *stockRepository) CountLowStock(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM stock WHERE quantity <= min_threshold`)
	return count, err
}

func (r *stockRepository) CountOutOfStock(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM stock WHERE quantity = 0`)
	return count, err
}

func (r *stockRepository) FindLowStock(ctx context.Context, limit int) ([]*model.Stock, error) {
	var stocks []*model.Stock
	err := r.db.SelectContext(ctx, &stocks,
		`SELECT `+stockColumns+` FROM stock WHERE quantity <= min_threshold ORDER BY quantity ASC LIMIT $1`,
		limit)
	return stocks, err
}

func (r *stockRepository) FindOutOfStock(ctx context.Context, limit int) ([]*model.Stock, error) {
	var stocks []*model.Stock
	err := r.db.SelectContext(ctx, &stocks,
		`SELECT `+stockColumns+` FROM stock WHERE quantity = 0 ORDER BY sku ASC LIMIT $1`,
		limit)
	return stocks, err
}
