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

type productRepository struct {
	BaseRepository
}

func NewProductRepository(base BaseRepository) repository.ProductRepository {
	return &productRepository{base}
}

const productColumns = `id, sku, name, category, price, created_at, updated_at`

func (r *productRepository) Create(ctx context.Context, tx *sqlx.Tx, product *model.Product) error {
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now

	row := tx.QueryRowxContext(ctx, `
		INSERT INTO products (sku, name, category, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, product.SKU, product.Name, product.Category, product.Price, product.CreatedAt, product.UpdatedAt)
	if err := row.Scan(&product.ID); err != nil {
		return fmt.Errorf("failed to create product %s: %w", product.SKU, err)
	}
	return nil
}

func (r *productRepository) Update(ctx context.Context, tx *sqlx.Tx, product *model.Product) error {
	product.UpdatedAt = time.Now()
	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET name = $1, category = $2, price = $3, updated_at = $4
		WHERE id = $5
	`, product.Name, product.Category, product.Price, product.UpdatedAt, product.ID)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", product.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("product", nil)
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected == 1, err
}

func (r *productRepository) Get(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	err := r.db.GetContext(ctx, &product,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("product", err)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) GetBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var product model.Product
	err := r.db.GetContext(ctx, &product,
		`SELECT `+productColumns+` FROM products WHERE sku = $1`, sku)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("product", err)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) ExistsBySKU(ctx context.Context, sku string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM products WHERE sku = $1)`, sku)
	return exists, err
}

func (r *productRepository) List(ctx context.Context, limit, offset int) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.SelectContext(ctx, &products,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	return products, err
}
