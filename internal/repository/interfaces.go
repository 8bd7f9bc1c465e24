package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/inventory-api/internal/model"
)

// All repository interfaces in one file
type (
	// OutboxRepository is the durable staging table for domain events.
	// Stage must run inside the caller's transaction; every other mutation
	// is a single conditional statement so concurrent publishers and the
	// admin recovery operations stay race-free without application locks.
	OutboxRepository interface {
		Stage(ctx context.Context, tx *sqlx.Tx, rec *model.OutboxRecord) error
		FindClaimable(ctx context.Context, now time.Time, limit int) ([]*model.OutboxRecord, error)
		// Claim atomically moves one eligible record to IN_PROGRESS and
		// returns false when another worker won the race.
		Claim(ctx context.Context, id int64, now time.Time) (bool, error)
		MarkProcessed(ctx context.Context, id int64, now time.Time) error
		MarkFailed(ctx context.Context, id int64, retryCount int, nextAttemptAt time.Time, lastError string) error
		MarkDead(ctx context.Context, id int64, retryCount int, lastError string) error
		FindDeadIDs(ctx context.Context, limit int) ([]int64, error)
		FindStaleInProgressIDs(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
		ResetToPending(ctx context.Context, ids []int64, nextAttemptAt time.Time) (int64, error)
		CountByStatus(ctx context.Context, status model.OutboxStatus) (int64, error)
		Get(ctx context.Context, id int64) (*model.OutboxRecord, error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// InboxRepository records consumed event IDs. Register returns false
	// on a duplicate (unique violation), true on first sight.
	InboxRepository interface {
		Register(ctx context.Context, tx *sqlx.Tx, eventID, topic string) (bool, error)
	}

	ProductRepository interface {
		Create(ctx context.Context, tx *sqlx.Tx, product *model.Product) error
		Update(ctx context.Context, tx *sqlx.Tx, product *model.Product) error
		Delete(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error)
		Get(ctx context.Context, id int64) (*model.Product, error)
		GetBySKU(ctx context.Context, sku string) (*model.Product, error)
		ExistsBySKU(ctx context.Context, sku string) (bool, error)
		List(ctx context.Context, limit, offset int) ([]*model.Product, error)
	}

	// StockRepository also serves as the read-only aggregation source for
	// projection rebuilds (count, sum, low-stock and out-of-stock counts).
	StockRepository interface {
		Create(ctx context.Context, tx *sqlx.Tx, stock *model.Stock) error
		GetBySKU(ctx context.Context, sku string) (*model.Stock, error)
		GetBySKUTx(ctx context.Context, tx *sqlx.Tx, sku string) (*model.Stock, error)
		ExistsBySKU(ctx context.Context, sku string) (bool, error)
		List(ctx context.Context, limit, offset int) ([]*model.Stock, error)
		// UpdateQuantity is conditional on the version the caller read;
		// it returns false when a concurrent writer got there first.
		UpdateQuantity(ctx context.Context, tx *sqlx.Tx, stock *model.Stock) (bool, error)
		UpdateThreshold(ctx context.Context, tx *sqlx.Tx, sku string, threshold int) (bool, error)
		DeleteBySKU(ctx context.Context, tx *sqlx.Tx, sku string) (bool, error)

		Count(ctx context.Context) (int64, error)
		SumQuantity(ctx context.Context) (int64, error)
		CountLowStock(ctx context.Context) (int64, error)
		CountOutOfStock(ctx context.Context) (int64, error)
		FindLowStock(ctx context.Context, limit int) ([]*model.Stock, error)
		FindOutOfStock(ctx context.Context, limit int) ([]*model.Stock, error)
	}

	ProjectionRepository interface {
		Get(ctx context.Context) (*model.InventorySummary, error)
		GetForUpdate(ctx context.Context, tx *sqlx.Tx) (*model.InventorySummary, error)
		Upsert(ctx context.Context, tx *sqlx.Tx, summary *model.InventorySummary) error
		UpsertNoTx(ctx context.Context, summary *model.InventorySummary) error
		Delete(ctx context.Context) error
	}

	EventHistoryRepository interface {
		Insert(ctx context.Context, tx *sqlx.Tx, entry *model.StockEventHistory) error
		ListRecent(ctx context.Context, limit int) ([]*model.StockEventHistory, error)
	}
)
