package report

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/inventory-api/internal/model"
	"github.com/jwalitptl/inventory-api/internal/repository"
	apperrors "github.com/jwalitptl/inventory-api/pkg/errors"
	"github.com/jwalitptl/inventory-api/pkg/event"
	"github.com/jwalitptl/inventory-api/pkg/logger"
)

// Service maintains the inventory summary projection and answers
// reporting queries. The projection is updated incrementally from
// StockUpdated events and rebuilt from the stock table whenever the
// summary row is missing, so a rebuild is always a valid recovery path.
type Service struct {
	projectionRepo repository.ProjectionRepository
	stockRepo      repository.StockRepository
	historyRepo    repository.EventHistoryRepository
	logger         *logger.Logger
}

func NewService(
	projectionRepo repository.ProjectionRepository,
	stockRepo repository.StockRepository,
	historyRepo repository.EventHistoryRepository,
	log *logger.Logger,
) *Service {
	return &Service{
		projectionRepo: projectionRepo,
		stockRepo:      stockRepo,
		historyRepo:    historyRepo,
		logger:         log,
	}
}

// CurrentSummary returns the summary row, rebuilding it from the stock
// table when it does not exist yet.
func (s *Service) CurrentSummary(ctx context.Context) (*model.InventorySummary, error) {
	summary, err := s.projectionRepo.Get(ctx)
	if err == nil {
		return summary, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	rebuilt, err := s.rebuildFromSource(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.projectionRepo.UpsertNoTx(ctx, rebuilt); err != nil {
		return nil, err
	}
	s.logger.Info("inventory summary rebuilt",
		"total_products", rebuilt.TotalProducts,
		"total_stock_units", rebuilt.TotalStockUnits)
	return rebuilt, nil
}

// ApplyStockDelta folds one StockUpdated event into the summary inside
// the caller's transaction. The summary row is locked for the duration
// so concurrent consumers serialize on it.
func (s *Service) ApplyStockDelta(ctx context.Context, tx *sqlx.Tx, evt *event.StockUpdated) error {
	summary, err := s.projectionRepo.GetForUpdate(ctx, tx)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			return err
		}
		// First event ever seen: derive the whole summary from source.
		// The triggering row is already committed or visible in this tx,
		// so the rebuild subsumes the delta.
		rebuilt, rerr := s.rebuildFromSource(ctx)
		if rerr != nil {
			return rerr
		}
		return s.projectionRepo.Upsert(ctx, tx, rebuilt)
	}

	threshold := evt.MinThreshold
	if threshold <= 0 {
		threshold = model.DefaultMinThreshold
	}

	wasOut := evt.PreviousQuantity == 0
	isOut := evt.NewQuantity == 0
	wasLow := evt.PreviousQuantity <= threshold
	isLow := evt.NewQuantity <= threshold

	summary.TotalStockUnits = clampInt64(summary.TotalStockUnits + int64(evt.NewQuantity) - int64(evt.PreviousQuantity))

	if wasLow != isLow {
		summary.LowStockProducts = adjustCounter(summary.LowStockProducts, isLow)
	}
	if wasOut != isOut {
		summary.OutOfStockProducts = adjustCounter(summary.OutOfStockProducts, isOut)
	}

	// Product count cannot be derived from a quantity delta; it is cheap
	// to recount and keeps the summary honest across create and delete.
	total, err := s.stockRepo.Count(ctx)
	if err != nil {
		return err
	}
	summary.TotalProducts = total
	summary.UpdatedAt = time.Now().UTC()

	return s.projectionRepo.Upsert(ctx, tx, summary)
}

// Rebuild recomputes the summary from the stock table and replaces the
// stored row. Operators call this after threshold changes or suspected
// divergence.
func (s *Service) Rebuild(ctx context.Context) (*model.InventorySummary, error) {
	rebuilt, err := s.rebuildFromSource(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.projectionRepo.UpsertNoTx(ctx, rebuilt); err != nil {
		return nil, err
	}
	s.logger.Info("inventory summary rebuilt on request")
	return rebuilt, nil
}

// Invalidate drops the summary row so the next read rebuilds it.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.projectionRepo.Delete(ctx)
}

// LowStock lists items at or below their threshold.
func (s *Service) LowStock(ctx context.Context, limit int) ([]*model.Stock, error) {
	return s.stockRepo.FindLowStock(ctx, clampListLimit(limit))
}

// OutOfStock lists items with zero quantity.
func (s *Service) OutOfStock(ctx context.Context, limit int) ([]*model.Stock, error) {
	return s.stockRepo.FindOutOfStock(ctx, clampListLimit(limit))
}

// RecentHistory returns the latest recorded stock change events.
func (s *Service) RecentHistory(ctx context.Context, limit int) ([]*model.StockEventHistory, error) {
	return s.historyRepo.ListRecent(ctx, clampListLimit(limit))
}

// RecordHistory appends one audit entry inside the caller's transaction.
func (s *Service) RecordHistory(ctx context.Context, tx *sqlx.Tx, evt *event.StockUpdated) error {
	entry := &model.StockEventHistory{
		EventID:          evt.EventID,
		SKU:              evt.SKU,
		ProductID:        evt.ProductID,
		PreviousQuantity: evt.PreviousQuantity,
		NewQuantity:      evt.NewQuantity,
		ChangeAmount:     evt.ChangeAmount,
		Reason:           string(evt.Reason),
		OccurredAt:       evt.Timestamp,
	}
	return s.historyRepo.Insert(ctx, tx, entry)
}

func (s *Service) rebuildFromSource(ctx context.Context) (*model.InventorySummary, error) {
	total, err := s.stockRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	units, err := s.stockRepo.SumQuantity(ctx)
	if err != nil {
		return nil, err
	}
	low, err := s.stockRepo.CountLowStock(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.stockRepo.CountOutOfStock(ctx)
	if err != nil {
		return nil, err
	}
	return &model.InventorySummary{
		ID:                 model.SummaryID,
		TotalProducts:      total,
		TotalStockUnits:    units,
		LowStockProducts:   low,
		OutOfStockProducts: out,
		UpdatedAt:          time.Now().UTC(),
	}, nil
}

// adjustCounter moves a predicate counter by one in the direction of the
// transition, never below zero. Out-of-order or replayed events can
// otherwise drive it negative.
func adjustCounter(current int64, entered bool) int64 {
	if entered {
		return current + 1
	}
	return clampInt64(current - 1)
}

func clampInt64(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampListLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 50
	}
	return limit
}
