package inventory

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/inventory-api/internal/model"
	"github.com/jwalitptl/inventory-api/internal/repository"
	eventService "github.com/jwalitptl/inventory-api/internal/service/event"
	apperrors "github.com/jwalitptl/inventory-api/pkg/errors"
	"github.com/jwalitptl/inventory-api/pkg/event"
	"github.com/jwalitptl/inventory-api/pkg/logger"
	"github.com/jwalitptl/inventory-api/pkg/retry"
)

const (
	// A stock mutation re-runs up to this many times when it loses an
	// optimistic concurrency race against another writer.
	conflictRetries    = 3
	conflictRetryDelay = 50 * time.Millisecond

	cacheTTL     = 30 * time.Second
	cacheCleanup = time.Minute
)

type postgresTx interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

// Service owns stock levels. Every quantity change stages a StockUpdated
// event in the same transaction as the row update so downstream readers
// observe each mutation exactly once in effect.
type Service struct {
	base      postgresTx
	stockRepo repository.StockRepository
	events    *eventService.Service
	cache     *gocache.Cache
	logger    *logger.Logger
}

func NewService(base postgresTx, stockRepo repository.StockRepository, events *eventService.Service, log *logger.Logger) *Service {
	return &Service{
		base:      base,
		stockRepo: stockRepo,
		events:    events,
		cache:     gocache.New(cacheTTL, cacheCleanup),
		logger:    log,
	}
}

// CreateStock provisions a stock row for a new product inside the
// caller's transaction (the product.created consumer). Existing rows are
// returned as-is so replays stay harmless even without inbox gating.
func (s *Service) CreateStock(ctx context.Context, tx *sqlx.Tx, productID int64, sku string, initialQuantity int) (*model.Stock, error) {
	exists, err := s.stockRepo.ExistsBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Warn("stock already exists", "sku", sku)
		return s.stockRepo.GetBySKU(ctx, sku)
	}

	stock := &model.Stock{
		ProductID: productID,
		SKU:       sku,
		Quantity:  initialQuantity,
	}
	if err := s.stockRepo.Create(ctx, tx, stock); err != nil {
		return nil, err
	}

	if err := s.stageStockEvent(ctx, tx, stock, 0, initialQuantity, event.ReasonInitial); err != nil {
		return nil, err
	}

	s.logger.Info("stock created", "sku", sku, "quantity", initialQuantity)
	return stock, nil
}

// RemoveStock deletes the stock row inside the caller's transaction (the
// product.deleted consumer).
func (s *Service) RemoveStock(ctx context.Context, tx *sqlx.Tx, sku string) error {
	deleted, err := s.stockRepo.DeleteBySKU(ctx, tx, sku)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.NotFound("stock", nil)
	}
	s.cache.Delete(sku)
	s.logger.Info("stock removed", "sku", sku)
	return nil
}

// GetBySKU serves reads through a short-lived cache.
func (s *Service) GetBySKU(ctx context.Context, sku string) (*model.Stock, error) {
	if cached, ok := s.cache.Get(sku); ok {
		return cached.(*model.Stock), nil
	}
	stock, err := s.stockRepo.GetBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	s.cache.Set(sku, stock, gocache.DefaultExpiration)
	return stock, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*model.Stock, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.stockRepo.List(ctx, limit, offset)
}

// Restock adds quantity arriving from a supplier.
func (s *Service) Restock(ctx context.Context, sku string, quantity int) (*model.Stock, error) {
	return s.mutate(ctx, sku, event.ReasonRestock, func(current int) (int, error) {
		return current + quantity, nil
	})
}

// Sell deducts quantity for a sale, guarding against overselling.
func (s *Service) Sell(ctx context.Context, sku string, quantity int) (*model.Stock, error) {
	return s.mutate(ctx, sku, event.ReasonSale, func(current int) (int, error) {
		if current < quantity {
			return 0, apperrors.InsufficientStock(sku, quantity, current)
		}
		return current - quantity, nil
	})
}

// Adjust sets the quantity to an exact value after a physical count.
func (s *Service) Adjust(ctx context.Context, sku string, quantity int) (*model.Stock, error) {
	return s.mutate(ctx, sku, event.ReasonAdjustment, func(int) (int, error) {
		return quantity, nil
	})
}

// Return adds quantity coming back from a customer return.
func (s *Service) Return(ctx context.Context, sku string, quantity int) (*model.Stock, error) {
	return s.mutate(ctx, sku, event.ReasonReturn, func(current int) (int, error) {
		return current + quantity, nil
	})
}

// UpdateThreshold changes the low-stock threshold. The summary projection
// is not adjusted incrementally for threshold changes; operators rebuild
// it via the reporting API when thresholds move.
func (s *Service) UpdateThreshold(ctx context.Context, sku string, threshold int) error {
	if threshold < 0 {
		return apperrors.BadRequest("threshold must not be negative", nil)
	}
	err := s.base.WithTx(ctx, func(tx *sqlx.Tx) error {
		updated, err := s.stockRepo.UpdateThreshold(ctx, tx, sku, threshold)
		if err != nil {
			return err
		}
		if !updated {
			return apperrors.NotFound("stock", nil)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.Delete(sku)
	s.logger.Info("stock threshold updated", "sku", sku, "threshold", threshold)
	return nil
}

// mutate re-reads, recomputes and conditionally writes the quantity,
// retrying the whole unit of work on an optimistic concurrency conflict.
func (s *Service) mutate(ctx context.Context, sku string, reason event.StockChangeReason, compute func(current int) (int, error)) (*model.Stock, error) {
	var result *model.Stock

	err := retry.DoIf(conflictRetries, conflictRetryDelay, apperrors.IsConflict, func() error {
		return s.base.WithTx(ctx, func(tx *sqlx.Tx) error {
			stock, err := s.stockRepo.GetBySKUTx(ctx, tx, sku)
			if err != nil {
				return err
			}

			previous := stock.Quantity
			next, err := compute(previous)
			if err != nil {
				return err
			}

			stock.Quantity = next
			updated, err := s.stockRepo.UpdateQuantity(ctx, tx, stock)
			if err != nil {
				return err
			}
			if !updated {
				return apperrors.Conflict("stock " + sku)
			}

			if err := s.stageStockEvent(ctx, tx, stock, previous, next, reason); err != nil {
				return err
			}
			result = stock
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(sku)
	s.logger.Info("stock updated",
		"sku", sku, "reason", string(reason), "quantity", result.Quantity)
	return result, nil
}

func (s *Service) stageStockEvent(ctx context.Context, tx *sqlx.Tx, stock *model.Stock, previous, next int, reason event.StockChangeReason) error {
	evt := event.StockUpdated{
		Envelope:         event.NewEnvelope(event.TypeStockUpdated),
		ProductID:        stock.ProductID,
		SKU:              stock.SKU,
		PreviousQuantity: previous,
		NewQuantity:      next,
		MinThreshold:     stock.MinThreshold,
		ChangeAmount:     next - previous,
		Reason:           reason,
	}
	return s.events.Stage(ctx, tx, event.TopicStockUpdated, stock.SKU, evt)
}
