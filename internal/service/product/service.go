package product

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/inventory-api/internal/model"
	"github.com/jwalitptl/inventory-api/internal/repository"
	eventService "github.com/jwalitptl/inventory-api/internal/service/event"
	apperrors "github.com/jwalitptl/inventory-api/pkg/errors"
	"github.com/jwalitptl/inventory-api/pkg/event"
	"github.com/jwalitptl/inventory-api/pkg/logger"
)

// Service owns the product catalog. Every mutation stages its lifecycle
// event in the same transaction as the row change.
type Service struct {
	base        postgresTx
	productRepo repository.ProductRepository
	events      *eventService.Service
	logger      *logger.Logger
}

type postgresTx interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func NewService(base postgresTx, productRepo repository.ProductRepository, events *eventService.Service, log *logger.Logger) *Service {
	return &Service{
		base:        base,
		productRepo: productRepo,
		events:      events,
		logger:      log,
	}
}

type CreateInput struct {
	SKU          string
	Name         string
	Category     string
	Price        float64
	InitialStock int
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Product, error) {
	exists, err := s.productRepo.ExistsBySKU(ctx, in.SKU)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.BadRequest(fmt.Sprintf("product with SKU %s already exists", in.SKU), nil)
	}

	product := &model.Product{
		SKU:      in.SKU,
		Name:     in.Name,
		Category: in.Category,
		Price:    in.Price,
	}

	err = s.base.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.productRepo.Create(ctx, tx, product); err != nil {
			return err
		}
		evt := event.ProductCreated{
			Envelope:     event.NewEnvelope(event.TypeProductCreated),
			ProductID:    product.ID,
			SKU:          product.SKU,
			Name:         product.Name,
			Category:     product.Category,
			Price:        product.Price,
			InitialStock: in.InitialStock,
		}
		return s.events.Stage(ctx, tx, event.TopicProductCreated, product.SKU, evt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product created", "sku", product.SKU, "id", product.ID)
	return product, nil
}

type UpdateInput struct {
	Name     string
	Category string
	Price    float64
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*model.Product, error) {
	product, err := s.productRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Name = in.Name
	product.Category = in.Category
	product.Price = in.Price

	err = s.base.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.productRepo.Update(ctx, tx, product); err != nil {
			return err
		}
		evt := event.ProductUpdated{
			Envelope:  event.NewEnvelope(event.TypeProductUpdated),
			ProductID: product.ID,
			SKU:       product.SKU,
			Name:      product.Name,
			Category:  product.Category,
			Price:     product.Price,
		}
		return s.events.Stage(ctx, tx, event.TopicProductUpdated, product.SKU, evt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product updated", "sku", product.SKU, "id", product.ID)
	return product, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	product, err := s.productRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.base.WithTx(ctx, func(tx *sqlx.Tx) error {
		deleted, err := s.productRepo.Delete(ctx, tx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return apperrors.NotFound("product", nil)
		}
		evt := event.ProductDeleted{
			Envelope:  event.NewEnvelope(event.TypeProductDeleted),
			ProductID: product.ID,
			SKU:       product.SKU,
		}
		return s.events.Stage(ctx, tx, event.TopicProductDeleted, product.SKU, evt)
	})
	if err != nil {
		return err
	}

	s.logger.Info("product deleted", "sku", product.SKU, "id", product.ID)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Product, error) {
	return s.productRepo.Get(ctx, id)
}

func (s *Service) GetBySKU(ctx context.Context, sku string) (*model.Product, error) {
	return s.productRepo.GetBySKU(ctx, sku)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*model.Product, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.productRepo.List(ctx, limit, offset)
}
