package inventory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/inventory-api/internal/model"
	eventService "github.com/jwalitptl/inventory-api/internal/service/event"
	apperrors "github.com/jwalitptl/inventory-api/pkg/errors"
	"github.com/jwalitptl/inventory-api/pkg/event"
	"github.com/jwalitptl/inventory-api/pkg/logger"
)

type fakeTx struct{}

func (fakeTx) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

// stagingOutboxRepo records staged events; everything else is unused
// here.
type stagingOutboxRepo struct {
	mu     sync.Mutex
	staged []*model.OutboxRecord
}

func (s *stagingOutboxRepo) Stage(_ context.Context, _ *sqlx.Tx, rec *model.OutboxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = append(s.staged, rec)
	return nil
}

func (s *stagingOutboxRepo) FindClaimable(context.Context, time.Time, int) ([]*model.OutboxRecord, error) {
	panic("not used")
}
func (s *stagingOutboxRepo) Claim(context.Context, int64, time.Time) (bool, error) {
	panic("not used")
}
func (s *stagingOutboxRepo) MarkProcessed(context.Context, int64, time.Time) error {
	panic("not used")
}
func (s *stagingOutboxRepo) MarkFailed(context.Context, int64, int, time.Time, string) error {
	panic("not used")
}
func (s *stagingOutboxRepo) MarkDead(context.Context, int64, int, string) error {
	panic("not used")
}
func (s *stagingOutboxRepo) FindDeadIDs(context.Context, int) ([]int64, error) { panic("not used") }
func (s *stagingOutboxRepo) FindStaleInProgressIDs(context.Context, time.Time, int) ([]int64, error) {
	panic("not used")
}
func (s *stagingOutboxRepo) ResetToPending(context.Context, []int64, time.Time) (int64, error) {
	panic("not used")
}
func (s *stagingOutboxRepo) CountByStatus(context.Context, model.OutboxStatus) (int64, error) {
	panic("not used")
}
func (s *stagingOutboxRepo) Get(context.Context, int64) (*model.OutboxRecord, error) {
	panic("not used")
}
func (s *stagingOutboxRepo) DeleteProcessedBefore(context.Context, time.Time) (int64, error) {
	panic("not used")
}

// memStockRepo enforces the same version check as the Postgres
// implementation, with an optional number of injected CAS failures.
type memStockRepo struct {
	mu            sync.Mutex
	rows          map[string]*model.Stock
	injectedFails int
}

func newMemStockRepo(rows ...*model.Stock) *memStockRepo {
	m := &memStockRepo{rows: make(map[string]*model.Stock)}
	for _, r := range rows {
		m.rows[r.SKU] = r
	}
	return m
}

func (m *memStockRepo) Create(_ context.Context, _ *sqlx.Tx, stock *model.Stock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stock.ID = int64(len(m.rows) + 1)
	cp := *stock
	m.rows[stock.SKU] = &cp
	return nil
}

func (m *memStockRepo) GetBySKU(_ context.Context, sku string) (*model.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[sku]
	if !ok {
		return nil, apperrors.NotFound("stock", nil)
	}
	cp := *row
	return &cp, nil
}

func (m *memStockRepo) GetBySKUTx(ctx context.Context, _ *sqlx.Tx, sku string) (*model.Stock, error) {
	return m.GetBySKU(ctx, sku)
}

func (m *memStockRepo) ExistsBySKU(_ context.Context, sku string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[sku]
	return ok, nil
}

func (m *memStockRepo) List(context.Context, int, int) ([]*model.Stock, error) {
	panic("not used")
}

func (m *memStockRepo) UpdateQuantity(_ context.Context, _ *sqlx.Tx, stock *model.Stock) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.injectedFails > 0 {
		m.injectedFails--
		// Simulate a concurrent writer bumping the version.
		m.rows[stock.SKU].Version++
		return false, nil
	}
	row, ok := m.rows[stock.SKU]
	if !ok || row.Version != stock.Version {
		return false, nil
	}
	row.Quantity = stock.Quantity
	row.Version++
	stock.Version = row.Version
	return true, nil
}

func (m *memStockRepo) UpdateThreshold(_ context.Context, _ *sqlx.Tx, sku string, threshold int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[sku]
	if !ok {
		return false, nil
	}
	row.MinThreshold = threshold
	return true, nil
}

func (m *memStockRepo) DeleteBySKU(_ context.Context, _ *sqlx.Tx, sku string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[sku]; !ok {
		return false, nil
	}
	delete(m.rows, sku)
	return true, nil
}

func (m *memStockRepo) Count(context.Context) (int64, error)           { panic("not used") }
func (m *memStockRepo) SumQuantity(context.Context) (int64, error)     { panic("not used") }
func (m *memStockRepo) CountLowStock(context.Context) (int64, error)   { panic("not used") }
func (m *memStockRepo) CountOutOfStock(context.Context) (int64, error) { panic("not used") }
func (m *memStockRepo) FindLowStock(context.Context, int) ([]*model.Stock, error) {
	panic("not used")
}
func (m *memStockRepo) FindOutOfStock(context.Context, int) ([]*model.Stock, error) {
	panic("not used")
}

func newTestService(repo *memStockRepo) (*Service, *stagingOutboxRepo) {
	outbox := &stagingOutboxRepo{}
	svc := NewService(fakeTx{}, repo, eventService.NewService(outbox), logger.Nop())
	return svc, outbox
}

func stagedEvent(t *testing.T, rec *model.OutboxRecord) event.StockUpdated {
	t.Helper()
	var evt event.StockUpdated
	require.NoError(t, json.Unmarshal(rec.Payload, &evt))
	return evt
}

func TestSellDeductsAndStagesEvent(t *testing.T) {
	repo := newMemStockRepo(&model.Stock{SKU: "WIDGET-001", ProductID: 1, Quantity: 10, MinThreshold: 3})
	svc, outbox := newTestService(repo)

	stock, err := svc.Sell(context.Background(), "WIDGET-001", 4)
	require.NoError(t, err)
	assert.Equal(t, 6, stock.Quantity)

	require.Len(t, outbox.staged, 1)
	rec := outbox.staged[0]
	assert.Equal(t, event.TopicStockUpdated, rec.Topic)
	assert.Equal(t, "WIDGET-001", rec.PartitionKey)

	evt := stagedEvent(t, rec)
	assert.Equal(t, 10, evt.PreviousQuantity)
	assert.Equal(t, 6, evt.NewQuantity)
	assert.Equal(t, -4, evt.ChangeAmount)
	assert.Equal(t, event.ReasonSale, evt.Reason)
}

func TestSellRejectsOverselling(t *testing.T) {
	repo := newMemStockRepo(&model.Stock{SKU: "WIDGET-001", Quantity: 3})
	svc, outbox := newTestService(repo)

	_, err := svc.Sell(context.Background(), "WIDGET-001", 5)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrInsufficientStock, appErr.Code)

	// Nothing committed, nothing staged.
	current, err := repo.GetBySKU(context.Background(), "WIDGET-001")
	require.NoError(t, err)
	assert.Equal(t, 3, current.Quantity)
	assert.Empty(t, outbox.staged)
}

func TestMutationRetriesOptimisticConflict(t *testing.T) {
	repo := newMemStockRepo(&model.Stock{SKU: "WIDGET-001", Quantity: 10})
	repo.injectedFails = 1
	svc, outbox := newTestService(repo)

	stock, err := svc.Restock(context.Background(), "WIDGET-001", 5)
	require.NoError(t, err)
	assert.Equal(t, 15, stock.Quantity)
	// The losing attempt staged nothing; only the winning one did.
	assert.Len(t, outbox.staged, 1)
}

func TestMutationGivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := newMemStockRepo(&model.Stock{SKU: "WIDGET-001", Quantity: 10})
	repo.injectedFails = 10
	svc, _ := newTestService(repo)

	_, err := svc.Restock(context.Background(), "WIDGET-001", 5)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestCreateStockIsIdempotent(t *testing.T) {
	repo := newMemStockRepo(&model.Stock{SKU: "WIDGET-001", Quantity: 7})
	svc, outbox := newTestService(repo)

	stock, err := svc.CreateStock(context.Background(), nil, 1, "WIDGET-001", 99)
	require.NoError(t, err)

	// The existing row wins; no second initial event is staged.
	assert.Equal(t, 7, stock.Quantity)
	assert.Empty(t, outbox.staged)
}

func TestCreateStockStagesInitialEvent(t *testing.T) {
	repo := newMemStockRepo()
	svc, outbox := newTestService(repo)

	stock, err := svc.CreateStock(context.Background(), nil, 42, "WIDGET-002", 25)
	require.NoError(t, err)
	assert.Equal(t, 25, stock.Quantity)

	require.Len(t, outbox.staged, 1)
	evt := stagedEvent(t, outbox.staged[0])
	assert.Equal(t, 0, evt.PreviousQuantity)
	assert.Equal(t, 25, evt.NewQuantity)
	assert.Equal(t, event.ReasonInitial, evt.Reason)
}

func TestUpdateThresholdRejectsNegative(t *testing.T) {
	repo := newMemStockRepo(&model.Stock{SKU: "WIDGET-001"})
	svc, _ := newTestService(repo)

	err := svc.UpdateThreshold(context.Background(), "WIDGET-001", -1)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestGetBySKUInvalidatedAfterMutation(t *testing.T) {
	repo := newMemStockRepo(&model.Stock{SKU: "WIDGET-001", Quantity: 10})
	svc, _ := newTestService(repo)

	first, err := svc.GetBySKU(context.Background(), "WIDGET-001")
	require.NoError(t, err)
	assert.Equal(t, 10, first.Quantity)

	_, err = svc.Restock(context.Background(), "WIDGET-001", 5)
	require.NoError(t, err)

	// The cached read was dropped by the mutation.
	second, err := svc.GetBySKU(context.Background(), "WIDGET-001")
	require.NoError(t, err)
	assert.Equal(t, 15, second.Quantity)
}
