package report

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/inventory-api/internal/model"
	apperrors "github.com/jwalitptl/inventory-api/pkg/errors"
	"github.com/jwalitptl/inventory-api/pkg/event"
	"github.com/jwalitptl/inventory-api/pkg/logger"
)

type stubProjectionRepo struct {
	summary *model.InventorySummary
	upserts int
}

func (s *stubProjectionRepo) Get(context.Context) (*model.InventorySummary, error) {
	if s.summary == nil {
		return nil, apperrors.NotFound("inventory summary", nil)
	}
	cp := *s.summary
	return &cp, nil
}

func (s *stubProjectionRepo) GetForUpdate(context.Context, *sqlx.Tx) (*model.InventorySummary, error) {
	return s.Get(context.Background())
}

func (s *stubProjectionRepo) Upsert(_ context.Context, _ *sqlx.Tx, summary *model.InventorySummary) error {
	cp := *summary
	s.summary = &cp
	s.upserts++
	return nil
}

func (s *stubProjectionRepo) UpsertNoTx(_ context.Context, summary *model.InventorySummary) error {
	return s.Upsert(context.Background(), nil, summary)
}

func (s *stubProjectionRepo) Delete(context.Context) error {
	s.summary = nil
	return nil
}

// stubStockRepo answers only the aggregate queries the projection uses.
type stubStockRepo struct {
	stocks []*model.Stock
}

func (s *stubStockRepo) Create(context.Context, *sqlx.Tx, *model.Stock) error { panic("not used") }
func (s *stubStockRepo) GetBySKU(context.Context, string) (*model.Stock, error) {
	panic("not used")
}
func (s *stubStockRepo) GetBySKUTx(context.Context, *sqlx.Tx, string) (*model.Stock, error) {
	panic("not used")
}
func (s *stubStockRepo) ExistsBySKU(context.Context, string) (bool, error) { panic("not used") }
func (s *stubStockRepo) List(context.Context, int, int) ([]*model.Stock, error) {
	panic("not used")
}
func (s *stubStockRepo) UpdateQuantity(context.Context, *sqlx.Tx, *model.Stock) (bool, error) {
	panic("not used")
}
func (s *stubStockRepo) UpdateThreshold(context.Context, *sqlx.Tx, string, int) (bool, error) {
	panic("not used")
}
func (s *stubStockRepo) DeleteBySKU(context.Context, *sqlx.Tx, string) (bool, error) {
	panic("not used")
}

func (s *stubStockRepo) Count(context.Context) (int64, error) {
	return int64(len(s.stocks)), nil
}

func (s *stubStockRepo) SumQuantity(context.Context) (int64, error) {
	var sum int64
	for _, st := range s.stocks {
		sum += int64(st.Quantity)
	}
	return sum, nil
}

func (s *stubStockRepo) CountLowStock(context.Context) (int64, error) {
	var count int64
	for _, st := range s.stocks {
		if st.LowStock() {
			count++
		}
	}
	return count, nil
}

func (s *stubStockRepo) CountOutOfStock(context.Context) (int64, error) {
	var count int64
	for _, st := range s.stocks {
		if st.Quantity == 0 {
			count++
		}
	}
	return count, nil
}

func (s *stubStockRepo) FindLowStock(_ context.Context, limit int) ([]*model.Stock, error) {
	var out []*model.Stock
	for _, st := range s.stocks {
		if st.LowStock() && len(out) < limit {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *stubStockRepo) FindOutOfStock(_ context.Context, limit int) ([]*model.Stock, error) {
	var out []*model.Stock
	for _, st := range s.stocks {
		if st.Quantity == 0 && len(out) < limit {
			out = append(out, st)
		}
	}
	return out, nil
}

type stubHistoryRepo struct {
	entries []*model.StockEventHistory
}

func (s *stubHistoryRepo) Insert(_ context.Context, _ *sqlx.Tx, entry *model.StockEventHistory) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubHistoryRepo) ListRecent(_ context.Context, limit int) ([]*model.StockEventHistory, error) {
	if len(s.entries) > limit {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

func stockEvent(prev, next, threshold int) *event.StockUpdated {
	return &event.StockUpdated{
		Envelope:         event.NewEnvelope(event.TypeStockUpdated),
		ProductID:        1,
		SKU:              "WIDGET-001",
		PreviousQuantity: prev,
		NewQuantity:      next,
		MinThreshold:     threshold,
		ChangeAmount:     next - prev,
		Reason:           event.ReasonSale,
	}
}

func newTestService(projection *stubProjectionRepo, stocks *stubStockRepo) *Service {
	return NewService(projection, stocks, &stubHistoryRepo{}, logger.Nop())
}

func TestCurrentSummaryRebuildsFromSourceWhenMissing(t *testing.T) {
	projection := &stubProjectionRepo{}
	stocks := &stubStockRepo{stocks: []*model.Stock{
		{SKU: "A", Quantity: 100, MinThreshold: 10},
		{SKU: "B", Quantity: 5, MinThreshold: 10},
		{SKU: "C", Quantity: 0, MinThreshold: 10},
	}}
	svc := newTestService(projection, stocks)

	summary, err := svc.CurrentSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.TotalProducts)
	assert.Equal(t, int64(105), summary.TotalStockUnits)
	assert.Equal(t, int64(2), summary.LowStockProducts)
	assert.Equal(t, int64(1), summary.OutOfStockProducts)
	// The rebuilt summary is persisted for subsequent reads.
	assert.NotNil(t, projection.summary)
}

func TestApplyStockDeltaAdjustsCounters(t *testing.T) {
	projection := &stubProjectionRepo{summary: &model.InventorySummary{
		ID:              model.SummaryID,
		TotalProducts:   2,
		TotalStockUnits: 50,
	}}
	stocks := &stubStockRepo{stocks: []*model.Stock{
		{SKU: "A", Quantity: 8, MinThreshold: 10},
		{SKU: "B", Quantity: 42, MinThreshold: 10},
	}}
	svc := newTestService(projection, stocks)

	// 20 -> 8 crosses the low-stock threshold downward.
	err := svc.ApplyStockDelta(context.Background(), nil, stockEvent(20, 8, 10))
	require.NoError(t, err)

	assert.Equal(t, int64(38), projection.summary.TotalStockUnits)
	assert.Equal(t, int64(1), projection.summary.LowStockProducts)
	assert.Equal(t, int64(0), projection.summary.OutOfStockProducts)
	assert.Equal(t, int64(2), projection.summary.TotalProducts)
}

func TestApplyStockDeltaTracksOutOfStockTransitions(t *testing.T) {
	projection := &stubProjectionRepo{summary: &model.InventorySummary{
		ID:               model.SummaryID,
		TotalProducts:    1,
		TotalStockUnits:  5,
		LowStockProducts: 1,
	}}
	stocks := &stubStockRepo{stocks: []*model.Stock{
		{SKU: "A", Quantity: 0, MinThreshold: 10},
	}}
	svc := newTestService(projection, stocks)

	// 5 -> 0: item was already low, now also out of stock.
	err := svc.ApplyStockDelta(context.Background(), nil, stockEvent(5, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(0), projection.summary.TotalStockUnits)
	assert.Equal(t, int64(1), projection.summary.LowStockProducts)
	assert.Equal(t, int64(1), projection.summary.OutOfStockProducts)

	// 0 -> 15: leaves both predicates.
	stocks.stocks[0].Quantity = 15
	err = svc.ApplyStockDelta(context.Background(), nil, stockEvent(0, 15, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(15), projection.summary.TotalStockUnits)
	assert.Equal(t, int64(0), projection.summary.LowStockProducts)
	assert.Equal(t, int64(0), projection.summary.OutOfStockProducts)
}

func TestApplyStockDeltaIsNotIdempotent(t *testing.T) {
	// The delta application has no memory of which events it has seen.
	// Feeding it the same event twice double-counts the change, which is
	// why the consumer must run the inbox dedup gate in the same
	// transaction before applying a delta.
	projection := &stubProjectionRepo{summary: &model.InventorySummary{
		ID:              model.SummaryID,
		TotalProducts:   2,
		TotalStockUnits: 50,
	}}
	stocks := &stubStockRepo{stocks: []*model.Stock{
		{SKU: "A", Quantity: 8, MinThreshold: 10},
		{SKU: "B", Quantity: 42, MinThreshold: 10},
	}}
	svc := newTestService(projection, stocks)

	evt := stockEvent(20, 8, 10)
	require.NoError(t, svc.ApplyStockDelta(context.Background(), nil, evt))
	assert.Equal(t, int64(38), projection.summary.TotalStockUnits)
	assert.Equal(t, int64(1), projection.summary.LowStockProducts)

	// Redelivery of the identical event drifts the projection away from
	// the true totals (38 units, one low product).
	require.NoError(t, svc.ApplyStockDelta(context.Background(), nil, evt))
	assert.Equal(t, int64(26), projection.summary.TotalStockUnits)
	assert.Equal(t, int64(2), projection.summary.LowStockProducts)
}

func TestApplyStockDeltaClampsCountersAtZero(t *testing.T) {
	// A replayed or out-of-order event must never drive a counter
	// negative.
	projection := &stubProjectionRepo{summary: &model.InventorySummary{
		ID:            model.SummaryID,
		TotalProducts: 1,
	}}
	stocks := &stubStockRepo{stocks: []*model.Stock{
		{SKU: "A", Quantity: 50, MinThreshold: 10},
	}}
	svc := newTestService(projection, stocks)

	// Leaving low-stock while the counter is already zero.
	err := svc.ApplyStockDelta(context.Background(), nil, stockEvent(5, 50, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(0), projection.summary.LowStockProducts)
	assert.Equal(t, int64(45), projection.summary.TotalStockUnits)
}

func TestApplyStockDeltaUsesDefaultThreshold(t *testing.T) {
	projection := &stubProjectionRepo{summary: &model.InventorySummary{
		ID:            model.SummaryID,
		TotalProducts: 1,
	}}
	stocks := &stubStockRepo{stocks: []*model.Stock{
		{SKU: "A", Quantity: 5},
	}}
	svc := newTestService(projection, stocks)

	// Event carries no threshold; the default of 10 applies, so 20 -> 5
	// is a low-stock entry.
	err := svc.ApplyStockDelta(context.Background(), nil, stockEvent(20, 5, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), projection.summary.LowStockProducts)
}

func TestApplyStockDeltaRebuildsWhenSummaryMissing(t *testing.T) {
	projection := &stubProjectionRepo{}
	stocks := &stubStockRepo{stocks: []*model.Stock{
		{SKU: "A", Quantity: 5, MinThreshold: 10},
	}}
	svc := newTestService(projection, stocks)

	err := svc.ApplyStockDelta(context.Background(), nil, stockEvent(10, 5, 10))
	require.NoError(t, err)

	// The rebuild derives everything from source; the delta is subsumed.
	assert.Equal(t, int64(1), projection.summary.TotalProducts)
	assert.Equal(t, int64(5), projection.summary.TotalStockUnits)
	assert.Equal(t, int64(1), projection.summary.LowStockProducts)
}

func TestRebuildReplacesDivergedSummary(t *testing.T) {
	projection := &stubProjectionRepo{summary: &model.InventorySummary{
		ID:              model.SummaryID,
		TotalProducts:   99,
		TotalStockUnits: 9999,
		UpdatedAt:       time.Now().Add(-time.Hour),
	}}
	stocks := &stubStockRepo{stocks: []*model.Stock{
		{SKU: "A", Quantity: 3, MinThreshold: 10},
	}}
	svc := newTestService(projection, stocks)

	summary, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.TotalProducts)
	assert.Equal(t, int64(3), summary.TotalStockUnits)
	assert.Equal(t, summary.TotalProducts, projection.summary.TotalProducts)
}

func TestRecordHistoryCapturesEventFields(t *testing.T) {
	history := &stubHistoryRepo{}
	svc := NewService(&stubProjectionRepo{}, &stubStockRepo{}, history, logger.Nop())

	evt := stockEvent(10, 4, 10)
	require.NoError(t, svc.RecordHistory(context.Background(), nil, evt))

	require.Len(t, history.entries, 1)
	entry := history.entries[0]
	assert.Equal(t, evt.EventID, entry.EventID)
	assert.Equal(t, "WIDGET-001", entry.SKU)
	assert.Equal(t, 10, entry.PreviousQuantity)
	assert.Equal(t, 4, entry.NewQuantity)
	assert.Equal(t, -6, entry.ChangeAmount)
	assert.Equal(t, "SALE", entry.Reason)
}
