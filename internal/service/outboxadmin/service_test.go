package outboxadmin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/inventory-api/internal/model"
	"github.com/jwalitptl/inventory-api/pkg/logger"
)

type stubOutboxRepo struct {
	mu      sync.Mutex
	records map[int64]*model.OutboxRecord
}

func newStubOutboxRepo() *stubOutboxRepo {
	return &stubOutboxRepo{records: make(map[int64]*model.OutboxRecord)}
}

func (s *stubOutboxRepo) put(id int64, status model.OutboxStatus, claimedAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = &model.OutboxRecord{
		ID: id, EventID: "evt", Status: status,
		RetryCount: 5, ClaimedAt: claimedAt,
	}
}

func (s *stubOutboxRepo) status(id int64) model.OutboxStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id].Status
}

func (s *stubOutboxRepo) Stage(context.Context, *sqlx.Tx, *model.OutboxRecord) error {
	panic("not used")
}

func (s *stubOutboxRepo) FindClaimable(context.Context, time.Time, int) ([]*model.OutboxRecord, error) {
	panic("not used")
}

func (s *stubOutboxRepo) Claim(context.Context, int64, time.Time) (bool, error) {
	panic("not used")
}

func (s *stubOutboxRepo) MarkProcessed(context.Context, int64, time.Time) error {
	panic("not used")
}

func (s *stubOutboxRepo) MarkFailed(context.Context, int64, int, time.Time, string) error {
	panic("not used")
}

func (s *stubOutboxRepo) MarkDead(context.Context, int64, int, string) error {
	panic("not used")
}

func (s *stubOutboxRepo) FindDeadIDs(_ context.Context, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, rec := range s.records {
		if rec.Status == model.OutboxStatusDead && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *stubOutboxRepo) FindStaleInProgressIDs(_ context.Context, cutoff time.Time, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, rec := range s.records {
		if rec.Status == model.OutboxStatusInProgress &&
			rec.ClaimedAt != nil && rec.ClaimedAt.Before(cutoff) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *stubOutboxRepo) ResetToPending(_ context.Context, ids []int64, nextAttemptAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for _, id := range ids {
		rec := s.records[id]
		if rec.Status != model.OutboxStatusDead && rec.Status != model.OutboxStatusInProgress {
			continue
		}
		rec.Status = model.OutboxStatusPending
		rec.RetryCount = 0
		rec.NextAttemptAt = &nextAttemptAt
		rec.ClaimedAt = nil
		affected++
	}
	return affected, nil
}

func (s *stubOutboxRepo) CountByStatus(_ context.Context, status model.OutboxStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, rec := range s.records {
		if rec.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *stubOutboxRepo) Get(context.Context, int64) (*model.OutboxRecord, error) {
	panic("not used")
}

func (s *stubOutboxRepo) DeleteProcessedBefore(context.Context, time.Time) (int64, error) {
	panic("not used")
}

func TestReplayDeadResurrectsDeadEvents(t *testing.T) {
	repo := newStubOutboxRepo()
	repo.put(1, model.OutboxStatusDead, nil)
	repo.put(2, model.OutboxStatusDead, nil)
	repo.put(3, model.OutboxStatusProcessed, nil)

	svc := NewService(repo, logger.Nop())
	result, err := svc.ReplayDead(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Affected)
	assert.Equal(t, int64(0), result.DeadEvents)
	assert.Equal(t, model.OutboxStatusPending, repo.status(1))
	assert.Equal(t, model.OutboxStatusPending, repo.status(2))
	assert.Equal(t, model.OutboxStatusProcessed, repo.status(3))
}

func TestReplayDeadClampsLimit(t *testing.T) {
	repo := newStubOutboxRepo()
	svc := NewService(repo, logger.Nop())

	result, err := svc.ReplayDead(context.Background(), -5)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Requested)

	result, err = svc.ReplayDead(context.Background(), 99999)
	require.NoError(t, err)
	assert.Equal(t, 1000, result.Requested)
}

func TestReconcileOnlyTouchesStaleClaims(t *testing.T) {
	repo := newStubOutboxRepo()
	staleClaim := time.Now().Add(-10 * time.Minute)
	freshClaim := time.Now().Add(-time.Second)
	repo.put(1, model.OutboxStatusInProgress, &staleClaim)
	repo.put(2, model.OutboxStatusInProgress, &freshClaim)

	svc := NewService(repo, logger.Nop())
	result, err := svc.ReconcileStaleInProgress(context.Background(), 120, 500)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Affected)
	assert.Equal(t, model.OutboxStatusPending, repo.status(1))
	// A claim inside the cutoff window belongs to a live publisher.
	assert.Equal(t, model.OutboxStatusInProgress, repo.status(2))
	assert.Equal(t, int64(1), result.InProgressEvents)
}

func TestReconcileClampsCutoffSeconds(t *testing.T) {
	repo := newStubOutboxRepo()
	// Claimed 3 seconds ago. Even with olderThanSeconds=0 the clamp to 5s
	// keeps this claim untouched.
	recent := time.Now().Add(-3 * time.Second)
	repo.put(1, model.OutboxStatusInProgress, &recent)

	svc := NewService(repo, logger.Nop())
	result, err := svc.ReconcileStaleInProgress(context.Background(), 0, 500)
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Affected)
	assert.Equal(t, model.OutboxStatusInProgress, repo.status(1))
}
