package outboxadmin

import (
	"context"
	"time"

	"github.com/jwalitptl/inventory-api/internal/model"
	"github.com/jwalitptl/inventory-api/internal/repository"
	"github.com/jwalitptl/inventory-api/pkg/logger"
)

const (
	maxLimit         = 1000
	minOlderThanSecs = 5
)

// Result reports what a recovery operation did plus the current backlog
// per non-terminal/terminal state, so an operator can assess health
// without inspecting raw rows.
type Result struct {
	Requested        int   `json:"requested"`
	Affected         int64 `json:"affected"`
	DeadEvents       int64 `json:"dead_events"`
	FailedEvents     int64 `json:"failed_events"`
	InProgressEvents int64 `json:"in_progress_events"`
}

// Service exposes the two operator-facing recovery operations. Both only
// ever move records backward to PENDING, so they are idempotent and safe
// to run concurrently with live publishers.
type Service struct {
	outboxRepo repository.OutboxRepository
	logger     *logger.Logger
}

func NewService(outboxRepo repository.OutboxRepository, log *logger.Logger) *Service {
	return &Service{outboxRepo: outboxRepo, logger: log}
}

// ReplayDead resurrects up to limit oldest DEAD records for republish.
func (s *Service) ReplayDead(ctx context.Context, limit int) (*Result, error) {
	bounded := clampLimit(limit)

	ids, err := s.outboxRepo.FindDeadIDs(ctx, bounded)
	if err != nil {
		return nil, err
	}

	var affected int64
	if len(ids) > 0 {
		affected, err = s.outboxRepo.ResetToPending(ctx, ids, time.Now())
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("replayed dead outbox events", "requested", bounded, "affected", affected)
	return s.buildResult(ctx, bounded, affected)
}

// ReconcileStaleInProgress repairs records left claimed by a publisher
// that died between claim and settle. The cutoff is clamped to at least
// 5 seconds so it cannot race with legitimately in-flight sends.
func (s *Service) ReconcileStaleInProgress(ctx context.Context, olderThanSeconds, limit int) (*Result, error) {
	bounded := clampLimit(limit)
	seconds := olderThanSeconds
	if seconds < minOlderThanSecs {
		seconds = minOlderThanSecs
	}
	cutoff := time.Now().Add(-time.Duration(seconds) * time.Second)

	ids, err := s.outboxRepo.FindStaleInProgressIDs(ctx, cutoff, bounded)
	if err != nil {
		return nil, err
	}

	var affected int64
	if len(ids) > 0 {
		affected, err = s.outboxRepo.ResetToPending(ctx, ids, time.Now())
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("reconciled stale in-progress outbox events",
		"cutoff_seconds", seconds, "requested", bounded, "affected", affected)
	return s.buildResult(ctx, bounded, affected)
}

func (s *Service) buildResult(ctx context.Context, requested int, affected int64) (*Result, error) {
	dead, err := s.outboxRepo.CountByStatus(ctx, model.OutboxStatusDead)
	if err != nil {
		return nil, err
	}
	failed, err := s.outboxRepo.CountByStatus(ctx, model.OutboxStatusFailed)
	if err != nil {
		return nil, err
	}
	inProgress, err := s.outboxRepo.CountByStatus(ctx, model.OutboxStatusInProgress)
	if err != nil {
		return nil, err
	}
	return &Result{
		Requested:        requested,
		Affected:         affected,
		DeadEvents:       dead,
		FailedEvents:     failed,
		InProgressEvents: inProgress,
	}, nil
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
