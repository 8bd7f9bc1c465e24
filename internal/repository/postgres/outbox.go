package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/inventory-api/internal/model"
	"github.com/jwalitptl/inventory-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Stage(ctx context.Context, tx *sqlx.Tx, rec *model.OutboxRecord) error {
	if rec == nil {
		return fmt.Errorf("outbox record cannot be nil")
	}
	if len(rec.Payload) == 0 {
		return fmt.Errorf("outbox payload cannot be empty")
	}

	query := `
		INSERT INTO outbox_events (
			event_id, event_type, topic, partition_key, payload,
			status, retry_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
		RETURNING id
	`
	rec.Status = model.OutboxStatusPending
	rec.RetryCount = 0
	rec.CreatedAt = time.Now()

	row := tx.QueryRowxContext(ctx, query,
		rec.EventID,
		rec.EventType,
		rec.Topic,
		rec.PartitionKey,
		rec.Payload,
		rec.Status,
		rec.CreatedAt,
	)
	if err := row.Scan(&rec.ID); err != nil {
		return fmt.Errorf("failed to stage outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) FindClaimable(ctx context.Context, now time.Time, limit int) ([]*model.OutboxRecord, error) {
	query := `
		SELECT id, event_id, event_type, topic, partition_key, payload,
		       status, retry_count, next_attempt_at, claimed_at, last_error,
		       created_at, processed_at
		FROM outbox_events
		WHERE status = $1
		   OR (status = $2 AND (next_attempt_at IS NULL OR next_attempt_at <= $3))
		ORDER BY created_at ASC
		LIMIT $4
	`
	var records []*model.OutboxRecord
	err := r.db.SelectContext(ctx, &records, query,
		model.OutboxStatusPending, model.OutboxStatusFailed, now, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return records, err
}

// Claim is the sole concurrency-safety mechanism between publisher
// instances: a single conditional UPDATE, not a read-then-write.
func (r *outboxRepository) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := `
		UPDATE outbox_events
		SET status = $1, claimed_at = $2
		WHERE id = $3
		  AND (status = $4
		       OR (status = $5 AND (next_attempt_at IS NULL OR next_attempt_at <= $2)))
	`
	result, err := r.db.ExecContext(ctx, query,
		model.OutboxStatusInProgress, now, id,
		model.OutboxStatusPending, model.OutboxStatusFailed)
	if err != nil {
		return false, fmt.Errorf("failed to claim outbox event %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id int64, now time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = $1, processed_at = $2, claimed_at = NULL, last_error = NULL
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, model.OutboxStatusProcessed, now, id)
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id int64, retryCount int, nextAttemptAt time.Time, lastError string) error {
	query := `
		UPDATE outbox_events
		SET status = $1, retry_count = $2, next_attempt_at = $3,
		    claimed_at = NULL, last_error = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query,
		model.OutboxStatusFailed, retryCount, nextAttemptAt, lastError, id)
	return err
}

func (r *outboxRepository) MarkDead(ctx context.Context, id int64, retryCount int, lastError string) error {
	query := `
		UPDATE outbox_events
		SET status = $1, retry_count = $2, claimed_at = NULL, last_error = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query,
		model.OutboxStatusDead, retryCount, lastError, id)
	return err
}

func (r *outboxRepository) FindDeadIDs(ctx context.Context, limit int) ([]int64, error) {
	query := `
		SELECT id FROM outbox_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, query, model.OutboxStatusDead, limit)
	return ids, err
}

func (r *outboxRepository) FindStaleInProgressIDs(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	query := `
		SELECT id FROM outbox_events
		WHERE status = $1 AND claimed_at < $2
		ORDER BY claimed_at ASC
		LIMIT $3
	`
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, query, model.OutboxStatusInProgress, cutoff, limit)
	return ids, err
}

// ResetToPending only ever moves records backward: the status guard means
// a record a publisher finished in the meantime is left alone.
func (r *outboxRepository) ResetToPending(ctx context.Context, ids []int64, nextAttemptAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE outbox_events
		SET status = $1, retry_count = 0, next_attempt_at = $2,
		    claimed_at = NULL, last_error = NULL
		WHERE id = ANY($3) AND status IN ($4, $5)
	`
	result, err := r.db.ExecContext(ctx, query,
		model.OutboxStatusPending, nextAttemptAt, pq.Array(ids),
		model.OutboxStatusDead, model.OutboxStatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("failed to reset outbox events: %w", err)
	}
	return result.RowsAffected()
}

func (r *outboxRepository) CountByStatus(ctx context.Context, status model.OutboxStatus) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM outbox_events WHERE status = $1`, status)
	return count, err
}

func (r *outboxRepository) Get(ctx context.Context, id int64) (*model.OutboxRecord, error) {
	var rec model.OutboxRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT id, event_id, event_type, topic, partition_key, payload,
		       status, retry_count, next_attempt_at, claimed_at, last_error,
		       created_at, processed_at
		FROM outbox_events WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM outbox_events
		WHERE status = $1 AND processed_at < $2
	`, model.OutboxStatusProcessed, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}
