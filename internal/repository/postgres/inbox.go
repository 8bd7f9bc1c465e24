package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/inventory-api/internal/repository"
)

// Postgres error code for unique_violation.
const uniqueViolation = "23505"

type inboxRepository struct {
	BaseRepository
}

func NewInboxRepository(base BaseRepository) repository.InboxRepository {
	return &inboxRepository{base}
}

// Register inserts the event ID inside the caller's transaction. A unique
// violation means another delivery already consumed this event; that is
// expected, not an error.
func (r *inboxRepository) Register(ctx context.Context, tx *sqlx.Tx, eventID, topic string) (bool, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inbox_events (event_id, topic, processed_at)
		VALUES ($1, $2, $3)
	`, eventID, topic, time.Now())
	if err == nil {
		return true, nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return false, nil
	}

	return false, err
}
