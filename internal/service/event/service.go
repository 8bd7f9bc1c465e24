package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/inventory-api/internal/model"
	"github.com/jwalitptl/inventory-api/internal/repository"
	"github.com/jwalitptl/inventory-api/pkg/event"
)

// Service stages domain events into the outbox. Stage must be called
// inside the same transaction as the business write the event describes;
// that shared commit is the whole point of the outbox.
type Service struct {
	outboxRepo repository.OutboxRepository
}

func NewService(outboxRepo repository.OutboxRepository) *Service {
	return &Service{outboxRepo: outboxRepo}
}

// Stage validates, serializes and inserts the event. A serialization
// failure is a hard error: it must abort the caller's transaction, since
// an un-stageable event would otherwise be silently lost.
func (s *Service) Stage(ctx context.Context, tx *sqlx.Tx, topic, key string, evt event.Event) error {
	env := evt.Meta()
	if err := event.Validate(evt, env.EventType, topic); err != nil {
		return fmt.Errorf("refusing to stage invalid event: %w", err)
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to serialize event for outbox: %w", err)
	}

	rec := &model.OutboxRecord{
		EventID:      env.EventID,
		EventType:    string(env.EventType),
		Topic:        topic,
		PartitionKey: key,
		Payload:      payload,
	}
	if err := s.outboxRepo.Stage(ctx, tx, rec); err != nil {
		return fmt.Errorf("failed to stage outbox event: %w", err)
	}
	return nil
}
