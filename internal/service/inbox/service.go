package inbox

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/inventory-api/internal/repository"
)

// Service is the durable inbox for consumed events.
type Service struct {
	inboxRepo repository.InboxRepository
}

func NewService(inboxRepo repository.InboxRepository) *Service {
	return &Service{inboxRepo: inboxRepo}
}

// RegisterIfFirstSeen returns true when this event is seen for the first
// time and false when another delivery already consumed it. It must run
// in the same transaction as the effect it guards so "recorded as seen"
// and "effect applied" commit or roll back together.
func (s *Service) RegisterIfFirstSeen(ctx context.Context, tx *sqlx.Tx, eventID, topic string) (bool, error) {
	return s.inboxRepo.Register(ctx, tx, eventID, topic)
}
