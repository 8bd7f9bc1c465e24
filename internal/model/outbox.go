package model

import (
	"encoding/json"
	"time"
)

// OutboxStatus is the lifecycle state of a staged event.
//
// Transitions:
//
//	PENDING -> IN_PROGRESS -> PROCESSED
//	IN_PROGRESS -> FAILED -> IN_PROGRESS (re-claim after backoff)
//	FAILED -> DEAD (retry ceiling)
//	DEAD -> PENDING (operator replay)
//	IN_PROGRESS -> PENDING (operator reconciliation of an abandoned claim)
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusInProgress OutboxStatus = "IN_PROGRESS"
	OutboxStatusProcessed  OutboxStatus = "PROCESSED"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

// OutboxRecord is one staged event, written in the same transaction as the
// business change it describes and drained by the outbox publisher.
type OutboxRecord struct {
	ID            int64           `db:"id" json:"id"`
	EventID       string          `db:"event_id" json:"event_id"`
	EventType     string          `db:"event_type" json:"event_type"`
	Topic         string          `db:"topic" json:"topic"`
	PartitionKey  string          `db:"partition_key" json:"partition_key"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	Status        OutboxStatus    `db:"status" json:"status"`
	RetryCount    int             `db:"retry_count" json:"retry_count"`
	NextAttemptAt *time.Time      `db:"next_attempt_at" json:"next_attempt_at,omitempty"`
	ClaimedAt     *time.Time      `db:"claimed_at" json:"claimed_at,omitempty"`
	LastError     *string         `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}
