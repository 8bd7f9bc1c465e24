package model

import "time"

// InboxRecord marks an externally-delivered event as consumed. The unique
// constraint on event_id is the duplicate-delivery detector: a second
// insert for the same event fails distinguishably instead of silently
// succeeding.
type InboxRecord struct {
	EventID     string    `db:"event_id" json:"event_id"`
	Topic       string    `db:"topic" json:"topic"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}
