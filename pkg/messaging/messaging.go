package messaging

import "context"

// Sender is the narrow transport contract the outbox publisher depends
// on: deliver one payload to a topic under a partition key, report
// success or failure, nothing else.
type Sender interface {
	Send(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}

// Message is one delivery handed to a consumer handler.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Handler processes one delivery. An error propagates to the transport's
// retry/dead-letter mechanism; the handler must not swallow contract
// violations.
type Handler func(ctx context.Context, msg Message) error

// PushSink is a fire-and-forget fan-out channel for live updates. It is
// non-critical: implementations may drop messages when the sink is down.
type PushSink interface {
	Push(ctx context.Context, channel string, payload interface{}) error
	Close() error
}
