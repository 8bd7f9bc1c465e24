package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jwalitptl/inventory-api/pkg/logger"
	"github.com/jwalitptl/inventory-api/pkg/messaging"
)

// SplitBrokers turns a comma-separated broker list into a slice.
func SplitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Sender publishes messages keyed by partition key. The hash balancer
// keeps all events for one key on one partition, which is the only
// ordering guarantee the platform offers.
type Sender struct {
	writer *kafka.Writer
}

func NewSender(brokers []string) *Sender {
	return &Sender{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (s *Sender) Send(ctx context.Context, topic, key string, payload []byte) error {
	return s.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	})
}

func (s *Sender) Close() error {
	return s.writer.Close()
}

// ConsumerConfig configures one consumer group reader.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	MaxRetries int
}

// Consumer runs a handler per delivery with bounded in-process retries,
// then publishes to <topic>.DLT. This is the transport-side retry and
// dead-letter mechanism the inbox-gated handlers rely on: they reject
// bad envelopes and the consumer takes it from there.
type Consumer struct {
	cfg       ConsumerConfig
	dltWriter *kafka.Writer
	logger    *logger.Logger
}

func NewConsumer(cfg ConsumerConfig, log *logger.Logger) *Consumer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Consumer{
		cfg: cfg,
		dltWriter: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		logger: log,
	}
}

// Run consumes the topic until ctx is cancelled. It blocks.
func (c *Consumer) Run(ctx context.Context, topic string, handler messaging.Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.cfg.Brokers,
		GroupID:        c.cfg.GroupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // explicit commits only
	})
	defer reader.Close()

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.WarnErr(err, "kafka fetch failed", "topic", topic)
			continue
		}

		msg := messaging.Message{Topic: m.Topic, Key: m.Key, Value: m.Value}
		if err := c.process(ctx, msg, handler); err != nil {
			if dltErr := c.deadLetter(ctx, m, err); dltErr != nil {
				// Leave the message uncommitted so it is redelivered
				// rather than lost.
				c.logger.Error(dltErr, "dead letter publish failed", "topic", topic)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error(err, "kafka commit failed", "topic", topic)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg messaging.Message, handler messaging.Handler) error {
	var err error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		c.logger.WarnErr(err, "consumer handler failed",
			"topic", msg.Topic, "attempt", attempt)
	}
	return err
}

func (c *Consumer) deadLetter(ctx context.Context, m kafka.Message, cause error) error {
	dlt := kafka.Message{
		Topic: m.Topic + ".DLT",
		Key:   m.Key,
		Value: m.Value,
		Headers: append(m.Headers, kafka.Header{
			Key:   "x-dead-letter-reason",
			Value: []byte(cause.Error()),
		}),
	}
	if err := c.dltWriter.WriteMessages(ctx, dlt); err != nil {
		return fmt.Errorf("failed to dead-letter message from %s: %w", m.Topic, err)
	}
	c.logger.Warn("message dead-lettered",
		"topic", m.Topic, "key", string(m.Key), "reason", cause.Error())
	return nil
}

func (c *Consumer) Close() error {
	return c.dltWriter.Close()
}
