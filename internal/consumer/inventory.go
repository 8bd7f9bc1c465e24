package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	inboxService "github.com/jwalitptl/inventory-api/internal/service/inbox"
	inventoryService "github.com/jwalitptl/inventory-api/internal/service/inventory"
	"github.com/jwalitptl/inventory-api/pkg/event"
	"github.com/jwalitptl/inventory-api/pkg/logger"
	"github.com/jwalitptl/inventory-api/pkg/messaging"
	"github.com/jwalitptl/inventory-api/pkg/metrics"
)

type postgresTx interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

// InventoryConsumer reacts to product lifecycle events by provisioning
// and removing stock rows. Every handler runs the durable idempotency
// check and the business effect in one transaction, so a redelivered
// event either fully applied before or fully applies now.
type InventoryConsumer struct {
	base      postgresTx
	inbox     *inboxService.Service
	inventory *inventoryService.Service
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewInventoryConsumer(
	base postgresTx,
	inbox *inboxService.Service,
	inventory *inventoryService.Service,
	m *metrics.Metrics,
	log *logger.Logger,
) *InventoryConsumer {
	return &InventoryConsumer{
		base:      base,
		inbox:     inbox,
		inventory: inventory,
		metrics:   m,
		logger:    log,
	}
}

// HandleProductCreated provisions stock for a new product.
func (c *InventoryConsumer) HandleProductCreated(ctx context.Context, msg messaging.Message) error {
	var evt event.ProductCreated
	if err := c.decode(msg, &evt, event.TypeProductCreated); err != nil {
		return err
	}

	return c.withInbox(ctx, evt.EventID, msg.Topic, func(tx *sqlx.Tx) error {
		_, err := c.inventory.CreateStock(ctx, tx, evt.ProductID, evt.SKU, evt.InitialStock)
		return err
	})
}

// HandleProductUpdated acknowledges catalog changes. Stock rows key off
// the SKU and thresholds are managed locally, so there is no effect to
// apply, but the delivery is still registered for duplicate tracking.
func (c *InventoryConsumer) HandleProductUpdated(ctx context.Context, msg messaging.Message) error {
	var evt event.ProductUpdated
	if err := c.decode(msg, &evt, event.TypeProductUpdated); err != nil {
		return err
	}

	return c.withInbox(ctx, evt.EventID, msg.Topic, func(*sqlx.Tx) error {
		c.logger.Debug("product updated", "sku", evt.SKU, "name", evt.Name)
		return nil
	})
}

// HandleProductDeleted drops the stock row for a removed product.
func (c *InventoryConsumer) HandleProductDeleted(ctx context.Context, msg messaging.Message) error {
	var evt event.ProductDeleted
	if err := c.decode(msg, &evt, event.TypeProductDeleted); err != nil {
		return err
	}

	return c.withInbox(ctx, evt.EventID, msg.Topic, func(tx *sqlx.Tx) error {
		return c.inventory.RemoveStock(ctx, tx, evt.SKU)
	})
}

func (c *InventoryConsumer) decode(msg messaging.Message, evt event.Event, expected event.Type) error {
	if err := json.Unmarshal(msg.Value, evt); err != nil {
		c.metrics.EventsRejected.WithLabelValues(msg.Topic).Inc()
		return fmt.Errorf("failed to decode event from %s: %w", msg.Topic, err)
	}
	if err := event.Validate(evt, expected, msg.Topic); err != nil {
		c.metrics.EventsRejected.WithLabelValues(msg.Topic).Inc()
		return err
	}
	return nil
}

func (c *InventoryConsumer) withInbox(ctx context.Context, eventID, topic string, effect func(tx *sqlx.Tx) error) error {
	duplicate := false
	err := c.base.WithTx(ctx, func(tx *sqlx.Tx) error {
		first, err := c.inbox.RegisterIfFirstSeen(ctx, tx, eventID, topic)
		if err != nil {
			return err
		}
		if !first {
			duplicate = true
			return nil
		}
		return effect(tx)
	})
	if err != nil {
		return err
	}

	if duplicate {
		c.metrics.EventsDuplicated.WithLabelValues(topic).Inc()
		c.logger.Debug("duplicate event skipped", "topic", topic, "event_id", eventID)
		return nil
	}
	c.metrics.EventsConsumed.WithLabelValues(topic).Inc()
	return nil
}
