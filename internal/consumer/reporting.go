package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/inventory-api/internal/model"
	inboxService "github.com/jwalitptl/inventory-api/internal/service/inbox"
	notificationService "github.com/jwalitptl/inventory-api/internal/service/notification"
	reportService "github.com/jwalitptl/inventory-api/internal/service/report"
	"github.com/jwalitptl/inventory-api/pkg/event"
	"github.com/jwalitptl/inventory-api/pkg/logger"
	"github.com/jwalitptl/inventory-api/pkg/messaging"
	redisSink "github.com/jwalitptl/inventory-api/pkg/messaging/redis"
	"github.com/jwalitptl/inventory-api/pkg/metrics"
)

// ReportingConsumer folds stock change events into the inventory summary
// projection and the audit history. The inbox check, the history entry
// and the projection delta share one transaction; live fan-out and
// alerting happen after commit and are best effort.
type ReportingConsumer struct {
	base          postgresTx
	inbox         *inboxService.Service
	report        *reportService.Service
	notifications *notificationService.Service
	pushSink      messaging.PushSink
	metrics       *metrics.Metrics
	logger        *logger.Logger
}

func NewReportingConsumer(
	base postgresTx,
	inbox *inboxService.Service,
	report *reportService.Service,
	notifications *notificationService.Service,
	pushSink messaging.PushSink,
	m *metrics.Metrics,
	log *logger.Logger,
) *ReportingConsumer {
	return &ReportingConsumer{
		base:          base,
		inbox:         inbox,
		report:        report,
		notifications: notifications,
		pushSink:      pushSink,
		metrics:       m,
		logger:        log,
	}
}

// HandleStockUpdated applies one stock change to the projection.
func (c *ReportingConsumer) HandleStockUpdated(ctx context.Context, msg messaging.Message) error {
	var evt event.StockUpdated
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		c.metrics.EventsRejected.WithLabelValues(msg.Topic).Inc()
		return fmt.Errorf("failed to decode event from %s: %w", msg.Topic, err)
	}
	if err := event.Validate(&evt, event.TypeStockUpdated, msg.Topic); err != nil {
		c.metrics.EventsRejected.WithLabelValues(msg.Topic).Inc()
		return err
	}

	duplicate := false
	err := c.base.WithTx(ctx, func(tx *sqlx.Tx) error {
		first, err := c.inbox.RegisterIfFirstSeen(ctx, tx, evt.EventID, msg.Topic)
		if err != nil {
			return err
		}
		if !first {
			duplicate = true
			return nil
		}
		if err := c.report.RecordHistory(ctx, tx, &evt); err != nil {
			return err
		}
		return c.report.ApplyStockDelta(ctx, tx, &evt)
	})
	if err != nil {
		return err
	}

	if duplicate {
		c.metrics.EventsDuplicated.WithLabelValues(msg.Topic).Inc()
		c.logger.Debug("duplicate event skipped", "topic", msg.Topic, "event_id", evt.EventID)
		return nil
	}
	c.metrics.EventsConsumed.WithLabelValues(msg.Topic).Inc()

	c.fanOut(ctx, &evt)
	return nil
}

func (c *ReportingConsumer) fanOut(ctx context.Context, evt *event.StockUpdated) {
	if c.pushSink != nil {
		_ = c.pushSink.Push(ctx, redisSink.ChannelStockUpdates, evt)
		if summary, err := c.report.CurrentSummary(ctx); err == nil {
			_ = c.pushSink.Push(ctx, redisSink.ChannelSummaryUpdates, summary)
		}
	}

	if c.notifications == nil {
		return
	}
	threshold := evt.MinThreshold
	if threshold <= 0 {
		threshold = model.DefaultMinThreshold
	}
	crossedDown := evt.PreviousQuantity > threshold && evt.NewQuantity <= threshold
	if crossedDown {
		c.notifications.NotifyLowStock(&model.Stock{
			ProductID:    evt.ProductID,
			SKU:          evt.SKU,
			Quantity:     evt.NewQuantity,
			MinThreshold: threshold,
		})
	}
}
