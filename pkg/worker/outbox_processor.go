package worker

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/inventory-api/internal/model"
	"github.com/jwalitptl/inventory-api/internal/repository"
	"github.com/jwalitptl/inventory-api/pkg/logger"
	"github.com/jwalitptl/inventory-api/pkg/messaging"
	"github.com/jwalitptl/inventory-api/pkg/metrics"
)

const (
	// maxBackoffExponent caps the exponential multiplier at 2^6 = 64x.
	maxBackoffExponent = 6
	// maxErrorLength bounds stored error messages so rows cannot grow
	// without limit.
	maxErrorLength = 1000

	genericPublishError = "unknown publish error"
)

type OutboxProcessorConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	MaxInFlight    int
	MaxRetries     int
	BaseRetryDelay time.Duration
}

func (c *OutboxProcessorConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 200
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 10
	}
	if c.BaseRetryDelay <= 0 {
		c.BaseRetryDelay = time.Second
	}
}

// OutboxProcessor drains claimable outbox records and drives each one to
// PROCESSED or DEAD. Safe to run as multiple instances against the same
// store: correctness rests entirely on the repository's atomic claim, not
// on anything in-process.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	sender  messaging.Sender
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	clock   clockwork.Clock

	inFlight     atomic.Int64
	shuttingDown atomic.Bool
	wg           sync.WaitGroup
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	sender messaging.Sender,
	config OutboxProcessorConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *OutboxProcessor {
	return NewOutboxProcessorWithClock(repo, sender, config, log, m, clockwork.NewRealClock())
}

// NewOutboxProcessorWithClock injects the clock. Tests pass a fake clock
// to step through backoff schedules deterministically.
func NewOutboxProcessorWithClock(
	repo repository.OutboxRepository,
	sender messaging.Sender,
	config OutboxProcessorConfig,
	log *logger.Logger,
	m *metrics.Metrics,
	clock clockwork.Clock,
) *OutboxProcessor {
	config.applyDefaults()
	return &OutboxProcessor{
		repo:    repo,
		sender:  sender,
		config:  config,
		logger:  log,
		metrics: m,
		clock:   clock,
	}
}

// Start polls until ctx is cancelled, then stops claiming and waits for
// already-dispatched sends to drain.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := p.clock.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor",
		"poll_interval", p.config.PollInterval.String(),
		"batch_size", p.config.BatchSize,
		"max_in_flight", p.config.MaxInFlight)

	for {
		select {
		case <-ctx.Done():
			p.shuttingDown.Store(true)
			p.logger.Info("outbox processor shutting down, draining in-flight sends")
			p.wg.Wait()
			return
		case <-ticker.Chan():
			p.RunPollCycle(ctx)
		}
	}
}

// RunPollCycle claims and dispatches up to min(batchSize, availableSlots)
// records. Sends run asynchronously; the cycle never blocks on the
// transport.
func (p *OutboxProcessor) RunPollCycle(ctx context.Context) {
	if p.shuttingDown.Load() {
		return
	}

	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	availableSlots := p.config.MaxInFlight - int(p.inFlight.Load())
	if availableSlots <= 0 {
		return
	}

	limit := p.config.BatchSize
	if availableSlots < limit {
		limit = availableSlots
	}

	now := p.clock.Now()
	records, err := p.repo.FindClaimable(ctx, now, limit)
	if err != nil {
		// Transient infrastructure trouble: yield an empty cycle and let
		// the next tick retry.
		p.logger.WarnErr(err, "outbox poll failed, skipping cycle")
		p.metrics.DatabaseOperations.WithLabelValues("find_claimable", "error").Inc()
		return
	}

	for _, rec := range records {
		if p.shuttingDown.Load() {
			return
		}
		if int(p.inFlight.Load()) >= p.config.MaxInFlight {
			break
		}

		claimed, err := p.repo.Claim(ctx, rec.ID, p.clock.Now())
		if err != nil {
			p.logger.WarnErr(err, "outbox claim failed", "event_id", rec.EventID)
			continue
		}
		if !claimed {
			// Another publisher instance or poll cycle won the race.
			continue
		}

		p.inFlight.Add(1)
		p.metrics.OutboxInFlight.Inc()
		p.wg.Add(1)
		go p.dispatch(context.WithoutCancel(ctx), rec)
	}
}

// dispatch sends one claimed record and settles its state from the
// outcome. It runs on a detached context so an in-flight send survives
// shutdown and its state transition is not lost.
func (p *OutboxProcessor) dispatch(ctx context.Context, rec *model.OutboxRecord) {
	defer func() {
		// The in-flight counter is decremented no matter what happens in
		// settle; leaking a slot is worse than one unsettled record,
		// which stays claimed and is repaired by reconciliation.
		p.inFlight.Add(-1)
		p.metrics.OutboxInFlight.Dec()
		p.wg.Done()
	}()

	sendErr := p.sender.Send(ctx, rec.Topic, rec.PartitionKey, rec.Payload)
	p.settle(ctx, rec, sendErr)
}

func (p *OutboxProcessor) settle(ctx context.Context, rec *model.OutboxRecord, sendErr error) {
	if sendErr == nil {
		if err := p.repo.MarkProcessed(ctx, rec.ID, p.clock.Now()); err != nil {
			p.logger.Error(err, "failed to mark outbox event processed",
				"event_id", rec.EventID)
			return
		}
		p.metrics.OutboxEventsProcessed.Inc()
		p.logger.Info("outbox event published",
			"event_id", rec.EventID, "topic", rec.Topic)
		return
	}

	nextRetryCount := rec.RetryCount + 1
	lastError := truncateError(sendErr.Error())
	p.metrics.OutboxRetries.WithLabelValues(rec.EventType).Inc()

	if nextRetryCount >= p.config.MaxRetries {
		if err := p.repo.MarkDead(ctx, rec.ID, nextRetryCount, lastError); err != nil {
			p.logger.Error(err, "failed to mark outbox event dead",
				"event_id", rec.EventID)
			return
		}
		p.metrics.OutboxEventsDead.Inc()
		p.logger.Error(sendErr, "outbox event moved to DEAD state",
			"event_id", rec.EventID, "topic", rec.Topic, "retries", nextRetryCount)
		return
	}

	nextAttemptAt := p.clock.Now().Add(p.backoffDelay(nextRetryCount))
	if err := p.repo.MarkFailed(ctx, rec.ID, nextRetryCount, nextAttemptAt, lastError); err != nil {
		p.logger.Error(err, "failed to mark outbox event failed",
			"event_id", rec.EventID)
		return
	}
	p.metrics.OutboxEventsFailed.Inc()
	p.logger.Warn("outbox publish failed",
		"event_id", rec.EventID, "topic", rec.Topic,
		"retry", nextRetryCount, "next_attempt_at", nextAttemptAt.Format(time.RFC3339),
		"error", lastError)
}

// backoffDelay grows exponentially with the retry count, capped at
// baseDelay * 2^maxBackoffExponent.
func (p *OutboxProcessor) backoffDelay(retryCount int) time.Duration {
	exponent := retryCount - 1
	if exponent > maxBackoffExponent {
		exponent = maxBackoffExponent
	}
	if exponent < 0 {
		exponent = 0
	}
	return p.config.BaseRetryDelay * (1 << exponent)
}

func truncateError(errMsg string) string {
	if strings.TrimSpace(errMsg) == "" {
		return genericPublishError
	}
	if len(errMsg) <= maxErrorLength {
		return errMsg
	}
	return errMsg[:maxErrorLength]
}
