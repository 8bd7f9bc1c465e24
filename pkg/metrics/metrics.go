package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Outbox publisher metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxEventsDead        prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxInFlight          prometheus.Gauge
	OutboxRetries           *prometheus.CounterVec

	// Consumer metrics
	EventsConsumed   *prometheus.CounterVec
	EventsDuplicated *prometheus.CounterVec
	EventsRejected   *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New creates the application metrics under the given namespace. Metrics
// are plain (unregistered) so tests can construct them freely; callers
// that want scraping register them via Register.
func New(namespace string) *Metrics {
	return &Metrics{
		OutboxEventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully published outbox events",
		}),
		OutboxEventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox publish attempts",
		}),
		OutboxEventsDead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_dead_total",
			Help:      "Total number of outbox events moved to the DEAD state",
		}),
		OutboxProcessingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_poll_cycle_duration_seconds",
			Help:      "Time spent per outbox poll cycle",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		OutboxInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_in_flight_publishes",
			Help:      "Current number of in-flight publish attempts",
		}),
		OutboxRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Total number of consumed events applied",
		}, []string{"topic"}),
		EventsDuplicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_duplicated_total",
			Help:      "Total number of duplicate deliveries skipped via the inbox",
		}, []string{"topic"}),
		EventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_rejected_total",
			Help:      "Total number of events rejected by the contract gate",
		}, []string{"topic"}),

		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// Register registers all metrics on the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.OutboxEventsProcessed,
		m.OutboxEventsFailed,
		m.OutboxEventsDead,
		m.OutboxProcessingLatency,
		m.OutboxInFlight,
		m.OutboxRetries,
		m.EventsConsumed,
		m.EventsDuplicated,
		m.EventsRejected,
		m.DatabaseOperations,
	)
}
