package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of a simulation run. Metrics observe
// the run; nothing in the event log depends on them.
type Metrics struct {
	// --- Dispatch loop ---
	EventsDispatched    *prometheus.CounterVec
	EventsBeyondHorizon *prometheus.CounterVec
	DispatchDuration    *prometheus.HistogramVec
	QueueDepth          prometheus.Gauge
	LogLength           prometheus.Gauge
	CurrentDay          prometheus.Gauge

	// --- Market outcomes ---
	QuotesDeclined      *prometheus.CounterVec
	SubmissionsDropped  prometheus.Counter
	PoliciesBound       prometheus.Counter
	ClaimsSettledAmount prometheus.Counter
	Insolvencies        prometheus.Counter

	// --- Invariants ---
	InvariantViolations *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec

	// --- Replay ---
	ReplayEventsTotal prometheus.Counter
}

// NewMetrics creates every metric and registers it with reg. Tests pass a
// fresh prometheus.NewRegistry(); the CLI passes the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	dispatchBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.005,
	}

	return &Metrics{
		// Dispatch loop
		EventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insmarket_events_dispatched_total",
			Help: "Events popped, handled and appended to the log",
		}, []string{"event_type"}),

		EventsBeyondHorizon: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insmarket_events_beyond_horizon_total",
			Help: "Scheduled events dropped because they fall after the run horizon",
		}, []string{"event_type"}),

		DispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "insmarket_dispatch_duration_seconds",
			Help:    "Time to decide and apply one event across its targets",
			Buckets: dispatchBuckets,
		}, []string{"event_type"}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "insmarket_queue_depth",
			Help: "Events waiting in the scheduler",
		}),

		LogLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "insmarket_log_length",
			Help: "Entries in the event log",
		}),

		CurrentDay: factory.NewGauge(prometheus.GaugeOpts{
			Name: "insmarket_current_day",
			Help: "Day of the last dispatched event",
		}),

		// Market outcomes
		QuotesDeclined: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insmarket_quotes_declined_total",
			Help: "Lead quote declines by reason",
		}, []string{"reason"}),

		SubmissionsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "insmarket_submissions_dropped_total",
			Help: "Submissions dropped after exhausting their attempts",
		}),

		PoliciesBound: factory.NewCounter(prometheus.CounterOpts{
			Name: "insmarket_policies_bound_total",
			Help: "Policies bound",
		}),

		ClaimsSettledAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "insmarket_claims_settled_amount_total",
			Help: "Sum of settled claim amounts in minor units",
		}),

		Insolvencies: factory.NewCounter(prometheus.CounterOpts{
			Name: "insmarket_insolvencies_total",
			Help: "Insurers that reached zero capital",
		}),

		// Invariants
		InvariantViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insmarket_invariant_violations_total",
			Help: "Kernel post-check failures in non-strict mode",
		}, []string{"check"}),

		// Persistence
		PersistEventsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "insmarket_persist_events_written_total",
			Help: "Events written to the SQL store",
		}),

		PersistBatchDur: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "insmarket_persist_batch_duration_seconds",
			Help:    "SQL store batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insmarket_persist_errors_total",
			Help: "SQL store errors by operation",
		}, []string{"op"}),

		// Replay
		ReplayEventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "insmarket_replay_events_total",
			Help: "Events folded during reconstruction",
		}),
	}
}
