package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DLQ entry outcomes.
const (
	dlqOutcomeRequeued    = "requeued"
	dlqOutcomeRetry       = "retry_scheduled"
	dlqOutcomeQuarantined = "quarantined"
)

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_planner",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Number of outbox events successfully published to Kafka.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_planner",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Number of outbox events that failed to publish and were routed to the DLQ.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "activity_planner",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent fetching, delivering, and marking outbox batches.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_planner",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Number of outbox events routed to the dead-letter queue, labeled by topic.",
	}, []string{"topic"})

	dlqProcessedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_planner",
		Subsystem: "dlq",
		Name:      "entries_processed_total",
		Help:      "DLQ entries handled by the manager, labeled by event type and outcome.",
	}, []string{"event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_planner",
		Subsystem: "dlq",
		Name:      "backlog_entries",
		Help:      "DLQ entries neither requeued nor quarantined.",
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, batchDuration, dlqCounter, dlqProcessedCounter, dlqBacklogGauge)
}

func recordDLQOutcome(entry dlqEntry, outcome string) {
	dlqProcessedCounter.WithLabelValues(entry.EventType, outcome).Inc()
}

func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(count))
}
