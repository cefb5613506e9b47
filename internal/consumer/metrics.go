package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeProcessed = "processed"
	outcomeFailed    = "failed"
	outcomeIgnored   = "ignored"
)

var (
	handledCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_planner",
		Subsystem: "consumer",
		Name:      "events_handled_total",
		Help:      "Routed events by aggregate, event type and outcome.",
	}, []string{"aggregate", "event_type", "outcome"})

	rejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_planner",
		Subsystem: "consumer",
		Name:      "records_rejected_total",
		Help:      "Records committed without handling, by topic and reason.",
	}, []string{"topic", "reason"})

	handleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "activity_planner",
		Subsystem: "consumer",
		Name:      "handle_duration_seconds",
		Help:      "Time spent in handlers per aggregate.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 7),
	}, []string{"aggregate"})

	lastEventGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "activity_planner",
		Subsystem: "consumer",
		Name:      "last_event_timestamp_seconds",
		Help:      "Kafka timestamp of the newest processed event per aggregate.",
	}, []string{"aggregate"})
)

func init() {
	prometheus.MustRegister(handledCounter, rejectedCounter, handleDuration, lastEventGauge)
}

func recordHandled(msg Message, outcome string) {
	handledCounter.WithLabelValues(msg.AggregateType, msg.EventType, outcome).Inc()
	if outcome == outcomeProcessed && !msg.Timestamp.IsZero() {
		lastEventGauge.WithLabelValues(msg.AggregateType).Set(float64(msg.Timestamp.Unix()))
	}
}

func observeHandle(msg Message, elapsed time.Duration) {
	handleDuration.WithLabelValues(msg.AggregateType).Observe(elapsed.Seconds())
}

func recordRejected(topic, reason string) {
	rejectedCounter.WithLabelValues(topic, reason).Inc()
}
