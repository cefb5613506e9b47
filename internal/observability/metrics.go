package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	transitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_planner",
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Lifecycle actions attempted, partitioned by action and outcome.",
	}, []string{"action", "outcome"})
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_planner",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity record written to the store.",
	})
	statisticsCacheCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_planner",
		Subsystem: "statistics",
		Name:      "cache_lookups_total",
		Help:      "Statistics cache lookups, partitioned by result (hit|miss).",
	}, []string{"result"})
	statisticsInvalidationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_planner",
		Subsystem: "statistics",
		Name:      "cache_invalidation_failures_total",
		Help:      "Statistics cache invalidations that returned an error.",
	})
	resolutionWriteCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_planner",
		Subsystem: "resolutions",
		Name:      "writes_total",
		Help:      "Resolution writes attempted, partitioned by action and outcome.",
	}, []string{"action", "outcome"})
)

// Outcome labels used with RecordTransition.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeDeclined = "declined"
	OutcomeFailed   = "failed"
)

func init() {
	prometheus.MustRegister(transitionCounter, activityPersistGauge, statisticsCacheCounter,
		statisticsInvalidationFailures, resolutionWriteCounter)
}

// RecordTransition counts a lifecycle action outcome.
func RecordTransition(action, outcome string) {
	transitionCounter.WithLabelValues(action, outcome).Inc()
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordStatisticsCache counts a statistics cache lookup.
func RecordStatisticsCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	statisticsCacheCounter.WithLabelValues(result).Inc()
}

// RecordStatisticsInvalidationFailure counts a failed statistics cache invalidation.
func RecordStatisticsInvalidationFailure() {
	statisticsInvalidationFailures.Inc()
}

// RecordResolutionWrite counts a resolution write outcome.
func RecordResolutionWrite(action, outcome string) {
	resolutionWriteCounter.WithLabelValues(action, outcome).Inc()
}
