package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "patrol",
		Name:      "sessions_total",
		Help:      "Completed visits by terminal status.",
	}, []string{"status"})
	metricSessionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "patrol",
		Name:      "session_failures_total",
		Help:      "Failed visits by failure reason.",
	}, []string{"reason"})
	metricSessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "patrol",
		Name:      "session_duration_seconds",
		Help:      "Wall time of a visit from launch to release.",
		Buckets:   []float64{5, 10, 20, 30, 45, 60, 90, 120, 180},
	})
	metricTicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "patrol",
		Name:      "ticks_skipped_total",
		Help:      "Scheduler ticks dropped because a previous tick was still running.",
	})
	metricArtifactsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "patrol",
		Name:      "artifacts_evicted_total",
		Help:      "Capture files removed by the retention bound.",
	})
	metricNotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "patrol",
		Name:      "notifications_failed_total",
		Help:      "Notification deliveries that did not succeed, by transport.",
	}, []string{"transport"})
)

// RecordSession counts a finished visit.
func RecordSession(status, reason string, seconds float64) {
	metricSessions.WithLabelValues(status).Inc()
	if reason != "" {
		metricSessionFailures.WithLabelValues(reason).Inc()
	}
	if seconds > 0 {
		metricSessionDuration.Observe(seconds)
	}
}

func RecordTickSkipped() {
	metricTicksSkipped.Inc()
}

func RecordEvictions(count int) {
	if count > 0 {
		metricArtifactsEvicted.Add(float64(count))
	}
}

func RecordNotificationFailure(transport string) {
	metricNotificationsFailed.WithLabelValues(transport).Inc()
}
