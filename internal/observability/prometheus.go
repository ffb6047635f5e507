package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromRecorder exports ingestion outcomes as Prometheus metrics.
type PromRecorder struct {
	ingested      prometheus.Counter
	rejected      *prometheus.CounterVec
	personalBests prometheus.Counter
	duration      prometheus.Histogram
}

// NewPromRecorder registers the tracks metrics with reg. A nil reg means
// prometheus.DefaultRegisterer.
func NewPromRecorder(reg prometheus.Registerer) *PromRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PromRecorder{
		ingested: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracks_sessions_ingested_total",
			Help: "Sessions accepted into the log.",
		}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracks_sessions_rejected_total",
			Help: "Sessions rejected, by reason.",
		}, []string{"reason"}),
		personalBests: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracks_personal_bests_total",
			Help: "Sessions that entered the personal bests ranking.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracks_ingest_duration_seconds",
			Help:    "Time to resolve, store and aggregate one session.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
		}),
	}
}

// ObserveIngest records an accepted session and how long it took.
func (r *PromRecorder) ObserveIngest(elapsed time.Duration) {
	r.ingested.Inc()
	r.duration.Observe(elapsed.Seconds())
}

// ObserveRejection records a rejected session.
func (r *PromRecorder) ObserveRejection(reason string) {
	r.rejected.WithLabelValues(reason).Inc()
}

// ObservePersonalBest records a new personal best.
func (r *PromRecorder) ObservePersonalBest() {
	r.personalBests.Inc()
}
