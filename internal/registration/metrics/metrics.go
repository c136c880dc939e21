package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reasons used as the "reason" label.
const (
	ReasonInvalid   = "invalid"
	ReasonMalformed = "malformed"
	ReasonPanic     = "panic"
)

// Metrics provides observability for the publish pipeline.
type Metrics struct {
	// Records the sink accepted at submit time, updated live
	Submitted prometheus.Counter

	// Records still counted as delivered after the final flush
	Published prometheus.Counter

	// Records dropped before reaching the sink, by reason
	Skipped *prometheus.CounterVec

	// Records the sink rejected
	Failed prometheus.Counter

	RunDuration prometheus.Histogram
}

// New registers the pipeline metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "evfeed_records_submitted_total",
			Help: "Total number of registration records accepted by the sink at submit",
		}),
		Published: factory.NewCounter(prometheus.CounterOpts{
			Name: "evfeed_records_published_total",
			Help: "Total number of registration records delivered, counted after the final flush",
		}),
		Skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evfeed_records_skipped_total",
			Help: "Total number of registration records dropped before publishing",
		}, []string{"reason"}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "evfeed_records_failed_total",
			Help: "Total number of registration records the sink failed to deliver",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "evfeed_run_duration_seconds",
			Help:    "Duration of a full source-to-sink run including the final flush",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}

// IncSubmitted counts one record accepted at submit.
func (m *Metrics) IncSubmitted() {
	if m != nil {
		m.Submitted.Inc()
	}
}

// AddPublished counts records that survived the flush barrier.
func (m *Metrics) AddPublished(n int) {
	if m != nil && n > 0 {
		m.Published.Add(float64(n))
	}
}

// IncSkipped counts one dropped record.
func (m *Metrics) IncSkipped(reason string) {
	if m != nil {
		m.Skipped.WithLabelValues(reason).Inc()
	}
}

// AddFailed counts records the sink rejected, whether at submit time or
// when a flush reports asynchronous delivery failures.
func (m *Metrics) AddFailed(n int) {
	if m != nil && n > 0 {
		m.Failed.Add(float64(n))
	}
}

// ObserveRun records the total run duration.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m != nil {
		m.RunDuration.Observe(d.Seconds())
	}
}
