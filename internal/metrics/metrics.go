// Package metrics exposes build counters and timings for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/waabox/ontoloci/internal/domain"
)

// Recorder records build outcomes. A nil *Recorder is valid and records nothing.
type Recorder struct {
	builds    *prometheus.CounterVec
	testCases *prometheus.CounterVec
	duration  prometheus.Histogram
	inFlight  prometheus.Gauge
}

// NewRecorder creates a Recorder and registers its collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ontoloci",
			Name:      "builds_total",
			Help:      "Finished builds by status and check title.",
		}, []string{"status", "check_title"}),
		testCases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ontoloci",
			Name:      "test_cases_total",
			Help:      "Executed test cases by status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ontoloci",
			Name:      "build_duration_seconds",
			Help:      "Wall-clock duration of builds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ontoloci",
			Name:      "builds_in_flight",
			Help:      "Builds currently executing.",
		}),
	}
	reg.MustRegister(r.builds, r.testCases, r.duration, r.inFlight)
	return r
}

// BuildStarted marks a build as in flight.
func (r *Recorder) BuildStarted() {
	if r == nil {
		return
	}
	r.inFlight.Inc()
}

// BuildFinished records a terminal result and clears its in-flight mark.
func (r *Recorder) BuildFinished(result domain.BuildResult) {
	if r == nil {
		return
	}
	r.inFlight.Dec()
	r.builds.WithLabelValues(string(result.Status), string(result.Metadata.CheckTitle)).Inc()
	for _, tc := range result.TestCaseResults {
		r.testCases.WithLabelValues(string(tc.Status)).Inc()
	}
	r.duration.Observe(result.Duration().Seconds())
}
