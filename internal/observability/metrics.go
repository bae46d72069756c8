// Package observability holds the Prometheus instruments of the fingerprint pipeline.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes recorded in audiofp_fingerprint_requests_total.
const (
	OutcomeSuccess          = "success"
	OutcomeRejected         = "rejected"
	OutcomeParseFailed      = "parse_failed"
	OutcomeInvocationFailed = "invocation_failed"
	OutcomeBusy             = "busy"
	OutcomeError            = "error"
)

// Metrics is safe to use through a nil pointer, in which case nothing is recorded.
type Metrics struct {
	factory         promauto.Factory
	requests        *prometheus.CounterVec
	fpcalcDuration  *prometheus.HistogramVec
	uploadBytes     prometheus.Histogram
	inFlight        prometheus.Gauge
	cleanupFailures prometheus.Counter
	sweptFiles      prometheus.Counter
}

// NewMetrics registers the pipeline instruments with reg. A nil reg uses the
// default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	m := &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiofp_fingerprint_requests_total",
			Help: "Fingerprint requests by outcome",
		}, []string{"outcome"}),
		fpcalcDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiofp_fpcalc_duration_seconds",
			Help:    "Wall time of fpcalc invocations",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"status"}),
		uploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audiofp_upload_bytes",
			Help:    "Size of staged audio uploads",
			Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "audiofp_fpcalc_in_flight",
			Help: "fpcalc processes currently running",
		}),
		cleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiofp_cleanup_failures_total",
			Help: "Staged files that could not be removed after processing",
		}),
		sweptFiles: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiofp_swept_files_total",
			Help: "Orphaned staged files removed by the sweeper",
		}),
	}
	m.factory = factory
	return m
}

func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

// ObserveInvocation records one fpcalc run; status is "ok" or "failed".
func (m *Metrics) ObserveInvocation(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.fpcalcDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) ObserveUpload(size int64) {
	if m == nil {
		return
	}
	m.uploadBytes.Observe(float64(size))
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

func (m *Metrics) CleanupFailed() {
	if m == nil {
		return
	}
	m.cleanupFailures.Inc()
}

func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptFiles.Add(float64(n))
}

// PoolStats reports the invocation pool's live workers, idle workers and queued jobs.
type PoolStats func() (running, idle, queued int)

// WatchPool exports the invocation pool's occupancy, sampled at scrape time.
// Call it once per Metrics.
func (m *Metrics) WatchPool(stats PoolStats) {
	if m == nil || stats == nil {
		return
	}
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "audiofp_worker_pool_workers",
		Help: "fpcalc pool workers alive",
	}, func() float64 {
		running, _, _ := stats()
		return float64(running)
	})
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "audiofp_worker_pool_idle_workers",
		Help: "fpcalc pool workers waiting for a job",
	}, func() float64 {
		_, idle, _ := stats()
		return float64(idle)
	})
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "audiofp_worker_queue_depth",
		Help: "fpcalc jobs waiting for a worker",
	}, func() float64 {
		_, _, queued := stats()
		return float64(queued)
	})
}

// Handler exposes the metrics gathered by g, or the default gatherer when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
