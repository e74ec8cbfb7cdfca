package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the dot field server.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   prometheus.Counter
	errorsTotal     prometheus.Counter
	ticksTotal      prometheus.Counter
	tickDuration    prometheus.Histogram
	activeDots      prometheus.Gauge
	totalDots       prometheus.Gauge
	oracleSubmitted prometheus.Counter
	oracleSkipped   prometheus.Counter
	oracleFailures  prometheus.Counter
	oracleDegraded  prometheus.Gauge
	modeChanges     *prometheus.CounterVec
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dotfield_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dotfield_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dotfield_ticks_total",
			Help: "Total number of frames rendered",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dotfield_tick_duration_seconds",
			Help:    "Time spent rendering one frame",
			Buckets: []float64{.001, .002, .004, .008, .016, .033, .066, .1},
		}),
		activeDots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dotfield_active_dots",
			Help: "Dots inside the silhouette on the last frame",
		}),
		totalDots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dotfield_dots",
			Help: "Dots in the current grid",
		}),
		oracleSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dotfield_oracle_submitted_total",
			Help: "Camera frames submitted for segmentation",
		}),
		oracleSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dotfield_oracle_skipped_total",
			Help: "Submissions skipped because the previous one was in flight",
		}),
		oracleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dotfield_oracle_failures_total",
			Help: "Segmentation submissions that returned an error",
		}),
		oracleDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dotfield_oracle_degraded",
			Help: "1 while segmentation has failed repeatedly, else 0",
		}),
		modeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dotfield_mode_changes_total",
			Help: "Visual mode changes by resulting mode",
		}, []string{"mode"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.ticksTotal,
		m.tickDuration,
		m.activeDots,
		m.totalDots,
		m.oracleSubmitted,
		m.oracleSkipped,
		m.oracleFailures,
		m.oracleDegraded,
		m.modeChanges,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObserveTick records one rendered frame and how long it took.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.ticksTotal.Inc()
	m.tickDuration.Observe(d.Seconds())
}

// SetDots sets the active and total dot gauges.
func (m *Metrics) SetDots(active, total int) {
	m.activeDots.Set(float64(active))
	m.totalDots.Set(float64(total))
}

// IncOracleSubmitted counts a segmentation submission.
func (m *Metrics) IncOracleSubmitted() {
	m.oracleSubmitted.Inc()
}

// IncOracleSkipped counts a skipped submission.
func (m *Metrics) IncOracleSkipped() {
	m.oracleSkipped.Inc()
}

// IncOracleFailures counts a failed submission.
func (m *Metrics) IncOracleFailures() {
	m.oracleFailures.Inc()
}

// SetOracleDegraded sets the degraded gauge.
func (m *Metrics) SetOracleDegraded(on bool) {
	if on {
		m.oracleDegraded.Set(1)
		return
	}
	m.oracleDegraded.Set(0)
}

// IncModeChanges counts a switch into the named mode.
func (m *Metrics) IncModeChanges(mode string) {
	m.modeChanges.WithLabelValues(mode).Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		h.ServeHTTP(w, r)
	})
}
