package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/liamcoop/precheck/internal/logger"
)

// Metrics provides observability for the precheck server. All methods are
// safe on a nil receiver.
type Metrics struct {
	// Precheck outcomes by ruleset and result
	PrecheckOutcome *prometheus.CounterVec

	// Precheck latency per ruleset
	PrecheckLatency *prometheus.HistogramVec

	// Custom criterion results by status and severity
	CriterionOutcome *prometheus.CounterVec

	// Field resolutions by conflict status and winning source
	Resolution *prometheus.CounterVec

	// HTTP requests by route pattern, method and status code
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New registers all metrics with reg. The logger counters are exported as
// counter functions so they appear next to the request metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	for name, counter := range map[string]interface{ Load() int64 }{
		"precheck_log_errors_total":       &logger.TotalErrors,
		"precheck_log_warnings_total":     &logger.TotalWarnings,
		"precheck_http_5xx_total":         &logger.Total5xxErrors,
		"precheck_http_4xx_total":         &logger.Total4xxErrors,
		"precheck_criterion_errors_total": &logger.CriterionFailures,
		"precheck_failed_documents_total": &logger.PrecheckFailures,
	} {
		c := counter
		factory.NewCounterFunc(prometheus.CounterOpts{
			Name: name,
			Help: "Counter maintained by the logger",
		}, func() float64 { return float64(c.Load()) })
	}

	return &Metrics{
		PrecheckOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "precheck_outcomes_total",
			Help: "Total precheck runs by ruleset and outcome",
		}, []string{"ruleset", "passed"}),

		PrecheckLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "precheck_duration_seconds",
			Help:    "Duration of a precheck run",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"ruleset"}),

		CriterionOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "precheck_criterion_results_total",
			Help: "Total custom criterion results by status and severity",
		}, []string{"status", "severity"}),

		Resolution: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "precheck_resolutions_total",
			Help: "Total field resolutions by conflict status and winning source",
		}, []string{"conflict_status", "source"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "precheck_http_requests_total",
			Help: "Total HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),

		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "precheck_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObservePrecheck records one precheck run.
func (m *Metrics) ObservePrecheck(ruleset string, passed bool, d time.Duration) {
	if m != nil {
		m.PrecheckOutcome.WithLabelValues(ruleset, strconv.FormatBool(passed)).Inc()
		m.PrecheckLatency.WithLabelValues(ruleset).Observe(d.Seconds())
	}
}

// IncrementCriterion records one criterion result.
func (m *Metrics) IncrementCriterion(status, severity string) {
	if m != nil {
		m.CriterionOutcome.WithLabelValues(status, severity).Inc()
	}
}

// IncrementResolution records one resolved field.
func (m *Metrics) IncrementResolution(conflictStatus, source string) {
	if m != nil {
		m.Resolution.WithLabelValues(conflictStatus, source).Inc()
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, code int, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
		m.HTTPLatency.WithLabelValues(route).Observe(d.Seconds())
	}
}
