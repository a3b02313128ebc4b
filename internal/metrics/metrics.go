// Package metrics owns the Prometheus registry and the collectors the server
// reports on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "adi"

type Metrics struct {
	registry *prometheus.Registry

	Submissions        *prometheus.CounterVec
	EligibilityChecks  *prometheus.CounterVec
	VerificationEvents *prometheus.CounterVec
	NarrativeRequests  *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New creates a registry with the Go and process collectors plus the
// application collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "survey_submissions_total",
			Help:      "Survey submissions by outcome.",
		}, []string{"result"}),
		EligibilityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eligibility_checks_total",
			Help:      "Annual eligibility checks by outcome.",
		}, []string{"eligible"}),
		VerificationEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_events_total",
			Help:      "Identity verification starts and confirmations by outcome.",
		}, []string{"step", "result"}),
		NarrativeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narrative_requests_total",
			Help:      "AI narrative generations by kind and outcome.",
		}, []string{"kind", "result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Submissions,
		m.EligibilityChecks,
		m.VerificationEvents,
		m.NarrativeRequests,
		m.HTTPDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler(logger *zap.Logger) http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promLogger{logger},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Result labels an outcome: "ok" or the error code.
func Result(code string) string {
	if code == "" {
		return "ok"
	}
	return code
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// promLogger implements promhttp.Logger.
type promLogger struct{ l *zap.Logger }

func (p promLogger) Println(v ...interface{}) {
	if p.l != nil {
		p.l.Sugar().Error(v...)
	}
}
