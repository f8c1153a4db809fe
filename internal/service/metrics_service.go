package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shulepay/approvals-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the
// approval workflow and the HTTP surface.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	pinFailures     prometheus.Counter
	pinLockouts     prometheus.Counter
	documentsFinal  prometheus.Counter
	renderDuration  prometheus.Histogram
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "approval_transitions_total",
		Help: "Approval state transitions by resulting status",
	}, []string{"status"})

	pinFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pin_verification_failures_total",
		Help: "Failed PIN verification attempts",
	})

	pinLockouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pin_lockouts_total",
		Help: "PIN credentials locked after repeated failures",
	})

	documentsFinal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "documents_finalized_total",
		Help: "Documents frozen into PDF artifacts",
	})

	renderDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "document_render_duration_seconds",
		Help:    "Duration of PDF artifact rendering",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitions, pinFailures, pinLockouts, documentsFinal, renderDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitions:     transitions,
		pinFailures:     pinFailures,
		pinLockouts:     pinLockouts,
		documentsFinal:  documentsFinal,
		renderDuration:  renderDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordTransition counts one approval state transition.
func (m *MetricsService) RecordTransition(status models.ApprovalStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(status)).Inc()
}

// RecordPinFailure counts a failed verification; locked marks lockouts.
func (m *MetricsService) RecordPinFailure(locked bool) {
	if m == nil {
		return
	}
	m.pinFailures.Inc()
	if locked {
		m.pinLockouts.Inc()
	}
}

// ObserveDocumentFinalize records one finalization and its render time.
func (m *MetricsService) ObserveDocumentFinalize(duration time.Duration) {
	if m == nil {
		return
	}
	m.documentsFinal.Inc()
	m.renderDuration.Observe(duration.Seconds())
}
