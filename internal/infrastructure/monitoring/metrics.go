// Package monitoring provides Prometheus metrics and OpenTelemetry setup
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/ports/outbound"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "nutrisense"

// MetricsCollector handles Prometheus metrics collection. It owns its
// registry so collectors can be created more than once per process.
type MetricsCollector struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Pipeline metrics
	predictionsTotal       *prometheus.CounterVec
	validationFailures     prometheus.Counter
	validationFieldsFailed prometheus.Histogram
	adviceTotal            *prometheus.CounterVec
	retriesTotal           *prometheus.CounterVec
	recipeSearchesTotal    *prometheus.CounterVec
	recipeQuotaLeft        prometheus.Gauge
}

var _ outbound.PipelineMetrics = (*MetricsCollector)(nil)

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &MetricsCollector{
		registry: reg,
		logger:   logger,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path", "status_code"},
		),
		httpResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path", "status_code"},
		),

		predictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Total number of risk predictions by label",
			},
			[]string{"nutrition_risk"},
		),
		validationFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Total number of rejected survey submissions",
			},
		),
		validationFieldsFailed: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validation_failed_fields",
				Help:      "Number of offending fields per rejected submission",
				Buckets:   []float64{1, 2, 4, 8, 16},
			},
		),
		adviceTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "advice_generations_total",
				Help:      "Total number of advice generations by outcome",
			},
			[]string{"outcome"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_retries_total",
				Help:      "Total number of retried external calls",
			},
			[]string{"boundary"},
		),
		recipeSearchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recipe_searches_total",
				Help:      "Total number of recipe searches by outcome",
			},
			[]string{"outcome"},
		),
		recipeQuotaLeft: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "recipe_quota_left",
				Help:      "Remaining recipe API quota reported by the last response",
			},
		),
	}
}

// Registry exposes the registry for additional exporters
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPMiddleware records request metrics labelled by chi route pattern
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		statusCode := strconv.Itoa(status)

		m.httpRequestsTotal.WithLabelValues(r.Method, path, statusCode).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, path, statusCode).Observe(time.Since(start).Seconds())
		m.httpResponseSize.WithLabelValues(r.Method, path, statusCode).Observe(float64(ww.BytesWritten()))
	})
}

// RecordPrediction counts a successful prediction
func (m *MetricsCollector) RecordPrediction(label nutrition.RiskLabel) {
	m.predictionsTotal.WithLabelValues(string(label)).Inc()
}

// RecordValidationFailure counts a rejected submission
func (m *MetricsCollector) RecordValidationFailure(fields int) {
	m.validationFailures.Inc()
	m.validationFieldsFailed.Observe(float64(fields))
}

func (m *MetricsCollector) RecordAdvice(outcome string) {
	m.adviceTotal.WithLabelValues(outcome).Inc()
}

func (m *MetricsCollector) RecordRetry(boundary string) {
	m.retriesTotal.WithLabelValues(boundary).Inc()
}

func (m *MetricsCollector) RecordRecipeSearch(outcome string) {
	m.recipeSearchesTotal.WithLabelValues(outcome).Inc()
}

func (m *MetricsCollector) SetRecipeQuota(left float64) {
	m.recipeQuotaLeft.Set(left)
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:          zap.NewStdLog(m.logger),
		EnableOpenMetrics: true,
	})
}
