package monitoring

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/nutrisense/api/internal/application/advice"
	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/ports/outbound"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestPipelineMetrics(t *testing.T) {
	m := NewMetricsCollector(zaptest.NewLogger(t))

	m.RecordPrediction(nutrition.RiskOverNutrition)
	m.RecordPrediction(nutrition.RiskOverNutrition)
	m.RecordValidationFailure(3)
	m.RecordAdvice(outbound.OutcomeFallback)
	m.RecordRetry("recipes")
	m.RecordRecipeSearch(outbound.OutcomeRateLimited)
	m.SetRecipeQuota(4.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.predictionsTotal.WithLabelValues("OVER_NUTRITION")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adviceTotal.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retriesTotal.WithLabelValues("recipes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recipeSearchesTotal.WithLabelValues("rate_limited")))
	assert.Equal(t, 4.5, testutil.ToFloat64(m.recipeQuotaLeft))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewMetricsCollector(zaptest.NewLogger(t))
	b := NewMetricsCollector(zaptest.NewLogger(t))

	a.RecordAdvice(outbound.OutcomeSuccess)

	assert.Equal(t, 0.0, testutil.ToFloat64(b.adviceTotal.WithLabelValues("success")))
}

func TestHTTPMiddleware(t *testing.T) {
	m := NewMetricsCollector(zaptest.NewLogger(t))

	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware)
	r.Post("/predict", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{}`))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/predict", "400")))

	scrape := httptest.NewRecorder()
	r.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(scrape.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `nutrisense_http_requests_total{method="POST",path="/predict",status_code="400"} 1`)
}

func TestTelemetry_ExportsMeterInstruments(t *testing.T) {
	m := NewMetricsCollector(zaptest.NewLogger(t))

	tel, err := NewTelemetry(context.Background(), TelemetryConfig{ServiceName: "test"}, m.Registry(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	counter, err := otel.Meter("test").Int64Counter("test_widgets")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	assert.Equal(t, 3.0, gatheredCounter(t, m.Registry(), "test_widgets_total"))
}

type fixedGenerator struct{}

func (fixedGenerator) Name() string { return "fixed" }

func (fixedGenerator) Generate(_ context.Context, _ outbound.GenerationRequest) (*outbound.GenerationResult, error) {
	return &outbound.GenerationResult{
		Text:         `{"explanation": "Eat more greens.", "nutrients": [], "food_groups": []}`,
		FinishReason: outbound.FinishReasonStop,
		PromptTokens: 40,
		OutputTokens: 12,
	}, nil
}

func TestTelemetry_ExportsAdviceTokenCounter(t *testing.T) {
	m := NewMetricsCollector(zaptest.NewLogger(t))

	tel, err := NewTelemetry(context.Background(), TelemetryConfig{ServiceName: "test"}, m.Registry(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	svc, err := advice.NewService(fixedGenerator{}, advice.DefaultConfig(), m, zap.NewNop())
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), nutrition.RiskBalanced, []string{"Low fiber intake"}, nutrition.UserContext{Age: 30})
	require.NoError(t, err)

	assert.Equal(t, 52.0, gatheredCounter(t, m.Registry(), "advice_generation_tokens_total"))
}

// gatheredCounter sums the counter family whose name matches want once dots
// are folded to underscores; the exporter keeps UTF-8 instrument names.
func gatheredCounter(t *testing.T, registry *prometheus.Registry, want string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if strings.ReplaceAll(f.GetName(), ".", "_") != want {
			continue
		}
		var total float64
		for _, metric := range f.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("metric family %s not gathered", want)
	return 0
}
