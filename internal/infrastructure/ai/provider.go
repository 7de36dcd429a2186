// Package ai selects and health-checks the configured advice generation provider
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/nutrisense/api/internal/infrastructure/ai/gemini"
	"github.com/nutrisense/api/internal/infrastructure/ai/ollama"
	"github.com/nutrisense/api/internal/infrastructure/ai/openai"
	"github.com/nutrisense/api/internal/infrastructure/config"
	"github.com/nutrisense/api/internal/ports/outbound"
	"go.uber.org/zap"
)

// NewTextGenerator builds the generator named by cfg.AI.Provider.
// It returns nil without error when advice generation is disabled or the
// provider has no credentials.
func NewTextGenerator(cfg *config.Config, logger *zap.Logger) (outbound.TextGenerator, error) {
	generator, err := newProvider(cfg, logger)
	if err != nil || generator == nil {
		return generator, err
	}
	return WithRateLimit(generator, cfg.AI.RequestsPerMinute), nil
}

func newProvider(cfg *config.Config, logger *zap.Logger) (outbound.TextGenerator, error) {
	if !cfg.AdviceEnabled() {
		logger.Info("Advice generation disabled", zap.String("provider", cfg.AI.Provider))
		return nil, nil
	}

	settings := cfg.AI
	switch settings.Provider {
	case config.ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:  settings.GeminiKey,
			BaseURL: settings.BaseURL,
			Model:   settings.GeminiModel,
			Timeout: settings.Timeout,
		}, logger), nil
	case config.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:  settings.OpenAIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.OpenAIModel,
			Timeout: settings.Timeout,
		}, logger), nil
	case config.ProviderOllama:
		return ollama.NewClient(ollama.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.OllamaModel,
			Timeout: settings.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", settings.Provider)
	}
}

// healthProber is implemented by providers that can be probed without
// spending tokens
type healthProber interface {
	HealthCheck(ctx context.Context) error
}

// HealthStatus represents the health of the advice provider
type HealthStatus struct {
	Provider  string    `json:"provider"`
	Status    string    `json:"status"`
	Details   string    `json:"details,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// HealthChecker reports on the configured generator
type HealthChecker struct {
	generator outbound.TextGenerator
	timeout   time.Duration
	logger    *zap.Logger
}

// NewHealthChecker creates a health checker; generator may be nil
func NewHealthChecker(generator outbound.TextGenerator, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		generator: generator,
		timeout:   5 * time.Second,
		logger:    logger.Named("ai-health"),
	}
}

// CheckHealth probes the provider. Hosted APIs are reported as configured
// since probing them costs quota.
func (h *HealthChecker) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{LastCheck: time.Now()}

	if h.generator == nil {
		status.Provider = config.ProviderNone
		status.Status = "disabled"
		return status
	}
	status.Provider = h.generator.Name()

	prober, ok := unwrap(h.generator).(healthProber)
	if !ok {
		status.Status = "configured"
		return status
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := prober.HealthCheck(checkCtx); err != nil {
		status.Status = "unhealthy"
		status.Details = err.Error()
		h.logger.Warn("AI provider health check failed",
			zap.String("provider", status.Provider),
			zap.Error(err),
		)
		return status
	}

	status.Status = "healthy"
	return status
}

// IsHealthy returns false only when a probed provider failed
func (h *HealthChecker) IsHealthy(ctx context.Context) bool {
	return h.CheckHealth(ctx).Status != "unhealthy"
}
