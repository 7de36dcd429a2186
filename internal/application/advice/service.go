// Package advice turns a prediction into a plain-language explanation with
// meal-typed food suggestions, using an external text generation service.
package advice

import (
	"context"
	"errors"
	"time"

	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/ports/outbound"
	"github.com/nutrisense/api/pkg/retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const tracerName = "github.com/nutrisense/api/internal/application/advice"

// Config holds the generation settings of the advice service
type Config struct {
	Params     outbound.GenerationParams
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultConfig returns the production generation settings
func DefaultConfig() Config {
	return Config{
		Params: outbound.GenerationParams{
			Temperature:     0.2,
			TopP:            0.8,
			MaxOutputTokens: 1024,
		},
		MaxRetries: 3,
		BaseDelay:  time.Second,
	}
}

// Service generates nutrition advice
type Service struct {
	generator outbound.TextGenerator
	parser    *Parser
	config    Config
	metrics   outbound.PipelineMetrics
	tokens    metric.Int64Counter
	logger    *zap.Logger
}

// NewService creates a new advice service
func NewService(generator outbound.TextGenerator, config Config, metrics outbound.PipelineMetrics, logger *zap.Logger) (*Service, error) {
	parser, err := NewParser()
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = outbound.NopMetrics{}
	}
	tokens, err := otel.Meter(tracerName).Int64Counter("advice.generation.tokens",
		metric.WithDescription("Tokens consumed by advice generation"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}
	return &Service{
		generator: generator,
		parser:    parser,
		config:    config,
		metrics:   metrics,
		tokens:    tokens,
		logger:    logger.Named("advice"),
	}, nil
}

// Generate returns advice for a prediction. The only error it returns is
// *nutrition.GenerationTruncationError; every other failure is logged and
// recovered as nutrition.FallbackAdvice.
func (s *Service) Generate(ctx context.Context, label nutrition.RiskLabel, risks []string, user nutrition.UserContext) (*nutrition.NutritionAdvice, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "advice.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("nutrition.risk", string(label)),
		attribute.Int("nutrition.nutrient_risks", len(risks)),
		attribute.String("ai.provider", s.generator.Name()),
	)

	req := outbound.GenerationRequest{
		Prompt: BuildPrompt(label, risks, user),
		Schema: ResponseSchema(),
		Params: s.config.Params,
	}

	policy := retry.Policy{
		MaxRetries: s.config.MaxRetries,
		BaseDelay:  s.config.BaseDelay,
		MaxDelay:   s.config.MaxDelay,
		Retryable:  isTransient,
	}

	start := time.Now()
	result, err := retry.Do(ctx, policy, s.onRetry, func(ctx context.Context) (*outbound.GenerationResult, error) {
		return s.generator.Generate(ctx, req)
	})
	if err != nil {
		s.logger.Error("Advice generation failed, returning fallback",
			zap.String("provider", s.generator.Name()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		span.RecordError(err)
		s.metrics.RecordAdvice(outbound.OutcomeFallback)
		return nutrition.FallbackAdvice(), nil
	}

	s.recordTokens(ctx, result)

	if result.FinishReason != outbound.FinishReasonStop {
		terr := &nutrition.GenerationTruncationError{FinishReason: result.FinishReason}
		s.logger.Warn("Advice generation truncated",
			zap.String("finish_reason", result.FinishReason),
			zap.Int("output_tokens", result.OutputTokens),
		)
		span.SetStatus(codes.Error, terr.Error())
		s.metrics.RecordAdvice(outbound.OutcomeTruncated)
		return nil, terr
	}

	advice, err := s.parser.Parse(result.Text)
	if err != nil {
		s.logger.Error("Advice response did not match schema, returning fallback",
			zap.Error(err),
			zap.Int("response_bytes", len(result.Text)),
		)
		span.RecordError(err)
		s.metrics.RecordAdvice(outbound.OutcomeFallback)
		return nutrition.FallbackAdvice(), nil
	}

	s.logger.Info("Advice generated",
		zap.String("nutrition_risk", string(label)),
		zap.Int("nutrients", len(advice.Nutrients)),
		zap.Int("food_groups", len(advice.FoodGroups)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("output_tokens", result.OutputTokens),
		zap.Duration("duration", time.Since(start)),
	)
	s.metrics.RecordAdvice(outbound.OutcomeSuccess)
	return advice, nil
}

func (s *Service) onRetry(err error, attempt int, wait time.Duration) {
	s.logger.Warn("Generation service unavailable, retrying",
		zap.Int("attempt", attempt),
		zap.Duration("backoff", wait),
		zap.Error(err),
	)
	s.metrics.RecordRetry("advice")
}

func (s *Service) recordTokens(ctx context.Context, result *outbound.GenerationResult) {
	provider := attribute.String("ai.provider", s.generator.Name())
	s.tokens.Add(ctx, int64(result.PromptTokens), metric.WithAttributes(provider, attribute.String("kind", "prompt")))
	s.tokens.Add(ctx, int64(result.OutputTokens), metric.WithAttributes(provider, attribute.String("kind", "output")))
}

func isTransient(err error) bool {
	var transient *nutrition.GenerationTransientError
	return errors.As(err, &transient)
}
