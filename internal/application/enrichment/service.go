// Package enrichment attaches recipe suggestions to advice food groups using
// an external recipe search service.
package enrichment

import (
	"context"
	"errors"
	"time"

	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/ports/outbound"
	"github.com/nutrisense/api/pkg/retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const tracerName = "github.com/nutrisense/api/internal/application/enrichment"

// Config holds the recipe search settings
type Config struct {
	// Enabled is false when no recipe search credentials are configured
	Enabled      bool
	ResultCount  int
	Ranking      int
	IgnorePantry bool
	// MaxMissedIngredients drops recipes needing more ingredients than this
	MaxMissedIngredients int
	// QuotaLowWaterMark triggers a warning when the reported quota falls below it
	QuotaLowWaterMark float64
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
}

// DefaultConfig returns the production recipe search settings
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		ResultCount:          5,
		Ranking:              outbound.RankingMinimizeMissed,
		IgnorePantry:         true,
		MaxMissedIngredients: 4,
		QuotaLowWaterMark:    10,
		MaxRetries:           2,
		BaseDelay:            500 * time.Millisecond,
	}
}

// Service enriches food groups with recipes
type Service struct {
	searcher outbound.RecipeSearcher
	config   Config
	metrics  outbound.PipelineMetrics
	logger   *zap.Logger
}

// NewService creates a new enrichment service
func NewService(searcher outbound.RecipeSearcher, config Config, metrics outbound.PipelineMetrics, logger *zap.Logger) *Service {
	if metrics == nil {
		metrics = outbound.NopMetrics{}
	}
	return &Service{
		searcher: searcher,
		config:   config,
		metrics:  metrics,
		logger:   logger.Named("enrichment"),
	}
}

// Enrich returns one EnrichedFoodGroup per input group in input order.
// Search failures never propagate; the affected group gets no recipes.
func (s *Service) Enrich(ctx context.Context, groups []nutrition.FoodGroup) []nutrition.EnrichedFoodGroup {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "enrichment.Enrich")
	defer span.End()
	span.SetAttributes(attribute.Int("recipes.groups", len(groups)))

	out := make([]nutrition.EnrichedFoodGroup, 0, len(groups))
	for _, g := range groups {
		ingredients := g.Ingredients
		if ingredients == nil {
			ingredients = []nutrition.Ingredient{}
		}
		out = append(out, nutrition.EnrichedFoodGroup{
			MealType:    g.MealType,
			Ingredients: ingredients,
			Recipes:     s.recipesFor(ctx, g),
		})
	}
	return out
}

func (s *Service) recipesFor(ctx context.Context, group nutrition.FoodGroup) []nutrition.Recipe {
	names := group.IngredientNames()
	if !s.config.Enabled || len(names) == 0 {
		s.metrics.RecordRecipeSearch(outbound.OutcomeSkipped)
		return []nutrition.Recipe{}
	}

	query := outbound.RecipeQuery{
		Ingredients:  names,
		Number:       s.config.ResultCount,
		Ranking:      s.config.Ranking,
		IgnorePantry: s.config.IgnorePantry,
	}
	policy := retry.Policy{
		MaxRetries: s.config.MaxRetries,
		BaseDelay:  s.config.BaseDelay,
		MaxDelay:   s.config.MaxDelay,
		Retryable:  isTransient,
	}
	logger := s.logger.With(zap.String("meal_type", string(group.MealType)))
	if err := ctx.Err(); err != nil {
		logger.Warn("Request deadline reached, skipping recipe search", zap.Error(err))
		s.metrics.RecordRecipeSearch(outbound.OutcomeSkipped)
		return []nutrition.Recipe{}
	}

	result, err := retry.Do(ctx, policy, func(err error, attempt int, wait time.Duration) {
		logger.Warn("Recipe search unavailable, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		s.metrics.RecordRetry("recipes")
	}, func(ctx context.Context) (*outbound.RecipeSearchResult, error) {
		return s.searcher.Search(ctx, query)
	})
	if err != nil {
		var limited *nutrition.EnrichmentRateLimitedError
		if errors.As(err, &limited) {
			logger.Warn("Recipe search rate limited, skipping group", zap.Int("status", limited.StatusCode))
			s.metrics.RecordRecipeSearch(outbound.OutcomeRateLimited)
		} else {
			logger.Error("Recipe search failed, skipping group", zap.Error(err))
			s.metrics.RecordRecipeSearch(outbound.OutcomeFailed)
		}
		return []nutrition.Recipe{}
	}

	if result.QuotaLeft != nil {
		s.metrics.SetRecipeQuota(*result.QuotaLeft)
		if *result.QuotaLeft < s.config.QuotaLowWaterMark {
			logger.Warn("Recipe search quota running low",
				zap.Float64("quota_left", *result.QuotaLeft),
				zap.Float64("low_water_mark", s.config.QuotaLowWaterMark),
			)
		}
	}

	recipes := make([]nutrition.Recipe, 0, len(result.Recipes))
	for _, r := range result.Recipes {
		if r.MissedIngredientCount > s.config.MaxMissedIngredients {
			continue
		}
		recipes = append(recipes, r)
	}

	logger.Debug("Recipes found",
		zap.Int("returned", len(result.Recipes)),
		zap.Int("kept", len(recipes)),
	)
	s.metrics.RecordRecipeSearch(outbound.OutcomeSuccess)
	return recipes
}

func isTransient(err error) bool {
	var transient *nutrition.EnrichmentTransientError
	return errors.As(err, &transient)
}
