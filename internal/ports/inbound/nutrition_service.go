// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"

	"github.com/nutrisense/api/internal/domain/nutrition"
)

// NutritionService defines the nutrition risk use cases
// This is the primary port that HTTP handlers use
type NutritionService interface {
	// Predict validates the survey answers, classifies them and infers nutrient risks
	Predict(ctx context.Context, raw map[string]interface{}) (*nutrition.Prediction, error)

	// Recommend runs Predict and then the optional advice and recipe stages
	Recommend(ctx context.Context, raw map[string]interface{}, opts RecommendOptions) (*Recommendation, error)

	// Advise generates advice for an existing prediction
	Advise(ctx context.Context, cmd AdviceCommand) (*nutrition.NutritionAdvice, error)

	// EnrichRecipes normalizes the groups and attaches recipe suggestions
	EnrichRecipes(ctx context.Context, groups []nutrition.FoodGroup) []nutrition.EnrichedFoodGroup

	// Capabilities reports which optional stages are configured
	Capabilities() Capabilities
}

// RecommendOptions selects the optional stages of Recommend
type RecommendOptions struct {
	IncludeAdvice  bool
	IncludeRecipes bool
}

// AdviceCommand contains a prediction to explain
type AdviceCommand struct {
	NutritionRisk nutrition.RiskLabel
	NutrientRisks []string
	UserContext   nutrition.UserContext
}

// AdviceError reports an advice failure in-band without failing the request
type AdviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Advice error codes
const (
	AdviceErrorTruncated   = "GENERATION_TRUNCATED"
	AdviceErrorUnavailable = "ADVICE_UNAVAILABLE"
)

// Recommendation is the full pipeline result
type Recommendation struct {
	nutrition.Prediction
	Advice      *nutrition.NutritionAdvice    `json:"advice,omitempty"`
	AdviceError *AdviceError                  `json:"advice_error,omitempty"`
	FoodGroups  []nutrition.EnrichedFoodGroup `json:"food_groups,omitempty"`
}

// Capabilities lists the configured optional stages
type Capabilities struct {
	Advice         bool   `json:"advice"`
	AdviceProvider string `json:"advice_provider,omitempty"`
	Recipes        bool   `json:"recipes"`
	ModelVersion   string `json:"model_version"`
}
