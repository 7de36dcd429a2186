// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the capabilities the application consumes from the outside world:
// the pre-trained classifier artifact, the text generation service and the
// recipe search API
package outbound

import (
	"context"

	"github.com/nutrisense/api/internal/domain/nutrition"
)

// FeatureEncoder maps a categorical field value to its trained numeric code
type FeatureEncoder interface {
	// Encode wraps nutrition.ErrUnknownCategory for values the artifact never saw
	Encode(field, value string) (float64, error)
}

// Model predicts a class index from an encoded feature vector
type Model interface {
	Predict(ctx context.Context, features []float64) (int, error)
}

// LabelDecoder maps a class index back to its risk label
type LabelDecoder interface {
	Decode(index int) (nutrition.RiskLabel, error)
}

// ClassifierArtifact bundles the three pieces of a trained classifier
type ClassifierArtifact interface {
	FeatureEncoder
	Model
	LabelDecoder
	// FeatureOrder is the column order the model was trained on
	FeatureOrder() []string
}

// GenerationParams are the sampling parameters sent with a generation request
type GenerationParams struct {
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
}

// GenerationRequest asks the text generation service for a structured result
type GenerationRequest struct {
	Prompt string
	// Schema is the JSON schema the response must conform to
	Schema map[string]interface{}
	Params GenerationParams
}

// Finish reasons normalised across providers
const (
	FinishReasonStop      = "STOP"
	FinishReasonMaxTokens = "MAX_TOKENS"
)

// GenerationResult is the raw structured output of the service
type GenerationResult struct {
	// Text holds the JSON document produced by the model
	Text         string
	FinishReason string
	PromptTokens int
	OutputTokens int
}

// TextGenerator is the generative text capability. Implementations return
// *nutrition.GenerationTransientError for retryable signals and
// *nutrition.GenerationPermanentError for rejections.
type TextGenerator interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

// Recipe ranking modes of the recipe search API
const (
	RankingMaximizeUsed   = 1
	RankingMinimizeMissed = 2
)

// RecipeQuery asks for recipes using the given ingredients
type RecipeQuery struct {
	Ingredients  []string
	Number       int
	Ranking      int
	IgnorePantry bool
}

// RecipeSearchResult carries the recipes and the optional quota hint
type RecipeSearchResult struct {
	Recipes []nutrition.Recipe
	// QuotaLeft is the remaining allowance reported by the API, nil when absent
	QuotaLeft *float64
}

// RecipeSearcher is the recipe search capability. Implementations return
// *nutrition.EnrichmentRateLimitedError and *nutrition.EnrichmentTransientError
// for the corresponding signals.
type RecipeSearcher interface {
	Search(ctx context.Context, query RecipeQuery) (*RecipeSearchResult, error)
}
