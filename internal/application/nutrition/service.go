// Package nutrition provides the application layer for nutrition risk prediction
// This implements the use cases defined in the inbound ports
package nutrition

import (
	"context"
	"errors"
	"time"

	"github.com/nutrisense/api/internal/application/advice"
	"github.com/nutrisense/api/internal/application/classifier"
	"github.com/nutrisense/api/internal/application/enrichment"
	"github.com/nutrisense/api/internal/application/validation"
	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/ports/inbound"
	"github.com/nutrisense/api/internal/ports/outbound"
	apperrors "github.com/nutrisense/api/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const tracerName = "github.com/nutrisense/api/internal/application/nutrition"

// Service implements the nutrition use cases
type Service struct {
	validator    *validation.FeatureValidator
	classifier   *classifier.RiskClassifier
	engine       *nutrition.Engine
	advice       *advice.Service
	enrichment   *enrichment.Service
	metrics      outbound.PipelineMetrics
	capabilities inbound.Capabilities
	logger       *zap.Logger
}

// Dependencies groups the collaborators of the service. Advice and
// Enrichment are optional.
type Dependencies struct {
	Validator    *validation.FeatureValidator
	Classifier   *classifier.RiskClassifier
	Engine       *nutrition.Engine
	Advice       *advice.Service
	Enrichment   *enrichment.Service
	Metrics      outbound.PipelineMetrics
	Capabilities inbound.Capabilities
}

// NewService creates a new nutrition service
func NewService(deps Dependencies, logger *zap.Logger) inbound.NutritionService {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = outbound.NopMetrics{}
	}
	engine := deps.Engine
	if engine == nil {
		engine = nutrition.NewDefaultEngine()
	}
	caps := deps.Capabilities
	caps.Advice = deps.Advice != nil
	caps.Recipes = caps.Recipes && deps.Enrichment != nil

	return &Service{
		validator:    deps.Validator,
		classifier:   deps.Classifier,
		engine:       engine,
		advice:       deps.Advice,
		enrichment:   deps.Enrichment,
		metrics:      metrics,
		capabilities: caps,
		logger:       logger.Named("nutrition-service"),
	}
}

// Predict validates, classifies and infers nutrient risks. Only
// *nutrition.ValidationError and *nutrition.ClassificationError are returned.
func (s *Service) Predict(ctx context.Context, raw map[string]interface{}) (*nutrition.Prediction, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "nutrition.Predict")
	defer span.End()

	prediction, _, err := s.predict(ctx, raw)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("nutrition.risk", string(prediction.NutritionRisk)))
	return prediction, nil
}

func (s *Service) predict(ctx context.Context, raw map[string]interface{}) (*nutrition.Prediction, nutrition.FeatureRecord, error) {
	start := time.Now()

	record, err := s.validator.Validate(raw)
	if err != nil {
		var verr *nutrition.ValidationError
		if errors.As(err, &verr) {
			s.metrics.RecordValidationFailure(len(verr.Fields))
		}
		return nil, nutrition.FeatureRecord{}, err
	}

	label, err := s.classifier.Classify(ctx, record)
	if err != nil {
		var cerr *nutrition.ClassificationError
		if errors.As(err, &cerr) && cerr.Kind == nutrition.UnknownCategory {
			verr := cerr.AsValidationError()
			s.metrics.RecordValidationFailure(len(verr.Fields))
			return nil, nutrition.FeatureRecord{}, verr
		}
		s.logger.Error("Classification failed", zap.Error(err))
		return nil, nutrition.FeatureRecord{}, err
	}

	risks := s.engine.Infer(label, record)
	s.metrics.RecordPrediction(label)

	s.logger.Info("Prediction completed",
		zap.String("nutrition_risk", string(label)),
		zap.Int("nutrient_risks", len(risks)),
		zap.Duration("duration", time.Since(start)),
	)

	return &nutrition.Prediction{NutritionRisk: label, NutrientRisks: risks}, record, nil
}

// Recommend runs the prediction and the requested optional stages. Advice
// truncation is reported in Recommendation.AdviceError; recipe search never
// fails the call.
func (s *Service) Recommend(ctx context.Context, raw map[string]interface{}, opts inbound.RecommendOptions) (*inbound.Recommendation, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "nutrition.Recommend")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("recommend.advice", opts.IncludeAdvice),
		attribute.Bool("recommend.recipes", opts.IncludeRecipes),
	)

	prediction, record, err := s.predict(ctx, raw)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rec := &inbound.Recommendation{Prediction: *prediction}
	if !opts.IncludeAdvice {
		return rec, nil
	}

	if s.advice == nil {
		rec.AdviceError = &inbound.AdviceError{
			Code:    inbound.AdviceErrorUnavailable,
			Message: "advice generation is not configured",
		}
		return rec, nil
	}

	adv, err := s.advice.Generate(ctx, prediction.NutritionRisk, prediction.NutrientRisks, nutrition.ContextFrom(record))
	if err != nil {
		rec.AdviceError = &inbound.AdviceError{
			Code:    inbound.AdviceErrorTruncated,
			Message: err.Error(),
		}
		return rec, nil
	}
	rec.Advice = adv

	if opts.IncludeRecipes {
		rec.FoodGroups = s.EnrichRecipes(ctx, adv.FoodGroups)
	}
	return rec, nil
}

// Advise generates advice for a prediction made earlier
func (s *Service) Advise(ctx context.Context, cmd inbound.AdviceCommand) (*nutrition.NutritionAdvice, error) {
	if _, err := nutrition.ParseRiskLabel(string(cmd.NutritionRisk)); err != nil {
		return nil, &nutrition.ValidationError{Fields: []nutrition.FieldError{{
			Field:    "nutrition_risk",
			Reason:   err.Error(),
			Accepted: "one of: UNDER_NUTRITION, OVER_NUTRITION, BALANCED",
		}}}
	}
	if s.advice == nil {
		return nil, apperrors.NewAppError(apperrors.CodeServiceUnavailable, "Advice generation is not configured", "")
	}

	risks := cmd.NutrientRisks
	if risks == nil {
		risks = []string{}
	}
	return s.advice.Generate(ctx, cmd.NutritionRisk, risks, cmd.UserContext)
}

// EnrichRecipes normalizes the groups and searches recipes for each of them
func (s *Service) EnrichRecipes(ctx context.Context, groups []nutrition.FoodGroup) []nutrition.EnrichedFoodGroup {
	groups = advice.NormalizeFoodGroups(groups)
	if s.enrichment == nil {
		out := make([]nutrition.EnrichedFoodGroup, 0, len(groups))
		for _, g := range groups {
			out = append(out, nutrition.EnrichedFoodGroup{
				MealType:    g.MealType,
				Ingredients: g.Ingredients,
				Recipes:     []nutrition.Recipe{},
			})
		}
		return out
	}
	return s.enrichment.Enrich(ctx, groups)
}

// Capabilities reports which optional stages are configured
func (s *Service) Capabilities() inbound.Capabilities {
	return s.capabilities
}
