// Package handlers provides HTTP handlers for the REST API
package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/ports/inbound"
	apperrors "github.com/nutrisense/api/pkg/errors"
	"go.uber.org/zap"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Message string                 `json:"message,omitempty"`
	Code    apperrors.ErrorCode    `json:"code,omitempty"`
	Details string                 `json:"details,omitempty"`
	Fields  []nutrition.FieldError `json:"fields,omitempty"`
}

// NutritionHandlers handles the nutrition risk endpoints
type NutritionHandlers struct {
	service  inbound.NutritionService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewNutritionHandlers creates a new handlers instance
func NewNutritionHandlers(service inbound.NutritionService, logger *zap.Logger) *NutritionHandlers {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonTagName)
	return &NutritionHandlers{
		service:  service,
		validate: v,
		logger:   logger.Named("nutrition-api"),
	}
}

// AdviceRequest is the body of POST /advice
type AdviceRequest struct {
	NutritionRisk string                `json:"nutrition_risk" validate:"required"`
	NutrientRisks []string              `json:"nutrient_risks" validate:"dive,required"`
	UserContext   nutrition.UserContext `json:"user_context"`
}

// RecipesRequest is the body of POST /recipes
type RecipesRequest struct {
	FoodGroups []FoodGroupInput `json:"food_groups" validate:"required,dive"`
}

// FoodGroupInput is one food group submitted for recipe search
type FoodGroupInput struct {
	MealType    string                 `json:"meal_type" validate:"required,oneof=breakfast main snack"`
	Ingredients []nutrition.Ingredient `json:"ingredients"`
}

// RecipesResponse is the body returned by POST /recipes
type RecipesResponse struct {
	FoodGroups []nutrition.EnrichedFoodGroup `json:"food_groups"`
}

// Predict handles POST /api/v1/predict
func (h *NutritionHandlers) Predict(w http.ResponseWriter, r *http.Request) {
	raw, err := h.decodeFeatures(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	prediction, err := h.service.Predict(r.Context(), raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: prediction})
}

// Recommend handles POST /api/v1/recommendations?advice=bool&recipes=bool
func (h *NutritionHandlers) Recommend(w http.ResponseWriter, r *http.Request) {
	includeAdvice, err := queryBool(r, "advice", true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	includeRecipes, err := queryBool(r, "recipes", true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	raw, err := h.decodeFeatures(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rec, err := h.service.Recommend(r.Context(), raw, inbound.RecommendOptions{
		IncludeAdvice:  includeAdvice,
		IncludeRecipes: includeRecipes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: rec})
}

// Advise handles POST /api/v1/advice
func (h *NutritionHandlers) Advise(w http.ResponseWriter, r *http.Request) {
	var req AdviceRequest
	if err := h.decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, toValidationError(err))
		return
	}

	advice, err := h.service.Advise(r.Context(), inbound.AdviceCommand{
		NutritionRisk: nutrition.RiskLabel(req.NutritionRisk),
		NutrientRisks: req.NutrientRisks,
		UserContext:   req.UserContext,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: advice})
}

// EnrichRecipes handles POST /api/v1/recipes
func (h *NutritionHandlers) EnrichRecipes(w http.ResponseWriter, r *http.Request) {
	var req RecipesRequest
	if err := h.decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, toValidationError(err))
		return
	}

	groups := make([]nutrition.FoodGroup, 0, len(req.FoodGroups))
	for _, g := range req.FoodGroups {
		groups = append(groups, nutrition.FoodGroup{
			MealType:    nutrition.MealType(g.MealType),
			Ingredients: g.Ingredients,
		})
	}

	enriched := h.service.EnrichRecipes(r.Context(), groups)
	h.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: RecipesResponse{FoodGroups: enriched}})
}

// Capabilities handles GET /api/v1/capabilities
func (h *NutritionHandlers) Capabilities(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: h.service.Capabilities()})
}

// decodeFeatures reads the survey object, keeping numbers as json.Number so
// the validator can tell 25 from 25.5
func (h *NutritionHandlers) decodeFeatures(r *http.Request) (map[string]interface{}, error) {
	body, err := h.readBody(r)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, apperrors.NewBadRequestError("Request body must be a JSON object of survey answers")
	}
	return raw, nil
}

func (h *NutritionHandlers) decodeBody(r *http.Request, dst interface{}) error {
	body, err := h.readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.NewBadRequestError("Invalid JSON payload").WithCause(err)
	}
	return nil
}

func (h *NutritionHandlers) readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.NewAppError(apperrors.CodePayloadTooLarge, "Request body too large", "")
		}
		return nil, apperrors.NewBadRequestError("Failed to read request body").WithCause(err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, apperrors.NewBadRequestError("Request body is required")
	}
	return body, nil
}

func (h *NutritionHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func (h *NutritionHandlers) writeErrorJSON(w http.ResponseWriter, appErr *apperrors.AppError, fields []nutrition.FieldError) {
	h.writeJSON(w, appErr.StatusCode(), APIResponse{
		Success: false,
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
		Fields:  fields,
	})
}

// writeError maps an error to the response envelope and logs server-side failures
func (h *NutritionHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, fields := ToAppError(err)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("code", string(appErr.Code)),
			zap.Error(err),
		)
	}
	h.writeErrorJSON(w, appErr, fields)
}

func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &nutrition.ValidationError{Fields: []nutrition.FieldError{{
			Field:    name,
			Reason:   fmt.Sprintf("invalid boolean %q", raw),
			Accepted: "true or false",
		}}}
	}
	return v, nil
}
