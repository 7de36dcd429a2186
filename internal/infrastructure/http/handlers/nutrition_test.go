package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/ports/inbound"
	apperrors "github.com/nutrisense/api/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type MockNutritionService struct {
	mock.Mock
}

func (m *MockNutritionService) Predict(ctx context.Context, raw map[string]interface{}) (*nutrition.Prediction, error) {
	args := m.Called(ctx, raw)
	if p, ok := args.Get(0).(*nutrition.Prediction); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNutritionService) Recommend(ctx context.Context, raw map[string]interface{}, opts inbound.RecommendOptions) (*inbound.Recommendation, error) {
	args := m.Called(ctx, raw, opts)
	if rec, ok := args.Get(0).(*inbound.Recommendation); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNutritionService) Advise(ctx context.Context, cmd inbound.AdviceCommand) (*nutrition.NutritionAdvice, error) {
	args := m.Called(ctx, cmd)
	if a, ok := args.Get(0).(*nutrition.NutritionAdvice); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNutritionService) EnrichRecipes(ctx context.Context, groups []nutrition.FoodGroup) []nutrition.EnrichedFoodGroup {
	args := m.Called(ctx, groups)
	return args.Get(0).([]nutrition.EnrichedFoodGroup)
}

func (m *MockNutritionService) Capabilities() inbound.Capabilities {
	return m.Called().Get(0).(inbound.Capabilities)
}

const surveyBody = `{"Age": 25, "Height": 1.75, "Weight": 60, "FCVC": 2, "FAVC": "yes", "NCP": 3,
  "CAEC": "Sometimes", "CH2O": 2, "FAF": 0.5, "TUE": 1, "SMOKE": "no", "CALC": "no",
  "MTRANS": "Walking", "SCC": "no"}`

func newRouter(t *testing.T, svc *MockNutritionService) http.Handler {
	t.Helper()
	h := NewNutritionHandlers(svc, zaptest.NewLogger(t))
	r := chi.NewRouter()
	r.Post("/predict", h.Predict)
	r.Post("/recommendations", h.Recommend)
	r.Post("/advice", h.Advise)
	r.Post("/recipes", h.EnrichRecipes)
	r.Get("/capabilities", h.Capabilities)
	return r
}

func do(t *testing.T, handler http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return rec, envelope
}

func TestPredict(t *testing.T) {
	svc := new(MockNutritionService)
	svc.On("Predict", mock.Anything, mock.MatchedBy(func(raw map[string]interface{}) bool {
		_, isNumber := raw["Age"].(json.Number)
		return isNumber && raw["MTRANS"] == "Walking"
	})).Return(&nutrition.Prediction{
		NutritionRisk: nutrition.RiskUnderNutrition,
		NutrientRisks: []string{"Protein deficiency"},
	}, nil)

	rec, envelope := do(t, newRouter(t, svc), http.MethodPost, "/predict", surveyBody)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, envelope["success"])
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "UNDER_NUTRITION", data["nutrition_risk"])
	assert.Equal(t, []interface{}{"Protein deficiency"}, data["nutrient_risks"])
	svc.AssertExpectations(t)
}

func TestPredict_ValidationError(t *testing.T) {
	svc := new(MockNutritionService)
	svc.On("Predict", mock.Anything, mock.Anything).Return(nil, &nutrition.ValidationError{Fields: []nutrition.FieldError{
		{Field: "Age", Reason: "is required", Accepted: "integer in [1, 125]"},
		{Field: "MTRANS", Reason: "value \"Plane\" is not allowed"},
	}})

	rec, envelope := do(t, newRouter(t, svc), http.MethodPost, "/predict", `{"MTRANS": "Plane"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, envelope["success"])
	assert.Equal(t, "VALIDATION_FAILED", envelope["code"])
	fields := envelope["fields"].([]interface{})
	require.Len(t, fields, 2)
	first := fields[0].(map[string]interface{})
	assert.Equal(t, "Age", first["field"])
	assert.Equal(t, "integer in [1, 125]", first["accepted"])
}

func TestPredict_BadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"not json", "Age=25"},
		{"array", `[1, 2]`},
		{"null", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockNutritionService)

			rec, envelope := do(t, newRouter(t, svc), http.MethodPost, "/predict", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "BAD_REQUEST", envelope["code"])
			svc.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
		})
	}
}

func TestPredict_ModelFailure(t *testing.T) {
	svc := new(MockNutritionService)
	svc.On("Predict", mock.Anything, mock.Anything).Return(nil, &nutrition.ClassificationError{
		Kind:  nutrition.ModelFailure,
		Cause: errors.New("class index 7 out of range"),
	})

	rec, envelope := do(t, newRouter(t, svc), http.MethodPost, "/predict", surveyBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "CLASSIFICATION_FAILED", envelope["code"])
	assert.NotContains(t, rec.Body.String(), "out of range")
}

func TestRecommend_QueryOptions(t *testing.T) {
	tests := []struct {
		query string
		want  inbound.RecommendOptions
	}{
		{"", inbound.RecommendOptions{IncludeAdvice: true, IncludeRecipes: true}},
		{"?recipes=false", inbound.RecommendOptions{IncludeAdvice: true, IncludeRecipes: false}},
		{"?advice=0&recipes=0", inbound.RecommendOptions{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			svc := new(MockNutritionService)
			svc.On("Recommend", mock.Anything, mock.Anything, tt.want).Return(&inbound.Recommendation{
				Prediction: nutrition.Prediction{NutritionRisk: nutrition.RiskBalanced, NutrientRisks: []string{}},
				AdviceError: &inbound.AdviceError{
					Code:    inbound.AdviceErrorTruncated,
					Message: "generation truncated: finish reason MAX_TOKENS",
				},
			}, nil)

			rec, envelope := do(t, newRouter(t, svc), http.MethodPost, "/recommendations"+tt.query, surveyBody)

			assert.Equal(t, http.StatusOK, rec.Code)
			data := envelope["data"].(map[string]interface{})
			assert.Equal(t, "BALANCED", data["nutrition_risk"])
			assert.Equal(t, "GENERATION_TRUNCATED", data["advice_error"].(map[string]interface{})["code"])
			svc.AssertExpectations(t)
		})
	}
}

func TestRecommend_InvalidQuery(t *testing.T) {
	svc := new(MockNutritionService)

	rec, envelope := do(t, newRouter(t, svc), http.MethodPost, "/recommendations?advice=maybe", surveyBody)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "advice", envelope["fields"].([]interface{})[0].(map[string]interface{})["field"])
}

func TestAdvise(t *testing.T) {
	svc := new(MockNutritionService)
	want := inbound.AdviceCommand{
		NutritionRisk: nutrition.RiskOverNutrition,
		NutrientRisks: []string{"Excess sugar"},
		UserContext:   nutrition.UserContext{Age: 40, FAF: 1},
	}
	svc.On("Advise", mock.Anything, want).Return(&nutrition.NutritionAdvice{
		Explanation: "Cut back on sugary drinks.",
		Nutrients:   []string{"fiber"},
		FoodGroups:  []nutrition.FoodGroup{},
	}, nil)

	rec, envelope := do(t, newRouter(t, svc), http.MethodPost, "/advice",
		`{"nutrition_risk": "OVER_NUTRITION", "nutrient_risks": ["Excess sugar"], "user_context": {"Age": 40, "FAF": 1}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cut back on sugary drinks.", envelope["data"].(map[string]interface{})["explanation"])
	svc.AssertExpectations(t)
}

func TestAdvise_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"missing label", `{"nutrient_risks": []}`, nil, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"truncated", `{"nutrition_risk": "BALANCED"}`, &nutrition.GenerationTruncationError{FinishReason: "MAX_TOKENS"}, http.StatusBadGateway, "GENERATION_TRUNCATED"},
		{"not configured", `{"nutrition_risk": "BALANCED"}`, apperrors.NewAppError(apperrors.CodeServiceUnavailable, "Advice generation is not configured", ""), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockNutritionService)
			if tt.err != nil {
				svc.On("Advise", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			rec, envelope := do(t, newRouter(t, svc), http.MethodPost, "/advice", tt.body)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, envelope["code"])
		})
	}
}

func TestEnrichRecipes(t *testing.T) {
	svc := new(MockNutritionService)
	svc.On("EnrichRecipes", mock.Anything, []nutrition.FoodGroup{{
		MealType:    nutrition.MealBreakfast,
		Ingredients: []nutrition.Ingredient{{Name: "oats", Reason: "fiber"}},
	}}).Return([]nutrition.EnrichedFoodGroup{{
		MealType:    nutrition.MealBreakfast,
		Ingredients: []nutrition.Ingredient{{Name: "oats", Reason: "fiber"}},
		Recipes:     []nutrition.Recipe{{ID: 9, Title: "Overnight oats"}},
	}})

	rec, envelope := do(t, newRouter(t, svc), http.MethodPost, "/recipes",
		`{"food_groups": [{"meal_type": "breakfast", "ingredients": [{"name": "oats", "reason": "fiber"}]}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	groups := envelope["data"].(map[string]interface{})["food_groups"].([]interface{})
	require.Len(t, groups, 1)
	recipes := groups[0].(map[string]interface{})["recipes"].([]interface{})
	assert.Equal(t, "Overnight oats", recipes[0].(map[string]interface{})["title"])
}

func TestEnrichRecipes_InvalidMealType(t *testing.T) {
	svc := new(MockNutritionService)

	rec, envelope := do(t, newRouter(t, svc), http.MethodPost, "/recipes",
		`{"food_groups": [{"meal_type": "dessert", "ingredients": []}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	field := envelope["fields"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "food_groups[0].meal_type", field["field"])
	assert.Equal(t, "one of: breakfast, main, snack", field["accepted"])
}

func TestCapabilities(t *testing.T) {
	svc := new(MockNutritionService)
	svc.On("Capabilities").Return(inbound.Capabilities{Advice: true, AdviceProvider: "gemini", ModelVersion: "v1"})

	rec, envelope := do(t, newRouter(t, svc), http.MethodGet, "/capabilities", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "gemini", data["advice_provider"])
	assert.Equal(t, false, data["recipes"])
}

func TestToAppError(t *testing.T) {
	appErr, fields := ToAppError(&nutrition.ClassificationError{Kind: nutrition.UnknownCategory, Field: "CALC", Value: "Daily"})
	assert.Equal(t, apperrors.CodeValidationFailed, appErr.Code)
	require.Len(t, fields, 1)
	assert.Equal(t, "CALC", fields[0].Field)

	appErr, fields = ToAppError(errors.New("boom"))
	assert.Equal(t, apperrors.CodeInternal, appErr.Code)
	assert.Nil(t, fields)

	unavailable := apperrors.NewAppError(apperrors.CodeServiceUnavailable, "Advice generation is not configured", "")
	appErr, _ = ToAppError(fmt.Errorf("advise: %w", unavailable))
	assert.Same(t, unavailable, appErr)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.StatusCode())
}
