package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/ports/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockRecipeSearcher is a mock implementation of the recipe search port
type MockRecipeSearcher struct {
	mock.Mock
}

func (m *MockRecipeSearcher) Search(ctx context.Context, query outbound.RecipeQuery) (*outbound.RecipeSearchResult, error) {
	args := m.Called(ctx, query)
	if r := args.Get(0); r != nil {
		return r.(*outbound.RecipeSearchResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type recordingMetrics struct {
	outbound.NopMetrics
	searches []string
	quota    []float64
}

func (r *recordingMetrics) RecordRecipeSearch(outcome string) {
	r.searches = append(r.searches, outcome)
}

func (r *recordingMetrics) SetRecipeQuota(left float64) {
	r.quota = append(r.quota, left)
}

func newTestService(searcher *MockRecipeSearcher) (*Service, *recordingMetrics, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	metrics := &recordingMetrics{}
	cfg := DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	return NewService(searcher, cfg, metrics, zap.New(core)), metrics, logs
}

func group(meal nutrition.MealType, names ...string) nutrition.FoodGroup {
	g := nutrition.FoodGroup{MealType: meal}
	for _, n := range names {
		g.Ingredients = append(g.Ingredients, nutrition.Ingredient{Name: n, Reason: "test"})
	}
	return g
}

func quota(v float64) *float64 {
	return &v
}

func TestEnrich_FiltersByMissedIngredients(t *testing.T) {
	searcher := &MockRecipeSearcher{}
	searcher.On("Search", mock.Anything, outbound.RecipeQuery{
		Ingredients:  []string{"lentils", "spinach"},
		Number:       5,
		Ranking:      outbound.RankingMinimizeMissed,
		IgnorePantry: true,
	}).Return(&outbound.RecipeSearchResult{Recipes: []nutrition.Recipe{
		{ID: 1, Title: "Lentil soup", MissedIngredientCount: 2},
		{ID: 2, Title: "Spinach lasagna", MissedIngredientCount: 7},
		{ID: 3, Title: "Dal", MissedIngredientCount: 4},
	}}, nil)

	svc, metrics, _ := newTestService(searcher)
	out := svc.Enrich(context.Background(), []nutrition.FoodGroup{group(nutrition.MealMain, "lentils", "spinach")})

	require.Len(t, out, 1)
	assert.Equal(t, nutrition.MealMain, out[0].MealType)
	require.Len(t, out[0].Recipes, 2)
	assert.Equal(t, 1, out[0].Recipes[0].ID)
	assert.Equal(t, 3, out[0].Recipes[1].ID)
	assert.Equal(t, []string{outbound.OutcomeSuccess}, metrics.searches)
	searcher.AssertExpectations(t)
}

func TestEnrich_MissedIngredientCutoff(t *testing.T) {
	tests := []struct {
		name   string
		missed []int
		want   []int
	}{
		{"four kept, five dropped", []int{4, 5}, []int{0}},
		{"five dropped before four", []int{5, 4}, []int{1}},
		{"zero and three kept", []int{0, 3}, []int{0, 1}},
		{"all above cutoff", []int{5, 6, 12}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recipes := make([]nutrition.Recipe, 0, len(tt.missed))
			for i, m := range tt.missed {
				recipes = append(recipes, nutrition.Recipe{ID: i, Title: "recipe", MissedIngredientCount: m})
			}
			searcher := &MockRecipeSearcher{}
			searcher.On("Search", mock.Anything, mock.Anything).
				Return(&outbound.RecipeSearchResult{Recipes: recipes}, nil)

			svc, _, _ := newTestService(searcher)
			out := svc.Enrich(context.Background(), []nutrition.FoodGroup{group(nutrition.MealSnack, "yogurt")})

			require.Len(t, out, 1)
			require.NotNil(t, out[0].Recipes)
			ids := make([]int, 0, len(out[0].Recipes))
			for _, r := range out[0].Recipes {
				ids = append(ids, r.ID)
			}
			if tt.want == nil {
				assert.Empty(t, ids)
				return
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestEnrich_PreservesOrderAndCardinality(t *testing.T) {
	searcher := &MockRecipeSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything).
		Return(&outbound.RecipeSearchResult{Recipes: []nutrition.Recipe{}}, nil)

	groups := []nutrition.FoodGroup{
		group(nutrition.MealSnack, "almonds"),
		group(nutrition.MealBreakfast),
		group(nutrition.MealMain, "salmon", "rice"),
	}

	svc, _, _ := newTestService(searcher)
	out := svc.Enrich(context.Background(), groups)

	require.Len(t, out, 3)
	assert.Equal(t, nutrition.MealSnack, out[0].MealType)
	assert.Equal(t, nutrition.MealBreakfast, out[1].MealType)
	assert.Equal(t, nutrition.MealMain, out[2].MealType)
	for _, g := range out {
		assert.NotNil(t, g.Recipes)
		assert.NotNil(t, g.Ingredients)
	}
	// the empty breakfast group never reaches the API
	searcher.AssertNumberOfCalls(t, "Search", 2)
}

func TestEnrich_RateLimitedIsNotRetried(t *testing.T) {
	searcher := &MockRecipeSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything).
		Return(nil, &nutrition.EnrichmentRateLimitedError{StatusCode: 429})

	svc, metrics, logs := newTestService(searcher)
	out := svc.Enrich(context.Background(), []nutrition.FoodGroup{group(nutrition.MealMain, "beef")})

	require.Len(t, out, 1)
	assert.Empty(t, out[0].Recipes)
	searcher.AssertNumberOfCalls(t, "Search", 1)
	assert.Equal(t, []string{outbound.OutcomeRateLimited}, metrics.searches)
	assert.Equal(t, 1, logs.FilterMessage("Recipe search rate limited, skipping group").FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestEnrich_QuotaExhausted402(t *testing.T) {
	searcher := &MockRecipeSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything).
		Return(nil, &nutrition.EnrichmentRateLimitedError{StatusCode: 402})

	svc, _, _ := newTestService(searcher)
	out := svc.Enrich(context.Background(), []nutrition.FoodGroup{group(nutrition.MealMain, "beef")})

	assert.Empty(t, out[0].Recipes)
	searcher.AssertNumberOfCalls(t, "Search", 1)
}

func TestEnrich_RetriesTransientErrors(t *testing.T) {
	searcher := &MockRecipeSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything).
		Return(nil, &nutrition.EnrichmentTransientError{StatusCode: 502}).Once()
	searcher.On("Search", mock.Anything, mock.Anything).
		Return(&outbound.RecipeSearchResult{Recipes: []nutrition.Recipe{{ID: 9, Title: "Porridge"}}}, nil).Once()

	svc, _, _ := newTestService(searcher)
	out := svc.Enrich(context.Background(), []nutrition.FoodGroup{group(nutrition.MealBreakfast, "oats")})

	require.Len(t, out[0].Recipes, 1)
	searcher.AssertNumberOfCalls(t, "Search", 2)
}

func TestEnrich_ExhaustedRetriesYieldEmptyRecipes(t *testing.T) {
	searcher := &MockRecipeSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything).
		Return(nil, &nutrition.EnrichmentTransientError{StatusCode: 503})

	svc, metrics, _ := newTestService(searcher)
	out := svc.Enrich(context.Background(), []nutrition.FoodGroup{group(nutrition.MealBreakfast, "oats")})

	assert.Empty(t, out[0].Recipes)
	searcher.AssertNumberOfCalls(t, "Search", 3)
	assert.Equal(t, []string{outbound.OutcomeFailed}, metrics.searches)
}

func TestEnrich_UnclassifiedErrorIsNotRetried(t *testing.T) {
	searcher := &MockRecipeSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything).
		Return(nil, errors.New("decode response: unexpected EOF"))

	svc, _, _ := newTestService(searcher)
	out := svc.Enrich(context.Background(), []nutrition.FoodGroup{group(nutrition.MealSnack, "apple")})

	assert.Empty(t, out[0].Recipes)
	searcher.AssertNumberOfCalls(t, "Search", 1)
}

func TestEnrich_QuotaLowWaterMark(t *testing.T) {
	searcher := &MockRecipeSearcher{}
	searcher.On("Search", mock.Anything, mock.MatchedBy(func(q outbound.RecipeQuery) bool {
		return q.Ingredients[0] == "apple"
	})).Return(&outbound.RecipeSearchResult{Recipes: []nutrition.Recipe{}, QuotaLeft: quota(3.5)}, nil)
	searcher.On("Search", mock.Anything, mock.MatchedBy(func(q outbound.RecipeQuery) bool {
		return q.Ingredients[0] == "rice"
	})).Return(&outbound.RecipeSearchResult{Recipes: []nutrition.Recipe{}, QuotaLeft: quota(120)}, nil)

	svc, metrics, logs := newTestService(searcher)
	svc.Enrich(context.Background(), []nutrition.FoodGroup{
		group(nutrition.MealSnack, "apple"),
		group(nutrition.MealMain, "rice"),
	})

	assert.Equal(t, []float64{3.5, 120}, metrics.quota)
	assert.Equal(t, 1, logs.FilterMessage("Recipe search quota running low").Len())
}

func TestEnrich_DisabledSkipsSearch(t *testing.T) {
	searcher := &MockRecipeSearcher{}
	svc, metrics, _ := newTestService(searcher)
	svc.config.Enabled = false

	out := svc.Enrich(context.Background(), []nutrition.FoodGroup{group(nutrition.MealMain, "rice")})

	require.Len(t, out, 1)
	assert.Empty(t, out[0].Recipes)
	searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	assert.Equal(t, []string{outbound.OutcomeSkipped}, metrics.searches)
}

func TestEnrich_ExpiredContextSkipsSearch(t *testing.T) {
	searcher := &MockRecipeSearcher{}
	svc, metrics, logs := newTestService(searcher)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	out := svc.Enrich(ctx, []nutrition.FoodGroup{
		group(nutrition.MealMain, "rice"),
		group(nutrition.MealSnack, "apple"),
	})

	require.Len(t, out, 2)
	assert.Empty(t, out[0].Recipes)
	assert.Empty(t, out[1].Recipes)
	searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	assert.Equal(t, []string{outbound.OutcomeSkipped, outbound.OutcomeSkipped}, metrics.searches)
	assert.Equal(t, 2, logs.FilterMessage("Request deadline reached, skipping recipe search").Len())
}
