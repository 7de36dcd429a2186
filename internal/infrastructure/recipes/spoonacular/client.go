// Package spoonacular provides a client for the Spoonacular recipe search API
package spoonacular

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/ports/outbound"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public API endpoint
	DefaultBaseURL = "https://api.spoonacular.com"
	// QuotaLeftHeader carries the remaining daily points
	QuotaLeftHeader = "X-API-Quota-Left"
)

// Config holds the client settings
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// RequestsPerSecond spaces outbound calls, zero disables throttling
	RequestsPerSecond float64
}

// Client implements outbound.RecipeSearcher
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a new Spoonacular client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: limiter,
		logger:  logger.Named("spoonacular-client"),
	}
}

// findByIngredients response item
type recipeResult struct {
	ID                    int          `json:"id"`
	Title                 string       `json:"title"`
	Image                 string       `json:"image"`
	UsedIngredientCount   int          `json:"usedIngredientCount"`
	MissedIngredientCount int          `json:"missedIngredientCount"`
	MissedIngredients     []ingredient `json:"missedIngredients"`
	Likes                 int          `json:"likes"`
}

type ingredient struct {
	Name string `json:"name"`
}

// Search calls GET /recipes/findByIngredients
func (c *Client) Search(ctx context.Context, query outbound.RecipeQuery) (*outbound.RecipeSearchResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	params := url.Values{}
	params.Set("ingredients", strings.Join(query.Ingredients, ","))
	params.Set("number", strconv.Itoa(query.Number))
	params.Set("ranking", strconv.Itoa(query.Ranking))
	params.Set("ignorePantry", strconv.FormatBool(query.IgnorePantry))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/recipes/findByIngredients?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &nutrition.EnrichmentTransientError{Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPaymentRequired, resp.StatusCode == http.StatusTooManyRequests:
		return nil, &nutrition.EnrichmentRateLimitedError{StatusCode: resp.StatusCode}
	case resp.StatusCode >= 500:
		return nil, &nutrition.EnrichmentTransientError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("recipe search returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []recipeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := &outbound.RecipeSearchResult{
		Recipes:   make([]nutrition.Recipe, 0, len(results)),
		QuotaLeft: quotaLeft(resp.Header),
	}
	for _, r := range results {
		missed := make([]string, 0, len(r.MissedIngredients))
		for _, m := range r.MissedIngredients {
			missed = append(missed, m.Name)
		}
		out.Recipes = append(out.Recipes, nutrition.Recipe{
			ID:                    r.ID,
			Title:                 r.Title,
			Image:                 r.Image,
			UsedIngredientCount:   r.UsedIngredientCount,
			MissedIngredientCount: r.MissedIngredientCount,
			MissedIngredients:     missed,
			Likes:                 r.Likes,
		})
	}

	c.logger.Debug("Recipe search completed",
		zap.Int("ingredients", len(query.Ingredients)),
		zap.Int("recipes", len(out.Recipes)),
	)
	return out, nil
}

func quotaLeft(h http.Header) *float64 {
	raw := h.Get(QuotaLeftHeader)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil
	}
	return &v
}
