package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "SPOONACULAR_API_KEY", "NUTRISENSE_AI_PROVIDER"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "NutriSense", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ProviderGemini, cfg.AI.Provider)
	assert.Equal(t, 0.2, cfg.AI.Temperature)
	assert.Equal(t, 0.8, cfg.AI.TopP)
	assert.Equal(t, 3, cfg.AI.MaxRetries)
	assert.Equal(t, time.Second, cfg.AI.BaseDelay)
	assert.Equal(t, 5, cfg.Recipes.ResultCount)
	assert.Equal(t, 2, cfg.Recipes.Ranking)
	assert.Equal(t, 4, cfg.Recipes.MaxMissedIngredients)
	assert.Equal(t, 500*time.Millisecond, cfg.Recipes.BaseDelay)
	assert.False(t, cfg.AdviceEnabled())
	assert.False(t, cfg.RecipesEnabled())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("NUTRISENSE_SERVER_PORT", "9000")
	t.Setenv("NUTRISENSE_AI_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SPOONACULAR_API_KEY", "spoon")
	t.Setenv("NUTRISENSE_RECIPES_QUOTA_LOW_WATER_MARK", "25")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "sk-test", cfg.AI.OpenAIKey)
	assert.Equal(t, "spoon", cfg.Recipes.APIKey)
	assert.Equal(t, 25.0, cfg.Recipes.QuotaLowWaterMark)
	assert.True(t, cfg.AdviceEnabled())
	assert.True(t, cfg.RecipesEnabled())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  environment: production
ai:
  provider: ollama
  max_retries: 1
recipes:
  ranking: 1
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ProviderOllama, cfg.AI.Provider)
	assert.Equal(t, 1, cfg.AI.MaxRetries)
	assert.Equal(t, 1, cfg.Recipes.Ranking)
	assert.True(t, cfg.AdviceEnabled())
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown provider", func(c *Config) { c.AI.Provider = "bard" }},
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"artifact", func(c *Config) { c.Model.ArtifactPath = "" }},
		{"temperature", func(c *Config) { c.AI.Temperature = 3 }},
		{"top_p", func(c *Config) { c.AI.TopP = 0 }},
		{"ranking", func(c *Config) { c.Recipes.Ranking = 3 }},
		{"result count", func(c *Config) { c.Recipes.ResultCount = 0 }},
		{"sampling", func(c *Config) { c.Monitoring.SamplingRate = 1.5 }},
		{"advice outlives request", func(c *Config) { c.AI.Timeout = 30 * time.Second }},
		{"recipe search outlives request", func(c *Config) { c.Recipes.Timeout = 20 * time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWorstCase(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	// 4 attempts of 10s plus 1s, 2s and 4s of backoff
	assert.Equal(t, 47*time.Second, cfg.AI.WorstCase())
	// 3 attempts of 8s plus 500ms and 1s of backoff
	assert.Equal(t, 25500*time.Millisecond, cfg.Recipes.WorstCase())
	assert.Less(t, cfg.AI.WorstCase(), cfg.Server.RequestTimeout)
	assert.NoError(t, cfg.Validate())

	capped := AIConfig{Timeout: time.Second, MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 1500 * time.Millisecond}
	assert.Equal(t, 4*time.Second+time.Second+1500*time.Millisecond*2, capped.WorstCase())
}

func TestAddress(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "127.0.0.1", Port: 8081}}

	assert.Equal(t, "127.0.0.1:8081", cfg.Address())
}
