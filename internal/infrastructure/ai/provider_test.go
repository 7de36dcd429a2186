package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nutrisense/api/internal/infrastructure/ai/gemini"
	"github.com/nutrisense/api/internal/infrastructure/ai/ollama"
	"github.com/nutrisense/api/internal/infrastructure/ai/openai"
	"github.com/nutrisense/api/internal/infrastructure/config"
	"github.com/nutrisense/api/internal/ports/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewTextGenerator(t *testing.T) {
	tests := []struct {
		name     string
		ai       config.AIConfig
		wantNil  bool
		wantType interface{}
	}{
		{"gemini", config.AIConfig{Provider: config.ProviderGemini, GeminiKey: "k"}, false, &gemini.Client{}},
		{"gemini without key", config.AIConfig{Provider: config.ProviderGemini}, true, nil},
		{"openai", config.AIConfig{Provider: config.ProviderOpenAI, OpenAIKey: "k"}, false, &openai.Client{}},
		{"ollama", config.AIConfig{Provider: config.ProviderOllama}, false, &ollama.Client{}},
		{"none", config.AIConfig{Provider: config.ProviderNone}, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := NewTextGenerator(&config.Config{AI: tt.ai}, zaptest.NewLogger(t))

			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, gen)
				return
			}
			assert.IsType(t, tt.wantType, gen)
			assert.Equal(t, tt.ai.Provider, gen.Name())
		})
	}
}

type staticGenerator struct {
	name string
	err  error
}

func (g *staticGenerator) Name() string { return g.name }

func (g *staticGenerator) Generate(context.Context, outbound.GenerationRequest) (*outbound.GenerationResult, error) {
	return nil, errors.New("not used")
}

type probedGenerator struct {
	staticGenerator
}

func (g *probedGenerator) HealthCheck(context.Context) error { return g.err }

func TestHealthChecker(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	disabled := NewHealthChecker(nil, logger).CheckHealth(ctx)
	assert.Equal(t, "none", disabled.Provider)
	assert.Equal(t, "disabled", disabled.Status)

	hosted := NewHealthChecker(&staticGenerator{name: "gemini"}, logger)
	assert.Equal(t, "configured", hosted.CheckHealth(ctx).Status)
	assert.True(t, hosted.IsHealthy(ctx))

	down := NewHealthChecker(&probedGenerator{staticGenerator{name: "ollama", err: errors.New("connection refused")}}, logger)
	status := down.CheckHealth(ctx)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Contains(t, status.Details, "connection refused")
	assert.False(t, down.IsHealthy(ctx))
}

func TestHealthChecker_Ollama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models": [{"name": "llama3.2:3b"}]}`))
	}))
	defer srv.Close()

	gen, err := NewTextGenerator(&config.Config{AI: config.AIConfig{
		Provider:    config.ProviderOllama,
		BaseURL:     srv.URL,
		OllamaModel: "llama3.2:3b",
	}}, zaptest.NewLogger(t))
	require.NoError(t, err)

	status := NewHealthChecker(gen, zaptest.NewLogger(t)).CheckHealth(context.Background())
	assert.Equal(t, "healthy", status.Status)
}
