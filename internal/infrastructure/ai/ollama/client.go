// Package ollama provides Ollama integration for local advice generation
// using the native chat API with schema-constrained output
package ollama

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/ports/outbound"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the local Ollama daemon
	DefaultBaseURL = "http://localhost:11434"
	// DefaultModel is used when none is configured
	DefaultModel = "llama3.2:3b"
)

// Config holds the client settings
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements outbound.TextGenerator against /api/chat
type Client struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a new Ollama client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	// local models are slow on first load
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	logger.Info("Ollama client initialized",
		zap.String("base_url", baseURL),
		zap.String("model", model),
		zap.Duration("timeout", timeout))

	return &Client{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.Named("ollama-client"),
	}
}

// Ollama API structures
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ChatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   map[string]interface{} `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ChatResponse struct {
	Model           string      `json:"model"`
	Message         ChatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
	TotalDuration   int64       `json:"total_duration,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Name returns the provider name
func (c *Client) Name() string {
	return "ollama"
}

// Generate sends one non-streaming chat request
func (c *Client) Generate(ctx context.Context, req outbound.GenerationRequest) (*outbound.GenerationResult, error) {
	reqBody := ChatRequest{
		Model:    c.model,
		Messages: []ChatMessage{{Role: "user", Content: req.Prompt}},
		Stream:   false,
		Format:   req.Schema,
		Options: map[string]interface{}{
			"temperature": req.Params.Temperature,
			"top_p":       req.Params.TopP,
			"num_predict": req.Params.MaxOutputTokens,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &nutrition.GenerationTransientError{Status: "network", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &nutrition.GenerationTransientError{StatusCode: resp.StatusCode, Status: "read", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		message := strings.TrimSpace(string(body))
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			message = apiErr.Error
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &nutrition.GenerationTransientError{
				StatusCode: resp.StatusCode,
				Status:     http.StatusText(resp.StatusCode),
				Cause:      fmt.Errorf("%s", message),
			}
		}
		return nil, &nutrition.GenerationPermanentError{StatusCode: resp.StatusCode, Message: message}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	c.logger.Debug("Chat response received",
		zap.String("done_reason", chatResp.DoneReason),
		zap.Int("prompt_tokens", chatResp.PromptEvalCount),
		zap.Int("output_tokens", chatResp.EvalCount),
		zap.Duration("total_duration", time.Duration(chatResp.TotalDuration)),
	)

	return &outbound.GenerationResult{
		Text:         chatResp.Message.Content,
		FinishReason: doneReason(chatResp),
		PromptTokens: chatResp.PromptEvalCount,
		OutputTokens: chatResp.EvalCount,
	}, nil
}

// HealthCheck verifies the daemon is reachable and the model is pulled
func (c *Client) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("failed to decode model list: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == c.model {
			return nil
		}
	}
	return fmt.Errorf("model %s is not available", c.model)
}

func doneReason(resp ChatResponse) string {
	switch {
	case !resp.Done:
		return "INCOMPLETE"
	case resp.DoneReason == "length":
		return outbound.FinishReasonMaxTokens
	default:
		return outbound.FinishReasonStop
	}
}
