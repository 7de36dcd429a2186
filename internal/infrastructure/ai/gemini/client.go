// Package gemini provides a Gemini generateContent client with structured
// JSON output
package gemini

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/ports/outbound"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public Generative Language API endpoint
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel is used when none is configured
	DefaultModel = "gemini-1.5-flash"
)

// Config holds the client settings
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements outbound.TextGenerator against models/{model}:generateContent
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a new Gemini client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger.Info("Gemini client initialized",
		zap.String("model", model),
		zap.Duration("timeout", timeout),
	)

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.Named("gemini-client"),
	}
}

// Gemini API structures
type GenerateContentRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

type GenerationConfig struct {
	Temperature      float64                `json:"temperature"`
	TopP             float64                `json:"topP"`
	MaxOutputTokens  int                    `json:"maxOutputTokens"`
	ResponseMimeType string                 `json:"responseMimeType"`
	ResponseSchema   map[string]interface{} `json:"responseSchema,omitempty"`
}

type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	UsageMetadata  UsageMetadata   `json:"usageMetadata"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type PromptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Name returns the provider name
func (c *Client) Name() string {
	return "gemini"
}

// Generate sends one generateContent request
func (c *Client) Generate(ctx context.Context, req outbound.GenerationRequest) (*outbound.GenerationResult, error) {
	reqBody := GenerateContentRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: req.Prompt}}}},
		GenerationConfig: GenerationConfig{
			Temperature:      req.Params.Temperature,
			TopP:             req.Params.TopP,
			MaxOutputTokens:  req.Params.MaxOutputTokens,
			ResponseMimeType: "application/json",
			ResponseSchema:   ToSchema(req.Schema),
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

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
		return nil, c.statusError(resp.StatusCode, body)
	}

	var genResp GenerateContentResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(genResp.Candidates) == 0 {
		reason := "no candidates returned"
		if genResp.PromptFeedback != nil && genResp.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + genResp.PromptFeedback.BlockReason
		}
		return nil, &nutrition.GenerationPermanentError{StatusCode: resp.StatusCode, Message: reason}
	}

	candidate := genResp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}

	c.logger.Debug("Content generated",
		zap.String("finish_reason", candidate.FinishReason),
		zap.Int("prompt_tokens", genResp.UsageMetadata.PromptTokenCount),
		zap.Int("output_tokens", genResp.UsageMetadata.CandidatesTokenCount),
	)

	return &outbound.GenerationResult{
		Text:         text.String(),
		FinishReason: finishReason(candidate.FinishReason),
		PromptTokens: genResp.UsageMetadata.PromptTokenCount,
		OutputTokens: genResp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

// finishReason normalizes Gemini finish reasons. Streaming chunks and some
// proxies omit the field on a complete answer.
func finishReason(reason string) string {
	switch reason {
	case "STOP", "":
		return outbound.FinishReasonStop
	case "MAX_TOKENS":
		return outbound.FinishReasonMaxTokens
	default:
		return reason
	}
}

func (c *Client) statusError(status int, body []byte) error {
	var apiErr errorResponse
	message := strings.TrimSpace(string(body))
	state := http.StatusText(status)
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
		state = apiErr.Error.Status
	}

	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		c.logger.Warn("Gemini temporarily unavailable",
			zap.Int("status", status),
			zap.String("state", state),
		)
		return &nutrition.GenerationTransientError{StatusCode: status, Status: state}
	default:
		return &nutrition.GenerationPermanentError{StatusCode: status, Message: message}
	}
}

// schemaKeys are the JSON schema keywords the responseSchema field accepts
var schemaKeys = map[string]bool{
	"type":        true,
	"properties":  true,
	"items":       true,
	"enum":        true,
	"required":    true,
	"description": true,
	"nullable":    true,
	"format":      true,
}

// ToSchema converts a JSON schema into the OpenAPI subset Gemini accepts:
// upper-case type names and no validation-only keywords
func ToSchema(schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return nil
	}

	out := make(map[string]interface{}, len(schema))
	for key, value := range schema {
		if !schemaKeys[key] {
			continue
		}
		switch key {
		case "type":
			if s, ok := value.(string); ok {
				value = strings.ToUpper(s)
			}
		case "items":
			if m, ok := value.(map[string]interface{}); ok {
				value = ToSchema(m)
			}
		case "properties":
			if props, ok := value.(map[string]interface{}); ok {
				converted := make(map[string]interface{}, len(props))
				for name, p := range props {
					if m, ok := p.(map[string]interface{}); ok {
						converted[name] = ToSchema(m)
					}
				}
				value = converted
			}
		}
		out[key] = value
	}

	if _, ok := out["enum"]; ok {
		out["format"] = "enum"
	}
	return out
}
