package nutrition

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned by feature encoders for values outside the trained table
var ErrUnknownCategory = errors.New("unknown categorical value")

// FieldError describes one offending survey field
type FieldError struct {
	Field    string `json:"field"`
	Reason   string `json:"reason"`
	Accepted string `json:"accepted,omitempty"`
}

// ValidationError lists every field that failed validation. It is the only
// client-correctable failure of the pipeline.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	return "invalid features: " + strings.Join(parts, "; ")
}

// ClassificationErrorKind distinguishes client-caused from model-caused failures
type ClassificationErrorKind int

const (
	// UnknownCategory means the encoder table has no code for a categorical value
	UnknownCategory ClassificationErrorKind = iota
	// ModelFailure means the model invocation or label decoding failed
	ModelFailure
)

func (k ClassificationErrorKind) String() string {
	switch k {
	case UnknownCategory:
		return "unknown_category"
	case ModelFailure:
		return "model_failure"
	default:
		return "unknown"
	}
}

// ClassificationError is returned by the classifier adapter
type ClassificationError struct {
	Kind  ClassificationErrorKind
	Field string
	Value string
	Cause error
}

func (e *ClassificationError) Error() string {
	if e.Kind == UnknownCategory {
		return fmt.Sprintf("classification: unknown value %q for field %s", e.Value, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("classification: model failure: %v", e.Cause)
	}
	return "classification: model failure"
}

func (e *ClassificationError) Unwrap() error {
	return e.Cause
}

// AsValidationError converts an unknown-category failure into the inbound
// validation failure the caller can correct
func (e *ClassificationError) AsValidationError() *ValidationError {
	return &ValidationError{Fields: []FieldError{{
		Field:  e.Field,
		Reason: fmt.Sprintf("value %q is not recognised by the model", e.Value),
	}}}
}

// GenerationTransientError is a resource-exhaustion or unavailability signal
// from the text generation service; it is retried locally
type GenerationTransientError struct {
	StatusCode int
	Status     string
	Cause      error
}

func (e *GenerationTransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generation temporarily unavailable (%d %s): %v", e.StatusCode, e.Status, e.Cause)
	}
	return fmt.Sprintf("generation temporarily unavailable (%d %s)", e.StatusCode, e.Status)
}

func (e *GenerationTransientError) Unwrap() error {
	return e.Cause
}

// GenerationPermanentError is a non-retryable rejection from the text generation service
type GenerationPermanentError struct {
	StatusCode int
	Message    string
}

func (e *GenerationPermanentError) Error() string {
	return fmt.Sprintf("generation rejected (%d): %s", e.StatusCode, e.Message)
}

// GenerationTruncationError means the service stopped before natural completion.
// It is reported to the caller and never replaced with partial data.
type GenerationTruncationError struct {
	FinishReason string
}

func (e *GenerationTruncationError) Error() string {
	return fmt.Sprintf("generation truncated: finish reason %s", e.FinishReason)
}

// GenerationParseError means the service output did not conform to the advice schema
type GenerationParseError struct {
	Problems []string
	Cause    error
}

func (e *GenerationParseError) Error() string {
	if len(e.Problems) > 0 {
		return "generation output does not match schema: " + strings.Join(e.Problems, "; ")
	}
	return fmt.Sprintf("generation output is not valid JSON: %v", e.Cause)
}

func (e *GenerationParseError) Unwrap() error {
	return e.Cause
}

// EnrichmentRateLimitedError is a quota or rate-limit rejection from the recipe API
type EnrichmentRateLimitedError struct {
	StatusCode int
}

func (e *EnrichmentRateLimitedError) Error() string {
	return fmt.Sprintf("recipe search rate limited (%d)", e.StatusCode)
}

// EnrichmentTransientError is a retryable 5xx-class or network failure from the recipe API
type EnrichmentTransientError struct {
	StatusCode int
	Cause      error
}

func (e *EnrichmentTransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("recipe search unavailable (%d): %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("recipe search unavailable (%d)", e.StatusCode)
}

func (e *EnrichmentTransientError) Unwrap() error {
	return e.Cause
}
