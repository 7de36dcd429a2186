package outbound

import "github.com/nutrisense/api/internal/domain/nutrition"

// Outcome labels shared by the pipeline metrics
const (
	OutcomeSuccess     = "success"
	OutcomeFallback    = "fallback"
	OutcomeTruncated   = "truncated"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
)

// PipelineMetrics receives observations from the application layer
type PipelineMetrics interface {
	RecordPrediction(label nutrition.RiskLabel)
	RecordValidationFailure(fields int)
	RecordAdvice(outcome string)
	RecordRetry(boundary string)
	RecordRecipeSearch(outcome string)
	SetRecipeQuota(left float64)
}

// NopMetrics discards every observation
type NopMetrics struct{}

func (NopMetrics) RecordPrediction(nutrition.RiskLabel) {}
func (NopMetrics) RecordValidationFailure(int)          {}
func (NopMetrics) RecordAdvice(string)                  {}
func (NopMetrics) RecordRetry(string)                   {}
func (NopMetrics) RecordRecipeSearch(string)            {}
func (NopMetrics) SetRecipeQuota(float64)               {}
