package nutrition

import "fmt"

// RiskLabel is the classifier's nutrition risk category
type RiskLabel string

const (
	RiskUnderNutrition RiskLabel = "UNDER_NUTRITION"
	RiskOverNutrition  RiskLabel = "OVER_NUTRITION"
	RiskBalanced       RiskLabel = "BALANCED"
)

// ParseRiskLabel validates a label coming from outside the classifier,
// e.g. an advice request that already carries a prediction
func ParseRiskLabel(s string) (RiskLabel, error) {
	switch l := RiskLabel(s); l {
	case RiskUnderNutrition, RiskOverNutrition, RiskBalanced:
		return l, nil
	}
	return "", fmt.Errorf("unknown nutrition risk label %q", s)
}

// Prediction is the core output returned for every classified request
type Prediction struct {
	NutritionRisk RiskLabel `json:"nutrition_risk"`
	NutrientRisks []string  `json:"nutrient_risks"`
}

// UserContext carries the subset of features the advice prompt mentions
type UserContext struct {
	Age int     `json:"Age"`
	FAF float64 `json:"FAF"`
}

// ContextFrom extracts the advice context from a feature record
func ContextFrom(r FeatureRecord) UserContext {
	return UserContext{Age: r.Age, FAF: r.FAF}
}
