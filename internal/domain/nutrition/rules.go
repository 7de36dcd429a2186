package nutrition

import "sort"

// Nutrient risk labels produced by the default rule table
const (
	LabelCalorieDeficiency      = "Calorie deficiency"
	LabelProteinDeficiency      = "Protein deficiency"
	LabelIronDeficiency         = "Iron deficiency"
	LabelVitaminB12Deficiency   = "Vitamin B12 deficiency"
	LabelZincDeficiency         = "Zinc deficiency"
	LabelExcessCalorieIntake    = "Excess calorie intake"
	LabelHighSaturatedFat       = "High saturated fat intake"
	LabelLowFiberIntake         = "Low fiber intake"
	LabelMicronutrientImbalance = "Micronutrient imbalance"
	LabelVitaminADeficiency     = "Vitamin A deficiency"
	LabelVitaminCDeficiency     = "Vitamin C deficiency"
	LabelPotassiumDeficiency    = "Potassium deficiency"
	LabelSuboptimalFiberIntake  = "Suboptimal fiber intake"
	LabelInconsistentEnergy     = "Inconsistent energy intake"
	LabelInsufficientMeals      = "Insufficient meal frequency"
	LabelUnstableGlucose        = "Unstable blood glucose risk"
	LabelExcessSugarIntake      = "Excess sugar intake"
	LabelInadequateHydration    = "Inadequate hydration"
	LabelElectrolyteImbalance   = "Electrolyte imbalance risk"
	LabelPoorMetabolicHealth    = "Poor metabolic health"
	LabelLowInsulinSensitivity  = "Low insulin sensitivity"
	LabelIncreasedProteinNeed   = "Increased protein requirement"
	LabelIncreasedEnergyNeed    = "Increased energy requirement"
	LabelSedentaryLifestyle     = "Sedentary lifestyle risk"
	LabelVitaminEDeficiency     = "Vitamin E deficiency"
	LabelMagnesiumDeficiency    = "Magnesium deficiency"
	LabelVitaminB1Deficiency    = "Vitamin B1 deficiency"
	LabelLiverHealthRisk        = "Liver health risk"
	LabelModerateAlcoholIntake  = "Moderate alcohol intake"
	LabelLowDietaryAwareness    = "Low dietary awareness"
	LabelLowDailyActivity       = "Low daily physical activity"
	LabelSedentaryCommute       = "Sedentary commute"
	LabelModerateIncidental     = "Moderate incidental activity"
	LabelHighIncidental         = "High incidental activity"

	// LabelNoMajorRisk is emitted alone when no rule fires
	LabelNoMajorRisk = "No major nutritional risk detected"
)

// TransportLabels maps each transport mode to its single activity label
var TransportLabels = map[TransportMode]string{
	TransportAutomobile:           LabelLowDailyActivity,
	TransportMotorbike:            LabelSedentaryCommute,
	TransportPublicTransportation: LabelModerateIncidental,
	TransportWalking:              LabelHighIncidental,
	TransportBicycle:              LabelHighIncidental,
}

// Predicate decides whether a rule fires for a prediction and feature record
type Predicate func(label RiskLabel, r FeatureRecord) bool

// Rule contributes Labels when When holds. Rules are independent of each
// other; a conjunction with the classifier label lives inside a predicate.
type Rule struct {
	Name   string
	When   Predicate
	Labels []string
}

// Engine evaluates an ordered rule table
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine over the given rules
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// NewDefaultEngine creates an engine over DefaultRules
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultRules())
}

// Rules returns a copy of the rule table
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Infer returns the sorted, deduplicated union of the labels of every rule
// that fires, or the single sentinel label when none does
func (e *Engine) Infer(label RiskLabel, r FeatureRecord) []string {
	seen := make(map[string]struct{})
	for _, rule := range e.rules {
		if !rule.When(label, r) {
			continue
		}
		for _, l := range rule.Labels {
			seen[l] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return []string{LabelNoMajorRisk}
	}

	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func labelIs(want RiskLabel) Predicate {
	return func(label RiskLabel, _ FeatureRecord) bool { return label == want }
}

func transportIs(mode TransportMode) Predicate {
	return func(_ RiskLabel, r FeatureRecord) bool { return r.MTRANS == mode }
}

// DefaultRules returns the nutrient risk rule table. BALANCED contributes no
// label of its own; such records fall through to the other rules.
func DefaultRules() []Rule {
	rules := []Rule{
		// ML label
		{
			Name: "under_nutrition",
			When: labelIs(RiskUnderNutrition),
			Labels: []string{
				LabelCalorieDeficiency,
				LabelProteinDeficiency,
				LabelIronDeficiency,
				LabelVitaminB12Deficiency,
				LabelZincDeficiency,
			},
		},
		{
			Name: "over_nutrition",
			When: labelIs(RiskOverNutrition),
			Labels: []string{
				LabelExcessCalorieIntake,
				LabelHighSaturatedFat,
				LabelLowFiberIntake,
				LabelMicronutrientImbalance,
			},
		},

		// Vegetables
		{
			Name: "very_low_vegetables",
			When: func(_ RiskLabel, r FeatureRecord) bool { return r.FCVC <= 1 },
			Labels: []string{
				LabelLowFiberIntake,
				LabelVitaminADeficiency,
				LabelVitaminCDeficiency,
				LabelPotassiumDeficiency,
			},
		},
		{
			Name:   "moderate_vegetables",
			When:   func(_ RiskLabel, r FeatureRecord) bool { return r.FCVC == 2 },
			Labels: []string{LabelSuboptimalFiberIntake},
		},

		// Meal regularity and snacking
		{
			Name:   "few_meals",
			When:   func(_ RiskLabel, r FeatureRecord) bool { return r.NCP < 3 },
			Labels: []string{LabelInconsistentEnergy},
		},
		{
			Name: "few_meals_under_nutrition",
			When: func(label RiskLabel, r FeatureRecord) bool {
				return r.NCP < 3 && label == RiskUnderNutrition
			},
			Labels: []string{LabelInsufficientMeals},
		},
		{
			Name:   "frequent_snacking",
			When:   func(_ RiskLabel, r FeatureRecord) bool { return r.CAEC.AtLeastFrequently() },
			Labels: []string{LabelUnstableGlucose, LabelExcessSugarIntake},
		},

		// Hydration
		{
			Name:   "low_water",
			When:   func(_ RiskLabel, r FeatureRecord) bool { return r.CH2O < 2 },
			Labels: []string{LabelInadequateHydration, LabelElectrolyteImbalance},
		},

		// Activity
		{
			Name:   "low_activity",
			When:   func(_ RiskLabel, r FeatureRecord) bool { return r.FAF <= 1 },
			Labels: []string{LabelPoorMetabolicHealth, LabelLowInsulinSensitivity},
		},
		{
			Name:   "high_activity",
			When:   func(_ RiskLabel, r FeatureRecord) bool { return r.FAF >= 3 },
			Labels: []string{LabelIncreasedProteinNeed},
		},
		{
			Name: "high_activity_under_nutrition",
			When: func(label RiskLabel, r FeatureRecord) bool {
				return r.FAF >= 3 && label == RiskUnderNutrition
			},
			Labels: []string{LabelIncreasedEnergyNeed},
		},

		// Screen time, 0-2 scale
		{
			Name:   "screen_time",
			When:   func(_ RiskLabel, r FeatureRecord) bool { return r.TUE >= 1 },
			Labels: []string{LabelSedentaryLifestyle},
		},

		// Smoking
		{
			Name:   "smoker",
			When:   func(_ RiskLabel, r FeatureRecord) bool { return r.SMOKE == Yes },
			Labels: []string{LabelVitaminCDeficiency, LabelVitaminEDeficiency},
		},

		// Alcohol
		{
			Name: "frequent_alcohol",
			When: func(_ RiskLabel, r FeatureRecord) bool { return r.CALC.AtLeastFrequently() },
			Labels: []string{
				LabelMagnesiumDeficiency,
				LabelVitaminB1Deficiency,
				LabelLiverHealthRisk,
			},
		},
		{
			Name:   "occasional_alcohol",
			When:   func(_ RiskLabel, r FeatureRecord) bool { return r.CALC == FrequencySometimes },
			Labels: []string{LabelModerateAlcoholIntake},
		},

		// Self-monitoring
		{
			Name:   "no_calorie_monitoring",
			When:   func(_ RiskLabel, r FeatureRecord) bool { return r.SCC == No },
			Labels: []string{LabelLowDietaryAwareness},
		},
	}

	// Transport, one rule per mode
	for _, mode := range []TransportMode{
		TransportAutomobile,
		TransportMotorbike,
		TransportPublicTransportation,
		TransportWalking,
		TransportBicycle,
	} {
		rules = append(rules, Rule{
			Name:   "transport_" + string(mode),
			When:   transportIs(mode),
			Labels: []string{TransportLabels[mode]},
		})
	}

	return rules
}
