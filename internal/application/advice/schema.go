package advice

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/xeipuuv/gojsonschema"
)

// ResponseSchema returns the JSON schema every generated advice document must
// satisfy. A fresh map is returned so callers may adapt it per provider.
func ResponseSchema() map[string]interface{} {
	meals := make([]interface{}, 0, len(nutrition.MealTypes))
	for _, m := range nutrition.MealTypes {
		meals = append(meals, string(m))
	}

	ingredient := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"name", "reason"},
		"properties": map[string]interface{}{
			"name":   map[string]interface{}{"type": "string", "minLength": 1},
			"reason": map[string]interface{}{"type": "string"},
		},
	}

	group := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"meal_type", "ingredients"},
		"properties": map[string]interface{}{
			"meal_type":   map[string]interface{}{"type": "string", "enum": meals},
			"ingredients": map[string]interface{}{"type": "array", "items": ingredient},
		},
	}

	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"explanation", "nutrients", "food_groups"},
		"properties": map[string]interface{}{
			"explanation": map[string]interface{}{"type": "string", "minLength": 1},
			"nutrients": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
			"food_groups": map[string]interface{}{"type": "array", "items": group},
		},
	}
}

// Parser validates raw generation output against the advice schema
type Parser struct {
	schema *gojsonschema.Schema
}

// NewParser compiles the advice schema
func NewParser() (*Parser, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(ResponseSchema()))
	if err != nil {
		return nil, fmt.Errorf("compile advice schema: %w", err)
	}
	return &Parser{schema: schema}, nil
}

// Parse unwraps, validates and decodes a generated document. Failures are
// *nutrition.GenerationParseError.
func (p *Parser) Parse(text string) (*nutrition.NutritionAdvice, error) {
	doc := UnwrapJSON(text)

	result, err := p.schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, &nutrition.GenerationParseError{Cause: err}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, &nutrition.GenerationParseError{Problems: problems}
	}

	var advice nutrition.NutritionAdvice
	if err := json.Unmarshal([]byte(doc), &advice); err != nil {
		return nil, &nutrition.GenerationParseError{Cause: err}
	}

	advice.Nutrients = cleanNutrients(advice.Nutrients)
	advice.FoodGroups = NormalizeFoodGroups(advice.FoodGroups)
	advice.Degraded = false
	return &advice, nil
}

// UnwrapJSON strips surrounding whitespace and markdown code fences that
// models sometimes add despite being told not to
func UnwrapJSON(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "```") {
		return text
	}

	for _, part := range strings.Split(text, "```") {
		part = strings.TrimSpace(part)
		part = strings.TrimSpace(strings.TrimPrefix(part, "json"))
		if strings.HasPrefix(part, "{") {
			return part
		}
	}
	return text
}

func cleanNutrients(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, n := range in {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
