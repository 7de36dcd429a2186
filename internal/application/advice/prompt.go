package advice

import (
	"fmt"
	"strings"

	"github.com/nutrisense/api/internal/domain/nutrition"
)

// activityScale explains the FAF answer to the model
const activityScale = "0=very low, 1=low, 2=moderate, 3=high"

// BuildPrompt renders the generation prompt. The output depends only on its
// arguments so identical inputs always produce identical prompts.
func BuildPrompt(label nutrition.RiskLabel, risks []string, user nutrition.UserContext) string {
	var prompt strings.Builder

	prompt.WriteString("You are a nutrition assistant.\n")
	prompt.WriteString("Return ONLY a JSON object that matches the response schema. No markdown, no comments, no extra text.\n\n")

	prompt.WriteString("User context:\n")
	prompt.WriteString(fmt.Sprintf("- Age: %d\n", user.Age))
	prompt.WriteString(fmt.Sprintf("- Activity level (FAF scale: %s): %s\n", activityScale, formatNumber(user.FAF)))
	prompt.WriteString(fmt.Sprintf("- Nutrition risk: %s\n", label))
	if len(risks) == 0 {
		prompt.WriteString("- Nutrient risks: none\n")
	} else {
		prompt.WriteString(fmt.Sprintf("- Nutrient risks: %s\n", strings.Join(risks, ", ")))
	}

	prompt.WriteString("\nTask:\n")
	prompt.WriteString("1. Explain the user's nutrition risks in plain, non-clinical language\n")
	prompt.WriteString("2. List the nutrients to prioritize, most important first\n")
	prompt.WriteString("3. Propose food groups, one per meal type\n")

	prompt.WriteString("\nRules:\n")
	meals := make([]string, 0, len(nutrition.MealTypes))
	for _, m := range nutrition.MealTypes {
		meals = append(meals, string(m))
	}
	prompt.WriteString(fmt.Sprintf("- meal_type must be one of: %s\n", strings.Join(meals, ", ")))
	prompt.WriteString("- Each ingredient name must be a concrete food that can be searched in a recipe database (e.g. \"spinach\", \"lentils\"), never a category such as \"leafy greens\" or \"protein sources\"\n")
	prompt.WriteString("- Give every ingredient a short reason tied to the nutrient risks\n")
	prompt.WriteString("- Do NOT generate recipes\n")
	prompt.WriteString("- Do NOT generate images or URLs\n")
	prompt.WriteString("- Do NOT give medical advice, diagnoses or treatment claims\n")

	prompt.WriteString("\nJSON format:\n")
	prompt.WriteString(`{"explanation": "string", "nutrients": ["string"], "food_groups": [{"meal_type": "breakfast|main|snack", "ingredients": [{"name": "string", "reason": "string"}]}]}`)
	prompt.WriteString("\n")

	return prompt.String()
}

func formatNumber(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
