package nutrition

// MealType restricts the food groups the advice may propose
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealMain      MealType = "main"
	MealSnack     MealType = "snack"
)

// MealTypes lists every accepted meal type in prompt order
var MealTypes = []MealType{MealBreakfast, MealMain, MealSnack}

// Valid reports whether the meal type is one of the accepted values
func (m MealType) Valid() bool {
	for _, t := range MealTypes {
		if m == t {
			return true
		}
	}
	return false
}

// Ingredient is a concrete, searchable food with the reason it was proposed
type Ingredient struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// FoodGroup is a set of ingredients suggested for one meal type
type FoodGroup struct {
	MealType    MealType     `json:"meal_type"`
	Ingredients []Ingredient `json:"ingredients"`
}

// IngredientNames returns the ingredient names in order
func (g FoodGroup) IngredientNames() []string {
	names := make([]string, 0, len(g.Ingredients))
	for _, ing := range g.Ingredients {
		names = append(names, ing.Name)
	}
	return names
}

// NutritionAdvice is the structured explanation produced by the generative service
type NutritionAdvice struct {
	Explanation string      `json:"explanation"`
	Nutrients   []string    `json:"nutrients"`
	FoodGroups  []FoodGroup `json:"food_groups"`
	// Degraded is set when the advice is the generic fallback
	Degraded bool `json:"degraded"`
}

// FallbackExplanation is returned when no usable advice could be generated
const FallbackExplanation = "Unable to generate explanation at this time."

// FallbackAdvice returns the degraded-but-valid advice structure
func FallbackAdvice() *NutritionAdvice {
	return &NutritionAdvice{
		Explanation: FallbackExplanation,
		Nutrients:   []string{},
		FoodGroups:  []FoodGroup{},
		Degraded:    true,
	}
}

// Recipe is a recipe candidate returned by the recipe search service
type Recipe struct {
	ID                    int      `json:"id"`
	Title                 string   `json:"title"`
	Image                 string   `json:"image,omitempty"`
	UsedIngredientCount   int      `json:"used_ingredient_count"`
	MissedIngredientCount int      `json:"missed_ingredient_count"`
	MissedIngredients     []string `json:"missed_ingredients,omitempty"`
	Likes                 int      `json:"likes"`
}

// EnrichedFoodGroup is a food group with its recipe suggestions
type EnrichedFoodGroup struct {
	MealType    MealType     `json:"meal_type"`
	Ingredients []Ingredient `json:"ingredients"`
	Recipes     []Recipe     `json:"recipes"`
}
