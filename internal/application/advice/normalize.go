package advice

import (
	"strings"

	"github.com/nutrisense/api/internal/domain/nutrition"
)

// NormalizeFoodGroups merges groups sharing a meal type and removes duplicate
// ingredients. Meal types keep their first-seen order, ingredients keep their
// first-seen order and the first reason given for a name wins. Names are
// trimmed, compared case-insensitively, and dropped when empty. Applying it
// twice yields the same result as applying it once.
func NormalizeFoodGroups(groups []nutrition.FoodGroup) []nutrition.FoodGroup {
	out := make([]nutrition.FoodGroup, 0, len(groups))
	index := make(map[nutrition.MealType]int, len(groups))
	seen := make(map[nutrition.MealType]map[string]bool, len(groups))

	for _, g := range groups {
		meal := nutrition.MealType(strings.TrimSpace(string(g.MealType)))

		i, ok := index[meal]
		if !ok {
			i = len(out)
			index[meal] = i
			seen[meal] = make(map[string]bool)
			out = append(out, nutrition.FoodGroup{MealType: meal, Ingredients: []nutrition.Ingredient{}})
		}

		for _, ing := range g.Ingredients {
			name := strings.TrimSpace(ing.Name)
			key := strings.ToLower(name)
			if name == "" || seen[meal][key] {
				continue
			}
			seen[meal][key] = true
			out[i].Ingredients = append(out[i].Ingredients, nutrition.Ingredient{
				Name:   name,
				Reason: strings.TrimSpace(ing.Reason),
			})
		}
	}

	return out
}
