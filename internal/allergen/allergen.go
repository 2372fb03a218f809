// Package allergen matches customer allergies against dish ingredients.
package allergen

import "strings"

// Conflicts returns the ingredients, in dish order and original spelling,
// that appear in allergies. Matching ignores case and surrounding space;
// blank allergy entries are ignored.
func Conflicts(ingredients, allergies []string) []string {
	if len(ingredients) == 0 || len(allergies) == 0 {
		return nil
	}
	avoid := make(map[string]struct{}, len(allergies))
	for _, a := range allergies {
		if k := normalize(a); k != "" {
			avoid[k] = struct{}{}
		}
	}

	var out []string
	for _, ing := range ingredients {
		if _, ok := avoid[normalize(ing)]; ok {
			out = append(out, ing)
		}
	}
	return out
}

// Message is the customer-facing summary of a conflict check.
func Message(conflicts []string) string {
	if len(conflicts) > 0 {
		return "Allergy alert sent to kitchen. Avoid: " + strings.Join(conflicts, ", ")
	}
	return "No allergy conflict detected for this dish."
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
