package enrich

import (
	"fmt"
	"strings"
)

// Profile is the user context sent along with every request.
type Profile struct {
	Week                int      `mapstructure:"week" json:"week"`
	Conditions          []string `mapstructure:"conditions" json:"conditions"`
	DietaryRestrictions []string `mapstructure:"dietary_restrictions" json:"dietary_restrictions"`
	Allergies           []string `mapstructure:"allergies" json:"allergies"`
	Notes               string   `mapstructure:"notes" json:"notes"`
}

// BuildPrompt returns the question for the model, including the scores block format.
func BuildPrompt(p Profile) string {
	var b strings.Builder

	b.WriteString("What is the object in the user's hand? Describe it in two or three short sentences")
	b.WriteString(" and say whether it is a good choice for this person.\n\n")

	b.WriteString("USER CONTEXT:\n")
	if p.Week > 0 {
		fmt.Fprintf(&b, "- Pregnancy week: %d\n", p.Week)
	}
	b.WriteString("- Conditions: " + listOrNone(p.Conditions) + "\n")
	b.WriteString("- Dietary restrictions: " + listOrNone(p.DietaryRestrictions) + "\n")
	b.WriteString("- Allergies: " + listOrNone(p.Allergies) + "\n")
	if notes := strings.TrimSpace(p.Notes); notes != "" {
		b.WriteString("- Notes: " + notes + "\n")
	}

	b.WriteString(`
After the description, append exactly one fenced JSON block:
` + "```json" + `
{"description": "<one sentence>", "safety": 0-100, "nutrition": 0-100, "allergen_risk": 0-100, "freshness": 0-100}
` + "```" + `
All four scores are numbers between 0 and 100.`)

	return b.String()
}

func listOrNone(items []string) string {
	var kept []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return "none"
	}
	return strings.Join(kept, ", ")
}
