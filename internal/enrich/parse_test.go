package enrich

import (
	"strings"
	"testing"

	"github.com/ayusman/handcard/internal/annotation"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantText   string
		wantScores *annotation.Scores
	}{
		{
			name: "description with scores block",
			text: "That is a ripe banana. A great snack.\n\n```json\n" +
				`{"description": "banana", "safety": 95, "nutrition": 80, "allergen_risk": 5, "freshness": 70}` +
				"\n```",
			wantText:   "That is a ripe banana. A great snack.",
			wantScores: &annotation.Scores{Safety: 95, Nutrition: 80, AllergenRisk: 5, Freshness: 70},
		},
		{
			name:       "block only falls back to block description",
			text:       "```json\n" + `{"description": "A can of soda.", "safety": 40, "nutrition": 5, "allergen_risk": 10, "freshness": 100}` + "\n```",
			wantText:   "A can of soda.",
			wantScores: &annotation.Scores{Safety: 40, Nutrition: 5, AllergenRisk: 10, Freshness: 100},
		},
		{
			name:     "plain text",
			text:     "  It looks like a coffee mug.  ",
			wantText: "It looks like a coffee mug.",
		},
		{
			name:     "malformed block",
			text:     "Soft cheese.\n```json\n{\"safety\": 20, \n```",
			wantText: "Soft cheese.\n```json\n{\"safety\": 20, \n```",
		},
		{
			name:     "missing field",
			text:     "Tea.\n```json\n{\"safety\": 60, \"nutrition\": 10, \"freshness\": 90}\n```",
			wantText: "Tea.\n```json\n{\"safety\": 60, \"nutrition\": 10, \"freshness\": 90}\n```",
		},
		{
			name:     "score out of range",
			text:     "Sushi.\n```json\n{\"safety\": 120, \"nutrition\": 50, \"allergen_risk\": 30, \"freshness\": 50}\n```",
			wantText: "Sushi.\n```json\n{\"safety\": 120, \"nutrition\": 50, \"allergen_risk\": 30, \"freshness\": 50}\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResponse(tt.text)

			if got.Kind != annotation.KindRendered {
				t.Errorf("kind = %s, want rendered", got.Kind)
			}
			if got.Text != tt.wantText {
				t.Errorf("text = %q, want %q", got.Text, tt.wantText)
			}
			switch {
			case tt.wantScores == nil && got.Scores != nil:
				t.Errorf("expected no scores, got %+v", got.Scores)
			case tt.wantScores != nil && got.Scores == nil:
				t.Errorf("expected scores %+v, got none", tt.wantScores)
			case tt.wantScores != nil && *got.Scores != *tt.wantScores:
				t.Errorf("scores = %+v, want %+v", got.Scores, tt.wantScores)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Run("includes profile", func(t *testing.T) {
		prompt := BuildPrompt(Profile{
			Week:                20,
			Conditions:          []string{"gestational diabetes"},
			DietaryRestrictions: []string{"vegetarian", " "},
			Allergies:           []string{"peanuts"},
			Notes:               "prefers short answers",
		})

		for _, want := range []string{
			"object in the user's hand",
			"Pregnancy week: 20",
			"Conditions: gestational diabetes",
			"Dietary restrictions: vegetarian\n",
			"Allergies: peanuts",
			"Notes: prefers short answers",
			"```json",
			"allergen_risk",
		} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
	})

	t.Run("empty profile", func(t *testing.T) {
		prompt := BuildPrompt(Profile{})

		if strings.Contains(prompt, "Pregnancy week") {
			t.Error("prompt should omit an unset week")
		}
		if !strings.Contains(prompt, "Allergies: none") {
			t.Error("prompt should say none for empty lists")
		}
	})
}
