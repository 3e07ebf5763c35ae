package enrich

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ayusman/handcard/internal/annotation"
)

var scoresBlock = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

type scoresPayload struct {
	Description  string   `json:"description"`
	Safety       *float64 `json:"safety"`
	Nutrition    *float64 `json:"nutrition"`
	AllergenRisk *float64 `json:"allergen_risk"`
	Freshness    *float64 `json:"freshness"`
}

// ParseResponse extracts the fenced scores block from a model answer.
// When the block is missing, malformed, incomplete or out of range the whole
// answer is returned as plain text without scores.
func ParseResponse(text string) annotation.Content {
	plain := annotation.Rendered(strings.TrimSpace(text), nil)

	m := scoresBlock.FindStringSubmatchIndex(text)
	if m == nil {
		return plain
	}

	var p scoresPayload
	if err := json.Unmarshal([]byte(text[m[2]:m[3]]), &p); err != nil {
		return plain
	}
	if p.Safety == nil || p.Nutrition == nil || p.AllergenRisk == nil || p.Freshness == nil {
		return plain
	}

	scores := &annotation.Scores{
		Safety:       *p.Safety,
		Nutrition:    *p.Nutrition,
		AllergenRisk: *p.AllergenRisk,
		Freshness:    *p.Freshness,
	}
	if !scores.Valid() {
		return plain
	}

	description := strings.TrimSpace(text[:m[0]] + text[m[1]:])
	if description == "" {
		description = strings.TrimSpace(p.Description)
	}

	return annotation.Rendered(description, scores)
}
