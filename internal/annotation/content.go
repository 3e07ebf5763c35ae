// Package annotation owns the single virtual card anchored near the user's hand.
package annotation

// Kind is the lifecycle stage of an annotation's content.
type Kind string

const (
	// KindPlaceholder is shown while enrichment is running.
	KindPlaceholder Kind = "placeholder"
	// KindRendered holds the enrichment answer.
	KindRendered Kind = "rendered"
	// KindFailed holds a user-visible error.
	KindFailed Kind = "failed"
)

// PlaceholderText is displayed on a freshly placed card.
const PlaceholderText = "Identifying..."

// Scores are categorical ratings returned alongside the description.
// Every field is in [0,100].
type Scores struct {
	Safety       float64 `json:"safety"`
	Nutrition    float64 `json:"nutrition"`
	AllergenRisk float64 `json:"allergen_risk"`
	Freshness    float64 `json:"freshness"`
}

// Valid reports whether every score lies in [0,100].
func (s Scores) Valid() bool {
	for _, v := range []float64{s.Safety, s.Nutrition, s.AllergenRisk, s.Freshness} {
		if v < 0 || v > 100 {
			return false
		}
	}
	return true
}

// Content is what the card displays.
type Content struct {
	Kind   Kind    `json:"kind"`
	Text   string  `json:"text,omitempty"`
	Scores *Scores `json:"scores,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// Placeholder returns the content of a card awaiting enrichment.
func Placeholder() Content {
	return Content{Kind: KindPlaceholder, Text: PlaceholderText}
}

// Rendered returns enrichment content. scores may be nil.
func Rendered(text string, scores *Scores) Content {
	return Content{Kind: KindRendered, Text: text, Scores: scores}
}

// Failed returns content describing an enrichment error.
func Failed(reason string) Content {
	return Content{Kind: KindFailed, Text: "Error: " + reason, Reason: reason}
}
