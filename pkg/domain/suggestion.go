package domain

// SuggestionType selects which sub-flow an interaction follows.
type SuggestionType string

const (
	// SuggestionAI is driven by a free-text prompt.
	SuggestionAI SuggestionType = "ai"
	// SuggestionHistorical is driven by the template set.
	SuggestionHistorical SuggestionType = "historical"
)

// Valid reports whether t is a known suggestion type.
func (t SuggestionType) Valid() bool {
	return t == SuggestionAI || t == SuggestionHistorical
}

// Suggestion is a candidate query surfaced to the user.
type Suggestion struct {
	Query       string `json:"query" yaml:"query" mapstructure:"query"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty" mapstructure:"title"`
	Link        string `json:"link,omitempty" yaml:"link,omitempty" mapstructure:"link"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`

	// Explanation is empty until fetched on demand. Once set it is kept for the
	// lifetime of the interaction.
	Explanation string `json:"explanation" yaml:"-" mapstructure:"explanation"`

	// Explaining is true while an explanation request is outstanding.
	Explaining bool `json:"explaining,omitempty" yaml:"-" mapstructure:"explaining"`

	// ExplainFailure holds the last explanation error, if any.
	ExplainFailure *Failure `json:"explain_failure,omitempty" yaml:"-" mapstructure:"explain_failure"`
}

// SuggestRequest is what the drawer hands to the suggestion service.
// Prompt is set for AI requests, Templates for historical ones.
type SuggestRequest struct {
	Type      SuggestionType `json:"type"`
	Prompt    string         `json:"prompt,omitempty"`
	Templates []Suggestion   `json:"templates,omitempty"`
	Query     Query          `json:"query"`
}

func cloneSuggestions(in []Suggestion) []Suggestion {
	out := make([]Suggestion, len(in))
	for i, s := range in {
		out[i] = s
		if s.ExplainFailure != nil {
			f := *s.ExplainFailure
			out[i].ExplainFailure = &f
		}
	}
	return out
}
