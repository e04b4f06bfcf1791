package domain

// Phase is the derived lifecycle position of an interaction.
type Phase string

const (
	PhaseIdle     Phase = "idle"     // Created, nothing requested yet (or an empty result)
	PhaseLoading  Phase = "loading"  // Suggestion fetch outstanding
	PhaseResolved Phase = "resolved" // Suggestions shown, prompt locked
	PhaseFailed   Phase = "failed"   // Last fetch failed, retry offered
)

// FetchOp identifies which request a failure belongs to.
type FetchOp string

const (
	OpSuggest FetchOp = "suggest"
	OpExplain FetchOp = "explain"
)

// Failure describes a failed request. It is the explicit error slot of an
// interaction or suggestion.
type Failure struct {
	Op      FetchOp `json:"op" mapstructure:"op"`
	Message string  `json:"message" mapstructure:"message"`
}

// Interaction is one turn of the suggestion dialogue.
type Interaction struct {
	SuggestionType SuggestionType `json:"suggestion_type"`
	Prompt         *string        `json:"prompt,omitempty"`
	IsLoading      bool           `json:"is_loading"`
	Suggestions    []Suggestion   `json:"suggestions"`
	Failure        *Failure       `json:"failure,omitempty"`

	// Generation increases every time a fetch is issued for this interaction.
	// Fetch completions carry the generation they were issued with and are
	// discarded when it no longer matches.
	Generation uint64 `json:"generation"`
}

// NewInteraction returns a fresh interaction with no prompt and no suggestions.
func NewInteraction(t SuggestionType, isLoading bool) Interaction {
	return Interaction{
		SuggestionType: t,
		IsLoading:      isLoading,
		Suggestions:    []Suggestion{},
	}
}

// Resolved reports whether suggestions are shown. A resolved interaction's
// prompt can no longer be edited.
func (i Interaction) Resolved() bool {
	return len(i.Suggestions) > 0
}

// Phase derives the lifecycle position from the interaction fields.
func (i Interaction) Phase() Phase {
	switch {
	case i.IsLoading:
		return PhaseLoading
	case i.Failure != nil:
		return PhaseFailed
	case i.Resolved():
		return PhaseResolved
	default:
		return PhaseIdle
	}
}

// PromptText returns the prompt or "" when none was entered.
func (i Interaction) PromptText() string {
	if i.Prompt == nil {
		return ""
	}
	return *i.Prompt
}

// WithPrompt returns a copy with the prompt replaced.
func (i Interaction) WithPrompt(prompt string) Interaction {
	out := i.Clone()
	out.Prompt = &prompt
	return out
}

// BeginFetch returns a copy that waits for a new suggestion fetch: loading,
// failure cleared and generation bumped.
func (i Interaction) BeginFetch() Interaction {
	out := i.Clone()
	out.IsLoading = true
	out.Failure = nil
	out.Generation++
	return out
}

// AsHistorical returns the "show me everything instead" replacement: the type
// becomes historical, suggestions are cleared and a fresh fetch is pending.
func (i Interaction) AsHistorical() Interaction {
	out := i.BeginFetch()
	out.SuggestionType = SuggestionHistorical
	out.Suggestions = []Suggestion{}
	return out
}

// Clone returns a deep copy of the interaction.
func (i Interaction) Clone() Interaction {
	out := i
	if i.Prompt != nil {
		p := *i.Prompt
		out.Prompt = &p
	}
	if i.Failure != nil {
		f := *i.Failure
		out.Failure = &f
	}
	if i.Suggestions != nil {
		out.Suggestions = cloneSuggestions(i.Suggestions)
	}
	return out
}
