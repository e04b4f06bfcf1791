package domain

// State is the snapshot of one drawer. It is owned by the drawer for its
// lifetime and treated as an immutable value: Reduce returns a new State.
type State struct {
	// Query is the context the drawer was opened for.
	Query Query `json:"query"`

	// ShowStartingMessage controls the onboarding message.
	ShowStartingMessage bool `json:"show_starting_message"`

	// IndicateCheckbox mirrors the "don't show again" checkbox.
	IndicateCheckbox bool `json:"indicate_checkbox"`

	// AskForHelp is reserved for an "ask for help" path. Always false.
	AskForHelp bool `json:"ask_for_help"`

	// Interactions is append-only. Index equals creation order.
	Interactions []Interaction `json:"interactions"`

	// Sealed carries an encrypted snapshot written by a store middleware.
	// It is always empty in a live drawer.
	Sealed string `json:"sealed,omitempty"`
}

// Initial creates the starting state. Callers pass the negation of the
// persisted skip preference as showStartingMessage.
func Initial(query Query, showStartingMessage bool) State {
	return State{
		Query:               query.Clone(),
		ShowStartingMessage: showStartingMessage,
		Interactions:        []Interaction{},
	}
}

// At returns the interaction at index.
func (s State) At(index int) (Interaction, bool) {
	if index < 0 || index >= len(s.Interactions) {
		return Interaction{}, false
	}
	return s.Interactions[index], true
}

// SuggestionCount returns the total number of suggestions across interactions.
func (s State) SuggestionCount() int {
	n := 0
	for _, in := range s.Interactions {
		n += len(in.Suggestions)
	}
	return n
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Query = s.Query.Clone()
	out.Interactions = make([]Interaction, len(s.Interactions))
	for i, in := range s.Interactions {
		out.Interactions[i] = in.Clone()
	}
	return out
}

// Interrupted returns a copy in which every outstanding fetch is turned into a
// failure. It is applied to snapshots restored after a restart, where the
// original requests are gone.
func (s State) Interrupted() State {
	out := s.Clone()
	for i := range out.Interactions {
		in := &out.Interactions[i]
		if in.IsLoading {
			in.IsLoading = false
			in.Failure = &Failure{Op: OpSuggest, Message: MessageInterrupted}
		}
		for j := range in.Suggestions {
			sug := &in.Suggestions[j]
			if sug.Explaining {
				sug.Explaining = false
				sug.ExplainFailure = &Failure{Op: OpExplain, Message: MessageInterrupted}
			}
		}
	}
	return out
}
