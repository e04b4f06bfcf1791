package domain

import "fmt"

// Reduce applies an action to a state and returns the next state.
// It never mutates s. On error the returned state is s unchanged.
func Reduce(s State, a Action) (State, error) {
	switch act := a.(type) {
	case SetShowStartingMessage:
		out := s.Clone()
		out.ShowStartingMessage = act.Visible
		return out, nil

	case SetIndicateCheckbox:
		out := s.Clone()
		out.IndicateCheckbox = act.Value
		return out, nil

	case AddInteraction:
		if !act.Type.Valid() {
			return s, fmt.Errorf("%w: %q", ErrWrongType, act.Type)
		}
		out := s.Clone()
		out.Interactions = append(out.Interactions, NewInteraction(act.Type, act.IsLoading))
		return out, nil

	case UpdateInteractionAt:
		if err := checkIndex(s, act.Index); err != nil {
			return s, err
		}
		out := s.Clone()
		out.Interactions[act.Index] = act.Interaction.Clone()
		return out, nil

	case SuggestionsResolved:
		cur, err := ticket(s, act.Index, act.Generation)
		if err != nil {
			return s, err
		}
		if !cur.IsLoading || cur.SuggestionType != act.Type {
			return s, fmt.Errorf("%w: interaction %d no longer waits for %s suggestions", ErrStaleUpdate, act.Index, act.Type)
		}
		out := s.Clone()
		in := &out.Interactions[act.Index]
		in.Suggestions = cloneSuggestions(act.Suggestions)
		in.IsLoading = false
		in.Failure = nil
		return out, nil

	case FetchFailed:
		return reduceFailure(s, act)

	case ExplanationStarted:
		if _, err := ticket(s, act.Index, act.Generation); err != nil {
			return s, err
		}
		sug, err := suggestionAt(s, act.Index, act.SuggestionIndex)
		if err != nil {
			return s, err
		}
		if sug.Explanation != "" {
			return s, fmt.Errorf("%w: suggestion %d/%d already explained", ErrStaleUpdate, act.Index, act.SuggestionIndex)
		}
		out := s.Clone()
		target := &out.Interactions[act.Index].Suggestions[act.SuggestionIndex]
		target.Explaining = true
		target.ExplainFailure = nil
		return out, nil

	case ExplanationResolved:
		if _, err := ticket(s, act.Index, act.Generation); err != nil {
			return s, err
		}
		sug, err := suggestionAt(s, act.Index, act.SuggestionIndex)
		if err != nil {
			return s, err
		}
		if sug.Explanation != "" {
			return s, fmt.Errorf("%w: suggestion %d/%d already explained", ErrStaleUpdate, act.Index, act.SuggestionIndex)
		}
		out := s.Clone()
		target := &out.Interactions[act.Index].Suggestions[act.SuggestionIndex]
		target.Explanation = act.Explanation
		target.Explaining = false
		target.ExplainFailure = nil
		return out, nil

	case nil:
		return s, fmt.Errorf("%w: nil action", ErrUnknownAction)
	}

	return s, fmt.Errorf("%w: %T", ErrUnknownAction, a)
}

func reduceFailure(s State, act FetchFailed) (State, error) {
	cur, err := ticket(s, act.Index, act.Generation)
	if err != nil {
		return s, err
	}
	failure := &Failure{Op: act.Op, Message: act.Message}

	switch act.Op {
	case OpSuggest:
		if !cur.IsLoading {
			return s, fmt.Errorf("%w: interaction %d is not loading", ErrStaleUpdate, act.Index)
		}
		out := s.Clone()
		in := &out.Interactions[act.Index]
		in.IsLoading = false
		in.Failure = failure
		return out, nil

	case OpExplain:
		if _, err := suggestionAt(s, act.Index, act.SuggestionIndex); err != nil {
			return s, err
		}
		out := s.Clone()
		target := &out.Interactions[act.Index].Suggestions[act.SuggestionIndex]
		target.Explaining = false
		target.ExplainFailure = failure
		return out, nil
	}

	return s, fmt.Errorf("%w: unknown fetch op %q", ErrUnknownAction, act.Op)
}

func checkIndex(s State, index int) error {
	if index < 0 || index >= len(s.Interactions) {
		return fmt.Errorf("%w: %d (have %d)", ErrInvalidIndex, index, len(s.Interactions))
	}
	return nil
}

// ticket validates that a completion still targets the live generation.
func ticket(s State, index int, generation uint64) (Interaction, error) {
	if err := checkIndex(s, index); err != nil {
		return Interaction{}, err
	}
	cur := s.Interactions[index]
	if cur.Generation != generation {
		return Interaction{}, fmt.Errorf("%w: interaction %d is at generation %d, update was for %d",
			ErrStaleUpdate, index, cur.Generation, generation)
	}
	return cur, nil
}

func suggestionAt(s State, index, suggestionIndex int) (Suggestion, error) {
	in := s.Interactions[index]
	if suggestionIndex < 0 || suggestionIndex >= len(in.Suggestions) {
		return Suggestion{}, fmt.Errorf("%w: suggestion %d of interaction %d (have %d)",
			ErrInvalidIndex, suggestionIndex, index, len(in.Suggestions))
	}
	return in.Suggestions[suggestionIndex], nil
}
