package drawer

import (
	"context"
	"fmt"

	"github.com/aretw0/wizards/pkg/domain"
)

// SetShowStartingMessage shows or hides the onboarding message. Hiding it
// persists the current checkbox value as the skip preference.
func (d *Drawer) SetShowStartingMessage(ctx context.Context, visible bool) error {
	s, err := d.Dispatch(ctx, domain.SetShowStartingMessage{Visible: visible})
	if err != nil {
		return err
	}
	if visible {
		return nil
	}
	if err := d.prefs.SetBool(ctx, domain.KeySkipStartingMessage, s.IndicateCheckbox); err != nil {
		return fmt.Errorf("failed to persist %s: %w", domain.KeySkipStartingMessage, err)
	}
	return nil
}

// SetIndicateCheckbox writes the skip preference and mirrors it in the state.
func (d *Drawer) SetIndicateCheckbox(ctx context.Context, value bool) error {
	if err := d.prefs.SetBool(ctx, domain.KeySkipStartingMessage, value); err != nil {
		return fmt.Errorf("failed to persist %s: %w", domain.KeySkipStartingMessage, err)
	}
	_, err := d.Dispatch(ctx, domain.SetIndicateCheckbox{Value: value})
	return err
}

// ToggleIndicateCheckbox inverts the stored skip preference and returns the new value.
func (d *Drawer) ToggleIndicateCheckbox(ctx context.Context) (bool, error) {
	cur, err := d.prefs.GetBool(ctx, domain.KeySkipStartingMessage, false)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", domain.KeySkipStartingMessage, err)
	}
	value := !cur
	return value, d.SetIndicateCheckbox(ctx, value)
}

// ChooseHistorical dismisses the starting message and opens a historical
// interaction that immediately fetches the templates ("walk me through everything").
// It returns the index of the new interaction.
func (d *Drawer) ChooseHistorical(ctx context.Context) (int, error) {
	if err := d.SetShowStartingMessage(ctx, false); err != nil {
		return -1, err
	}
	index, err := d.add(ctx, domain.SuggestionHistorical, true)
	if err != nil {
		return -1, err
	}
	return index, d.FetchSuggestions(ctx, index)
}

// ChooseAI dismisses the starting message and opens an empty AI interaction
// waiting for a prompt ("I know what I want").
func (d *Drawer) ChooseAI(ctx context.Context) (int, error) {
	if err := d.SetShowStartingMessage(ctx, false); err != nil {
		return -1, err
	}
	return d.add(ctx, domain.SuggestionAI, false)
}

// NextInteraction appends another empty AI interaction after earlier ones.
func (d *Drawer) NextInteraction(ctx context.Context) (int, error) {
	return d.add(ctx, domain.SuggestionAI, false)
}

func (d *Drawer) add(ctx context.Context, t domain.SuggestionType, isLoading bool) (int, error) {
	s, err := d.Dispatch(ctx, domain.AddInteraction{Type: t, IsLoading: isLoading})
	if err != nil {
		return -1, err
	}
	return len(s.Interactions) - 1, nil
}

// SetPrompt edits the prompt of an AI interaction. The prompt is sanitized
// and locked once suggestions are shown or a fetch is outstanding.
func (d *Drawer) SetPrompt(ctx context.Context, index int, prompt string) error {
	clean, err := SanitizePrompt(prompt)
	if err != nil {
		return err
	}
	_, err = d.update(ctx, index, func(in domain.Interaction) (domain.Interaction, error) {
		if in.SuggestionType != domain.SuggestionAI {
			return in, fmt.Errorf("%w: prompt on %s interaction %d", domain.ErrWrongType, in.SuggestionType, index)
		}
		if in.Resolved() || in.IsLoading {
			return in, fmt.Errorf("%w: interaction %d", domain.ErrPromptLocked, index)
		}
		return in.WithPrompt(clean), nil
	})
	return err
}

// Submit requests AI suggestions for the prompt of interaction index.
func (d *Drawer) Submit(ctx context.Context, index int) error {
	_, err := d.update(ctx, index, func(in domain.Interaction) (domain.Interaction, error) {
		if in.SuggestionType != domain.SuggestionAI {
			return in, fmt.Errorf("%w: submit on %s interaction %d", domain.ErrWrongType, in.SuggestionType, index)
		}
		if in.Resolved() || in.IsLoading {
			return in, fmt.Errorf("%w: interaction %d", domain.ErrPromptLocked, index)
		}
		if in.PromptText() == "" {
			return in, fmt.Errorf("%w: interaction %d", domain.ErrEmptyPrompt, index)
		}
		return in.BeginFetch(), nil
	})
	if err != nil {
		return err
	}
	return d.FetchSuggestions(ctx, index)
}

// ShowEverything replaces interaction index with a historical one and fetches
// the templates ("show me everything instead"). Any AI request still running
// for that index is canceled and its result discarded.
func (d *Drawer) ShowEverything(ctx context.Context, index int) error {
	_, err := d.update(ctx, index, func(in domain.Interaction) (domain.Interaction, error) {
		return in.AsHistorical(), nil
	})
	if err != nil {
		return err
	}
	return d.FetchSuggestions(ctx, index)
}

// Retry reissues the failed suggestion fetch of interaction index.
func (d *Drawer) Retry(ctx context.Context, index int) error {
	_, err := d.update(ctx, index, func(in domain.Interaction) (domain.Interaction, error) {
		if in.Phase() != domain.PhaseFailed {
			return in, fmt.Errorf("%w: interaction %d is %s", domain.ErrNothingToRetry, index, in.Phase())
		}
		return in.BeginFetch(), nil
	})
	if err != nil {
		return err
	}
	return d.FetchSuggestions(ctx, index)
}
