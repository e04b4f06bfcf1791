package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Action is a discrete transition request applied by Reduce.
// The set of actions is closed; see the concrete types below.
type Action interface {
	// Name returns the wire name of the action.
	Name() string
	action()
}

// Standard action names.
const (
	ActionSetShowStartingMessage = "set_show_starting_message"
	ActionSetIndicateCheckbox    = "set_indicate_checkbox"
	ActionAddInteraction         = "add_interaction"
	ActionUpdateInteractionAt    = "update_interaction_at"
	ActionSuggestionsResolved    = "suggestions_resolved"
	ActionFetchFailed            = "fetch_failed"
	ActionExplanationStarted     = "explanation_started"
	ActionExplanationResolved    = "explanation_resolved"
)

// SetShowStartingMessage shows or hides the onboarding message.
type SetShowStartingMessage struct {
	Visible bool `json:"visible" mapstructure:"visible"`
}

// SetIndicateCheckbox mirrors the "don't show again" checkbox.
type SetIndicateCheckbox struct {
	Value bool `json:"value" mapstructure:"value"`
}

// AddInteraction appends a fresh interaction.
type AddInteraction struct {
	Type      SuggestionType `json:"type" mapstructure:"type"`
	IsLoading bool           `json:"is_loading" mapstructure:"is_loading"`
}

// UpdateInteractionAt replaces the interaction at Index wholesale.
type UpdateInteractionAt struct {
	Index       int         `json:"index" mapstructure:"index"`
	Interaction Interaction `json:"interaction" mapstructure:"interaction"`
}

// SuggestionsResolved is dispatched when a suggestion fetch completes.
type SuggestionsResolved struct {
	Index       int            `json:"index"`
	Generation  uint64         `json:"generation"`
	Type        SuggestionType `json:"type"`
	Suggestions []Suggestion   `json:"suggestions"`
}

// FetchFailed is dispatched when a suggestion or explanation fetch fails.
// SuggestionIndex is only meaningful for OpExplain.
type FetchFailed struct {
	Index           int     `json:"index"`
	Generation      uint64  `json:"generation"`
	Op              FetchOp `json:"op"`
	SuggestionIndex int     `json:"suggestion_index,omitempty"`
	Message         string  `json:"message"`
}

// ExplanationStarted marks a suggestion as waiting for its explanation.
type ExplanationStarted struct {
	Index           int    `json:"index"`
	Generation      uint64 `json:"generation"`
	SuggestionIndex int    `json:"suggestion_index"`
}

// ExplanationResolved sets the explanation of a single suggestion.
type ExplanationResolved struct {
	Index           int    `json:"index"`
	Generation      uint64 `json:"generation"`
	SuggestionIndex int    `json:"suggestion_index"`
	Explanation     string `json:"explanation"`
}

func (SetShowStartingMessage) Name() string { return ActionSetShowStartingMessage }
func (SetIndicateCheckbox) Name() string    { return ActionSetIndicateCheckbox }
func (AddInteraction) Name() string         { return ActionAddInteraction }
func (UpdateInteractionAt) Name() string    { return ActionUpdateInteractionAt }
func (SuggestionsResolved) Name() string    { return ActionSuggestionsResolved }
func (FetchFailed) Name() string            { return ActionFetchFailed }
func (ExplanationStarted) Name() string     { return ActionExplanationStarted }
func (ExplanationResolved) Name() string    { return ActionExplanationResolved }

func (SetShowStartingMessage) action() {}
func (SetIndicateCheckbox) action()    {}
func (AddInteraction) action()         {}
func (UpdateInteractionAt) action()    {}
func (SuggestionsResolved) action()    {}
func (FetchFailed) action()            {}
func (ExplanationStarted) action()     {}
func (ExplanationResolved) action()    {}

// DecodeAction builds a user-dispatchable action from its wire name and a
// generic payload (as decoded from JSON or YAML).
// Completion actions are internal to the drawer and cannot be decoded.
func DecodeAction(name string, payload map[string]any) (Action, error) {
	var target Action
	switch name {
	case ActionSetShowStartingMessage:
		target = &SetShowStartingMessage{}
	case ActionSetIndicateCheckbox:
		target = &SetIndicateCheckbox{}
	case ActionAddInteraction:
		target = &AddInteraction{}
	case ActionUpdateInteractionAt:
		var raw struct {
			Index       int            `mapstructure:"index"`
			Interaction map[string]any `mapstructure:"interaction"`
		}
		if err := decode(payload, &raw); err != nil {
			return nil, err
		}
		in, err := decodeInteraction(raw.Interaction)
		if err != nil {
			return nil, err
		}
		return UpdateInteractionAt{Index: raw.Index, Interaction: in}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}

	if err := decode(payload, target); err != nil {
		return nil, err
	}

	switch a := target.(type) {
	case *SetShowStartingMessage:
		return *a, nil
	case *SetIndicateCheckbox:
		return *a, nil
	case *AddInteraction:
		if !a.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown suggestion type %q", ErrWrongType, a.Type)
		}
		return *a, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

// interactionPayload matches the JSON field names of Interaction.
type interactionPayload struct {
	SuggestionType SuggestionType `mapstructure:"suggestion_type"`
	Prompt         *string        `mapstructure:"prompt"`
	IsLoading      bool           `mapstructure:"is_loading"`
	Suggestions    []Suggestion   `mapstructure:"suggestions"`
	Failure        *Failure       `mapstructure:"failure"`
	Generation     uint64         `mapstructure:"generation"`
}

func decodeInteraction(raw map[string]any) (Interaction, error) {
	var p interactionPayload
	if err := decode(raw, &p); err != nil {
		return Interaction{}, err
	}
	if !p.SuggestionType.Valid() {
		return Interaction{}, fmt.Errorf("%w: unknown suggestion type %q", ErrWrongType, p.SuggestionType)
	}
	in := Interaction{
		SuggestionType: p.SuggestionType,
		Prompt:         p.Prompt,
		IsLoading:      p.IsLoading,
		Suggestions:    p.Suggestions,
		Failure:        p.Failure,
		Generation:     p.Generation,
	}
	if in.Suggestions == nil {
		in.Suggestions = []Suggestion{}
	}
	return in, nil
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("decode action payload: %w", err)
	}
	return nil
}
