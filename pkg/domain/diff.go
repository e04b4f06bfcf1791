package domain

import (
	"reflect"
)

// StateDiff represents the changes between two drawer states.
// It is serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID identifies the drawer the diff belongs to.
	SessionID string `json:"session_id"`

	ShowStartingMessage *bool `json:"show_starting_message,omitempty"`
	IndicateCheckbox    *bool `json:"indicate_checkbox,omitempty"`

	// Appended contains interactions added since the old state, in order.
	// The first one lives at index AppendedFrom.
	Appended     []Interaction `json:"appended,omitempty"`
	AppendedFrom int           `json:"appended_from,omitempty"`

	// Updated contains replaced interactions keyed by index.
	// Clients replace these entries wholesale.
	Updated map[int]Interaction `json:"updated,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(sessionID string, oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{SessionID: sessionID}

	if oldState == nil || oldState.ShowStartingMessage != newState.ShowStartingMessage {
		v := newState.ShowStartingMessage
		diff.ShowStartingMessage = &v
	}
	if oldState == nil || oldState.IndicateCheckbox != newState.IndicateCheckbox {
		v := newState.IndicateCheckbox
		diff.IndicateCheckbox = &v
	}

	oldLen := 0
	if oldState != nil {
		oldLen = len(oldState.Interactions)
	}

	// Interactions are append-only, so the shared prefix is compared index by index.
	for i := 0; i < oldLen && i < len(newState.Interactions); i++ {
		if !reflect.DeepEqual(oldState.Interactions[i], newState.Interactions[i]) {
			if diff.Updated == nil {
				diff.Updated = make(map[int]Interaction)
			}
			diff.Updated[i] = newState.Interactions[i].Clone()
		}
	}

	if len(newState.Interactions) > oldLen {
		diff.AppendedFrom = oldLen
		for _, in := range newState.Interactions[oldLen:] {
			diff.Appended = append(diff.Appended, in.Clone())
		}
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.ShowStartingMessage == nil &&
		d.IndicateCheckbox == nil &&
		len(d.Appended) == 0 &&
		len(d.Updated) == 0
}
