package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventDispatch   EventType = "dispatch"
	EventFetchStart EventType = "fetch_start"
	EventFetchDone  EventType = "fetch_done"
)

// FetchOutcome classifies how a fetch ended.
type FetchOutcome string

const (
	OutcomeOK       FetchOutcome = "ok"
	OutcomeFailed   FetchOutcome = "failed"
	OutcomeStale    FetchOutcome = "stale"
	OutcomeCanceled FetchOutcome = "canceled"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// DispatchEvent is emitted after every dispatched action.
type DispatchEvent struct {
	EventBase
	Action string `json:"action"`
	Err    error  `json:"-"`
}

// FetchEvent describes a suggestion or explanation request.
type FetchEvent struct {
	EventBase
	Op              FetchOp        `json:"op"`
	SuggestionType  SuggestionType `json:"suggestion_type"`
	Index           int            `json:"index"`
	SuggestionIndex int            `json:"suggestion_index,omitempty"`
	Generation      uint64         `json:"generation"`
	Outcome         FetchOutcome   `json:"outcome,omitempty"`
	Duration        time.Duration  `json:"duration,omitempty"`
	Err             error          `json:"-"`
}

// LifecycleHooks defines callbacks for drawer observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnDispatch   func(context.Context, *DispatchEvent)
	OnFetchStart func(context.Context, *FetchEvent)
	OnFetchDone  func(context.Context, *FetchEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnDispatch:   chain(h.OnDispatch, other.OnDispatch),
		OnFetchStart: chain(h.OnFetchStart, other.OnFetchStart),
		OnFetchDone:  chain(h.OnFetchDone, other.OnFetchDone),
	}
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}
