package domain

import "errors"

// ErrInvalidIndex is returned when an action addresses an interaction or
// suggestion outside the current bounds.
var ErrInvalidIndex = errors.New("invalid interaction index")

// ErrStaleUpdate is returned when a fetch completes for an interaction that has
// since been replaced. Callers discard it.
var ErrStaleUpdate = errors.New("stale update")

// ErrFetchFailed marks a suggestion or explanation request that failed.
// It is recoverable: the interaction records the failure and may be retried.
var ErrFetchFailed = errors.New("fetch failed")

// ErrNotLoading is returned when a suggestion fetch is requested for an
// interaction that is not waiting for one.
var ErrNotLoading = errors.New("interaction is not loading")

// ErrPromptLocked is returned when editing the prompt of a resolved interaction.
var ErrPromptLocked = errors.New("prompt is locked once suggestions are shown")

// ErrEmptyPrompt is returned when submitting an AI interaction without a prompt.
var ErrEmptyPrompt = errors.New("prompt is empty")

// ErrWrongType is returned when an intent does not apply to the interaction's suggestion type.
var ErrWrongType = errors.New("operation not valid for suggestion type")

// ErrUnknownAction is returned when decoding an action with an unregistered name.
var ErrUnknownAction = errors.New("unknown action")

// ErrDrawerClosed is returned by a drawer after Close.
var ErrDrawerClosed = errors.New("drawer closed")

// ErrSessionNotFound is returned when a drawer ID cannot be found.
var ErrSessionNotFound = errors.New("session not found")

// ErrNothingToRetry is returned when retrying an interaction whose last fetch did not fail.
var ErrNothingToRetry = errors.New("nothing to retry")
