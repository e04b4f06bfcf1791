package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/drawer"
)

// Error is the JSON body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrInvalidIndex):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDrawerClosed):
		return http.StatusGone
	case errors.Is(err, domain.ErrUnknownAction),
		errors.Is(err, domain.ErrEmptyPrompt),
		errors.Is(err, drawer.ErrPromptTooLarge),
		errors.Is(err, drawer.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPromptLocked),
		errors.Is(err, domain.ErrWrongType),
		errors.Is(err, domain.ErrNotLoading),
		errors.Is(err, domain.ErrNothingToRetry),
		errors.Is(err, domain.ErrStaleUpdate):
		return http.StatusConflict
	case errors.Is(err, domain.ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Error{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
