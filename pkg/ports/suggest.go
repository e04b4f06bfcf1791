package ports

import (
	"context"

	"github.com/aretw0/wizards/pkg/domain"
)

// SuggestionService produces suggestions and explanations.
// Implementations must honour ctx cancellation: the drawer cancels requests
// whose interaction was replaced or whose drawer was closed.
type SuggestionService interface {
	// Suggest returns the suggestions for a request. An empty slice is a valid
	// answer and leaves the interaction idle.
	Suggest(ctx context.Context, req domain.SuggestRequest) ([]domain.Suggestion, error)

	// Explain returns a human readable explanation of a single suggestion.
	Explain(ctx context.Context, s domain.Suggestion, q domain.Query) (string, error)
}
