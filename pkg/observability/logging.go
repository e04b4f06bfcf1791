package observability

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/wizards/pkg/domain"
)

// LogHooks returns lifecycle hooks that write an audit record per event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			if e.Err != nil && !isStale(e.Err) {
				logger.InfoContext(ctx, "action_rejected", "drawer_id", e.SessionID, "action", e.Action, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "action", "drawer_id", e.SessionID, "action", e.Action)
		},
		OnFetchStart: func(ctx context.Context, e *domain.FetchEvent) {
			logger.InfoContext(ctx, "fetch_start",
				"drawer_id", e.SessionID,
				"op", e.Op,
				"type", e.SuggestionType,
				"index", e.Index,
			)
		},
		OnFetchDone: func(ctx context.Context, e *domain.FetchEvent) {
			args := []any{
				"drawer_id", e.SessionID,
				"op", e.Op,
				"type", e.SuggestionType,
				"index", e.Index,
				"outcome", e.Outcome,
				"duration", e.Duration,
			}
			if e.Err != nil {
				args = append(args, "err", e.Err)
			}
			logger.InfoContext(ctx, "fetch_done", args...)
		},
	}
}

func isStale(err error) bool {
	return errors.Is(err, domain.ErrStaleUpdate)
}
