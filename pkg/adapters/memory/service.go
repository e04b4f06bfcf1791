package memory

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/aretw0/wizards/pkg/domain"
)

// Service is a scriptable ports.SuggestionService.
// Nil funcs fall back to echoing the request: AI prompts become a single
// suggestion and historical requests return the templates unchanged.
type Service struct {
	SuggestFunc func(ctx context.Context, req domain.SuggestRequest) ([]domain.Suggestion, error)
	ExplainFunc func(ctx context.Context, s domain.Suggestion, q domain.Query) (string, error)

	suggestCalls atomic.Int64
	explainCalls atomic.Int64
}

// Suggest implements ports.SuggestionService.
func (s *Service) Suggest(ctx context.Context, req domain.SuggestRequest) ([]domain.Suggestion, error) {
	s.suggestCalls.Add(1)
	if s.SuggestFunc != nil {
		return s.SuggestFunc(ctx, req)
	}
	if req.Type == domain.SuggestionHistorical {
		return req.Templates, nil
	}
	return []domain.Suggestion{{
		Query: req.Query.Selector(),
		Title: req.Prompt,
	}}, nil
}

// Explain implements ports.SuggestionService.
func (s *Service) Explain(ctx context.Context, sug domain.Suggestion, q domain.Query) (string, error) {
	s.explainCalls.Add(1)
	if s.ExplainFunc != nil {
		return s.ExplainFunc(ctx, sug, q)
	}
	if sug.Description != "" {
		return sug.Description, nil
	}
	return fmt.Sprintf("%s evaluates %s", sug.Query, q.Selector()), nil
}

// SuggestCalls returns how many times Suggest was called.
func (s *Service) SuggestCalls() int {
	return int(s.suggestCalls.Load())
}

// ExplainCalls returns how many times Explain was called.
func (s *Service) ExplainCalls() int {
	return int(s.explainCalls.Load())
}
