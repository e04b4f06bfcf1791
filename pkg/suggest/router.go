// Package suggest routes suggestion requests to the right backend.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/aretw0/wizards/internal/logging"
	"github.com/aretw0/wizards/pkg/catalog"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/ports"
)

// ErrNoBackend is returned for AI requests when neither an LLM nor fallback
// templates are configured.
var ErrNoBackend = errors.New("no AI backend configured")

// DefaultFallbackLimit caps the suggestions of the template fallback.
const DefaultFallbackLimit = 3

// Router implements ports.SuggestionService.
//
// Historical requests are answered locally by expanding the request templates
// against the query. AI requests go to the LLM backend; without one, prompts
// are matched against the fallback templates by keyword.
type Router struct {
	llm      ports.SuggestionService
	fallback ports.TemplateSource
	limit    int
	logger   *slog.Logger
}

// Option configures the Router.
type Option func(*Router)

// WithLLM configures the backend for AI prompts and explanations.
func WithLLM(llm ports.SuggestionService) Option {
	return func(r *Router) {
		r.llm = llm
	}
}

// WithFallbackTemplates answers AI prompts from templates when no LLM is configured.
func WithFallbackTemplates(source ports.TemplateSource) Option {
	return func(r *Router) {
		r.fallback = source
	}
}

// WithFallbackLimit overrides DefaultFallbackLimit.
func WithFallbackLimit(n int) Option {
	return func(r *Router) {
		r.limit = n
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates a Router.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		limit:  DefaultFallbackLimit,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Suggest implements ports.SuggestionService.
func (r *Router) Suggest(ctx context.Context, req domain.SuggestRequest) ([]domain.Suggestion, error) {
	switch req.Type {
	case domain.SuggestionHistorical:
		return catalog.Expand(req.Templates, req.Query), nil
	case domain.SuggestionAI:
		if r.llm != nil {
			out, err := r.llm.Suggest(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("llm suggest: %w", err)
			}
			return out, nil
		}
		if r.fallback != nil {
			return r.matchTemplates(ctx, req)
		}
		return nil, ErrNoBackend
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrWrongType, req.Type)
}

// Explain implements ports.SuggestionService. A suggestion that carries a
// description is explained by it; otherwise the LLM is asked.
func (r *Router) Explain(ctx context.Context, s domain.Suggestion, q domain.Query) (string, error) {
	if s.Description != "" {
		return s.Description, nil
	}
	if r.llm == nil {
		return "", ErrNoBackend
	}
	out, err := r.llm.Explain(ctx, s, q)
	if err != nil {
		return "", fmt.Errorf("llm explain: %w", err)
	}
	return out, nil
}

func (r *Router) matchTemplates(ctx context.Context, req domain.SuggestRequest) ([]domain.Suggestion, error) {
	templates, err := r.fallback.Templates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load fallback templates: %w", err)
	}
	expanded := catalog.Expand(templates, req.Query)
	words := tokens(req.Prompt)

	type scored struct {
		s     domain.Suggestion
		score int
	}
	var hits []scored
	for _, t := range expanded {
		haystack := tokens(t.Title + " " + t.Description + " " + t.Query)
		score := 0
		for w := range words {
			if _, ok := haystack[w]; ok {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{s: t, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]domain.Suggestion, 0, r.limit)
	for _, h := range hits {
		if len(out) == r.limit {
			break
		}
		out = append(out, h.s)
	}
	r.logger.Debug("Answered prompt from templates", "prompt_words", len(words), "matches", len(hits))
	return out, nil
}

// stopwords are ignored when matching prompts.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "by": {}, "for": {}, "in": {}, "on": {},
	"to": {}, "and": {}, "or": {}, "me": {}, "show": {}, "what": {}, "is": {}, "my": {},
}

func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}
