package memory

import (
	"context"

	"github.com/aretw0/wizards/pkg/domain"
)

// Templates implements ports.TemplateSource over a fixed slice.
type Templates struct {
	items []domain.Suggestion
}

// NewTemplates creates a template source from the given suggestions.
func NewTemplates(items ...domain.Suggestion) *Templates {
	copied := make([]domain.Suggestion, len(items))
	copy(copied, items)
	return &Templates{items: copied}
}

// Templates returns a copy of the configured templates.
func (t *Templates) Templates(ctx context.Context) ([]domain.Suggestion, error) {
	out := make([]domain.Suggestion, len(t.items))
	copy(out, t.items)
	return out, nil
}
