package ports

import (
	"context"

	"github.com/aretw0/wizards/pkg/domain"
)

// TemplateSource supplies the historical query templates.
// Queries may contain the {{metric}} and {{selector}} placeholders;
// they are expanded against the drawer query before being shown.
type TemplateSource interface {
	Templates(ctx context.Context) ([]domain.Suggestion, error)
}
