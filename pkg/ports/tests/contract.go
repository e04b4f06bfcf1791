package tests

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/wizards/pkg/ports"
)

// TemplateSourceContractTest is a reusable test suite that verifies if an adapter
// complies with ports.TemplateSource. want maps template queries to titles.
func TemplateSourceContractTest(t *testing.T, source ports.TemplateSource, want map[string]string) {
	t.Helper()

	t.Run("Templates_All", func(t *testing.T) {
		templates, err := source.Templates(context.Background())
		if err != nil {
			t.Fatalf("unexpected error listing templates: %v", err)
		}

		if len(templates) != len(want) {
			t.Errorf("expected %d templates, got %d", len(want), len(templates))
		}

		for _, tpl := range templates {
			title, ok := want[tpl.Query]
			if !ok {
				t.Errorf("unexpected template %q", tpl.Query)
				continue
			}
			if tpl.Title != title {
				t.Errorf("title mismatch for %q. got %q, want %q", tpl.Query, tpl.Title, title)
			}
		}
	})

	t.Run("Templates_NoExplanation", func(t *testing.T) {
		templates, err := source.Templates(context.Background())
		if err != nil {
			t.Fatalf("unexpected error listing templates: %v", err)
		}
		for _, tpl := range templates {
			if tpl.Explanation != "" {
				t.Errorf("template %q must not carry a cached explanation", tpl.Query)
			}
			if strings.TrimSpace(tpl.Query) == "" {
				t.Errorf("template with empty query: %+v", tpl)
			}
		}
	})
}
