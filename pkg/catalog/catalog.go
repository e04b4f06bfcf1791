// Package catalog holds the historical query templates offered by the
// "walk me through everything" flow.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/wizards/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Placeholders expanded by Expand.
const (
	PlaceholderMetric   = "{{metric}}"
	PlaceholderSelector = "{{selector}}"
)

// Catalog is a static, validated template set. It implements ports.TemplateSource.
type Catalog struct {
	templates []domain.Suggestion
}

type file struct {
	Templates []domain.Suggestion `yaml:"templates"`
}

// New validates templates and builds a catalog.
func New(templates ...domain.Suggestion) (*Catalog, error) {
	seen := make(map[string]bool, len(templates))
	out := make([]domain.Suggestion, 0, len(templates))
	for i, t := range templates {
		t.Query = strings.TrimSpace(t.Query)
		if t.Query == "" {
			return nil, fmt.Errorf("template %d: query is required", i)
		}
		if seen[t.Query] {
			return nil, fmt.Errorf("template %d: duplicate query %q", i, t.Query)
		}
		seen[t.Query] = true
		t.Explanation = ""
		t.Explaining = false
		t.ExplainFailure = nil
		out = append(out, t)
	}
	return &Catalog{templates: out}, nil
}

// Load decodes a YAML document of the form
//
//	templates:
//	  - title: Request rate
//	    query: rate({{selector}}[5m])
//	    description: Per-second rate over five minutes.
func Load(r io.Reader) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return New()
		}
		return nil, fmt.Errorf("failed to parse template catalog: %w", err)
	}
	return New(f.Templates...)
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template catalog: %w", err)
	}
	c, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Templates implements ports.TemplateSource. Placeholders are left in place.
func (c *Catalog) Templates(ctx context.Context) ([]domain.Suggestion, error) {
	out := make([]domain.Suggestion, len(c.templates))
	copy(out, c.templates)
	return out, nil
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}

// Expand substitutes the query placeholders of every template.
// Templates that need a metric are dropped when q has none.
func Expand(templates []domain.Suggestion, q domain.Query) []domain.Suggestion {
	selector := q.Selector()
	r := strings.NewReplacer(PlaceholderMetric, q.Metric, PlaceholderSelector, selector)

	out := make([]domain.Suggestion, 0, len(templates))
	for _, t := range templates {
		if q.Metric == "" && usesPlaceholder(t.Query) {
			continue
		}
		t.Query = r.Replace(t.Query)
		t.Title = r.Replace(t.Title)
		t.Description = r.Replace(t.Description)
		out = append(out, t)
	}
	return out
}

func usesPlaceholder(s string) bool {
	return strings.Contains(s, PlaceholderMetric) || strings.Contains(s, PlaceholderSelector)
}
