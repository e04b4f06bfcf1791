package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/wizards/pkg/catalog"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
templates:
  - title: Request rate
    query: rate({{selector}}[5m])
    description: Rate of {{metric}}.
  - title: Targets up
    query: up
`

func TestLoad(t *testing.T) {
	c, err := catalog.Load(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	tests.TemplateSourceContractTest(t, c, map[string]string{
		"rate({{selector}}[5m])": "Request rate",
		"up":                     "Targets up",
	})
}

func TestLoad_Errors(t *testing.T) {
	_, err := catalog.Load(strings.NewReader("templates:\n  - title: no query\n"))
	assert.Error(t, err)

	_, err = catalog.Load(strings.NewReader("templates:\n  - query: up\n  - query: up\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = catalog.Load(strings.NewReader("template:\n  - query: up\n"))
	assert.Error(t, err, "unknown keys are rejected")

	c, err := catalog.Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	c, err := catalog.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = catalog.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	c := catalog.Default()
	templates, err := c.Templates(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, templates)
	for _, tpl := range templates {
		assert.Empty(t, tpl.Explanation)
		assert.NotEmpty(t, tpl.Title)
	}
}

func TestExpand(t *testing.T) {
	templates := []domain.Suggestion{
		{Query: "rate({{selector}}[5m])", Description: "Rate of {{metric}}."},
		{Query: "histogram_quantile(0.9, rate({{metric}}_bucket[5m]))"},
		{Query: "up"},
	}

	q := domain.Query{Metric: "http_requests_total", Labels: []domain.Label{{Label: "job", Op: "=", Value: "api"}}}
	got := catalog.Expand(templates, q)
	require.Len(t, got, 3)
	assert.Equal(t, `rate(http_requests_total{job="api"}[5m])`, got[0].Query)
	assert.Equal(t, "Rate of http_requests_total.", got[0].Description)
	assert.Equal(t, "histogram_quantile(0.9, rate(http_requests_total_bucket[5m]))", got[1].Query)
	assert.Equal(t, "up", got[2].Query)

	// Without a metric only placeholder-free templates survive.
	got = catalog.Expand(templates, domain.Query{})
	require.Len(t, got, 1)
	assert.Equal(t, "up", got[0].Query)

	assert.Equal(t, "rate({{selector}}[5m])", templates[0].Query, "input is not modified")
}
