// Package loam reads query templates from a directory of Markdown (or JSON/YAML)
// documents through the Loam library.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/wizards/pkg/catalog"
	"github.com/aretw0/wizards/pkg/domain"
)

// TemplateSource adapts a Loam repository to ports.TemplateSource.
type TemplateSource struct {
	Repo *loam.TypedRepository[TemplateMetadata]
}

// New creates a template source over repo.
func New(repo *loam.TypedRepository[TemplateMetadata]) *TemplateSource {
	return &TemplateSource{Repo: repo}
}

// Open initializes a read-only Loam repository at dir.
func Open(dir string) (*TemplateSource, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[TemplateMetadata](repo)), nil
}

type entry struct {
	id  string
	sug domain.Suggestion
}

// Templates lists every document of the repository as a template, ordered by
// ID. Documents without a query are skipped; duplicate IDs or queries are an error.
func (s *TemplateSource) Templates(ctx context.Context) ([]domain.Suggestion, error) {
	docs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	entries := make([]entry, 0, len(docs))
	for _, doc := range docs {
		meta := doc.Data
		if strings.TrimSpace(meta.Query) == "" {
			continue
		}
		rawID := meta.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID

		title := meta.Title
		if title == "" {
			title = id
		}
		entries = append(entries, entry{
			id: id,
			sug: domain.Suggestion{
				Query:       strings.TrimSpace(meta.Query),
				Title:       title,
				Link:        meta.Link,
				Description: strings.TrimSpace(doc.Content),
			},
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	out := make([]domain.Suggestion, len(entries))
	for i, e := range entries {
		out[i] = e.sug
	}
	// The catalog enforces unique queries.
	cat, err := catalog.New(out...)
	if err != nil {
		return nil, err
	}
	return cat.Templates(ctx)
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
