package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/wizards/pkg/adapters/memory"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/ports"
	"github.com/aretw0/wizards/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, memory.NewStore())
}

func TestMemoryPreferences_Contract(t *testing.T) {
	ports.RunPreferenceStoreContract(t, memory.NewPreferenceStore())
}

func TestMemoryTemplates_Contract(t *testing.T) {
	source := memory.NewTemplates(
		domain.Suggestion{Query: "up", Title: "Targets up"},
		domain.Suggestion{Query: "rate({{metric}}[5m])", Title: "Per-second rate"},
	)
	tests.TemplateSourceContractTest(t, source, map[string]string{
		"up":                   "Targets up",
		"rate({{metric}}[5m])": "Per-second rate",
	})
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	s := domain.Initial(domain.Query{Metric: "up"}, true)
	s.Interactions = append(s.Interactions, domain.NewInteraction(domain.SuggestionAI, false))
	require.NoError(t, store.Save(ctx, "d1", &s))

	s.Interactions[0].IsLoading = true
	loaded, err := store.Load(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, loaded.Interactions[0].IsLoading, "store must not alias the saved state")

	loaded.Query.Metric = "mutated"
	again, err := store.Load(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "up", again.Query.Metric)
}

func TestService_Defaults(t *testing.T) {
	ctx := context.Background()
	svc := &memory.Service{}

	got, err := svc.Suggest(ctx, domain.SuggestRequest{Type: domain.SuggestionAI, Prompt: "p", Query: domain.Query{Metric: "up"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "up", got[0].Query)

	tpl := []domain.Suggestion{{Query: "a"}}
	got, err = svc.Suggest(ctx, domain.SuggestRequest{Type: domain.SuggestionHistorical, Templates: tpl})
	require.NoError(t, err)
	assert.Equal(t, tpl, got)

	exp, err := svc.Explain(ctx, domain.Suggestion{Query: "a", Description: "desc"}, domain.Query{})
	require.NoError(t, err)
	assert.Equal(t, "desc", exp)

	assert.Equal(t, 2, svc.SuggestCalls())
	assert.Equal(t, 1, svc.ExplainCalls())
}
