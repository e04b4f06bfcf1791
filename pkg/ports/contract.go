package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/wizards/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	id := "contract-test-drawer-" + time.Now().Format("20060102150405")

	sample := func() *domain.State {
		s := domain.Initial(domain.Query{Metric: "up", Labels: []domain.Label{{Label: "job", Op: "=", Value: "api"}}}, true)
		prompt := "error rate by pod"
		s.Interactions = append(s.Interactions,
			domain.Interaction{
				SuggestionType: domain.SuggestionAI,
				Prompt:         &prompt,
				Suggestions: []domain.Suggestion{
					{Query: "sum by (pod) (rate(errors_total[5m]))", Explanation: "errors per pod"},
				},
				Generation: 1,
			},
			domain.NewInteraction(domain.SuggestionHistorical, true),
		)
		return &s
	}

	t.Run("Save and Load", func(t *testing.T) {
		state := sample()

		err := store.Save(ctx, id, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.Query, loaded.Query)
		assert.Equal(t, state.ShowStartingMessage, loaded.ShowStartingMessage)
		require.Len(t, loaded.Interactions, 2)
		assert.Equal(t, "error rate by pod", loaded.Interactions[0].PromptText())
		assert.Equal(t, uint64(1), loaded.Interactions[0].Generation)
		assert.Equal(t, "errors per pod", loaded.Interactions[0].Suggestions[0].Explanation)
		assert.True(t, loaded.Interactions[1].IsLoading)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+id)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, id, sample())
		require.NoError(t, err)

		err = store.Delete(ctx, id)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, id), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := id + "-1"
		id2 := id + "-2"
		_ = store.Save(ctx, id1, sample())
		_ = store.Save(ctx, id2, sample())

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunPreferenceStoreContract verifies a PreferenceStore implementation.
func RunPreferenceStoreContract(t *testing.T, store PreferenceStore) {
	ctx := context.Background()
	key := "CONTRACT_FLAG_" + time.Now().Format("20060102150405")

	t.Run("Default When Unset", func(t *testing.T) {
		v, err := store.GetBool(ctx, key+"_unset", false)
		require.NoError(t, err)
		assert.False(t, v)

		v, err = store.GetBool(ctx, key+"_unset", true)
		require.NoError(t, err)
		assert.True(t, v)
	})

	t.Run("Set and Get", func(t *testing.T) {
		require.NoError(t, store.SetBool(ctx, key, true))
		v, err := store.GetBool(ctx, key, false)
		require.NoError(t, err)
		assert.True(t, v)

		// An explicit false wins over a true default.
		require.NoError(t, store.SetBool(ctx, key, false))
		v, err = store.GetBool(ctx, key, true)
		require.NoError(t, err)
		assert.False(t, v)
	})

	t.Run("Keys Are Independent", func(t *testing.T) {
		require.NoError(t, store.SetBool(ctx, key+"_a", true))
		v, err := store.GetBool(ctx, key+"_b", false)
		require.NoError(t, err)
		assert.False(t, v)
	})
}
