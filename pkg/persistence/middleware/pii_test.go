package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/wizards/pkg/adapters/memory"
	"github.com/aretw0/wizards/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewPIIMiddleware([]string{
		`[\w.+-]+@[\w-]+\.[\w.]+`,
		`token=\S+`,
	})(underlying)

	ctx := context.Background()
	state := promptState("errors for jane.doe@example.com with token=abc123 please")
	require.NoError(t, secure.Save(ctx, "d1", state))

	// In-memory state is not modified.
	assert.Equal(t, "errors for jane.doe@example.com with token=abc123 please", state.Interactions[0].PromptText())

	stored, err := underlying.Load(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "errors for *** with *** please", stored.Interactions[0].PromptText())
}

func TestPIIMiddleware_LeavesEmptyPromptAlone(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewPIIMiddleware([]string{`secret`})(underlying)

	ctx := context.Background()
	state := promptState("")
	state.Interactions[0].Prompt = nil
	require.NoError(t, secure.Save(ctx, "d1", state))

	stored, err := underlying.Load(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, stored.Interactions[0].Prompt)
}

func TestChain_MasksBeforeEncrypting(t *testing.T) {
	underlying := memory.NewStore()
	store := middleware.Chain(underlying,
		middleware.NewPIIMiddleware([]string{`secret`}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}),
	)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "d1", promptState("my secret query")))

	stored, err := underlying.Load(ctx, "d1")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Sealed)

	loaded, err := store.Load(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "my *** query", loaded.Interactions[0].PromptText())
}
