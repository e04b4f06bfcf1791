package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"

	"github.com/aretw0/wizards/pkg/adapters/memory"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/persistence/middleware"
	"github.com/aretw0/wizards/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, middleware.KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func promptState(prompt string) *domain.State {
	s := domain.Initial(domain.Query{Metric: "http_requests_total"}, false)
	s.Interactions = append(s.Interactions, domain.NewInteraction(domain.SuggestionAI, false).WithPrompt(prompt))
	return &s
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunSnapshotStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)

	ctx := context.Background()
	require.NoError(t, secure.Save(ctx, "d1", promptState("my-secret-sauce")))

	stored, err := underlying.Load(ctx, "d1")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Sealed)
	assert.Empty(t, stored.Interactions)
	assert.Empty(t, stored.Query.Metric)

	loaded, err := secure.Load(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, loaded.Interactions, 1)
	assert.Equal(t, "my-secret-sauce", loaded.Interactions[0].PromptText())
	assert.Equal(t, "http_requests_total", loaded.Query.Metric)
	assert.Empty(t, loaded.Sealed)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, secureOld.Save(ctx, "d1", promptState("encrypted-with-old-key")))

	secureNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := secureNew.Load(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", loaded.Interactions[0].PromptText())

	require.NoError(t, secureNew.Save(ctx, "d1", promptState("encrypted-with-new-key")))

	_, err = secureOld.Load(ctx, "d1")
	assert.Error(t, err, "old key alone must not open a snapshot sealed with the new key")
}

func TestEncryptionMiddleware_RejectsPlainSnapshot(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "plain", promptState("hello")))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Load(ctx, "plain")
	assert.ErrorContains(t, err, "missing encrypted data envelope")
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestDecodeKey(t *testing.T) {
	key := generateKey(t)
	got, err := middleware.DecodeKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.DecodeKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)

	_, err = middleware.DecodeKey("%%%")
	assert.Error(t, err)
}
