package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/persistence/middleware"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunKVStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()

	require.NoError(t, secure.Set(ctx, "run:1", `{"data":{"q1":{"response":"my-secret-sauce"}}}`))

	raw, err := underlying.Get(ctx, "run:1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "enc:v1:"))
	assert.NotContains(t, raw, "my-secret-sauce")

	got, err := secure.Get(ctx, "run:1")
	require.NoError(t, err)
	assert.Contains(t, got, "my-secret-sauce")
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, secureOld.Set(ctx, "k", "encrypted-with-old-key"))

	secureNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	got, err := secureNew.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", got)

	require.NoError(t, secureNew.Set(ctx, "k", "encrypted-with-new-key"))

	_, err = secureOld.Get(ctx, "k")
	assert.Error(t, err, "old key alone must not open new-key values")
}

func TestEncryptionMiddleware_RejectsPlainValues(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Set(ctx, "k", `{"schema":1}`))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Get(ctx, "k")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}
