package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunKVStoreContract runs a suite of tests to verify that a KVStore implementation
// adheres to the defined interface contract.
func RunKVStoreContract(t *testing.T, store KVStore) {
	ctx := context.Background()
	prefix := "contract:" + time.Now().Format("20060102150405") + ":"

	t.Run("Set and Get", func(t *testing.T) {
		key := prefix + "a"
		require.NoError(t, store.Set(ctx, key, `{"schema":1,"id":"a"}`))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `{"schema":1,"id":"a"}`, got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		key := prefix + "b"
		require.NoError(t, store.Set(ctx, key, "one"))
		require.NoError(t, store.Set(ctx, key, "two"))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "two", got)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, prefix+"missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		key := prefix + "c"
		require.NoError(t, store.Set(ctx, key, "value"))
		require.NoError(t, store.Delete(ctx, key))

		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound, "Get after Delete should return ErrNotFound")

		assert.NoError(t, store.Delete(ctx, key), "deleting a missing key is not an error")
	})

	lister, ok := store.(KeyLister)
	if !ok {
		return
	}

	t.Run("List", func(t *testing.T) {
		k1, k2 := prefix+"run:1", prefix+"run:2"
		require.NoError(t, store.Set(ctx, k1, "1"))
		require.NoError(t, store.Set(ctx, k2, "2"))
		require.NoError(t, store.Set(ctx, prefix+"participant:u1", "3"))
		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
			_ = store.Delete(ctx, prefix+"participant:u1")
		}()

		keys, err := lister.List(ctx, prefix+"run:")
		require.NoError(t, err)
		assert.Equal(t, []string{k1, k2}, keys)
	})
}
