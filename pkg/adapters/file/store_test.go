package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/chatflow/pkg/adapters/file"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.KVStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunKVStoreContract(t, store)
}

func TestFileStore_EscapesKeys(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "session:room/1:u1", `{"selecting":true}`))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session%3Aroom%2F1%3Au1.json", entries[0].Name())

	keys, err := store.List(ctx, "session:")
	require.NoError(t, err)
	assert.Equal(t, []string{"session:room/1:u1"}, keys)
}

func TestFileStore_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Set(ctx, "run:1", "v"))
	}
	matches, err := filepath.Glob(filepath.Join(dir, "tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
