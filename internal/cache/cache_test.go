package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nope", "cache.json"))
	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestFileStoreCommitMerges(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "agent", "cache.json")
	store := NewFileStore(path)

	require.NoError(t, store.Commit(ctx, "b", "a"))
	require.NoError(t, store.Commit(ctx, "c", "a", ""))

	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b","c"]`, string(blob))

	set, err := NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.True(t, set.Has("c"))
	assert.False(t, set.Has("d"))
	assert.Equal(t, 3, set.Len())
}

func TestFileStoreReadsLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`["18c1f0a2","18c1f0a3"]`), 0o644))

	set, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, set.Has("18c1f0a2"))
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
}

func TestMemoryStoreLoadIsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("x")
	set, err := store.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Commit(ctx, "y"))
	assert.False(t, set.Has("y"))

	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, again.IDs())
}
