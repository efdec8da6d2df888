package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	payload := []byte("hello blob")
	require.NoError(t, store.Put(ctx, "a.bin", payload))

	b, err := store.Open(ctx, "a.bin")
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, int64(len(payload)), b.Size())

	got := make([]byte, len(payload))
	_, err = b.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestLocalStore_ReadAll(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	payload := []byte("read all of me")
	require.NoError(t, store.Put(ctx, "a.bin", payload))

	got, err := ReadAll(ctx, store, "a.bin")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestLocalStore_OpenMissing(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(ctx, "nope.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_CreateStreaming(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	w, err := store.Create(ctx, "stream.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("part1 "))
	require.NoError(t, err)

	// Not visible before Close.
	_, err = store.Open(ctx, "stream.bin")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = w.Write([]byte("part2"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := ReadAll(ctx, store, "stream.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("part1 part2"), got)

	// No temp files left behind.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestLocalStore_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "snap-a", []byte("a")))
	require.NoError(t, store.Put(ctx, "snap-b", []byte("b")))
	require.NoError(t, store.Put(ctx, "other", []byte("c")))

	names, err := store.List(ctx, "snap-")
	require.NoError(t, err)
	assert.Equal(t, []string{"snap-a", "snap-b"}, names)

	require.NoError(t, store.Delete(ctx, "snap-a"))
	require.NoError(t, store.Delete(ctx, "snap-a")) // idempotent

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "snap-b"}, names)
}

func TestLocalStore_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "dir")
	_, err := NewLocalStore(root)
	require.NoError(t, err)

	st, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "a", []byte("alpha")))

	got, err := ReadAll(ctx, store, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), got)

	_, err = store.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_OpenIsolatedFromPut(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "a", []byte("one")))

	b, err := store.Open(ctx, "a")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, store.Put(ctx, "a", []byte("two")))

	got := make([]byte, 3)
	_, err = b.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)
}

func TestMemoryStore_Corrupt(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "a", []byte{1, 2, 3}))

	require.True(t, store.Corrupt("a", 1))
	require.False(t, store.Corrupt("a", 99))
	require.False(t, store.Corrupt("missing", 0))

	got, err := ReadAll(ctx, store, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2 ^ 0xFF, 3}, got)
}
