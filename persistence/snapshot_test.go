package persistence

import (
	"context"
	"testing"

	"github.com/hupe1980/simtable/blobstore"
	"github.com/hupe1980/simtable/resource"
	"github.com/hupe1980/simtable/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedTable(t *testing.T) *table.MemoryTable {
	t.Helper()

	tab := table.NewMemoryTable()
	tab.Add([]float32{0.1, 0.2}, 1, []byte{0, 0, 0})
	tab.Add([]float32{0.2, 0.3}, 2, []byte{0, 0, 0})
	return tab
}

func assertTablesEqual(t *testing.T, want, got *table.MemoryTable) {
	t.Helper()

	require.Equal(t, want.Size(), got.Size())
	for i := 0; i < want.Size(); i++ {
		w, err := want.Get(i)
		require.NoError(t, err)
		g, err := got.Get(i)
		require.NoError(t, err)
		assert.Equal(t, w, g, "record %d", i)
	}
}

func TestSnapshot_RoundTripMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	tab := populatedTable(t)

	require.NoError(t, Save(ctx, store, tab))

	fresh := table.NewMemoryTable()
	require.NoError(t, Load(ctx, store, fresh))
	assertTablesEqual(t, tab, fresh)
}

func TestSnapshot_RoundTripDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir() + "/snap" // exercised: SaveDir creates the directory
	tab := populatedTable(t)

	require.NoError(t, SaveDir(ctx, dir, tab))

	fresh := table.NewMemoryTable()
	require.NoError(t, LoadDir(ctx, dir, fresh))
	assertTablesEqual(t, tab, fresh)
}

func TestSnapshot_RoundTripEmptyTable(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	tab := table.NewMemoryTable()

	require.NoError(t, Save(ctx, store, tab))

	fresh := table.NewMemoryTable()
	fresh.Add([]float32{9}, 9, nil) // prior content is replaced, not merged
	require.NoError(t, Load(ctx, store, fresh))
	assert.Equal(t, 0, fresh.Size())
}

func TestSnapshot_RoundTripRagged(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	tab := table.NewMemoryTable()
	tab.Add([]float32{1}, 1, []byte("a"))
	tab.Add([]float32{1, 2, 3}, 2, nil)
	tab.Add(nil, 3, []byte("much longer payload bytes"))

	require.NoError(t, Save(ctx, store, tab))

	fresh := table.NewMemoryTable()
	require.NoError(t, Load(ctx, store, fresh))
	assertTablesEqual(t, tab, fresh)
}

func TestSnapshot_RoundTripLargeCompressible(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	tab := table.NewMemoryTable()
	for i := 0; i < 500; i++ {
		tab.Add([]float32{float32(i % 3), float32(i % 5), 0, 0}, int64(i%7), []byte("repetitive payload"))
	}

	require.NoError(t, Save(ctx, store, tab))

	fresh := table.NewMemoryTable()
	require.NoError(t, Load(ctx, store, fresh))
	assertTablesEqual(t, tab, fresh)
}

func TestSnapshot_CompressionVariants(t *testing.T) {
	ctx := context.Background()
	tab := populatedTable(t)

	for _, comp := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		store := blobstore.NewMemoryStore()
		opt := func(o *Options) {
			o.EmbeddingCompression = comp
			o.PayloadCompression = comp
		}
		require.NoError(t, Save(ctx, store, tab, opt), "compression %v", comp)

		fresh := table.NewMemoryTable()
		require.NoError(t, Load(ctx, store, fresh), "compression %v", comp)
		assertTablesEqual(t, tab, fresh)
	}
}

func TestSnapshot_RateLimited(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	tab := populatedTable(t)

	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 10 << 20})
	opt := func(o *Options) { o.Resources = rc }

	require.NoError(t, Save(ctx, store, tab, opt))

	fresh := table.NewMemoryTable()
	require.NoError(t, Load(ctx, store, fresh, opt))
	assertTablesEqual(t, tab, fresh)
}

func TestSnapshot_LoadMissingManifest(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	fresh := table.NewMemoryTable()
	err := Load(ctx, store, fresh)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestSnapshot_LoadMissingColumn(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, Save(ctx, store, populatedTable(t)))
	require.NoError(t, store.Delete(ctx, FileLabels))

	fresh := table.NewMemoryTable()
	err := Load(ctx, store, fresh)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestSnapshot_LoadChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	tab := populatedTable(t)

	// Store uncompressed so the corrupted byte reaches checksum verification
	// instead of tripping the decompressor.
	opt := func(o *Options) {
		o.EmbeddingCompression = CompressionNone
		o.PayloadCompression = CompressionNone
	}
	require.NoError(t, Save(ctx, store, tab, opt))
	require.True(t, store.Corrupt(FileEmbeddings, FileHeaderSize+3))

	fresh := table.NewMemoryTable()
	err := Load(ctx, store, fresh)
	require.Error(t, err)
	assert.True(t, IsChecksumMismatch(err), "got %v", err)
}

func TestSnapshot_LoadBadMagic(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, Save(ctx, store, populatedTable(t)))
	require.True(t, store.Corrupt(FileLabels, 0))

	fresh := table.NewMemoryTable()
	err := Load(ctx, store, fresh)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestSnapshot_LoadCountMismatch(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, Save(ctx, store, populatedTable(t)))

	// Overwrite the labels column with one from a smaller table.
	small := table.NewMemoryTable()
	small.Add([]float32{0.5}, 5, nil)
	smallStore := blobstore.NewMemoryStore()
	require.NoError(t, Save(ctx, smallStore, small))
	data, err := blobstore.ReadAll(ctx, smallStore, FileLabels)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, FileLabels, data))

	fresh := table.NewMemoryTable()
	err = Load(ctx, store, fresh)
	assert.ErrorIs(t, err, ErrManifestMismatch)
}

func TestSnapshot_FailedLoadPreservesPriorContent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, Save(ctx, store, populatedTable(t)))
	require.NoError(t, store.Delete(ctx, FilePayloads))

	prior := table.NewMemoryTable()
	prior.Add([]float32{7, 7}, 7, []byte("keep me"))

	require.Error(t, Load(ctx, store, prior))

	require.Equal(t, 1, prior.Size())
	rec, err := prior.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{7, 7}, rec.Embedding)
	assert.Equal(t, int64(7), rec.Label)
	assert.Equal(t, []byte("keep me"), rec.Payload)
}

func TestSnapshot_ManifestWrittenLast(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, Save(ctx, store, populatedTable(t)))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{FileEmbeddings, FileLabels, FilePayloads, FileManifest}, names)
}
