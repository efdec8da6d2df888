package simtable

import (
	"context"
	"testing"

	"github.com/hupe1980/simtable/blobstore"
	"github.com/hupe1980/simtable/distance"
	"github.com/hupe1980/simtable/persistence"
	"github.com/hupe1980/simtable/retrieval"
	"github.com/hupe1980/simtable/table"
	"github.com/hupe1980/simtable/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexer_AddGet(t *testing.T) {
	ix, err := New()
	require.NoError(t, err)

	i0 := ix.Add([]float32{0.1, 0.2}, 1, []byte{0, 0, 0})
	i1 := ix.Add([]float32{0.2, 0.3}, 2, []byte{0, 0, 0})
	assert.Equal(t, 0, i0)
	assert.Equal(t, 1, i1)
	assert.Equal(t, 2, ix.Size())

	rec, err := ix.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, rec.Embedding)
	assert.Equal(t, int64(1), rec.Label)
	assert.Equal(t, []byte{0, 0, 0}, rec.Payload)

	var oor *table.ErrIndexOutOfRange
	_, err = ix.Get(2)
	assert.ErrorAs(t, err, &oor)
}

func TestIndexer_AddBatch(t *testing.T) {
	ix, err := New()
	require.NoError(t, err)

	indices, err := ix.AddBatch(
		[][]float32{{1, 0}, {0, 1}},
		[]int64{1, 2},
		[][]byte{[]byte("a"), nil},
	)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, indices)

	_, err = ix.AddBatch([][]float32{{1, 0}}, []int64{1, 2}, nil)
	assert.ErrorIs(t, err, ErrBatchMismatch)

	_, err = ix.AddBatch([][]float32{{1, 0}}, []int64{1}, [][]byte{nil, nil})
	assert.ErrorIs(t, err, ErrBatchMismatch)
}

func TestIndexer_Lookup(t *testing.T) {
	ctx := context.Background()

	ix, err := New()
	require.NoError(t, err)

	ix.Add([]float32{1, 0}, 1, nil)
	ix.Add([]float32{0, 1}, 2, nil)
	ix.Add([]float32{5, 5}, 3, nil)

	_, err = ix.Lookup(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrNotIndexed)
	assert.False(t, ix.Indexed())

	require.NoError(t, ix.BuildIndex(ctx))
	assert.True(t, ix.Indexed())

	neighbors, err := ix.Lookup(ctx, []float32{0.9, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, uint32(0), neighbors[0].Index)
	assert.Equal(t, int64(1), neighbors[0].Label)
	assert.LessOrEqual(t, neighbors[0].Distance, neighbors[1].Distance)

	ix.ResetIndex()
	_, err = ix.Lookup(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestIndexer_LookupBatch(t *testing.T) {
	ctx := context.Background()

	ix, err := New()
	require.NoError(t, err)
	ix.Add([]float32{1, 0}, 1, nil)
	ix.Add([]float32{0, 1}, 2, nil)
	require.NoError(t, ix.BuildIndex(ctx))

	batches, err := ix.LookupBatch(ctx, [][]float32{{1, 0}, {0, 1}}, 1)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, int64(1), batches[0][0].Label)
	assert.Equal(t, int64(2), batches[1][0].Label)
}

func TestIndexer_StaleIndex(t *testing.T) {
	ctx := context.Background()

	ix, err := New()
	require.NoError(t, err)
	ix.Add([]float32{1, 0}, 1, nil)
	require.NoError(t, ix.BuildIndex(ctx))

	// Records added after the build are invisible until a rebuild.
	ix.Add([]float32{0, 1}, 2, nil)
	neighbors, err := ix.Lookup(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	assert.Len(t, neighbors, 1)

	require.NoError(t, ix.BuildIndex(ctx))
	neighbors, err = ix.Lookup(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	assert.Len(t, neighbors, 2)
}

func TestIndexer_ClassCounts(t *testing.T) {
	ix, err := New()
	require.NoError(t, err)
	ix.Add([]float32{1}, 1, nil)
	ix.Add([]float32{2}, 1, nil)
	ix.Add([]float32{3}, 2, nil)

	assert.Equal(t, map[int64]int{1: 2, 2: 1}, ix.ClassCounts())
}

func TestIndexer_EvaluateRetrieval(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(42)

	vectors, labels := rng.ClusteredVectors(4, 25, 16, 0.05)

	ix, err := New(WithMetric(distance.MetricCosine))
	require.NoError(t, err)
	_, err = ix.AddBatch(vectors, labels, nil)
	require.NoError(t, err)
	require.NoError(t, ix.BuildIndex(ctx))

	recall, err := retrieval.NewRecallAtK(3)
	require.NoError(t, err)
	mAP, err := retrieval.NewMAPAtK(3, ix.ClassCounts())
	require.NoError(t, err)

	scores, err := ix.EvaluateRetrieval(ctx, vectors, labels, 3, []retrieval.Metric{recall, mAP}, true)
	require.NoError(t, err)
	require.Len(t, scores, 2)

	// Tight, well-separated clusters retrieve near-perfectly.
	assert.Greater(t, scores["recall@3"], 0.9)
	assert.Greater(t, scores["map@3"], 0.5)
}

func TestIndexer_EvaluateRetrievalErrors(t *testing.T) {
	ctx := context.Background()

	ix, err := New()
	require.NoError(t, err)
	ix.Add([]float32{1, 0}, 1, nil)

	recall, err := retrieval.NewRecallAtK(1)
	require.NoError(t, err)

	_, err = ix.EvaluateRetrieval(ctx, [][]float32{{1, 0}}, []int64{1}, 1, []retrieval.Metric{recall}, false)
	assert.ErrorIs(t, err, ErrNotIndexed)

	require.NoError(t, ix.BuildIndex(ctx))
	_, err = ix.EvaluateRetrieval(ctx, [][]float32{{1, 0}}, []int64{1, 2}, 1, []retrieval.Metric{recall}, false)
	assert.ErrorIs(t, err, retrieval.ErrBatchMismatch)
}

func TestIndexer_SaveLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir() + "/snapshot"

	ix, err := New()
	require.NoError(t, err)
	ix.Add([]float32{0.1, 0.2}, 1, []byte{0, 0, 0})
	ix.Add([]float32{0.2, 0.3}, 2, []byte{0, 0, 0})
	require.NoError(t, ix.BuildIndex(ctx))
	require.NoError(t, ix.Save(ctx, dir))

	fresh, err := New()
	require.NoError(t, err)
	require.NoError(t, fresh.Load(ctx, dir))

	require.Equal(t, 2, fresh.Size())
	for i := 0; i < 2; i++ {
		want, err := ix.Get(i)
		require.NoError(t, err)
		got, err := fresh.Get(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Load invalidates any existing index.
	_, err = fresh.Lookup(ctx, []float32{0.1, 0.2}, 1)
	assert.ErrorIs(t, err, ErrNotIndexed)

	require.NoError(t, fresh.BuildIndex(ctx))
	neighbors, err := fresh.Lookup(ctx, []float32{0.1, 0.2}, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), neighbors[0].Index)
}

func TestIndexer_SaveToLoadFrom(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	ix, err := New(WithSnapshotOptions(func(o *persistence.Options) {
		o.EmbeddingCompression = persistence.CompressionNone
	}))
	require.NoError(t, err)
	ix.Add([]float32{1, 2}, 1, []byte("payload"))
	require.NoError(t, ix.SaveTo(ctx, store))

	fresh, err := New()
	require.NoError(t, err)
	require.NoError(t, fresh.LoadFrom(ctx, store))
	assert.Equal(t, 1, fresh.Size())

	rec, err := fresh.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, rec.Embedding)
}

func TestNew_UnknownMetric(t *testing.T) {
	_, err := New(WithMetric(distance.Metric(99)))
	assert.Error(t, err)
}
