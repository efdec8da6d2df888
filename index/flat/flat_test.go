package flat

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/simtable/distance"
	"github.com/hupe1980/simtable/index"
	"github.com/hupe1980/simtable/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T) *Index {
	t.Helper()

	idx, err := New(2)
	require.NoError(t, err)

	// Query {0,0}:
	// ID 0: {1, 0}   -> dist 1
	// ID 1: {2, 0}   -> dist 4
	// ID 2: {0, 1}   -> dist 1
	// ID 3: {10, 10} -> dist 200
	vectors := [][]float32{{1, 0}, {2, 0}, {0, 1}, {10, 10}}
	labels := []int64{1, 1, 2, 3}
	for n, v := range vectors {
		id, err := idx.Insert(v, labels[n])
		require.NoError(t, err)
		assert.Equal(t, uint32(n), id)
	}
	return idx
}

func TestFlat_Search(t *testing.T) {
	idx := buildIndex(t)

	results, err := idx.Search([]float32{0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// IDs 0 and 2 are tied at distance 1; both must appear.
	got := []uint32{results[0].ID, results[1].ID}
	assert.ElementsMatch(t, []uint32{0, 2}, got)
	assert.InDelta(t, 1.0, results[0].Distance, 0.001)
	assert.InDelta(t, 1.0, results[1].Distance, 0.001)
}

func TestFlat_SearchOrdering(t *testing.T) {
	idx := buildIndex(t)

	results, err := idx.Search([]float32{2, 0}, 4, nil)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for n := 1; n < len(results); n++ {
		assert.LessOrEqual(t, results[n-1].Distance, results[n].Distance)
	}
	assert.Equal(t, uint32(1), results[0].ID)
}

func TestFlat_SearchKLargerThanSize(t *testing.T) {
	idx := buildIndex(t)

	results, err := idx.Search([]float32{0, 0}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestFlat_SearchErrors(t *testing.T) {
	idx := buildIndex(t)

	_, err := idx.Search([]float32{0, 0}, 0, nil)
	assert.ErrorIs(t, err, index.ErrInvalidK)

	var dm *index.ErrDimensionMismatch
	_, err = idx.Search([]float32{0, 0, 0}, 1, nil)
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Actual)

	_, err = idx.Insert([]float32{1}, 1)
	assert.ErrorAs(t, err, &dm)
}

func TestFlat_SearchFilter(t *testing.T) {
	idx := buildIndex(t)

	results, err := idx.Search([]float32{0, 0}, 10, &SearchOptions{
		Filter: func(id uint32) bool { return id != 0 },
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NotEqual(t, uint32(0), r.ID)
	}
}

func TestFlat_SearchAllowDeny(t *testing.T) {
	idx := buildIndex(t)

	allow := roaring.BitmapOf(0, 1, 3)
	deny := roaring.BitmapOf(1)

	results, err := idx.Search([]float32{0, 0}, 10, &SearchOptions{Allow: allow, Deny: deny})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, uint32(0), results[0].ID)
	assert.Equal(t, uint32(3), results[1].ID)
}

func TestFlat_LabelRows(t *testing.T) {
	idx := buildIndex(t)

	bm := idx.LabelRows(1)
	assert.Equal(t, uint64(2), bm.GetCardinality())
	assert.True(t, bm.Contains(0))
	assert.True(t, bm.Contains(1))

	assert.Equal(t, uint64(0), idx.LabelRows(99).GetCardinality())

	// Returned bitmap is a copy.
	bm.Add(3)
	assert.False(t, idx.LabelRows(1).Contains(3))
}

func TestFlat_Labels(t *testing.T) {
	idx := buildIndex(t)

	results, err := idx.Search([]float32{10, 10}, 2, nil)
	require.NoError(t, err)
	labels := idx.Labels(results)
	assert.Equal(t, []int64{3, 1}, labels)
}

func TestFlat_FromDump(t *testing.T) {
	tab := table.NewMemoryTable()
	tab.Add([]float32{0.1, 0.2}, 1, []byte{0, 0, 0})
	tab.Add([]float32{0.2, 0.3}, 2, []byte{0, 0, 0})

	idx, err := FromDump(tab.Dump(), func(o *Options) {
		o.Metric = distance.MetricCosine
	})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Size())
	assert.Equal(t, 2, idx.Dimension())
	assert.Equal(t, distance.MetricCosine, idx.Metric())

	results, err := idx.Search([]float32{0.1, 0.2}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(0), results[0].ID)

	lbl, ok := idx.Label(results[0].ID)
	require.True(t, ok)
	assert.Equal(t, int64(1), lbl)
}

func TestFlat_FromDumpRaggedFails(t *testing.T) {
	tab := table.NewMemoryTable()
	tab.Add([]float32{1, 2}, 1, nil)
	tab.Add([]float32{1}, 2, nil)

	_, err := FromDump(tab.Dump())
	var dm *index.ErrDimensionMismatch
	assert.ErrorAs(t, err, &dm)
}

func TestFlat_BatchSearch(t *testing.T) {
	idx := buildIndex(t)

	queries := [][]float32{{0, 0}, {2, 0}, {10, 10}}
	results, err := idx.BatchSearch(context.Background(), queries, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, uint32(1), results[1][0].ID)
	assert.Equal(t, uint32(3), results[2][0].ID)
}

func TestFlat_BatchSearchPropagatesError(t *testing.T) {
	idx := buildIndex(t)

	queries := [][]float32{{0, 0}, {1, 2, 3}}
	_, err := idx.BatchSearch(context.Background(), queries, 1, nil)
	assert.Error(t, err)
}

func TestFlat_EmptyIndex(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)

	results, err := idx.Search([]float32{0, 0}, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
