// Package flat implements an exact brute-force retrieval index.
//
// Every search scans all rows, so results are exact: the right tool for
// retrieval-quality evaluation, where approximate neighbors would pollute
// the metrics. Rows use a Struct of Arrays (SoA) layout for cache locality
// during the scan.
package flat

import (
	"container/heap"
	"context"
	"runtime"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/simtable/distance"
	"github.com/hupe1980/simtable/index"
	"github.com/hupe1980/simtable/table"
	"golang.org/x/sync/errgroup"
)

// Options configure a flat index.
type Options struct {
	// Metric selects the distance function. Defaults to MetricL2.
	Metric distance.Metric

	// Parallelism caps concurrent queries in BatchSearch.
	// Defaults to GOMAXPROCS.
	Parallelism int
}

// Index is an exact k-NN index over labeled vectors.
//
// Thread-safe: searches take the read lock, inserts the write lock.
type Index struct {
	mu sync.RWMutex

	dim      int
	vectors  []float32 // Flattened, len = rows*dim
	labels   []int64
	byLabel  map[int64]*roaring.Bitmap
	distFunc distance.Func
	opts     Options

	heapPool sync.Pool
}

// New creates an empty flat index for vectors of the given dimensionality.
func New(dim int, optFns ...func(*Options)) (*Index, error) {
	opts := Options{
		Metric:      distance.MetricL2,
		Parallelism: runtime.GOMAXPROCS(0),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}

	distFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	return &Index{
		dim:      dim,
		byLabel:  make(map[int64]*roaring.Bitmap),
		distFunc: distFunc,
		opts:     opts,
		heapPool: sync.Pool{
			New: func() any {
				h := make(resultHeap, 0, 32)
				return &h
			},
		},
	}, nil
}

// FromDump builds an index from a table dump. Row IDs equal table indices.
// All embeddings must share one dimensionality; FromDump fails otherwise.
func FromDump(d table.Dump, optFns ...func(*Options)) (*Index, error) {
	dim := 0
	if d.Size() > 0 {
		dim = len(d.Embeddings[0])
	}

	idx, err := New(dim, optFns...)
	if err != nil {
		return nil, err
	}
	for i := 0; i < d.Size(); i++ {
		if _, err := idx.Insert(d.Embeddings[i], d.Labels[i]); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Insert adds a labeled vector and returns its row ID.
func (i *Index) Insert(vector []float32, label int64) (uint32, error) {
	if len(vector) != i.dim {
		return 0, &index.ErrDimensionMismatch{Expected: i.dim, Actual: len(vector)}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	id := uint32(len(i.labels))
	i.vectors = append(i.vectors, vector...)
	i.labels = append(i.labels, label)

	bm, ok := i.byLabel[label]
	if !ok {
		bm = roaring.New()
		i.byLabel[label] = bm
	}
	bm.Add(id)

	return id, nil
}

// Size returns the number of indexed rows.
func (i *Index) Size() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.labels)
}

// Dimension returns the configured vector dimensionality.
func (i *Index) Dimension() int { return i.dim }

// Metric returns the configured distance metric.
func (i *Index) Metric() distance.Metric { return i.opts.Metric }

// Label returns the label of the given row.
func (i *Index) Label(id uint32) (int64, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if int(id) >= len(i.labels) {
		return 0, false
	}
	return i.labels[id], true
}

// Labels maps search results back to their labels, in result order.
func (i *Index) Labels(results []index.SearchResult) []int64 {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]int64, len(results))
	for n, r := range results {
		out[n] = i.labels[r.ID]
	}
	return out
}

// LabelRows returns a copy of the bitmap of row IDs carrying the label.
func (i *Index) LabelRows(label int64) *roaring.Bitmap {
	i.mu.RLock()
	defer i.mu.RUnlock()

	bm, ok := i.byLabel[label]
	if !ok {
		return roaring.New()
	}
	return bm.Clone()
}

// SearchOptions restrict the candidate rows of a single search.
type SearchOptions struct {
	// Allow, if set, restricts candidates to rows in the bitmap.
	Allow *roaring.Bitmap

	// Deny, if set, excludes rows in the bitmap. Applied after Allow.
	Deny *roaring.Bitmap

	// Filter, if set, is consulted last.
	Filter index.Filter
}

func (o *SearchOptions) admits(id uint32) bool {
	if o == nil {
		return true
	}
	if o.Allow != nil && !o.Allow.Contains(id) {
		return false
	}
	if o.Deny != nil && o.Deny.Contains(id) {
		return false
	}
	if o.Filter != nil && !o.Filter(id) {
		return false
	}
	return true
}

// Search returns the k nearest rows to query, nearest first.
// Fewer than k results are returned when the index (after filtering) holds
// fewer rows.
func (i *Index) Search(query []float32, k int, opts *SearchOptions) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(query) != i.dim {
		return nil, &index.ErrDimensionMismatch{Expected: i.dim, Actual: len(query)}
	}

	h := i.heapPool.Get().(*resultHeap)
	*h = (*h)[:0]
	defer i.heapPool.Put(h)

	i.mu.RLock()
	defer i.mu.RUnlock()

	for row := range i.labels {
		id := uint32(row)
		if !opts.admits(id) {
			continue
		}

		vec := i.vectors[row*i.dim : (row+1)*i.dim]
		dist := i.distFunc(query, vec)

		if h.Len() < k {
			heap.Push(h, index.SearchResult{ID: id, Distance: dist})
		} else if dist < (*h)[0].Distance {
			heap.Pop(h)
			heap.Push(h, index.SearchResult{ID: id, Distance: dist})
		}
	}

	// Drain the max-heap back to front for a nearest-first slice.
	results := make([]index.SearchResult, h.Len())
	for n := len(results) - 1; n >= 0; n-- {
		results[n] = heap.Pop(h).(index.SearchResult)
	}
	return results, nil
}

// BatchSearch runs Search for every query, fanning out across the configured
// parallelism. Results are position-aligned with queries.
func (i *Index) BatchSearch(ctx context.Context, queries [][]float32, k int, opts *SearchOptions) ([][]index.SearchResult, error) {
	results := make([][]index.SearchResult, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.Parallelism)

	for qi, q := range queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := i.Search(q, k, opts)
			if err != nil {
				return err
			}
			results[qi] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// resultHeap is a max-heap of SearchResults keyed on distance, so the root
// is always the worst candidate to evict.
type resultHeap []index.SearchResult

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return h[i].Distance > h[j].Distance }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) {
	*h = append(*h, x.(index.SearchResult))
}

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}
