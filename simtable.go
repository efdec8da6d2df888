package simtable

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/simtable/blobstore"
	"github.com/hupe1980/simtable/distance"
	"github.com/hupe1980/simtable/index"
	"github.com/hupe1980/simtable/index/flat"
	"github.com/hupe1980/simtable/persistence"
	"github.com/hupe1980/simtable/retrieval"
	"github.com/hupe1980/simtable/table"
)

// Neighbor is a single lookup match.
type Neighbor struct {
	// Index is the dense table index of the matched record.
	Index uint32

	// Label is the matched record's label.
	Label int64

	// Distance is the distance to the query. Smaller means closer.
	Distance float32
}

// Indexer combines an append-only embedding table with an exact retrieval
// index built on demand from the table's content.
//
// Records appended after BuildIndex are not visible to lookups until the
// index is rebuilt. Thread-safe.
type Indexer struct {
	mu   sync.RWMutex // Protects idx
	tab  *table.MemoryTable
	idx  *flat.Index
	opts options
}

// New creates an empty Indexer.
func New(optFns ...Option) (*Indexer, error) {
	opts := applyOptions(optFns)

	// Reject unknown metrics up front instead of at the first build.
	if _, err := distance.Provider(opts.metric); err != nil {
		return nil, err
	}

	return &Indexer{
		tab:  table.NewMemoryTable(),
		opts: opts,
	}, nil
}

// Add appends a record and returns its dense index.
func (ix *Indexer) Add(embedding []float32, label int64, payload []byte) int {
	i := ix.tab.Add(embedding, label, payload)
	ix.opts.logger.LogAdd(context.Background(), i, len(embedding))
	return i
}

// AddBatch appends records position-aligned across the three slices and
// returns their dense indices. payloads may be nil when no record carries
// one.
func (ix *Indexer) AddBatch(embeddings [][]float32, labels []int64, payloads [][]byte) ([]int, error) {
	if len(embeddings) != len(labels) {
		return nil, ErrBatchMismatch
	}
	if payloads != nil && len(payloads) != len(embeddings) {
		return nil, ErrBatchMismatch
	}

	indices := make([]int, len(embeddings))
	for n, emb := range embeddings {
		var payload []byte
		if payloads != nil {
			payload = payloads[n]
		}
		indices[n] = ix.tab.Add(emb, labels[n], payload)
	}
	return indices, nil
}

// Get returns the record at the given dense index.
func (ix *Indexer) Get(i int) (table.Record, error) {
	return ix.tab.Get(i)
}

// Size returns the number of stored records.
func (ix *Indexer) Size() int {
	return ix.tab.Size()
}

// ClassCounts returns the number of stored records per label.
func (ix *Indexer) ClassCounts() map[int64]int {
	counts := make(map[int64]int)
	for _, lbl := range ix.tab.Columns().Labels {
		counts[lbl]++
	}
	return counts
}

// BuildIndex (re)builds the retrieval index from the table's current
// content.
func (ix *Indexer) BuildIndex(ctx context.Context) error {
	start := time.Now()

	idx, err := flat.FromDump(ix.tab.Dump(), func(o *flat.Options) {
		o.Metric = ix.opts.metric
		o.Parallelism = ix.opts.parallelism
	})

	ix.opts.logger.LogIndexBuild(ctx, ix.tab.Size(), time.Since(start), err)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	ix.idx = idx
	ix.mu.Unlock()
	return nil
}

// ResetIndex drops the retrieval index. Lookups fail with ErrNotIndexed
// until BuildIndex runs again.
func (ix *Indexer) ResetIndex() {
	ix.mu.Lock()
	ix.idx = nil
	ix.mu.Unlock()
}

// Indexed reports whether a retrieval index is currently built.
func (ix *Indexer) Indexed() bool {
	return ix.index() != nil
}

func (ix *Indexer) index() *flat.Index {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.idx
}

// Lookup returns the k nearest records to the query, nearest first.
func (ix *Indexer) Lookup(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	idx := ix.index()
	if idx == nil {
		return nil, ErrNotIndexed
	}

	results, err := idx.Search(query, k, nil)
	ix.opts.logger.LogLookup(ctx, k, len(results), err)
	if err != nil {
		return nil, err
	}
	return toNeighbors(idx, results), nil
}

// LookupBatch runs Lookup for every query, fanning out across the
// configured parallelism. Results are position-aligned with queries.
func (ix *Indexer) LookupBatch(ctx context.Context, queries [][]float32, k int) ([][]Neighbor, error) {
	idx := ix.index()
	if idx == nil {
		return nil, ErrNotIndexed
	}

	batches, err := idx.BatchSearch(ctx, queries, k, nil)
	if err != nil {
		return nil, err
	}

	out := make([][]Neighbor, len(batches))
	for n, results := range batches {
		out[n] = toNeighbors(idx, results)
	}
	return out, nil
}

// EvaluateRetrieval scores the index against a labeled query set and returns
// the metric values keyed by metric name.
//
// With dropClosest, each query's single nearest neighbor is excluded before
// scoring. Use it when the queries are the indexed records themselves, so a
// record does not trivially retrieve itself.
func (ix *Indexer) EvaluateRetrieval(ctx context.Context, queries [][]float32, labels []int64, k int, metrics []retrieval.Metric, dropClosest bool) (map[string]float64, error) {
	idx := ix.index()
	if idx == nil {
		return nil, ErrNotIndexed
	}
	if len(queries) != len(labels) {
		return nil, retrieval.ErrBatchMismatch
	}

	start := time.Now()

	searchK := k
	if dropClosest {
		searchK = k + 1
	}

	batches, err := idx.BatchSearch(ctx, queries, searchK, nil)
	if err != nil {
		ix.opts.logger.LogEvaluate(ctx, len(queries), k, 0, err)
		return nil, err
	}

	neighbors := make([][]int64, len(batches))
	for n, results := range batches {
		if dropClosest && len(results) > 0 {
			results = results[1:]
		}
		neighbors[n] = idx.Labels(results)
	}

	scores, err := retrieval.Evaluate(neighbors, labels, metrics...)
	ix.opts.logger.LogEvaluate(ctx, len(queries), k, time.Since(start), err)
	return scores, err
}

// Save persists the table to a snapshot directory, creating it if needed.
// The retrieval index is not persisted; it is rebuilt from the table.
func (ix *Indexer) Save(ctx context.Context, path string) error {
	err := persistence.SaveDir(ctx, path, ix.tab, ix.snapshotOptions()...)
	ix.opts.logger.LogSnapshot(ctx, "save", path, ix.tab.Size(), err)
	return err
}

// Load replaces the table content from a snapshot directory and drops the
// retrieval index. On error the table keeps its prior content.
func (ix *Indexer) Load(ctx context.Context, path string) error {
	err := persistence.LoadDir(ctx, path, ix.tab, ix.snapshotOptions()...)
	ix.opts.logger.LogSnapshot(ctx, "load", path, ix.tab.Size(), err)
	if err != nil {
		return err
	}
	ix.ResetIndex()
	return nil
}

// SaveTo persists the table to an arbitrary blob store.
func (ix *Indexer) SaveTo(ctx context.Context, store blobstore.BlobStore) error {
	return persistence.Save(ctx, store, ix.tab, ix.snapshotOptions()...)
}

// LoadFrom replaces the table content from a snapshot in an arbitrary blob
// store and drops the retrieval index.
func (ix *Indexer) LoadFrom(ctx context.Context, store blobstore.BlobStore) error {
	if err := persistence.Load(ctx, store, ix.tab, ix.snapshotOptions()...); err != nil {
		return err
	}
	ix.ResetIndex()
	return nil
}

func (ix *Indexer) snapshotOptions() []func(*persistence.Options) {
	base := func(o *persistence.Options) {
		o.Codec = ix.opts.codec
		o.Resources = ix.opts.resources
	}
	return append([]func(*persistence.Options){base}, ix.opts.snapshotFns...)
}

func toNeighbors(idx *flat.Index, results []index.SearchResult) []Neighbor {
	neighbors := make([]Neighbor, len(results))
	for n, r := range results {
		lbl, _ := idx.Label(r.ID)
		neighbors[n] = Neighbor{
			Index:    r.ID,
			Label:    lbl,
			Distance: r.Distance,
		}
	}
	return neighbors
}
