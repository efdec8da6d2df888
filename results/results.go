// Package results records benchmark runs.
//
// Every run produces one record with its retrieval scores and timings. The
// directory writer lays results out as
//
//	<root>/<version>/<run>/eval_metrics.json
//	<root>/<version>/all_eval_metrics.json
//
// where the aggregate file collects every run written so far and is rewritten
// on Flush.
package results

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/simtable/blobstore"
	"github.com/hupe1980/simtable/codec"
)

// File names inside a run directory.
const (
	FileEvalMetrics    = "eval_metrics.json"
	FileAllEvalMetrics = "all_eval_metrics.json"
)

// Run is the record of a single benchmark run.
type Run struct {
	// Name identifies the run inside a version, e.g. "clusters10_cosine".
	Name string `json:"name"`

	// Dataset names the dataset the table was populated from.
	Dataset string `json:"dataset"`

	// Metric names the distance metric of the index.
	Metric string `json:"metric"`

	// TableSize is the number of indexed records.
	TableSize int `json:"table_size"`

	// Seed is the RNG seed the dataset was generated with.
	Seed int64 `json:"seed"`

	// Scores maps retrieval metric names (e.g. "recall@5") to values.
	Scores map[string]float64 `json:"scores"`

	// BuildSeconds is the wall time spent building the index.
	BuildSeconds float64 `json:"build_seconds"`

	// EvalSeconds is the wall time spent evaluating retrieval.
	EvalSeconds float64 `json:"eval_seconds"`

	// CreatedAt is the UTC completion time of the run.
	CreatedAt time.Time `json:"created_at"`
}

// Writer persists run records.
type Writer interface {
	// Write records one finished run.
	Write(ctx context.Context, run Run) error

	// Flush persists any aggregate state.
	Flush(ctx context.Context) error
}

// DirWriterOptions configure a DirWriter.
type DirWriterOptions struct {
	// Codec encodes result records. Defaults to codec.Default.
	Codec codec.Codec
}

// DirWriter writes run records to a local results directory.
// Safe for concurrent Write calls.
type DirWriter struct {
	root    string
	version string
	codec   codec.Codec

	mu  sync.Mutex
	agg map[string]Run
}

// NewDirWriter creates a results writer rooted at <root>/<version>.
func NewDirWriter(root, version string, optFns ...func(*DirWriterOptions)) *DirWriter {
	opts := DirWriterOptions{Codec: codec.Default}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &DirWriter{
		root:    root,
		version: version,
		codec:   opts.Codec,
		agg:     make(map[string]Run),
	}
}

// Write persists the run record to its own directory and adds it to the
// aggregate. Writing a run with a name seen before overwrites the earlier
// record.
func (w *DirWriter) Write(ctx context.Context, run Run) error {
	if run.Name == "" {
		return fmt.Errorf("run has no name (dataset %q, metric %q)", run.Dataset, run.Metric)
	}

	data, err := w.codec.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.Name, err)
	}

	store, err := blobstore.NewLocalStore(filepath.Join(w.root, w.version, run.Name))
	if err != nil {
		return err
	}
	if err := store.Put(ctx, FileEvalMetrics, data); err != nil {
		return fmt.Errorf("run %s: %w", run.Name, err)
	}

	w.mu.Lock()
	w.agg[run.Name] = run
	w.mu.Unlock()
	return nil
}

// Flush rewrites the aggregate file with every run written so far.
func (w *DirWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	agg := make(map[string]Run, len(w.agg))
	for name, run := range w.agg {
		agg[name] = run
	}
	w.mu.Unlock()

	data, err := w.codec.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encode aggregate: %w", err)
	}

	store, err := blobstore.NewLocalStore(filepath.Join(w.root, w.version))
	if err != nil {
		return err
	}
	if err := store.Put(ctx, FileAllEvalMetrics, data); err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	return nil
}

// MultiWriter fans a run record out to several writers, e.g. a local results
// directory plus DynamoDB.
type MultiWriter []Writer

func (m MultiWriter) Write(ctx context.Context, run Run) error {
	for _, w := range m {
		if err := w.Write(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiWriter) Flush(ctx context.Context) error {
	for _, w := range m {
		if err := w.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}
