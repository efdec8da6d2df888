// Package retrieval scores the quality of nearest-neighbor lookups.
//
// A metric consumes the ranked neighbor labels returned for a batch of
// queries together with the queries' own labels. The metric set is closed:
// each variant is its own type carrying its parameters, so an invalid
// configuration fails when the metric is built, not in the middle of an
// evaluation run.
package retrieval

import (
	"errors"
	"fmt"
)

// ErrInvalidK is returned by metric constructors when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// ErrBatchMismatch indicates that the neighbor batch and the query labels
// disagree in length.
var ErrBatchMismatch = errors.New("neighbor batch and query labels differ in length")

// Metric scores one batch of ranked retrieval results.
//
// neighbors[q] holds the labels of query q's neighbors, nearest first, and
// queries[q] is the ground-truth label of query q.
type Metric interface {
	// Name identifies the metric in result maps, e.g. "recall@5".
	Name() string

	// Compute returns the metric averaged over all queries.
	Compute(neighbors [][]int64, queries []int64) (float64, error)
}

// RecallAtK is the fraction of queries whose label appears at least once
// among their first K neighbors.
type RecallAtK struct {
	K int
}

// NewRecallAtK builds a recall@k metric.
func NewRecallAtK(k int) (*RecallAtK, error) {
	if k <= 0 {
		return nil, fmt.Errorf("recall: %w", ErrInvalidK)
	}
	return &RecallAtK{K: k}, nil
}

func (m *RecallAtK) Name() string { return fmt.Sprintf("recall@%d", m.K) }

func (m *RecallAtK) Compute(neighbors [][]int64, queries []int64) (float64, error) {
	if err := checkBatch(m.K, neighbors, queries); err != nil {
		return 0, err
	}
	if len(queries) == 0 {
		return 0, nil
	}

	hits := 0
	for q, want := range queries {
		for _, lbl := range truncate(neighbors[q], m.K) {
			if lbl == want {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(queries)), nil
}

// PrecisionAtK is the fraction of the first K neighbors sharing the query's
// label, averaged over all queries.
type PrecisionAtK struct {
	K int
}

// NewPrecisionAtK builds a precision@k metric.
func NewPrecisionAtK(k int) (*PrecisionAtK, error) {
	if k <= 0 {
		return nil, fmt.Errorf("precision: %w", ErrInvalidK)
	}
	return &PrecisionAtK{K: k}, nil
}

func (m *PrecisionAtK) Name() string { return fmt.Sprintf("precision@%d", m.K) }

func (m *PrecisionAtK) Compute(neighbors [][]int64, queries []int64) (float64, error) {
	if err := checkBatch(m.K, neighbors, queries); err != nil {
		return 0, err
	}
	if len(queries) == 0 {
		return 0, nil
	}

	var sum float64
	for q, want := range queries {
		ranked := truncate(neighbors[q], m.K)
		matches := 0
		for _, lbl := range ranked {
			if lbl == want {
				matches++
			}
		}
		sum += float64(matches) / float64(m.K)
	}
	return sum / float64(len(queries)), nil
}

// MAPAtK is mean average precision truncated at K.
//
// For each query, precision is accumulated at every rank holding a matching
// label and normalized by the number of relevant records: the query's class
// count capped at K when ClassCounts is provided, otherwise K itself.
type MAPAtK struct {
	K int

	// ClassCounts maps a label to the number of indexed records carrying
	// it. Optional; without it every query is assumed to have K relevant
	// records.
	ClassCounts map[int64]int
}

// NewMAPAtK builds a mAP@k metric.
func NewMAPAtK(k int, classCounts map[int64]int) (*MAPAtK, error) {
	if k <= 0 {
		return nil, fmt.Errorf("map: %w", ErrInvalidK)
	}
	return &MAPAtK{K: k, ClassCounts: classCounts}, nil
}

func (m *MAPAtK) Name() string { return fmt.Sprintf("map@%d", m.K) }

func (m *MAPAtK) Compute(neighbors [][]int64, queries []int64) (float64, error) {
	if err := checkBatch(m.K, neighbors, queries); err != nil {
		return 0, err
	}
	if len(queries) == 0 {
		return 0, nil
	}

	var sum float64
	for q, want := range queries {
		ranked := truncate(neighbors[q], m.K)

		relevant := m.K
		if m.ClassCounts != nil {
			if c := m.ClassCounts[want]; c > 0 && c < relevant {
				relevant = c
			}
		}

		matches := 0
		var ap float64
		for rank, lbl := range ranked {
			if lbl != want {
				continue
			}
			matches++
			ap += float64(matches) / float64(rank+1)
		}
		sum += ap / float64(relevant)
	}
	return sum / float64(len(queries)), nil
}

// Evaluate computes every metric over the batch and returns them keyed by
// metric name.
func Evaluate(neighbors [][]int64, queries []int64, metrics ...Metric) (map[string]float64, error) {
	out := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		v, err := m.Compute(neighbors, queries)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name(), err)
		}
		out[m.Name()] = v
	}
	return out, nil
}

func checkBatch(k int, neighbors [][]int64, queries []int64) error {
	if k <= 0 {
		return ErrInvalidK
	}
	if len(neighbors) != len(queries) {
		return fmt.Errorf("%w: %d neighbor lists, %d labels", ErrBatchMismatch, len(neighbors), len(queries))
	}
	return nil
}

func truncate(labels []int64, k int) []int64 {
	if len(labels) > k {
		return labels[:k]
	}
	return labels
}
