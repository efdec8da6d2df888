// Package index defines shared types for retrieval indexes.
package index

import (
	"errors"
	"fmt"
)

// ErrInvalidK is returned when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// ErrDimensionMismatch indicates a query/index dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// SearchResult represents a single nearest-neighbor match.
type SearchResult struct {
	// ID is the dense row identifier of the match, equal to the record's
	// table index when the index was built from a table dump.
	ID uint32

	// Distance is the distance between the query and the match.
	// Smaller means closer for every metric the distance package provides.
	Distance float32
}

// Filter restricts which rows a search may return.
// Return true to keep the row as a candidate.
type Filter func(id uint32) bool
