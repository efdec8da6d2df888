package simtable

import (
	"errors"
)

var (
	// ErrNotIndexed is returned by lookups before BuildIndex has run, or
	// after a Load or ResetIndex invalidated the index.
	ErrNotIndexed = errors.New("index not built")

	// ErrBatchMismatch is returned by AddBatch when the embedding, label
	// and payload slices differ in length.
	ErrBatchMismatch = errors.New("batch slices differ in length")
)
