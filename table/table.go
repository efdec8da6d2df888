// Package table provides an append-only store of embedding records.
//
// Records are addressed by a dense integer index assigned in insertion order
// starting at zero. There is no update or delete: a record's embedding, label
// and payload are immutable once inserted. Snapshot persistence for tables
// lives in the persistence package.
package table

import "fmt"

// Record is one stored (embedding, label, payload) triple.
type Record struct {
	// Embedding is the vector for this record.
	Embedding []float32
	// Label identifies the class/identity the embedding belongs to.
	Label int64
	// Payload is opaque auxiliary data, stored and returned verbatim.
	Payload []byte
}

// Dump is the bulk export of a table: three parallel sequences where position
// i across all three corresponds to record i.
//
// Embeddings and Payloads are views over a single backing buffer each, so a
// Dump of n records costs two allocations for the flat data plus the view
// headers. Callers must not mutate the views.
type Dump struct {
	Embeddings [][]float32
	Labels     []int64
	Payloads   [][]byte
}

// Size returns the number of records in the dump.
func (d Dump) Size() int {
	return len(d.Labels)
}

// ErrIndexOutOfRange is returned by Get for an index outside [0, Size()).
type ErrIndexOutOfRange struct {
	Index int
	Size  int
}

func (e *ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Size)
}
