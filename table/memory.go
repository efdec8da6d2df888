package table

import (
	"errors"
	"sync"
)

// MemoryTable is an append-only, in-memory embedding table.
//
// It uses a Struct of Arrays (SoA) layout: one flat buffer per column plus an
// offsets array, so per-record embedding and payload lengths may vary without
// padding. Indices are assigned densely in insertion order.
//
// All methods are safe for concurrent use. Readers never block each other;
// Add calls are serialized so index assignment stays well-defined.
type MemoryTable struct {
	mu sync.RWMutex

	embeddings []float32 // Flattened vectors
	embOff     []uint64  // len(labels)+1 entries
	labels     []int64
	payloads   []byte  // Flattened opaque payloads
	payOff     []uint64 // len(labels)+1 entries
}

// NewMemoryTable creates an empty table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{
		embOff: make([]uint64, 1, 1024),
		payOff: make([]uint64, 1, 1024),
	}
}

// Add appends a new record and returns its assigned index, which equals the
// table size before the call. The embedding and payload are copied; the
// caller keeps ownership of its slices.
func (t *MemoryTable) Add(embedding []float32, label int64, payload []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := len(t.labels)

	t.embeddings = append(t.embeddings, embedding...)
	t.embOff = append(t.embOff, uint64(len(t.embeddings)))
	t.labels = append(t.labels, label)
	t.payloads = append(t.payloads, payload...)
	t.payOff = append(t.payOff, uint64(len(t.payloads)))

	return idx
}

// Get returns the record at idx. It fails with *ErrIndexOutOfRange when idx
// is negative or >= Size(). The returned slices are copies.
func (t *MemoryTable) Get(idx int) (Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if idx < 0 || idx >= len(t.labels) {
		return Record{}, &ErrIndexOutOfRange{Index: idx, Size: len(t.labels)}
	}

	emb := make([]float32, t.embOff[idx+1]-t.embOff[idx])
	copy(emb, t.embeddings[t.embOff[idx]:t.embOff[idx+1]])

	pay := make([]byte, t.payOff[idx+1]-t.payOff[idx])
	copy(pay, t.payloads[t.payOff[idx]:t.payOff[idx+1]])

	return Record{Embedding: emb, Label: t.labels[idx], Payload: pay}, nil
}

// Size returns the current record count.
func (t *MemoryTable) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.labels)
}

// Dump exports the entire table content as three parallel sequences.
// The flat column buffers are copied once; the per-record slices are views
// into those copies.
func (t *MemoryTable) Dump() Dump {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.labels)

	embData := make([]float32, len(t.embeddings))
	copy(embData, t.embeddings)
	payData := make([]byte, len(t.payloads))
	copy(payData, t.payloads)

	d := Dump{
		Embeddings: make([][]float32, n),
		Labels:     make([]int64, n),
		Payloads:   make([][]byte, n),
	}
	copy(d.Labels, t.labels)

	for i := 0; i < n; i++ {
		d.Embeddings[i] = embData[t.embOff[i]:t.embOff[i+1]:t.embOff[i+1]]
		d.Payloads[i] = payData[t.payOff[i]:t.payOff[i+1]:t.payOff[i+1]]
	}

	return d
}

// Reset clears the table for reuse.
func (t *MemoryTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.embeddings = nil
	t.embOff = append(t.embOff[:0], 0)
	t.labels = nil
	t.payloads = nil
	t.payOff = append(t.payOff[:0], 0)
}

// Columns is the raw SoA column view of a table, used by snapshot
// persistence. Offset slices carry count+1 entries; the last entry equals the
// length of the corresponding flat buffer.
type Columns struct {
	Embeddings       []float32
	EmbeddingOffsets []uint64
	Labels           []int64
	Payloads         []byte
	PayloadOffsets   []uint64
}

// Count returns the number of records described by the columns.
func (c Columns) Count() int {
	return len(c.Labels)
}

// Columns returns a deep copy of the table's columns, taken under the read
// lock so it is a consistent snapshot.
func (t *MemoryTable) Columns() Columns {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c := Columns{
		Embeddings:       make([]float32, len(t.embeddings)),
		EmbeddingOffsets: make([]uint64, len(t.embOff)),
		Labels:           make([]int64, len(t.labels)),
		Payloads:         make([]byte, len(t.payloads)),
		PayloadOffsets:   make([]uint64, len(t.payOff)),
	}
	copy(c.Embeddings, t.embeddings)
	copy(c.EmbeddingOffsets, t.embOff)
	copy(c.Labels, t.labels)
	copy(c.Payloads, t.payloads)
	copy(c.PayloadOffsets, t.payOff)

	return c
}

// SetColumns validates c and replaces the table's entire content with it.
// On error the table is left unchanged. The table takes ownership of the
// slices in c.
func (t *MemoryTable) SetColumns(c Columns) error {
	if err := validateColumns(c); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.embeddings = c.Embeddings
	t.embOff = c.EmbeddingOffsets
	t.labels = c.Labels
	t.payloads = c.Payloads
	t.payOff = c.PayloadOffsets

	return nil
}

func validateColumns(c Columns) error {
	n := len(c.Labels)
	if len(c.EmbeddingOffsets) != n+1 {
		return errors.New("embedding offsets do not match record count")
	}
	if len(c.PayloadOffsets) != n+1 {
		return errors.New("payload offsets do not match record count")
	}
	if err := validateOffsets(c.EmbeddingOffsets, uint64(len(c.Embeddings)), "embedding"); err != nil {
		return err
	}
	return validateOffsets(c.PayloadOffsets, uint64(len(c.Payloads)), "payload")
}

func validateOffsets(offs []uint64, end uint64, what string) error {
	if offs[0] != 0 {
		return errors.New(what + " offsets must start at 0")
	}
	for i := 1; i < len(offs); i++ {
		if offs[i] < offs[i-1] {
			return errors.New(what + " offsets must be non-decreasing")
		}
	}
	if offs[len(offs)-1] != end {
		return errors.New(what + " offsets do not cover the data buffer")
	}
	return nil
}
