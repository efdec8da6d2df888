package blobstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory BlobStore implementation for testing.
// Thread-safe for concurrent reads and writes.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates a new in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
	}
}

// Open opens a blob for reading.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[name]
	if !ok {
		return nil, ErrNotFound
	}

	// Copy so later Puts cannot mutate an open handle.
	copied := make([]byte, len(data))
	copy(copied, data)

	return &memoryBlob{data: copied}, nil
}

// Put writes a blob atomically.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]byte, len(data))
	copy(copied, data)
	m.blobs[name] = copied
	return nil
}

// Create creates a new writable blob that becomes visible on Close.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memoryWritableBlob{store: m, name: name}, nil
}

// Delete removes a blob.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, name)
	return nil
}

// List returns all blob names with the given prefix, sorted.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Corrupt flips one byte of the named blob. Test helper for verifying
// checksum failure paths.
func (m *MemoryStore) Corrupt(name string, off int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.blobs[name]
	if !ok || off < 0 || off >= len(data) {
		return false
	}
	data[off] ^= 0xFF
	return true
}

type memoryBlob struct {
	data []byte
}

func (b *memoryBlob) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *memoryBlob) Close() error { return nil }

func (b *memoryBlob) Size() int64 { return int64(len(b.data)) }

func (b *memoryBlob) Bytes() ([]byte, error) { return b.data, nil }

type memoryWritableBlob struct {
	store *MemoryStore
	name  string
	buf   bytes.Buffer
}

func (w *memoryWritableBlob) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memoryWritableBlob) Sync() error { return nil }

func (w *memoryWritableBlob) Close() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	data := make([]byte, w.buf.Len())
	copy(data, w.buf.Bytes())
	w.store.blobs[w.name] = data
	return nil
}
