// Package blobstore abstracts where snapshot files live.
//
// The persistence package writes and reads table snapshots through a
// BlobStore, so the same snapshot code serves a local directory, an
// in-memory store in tests, or S3-compatible object storage (see the minio
// and s3 subpackages).
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore stores named immutable blobs.
type BlobStore interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Put writes a blob atomically: readers never observe a partial blob
	// under the given name.
	Put(ctx context.Context, name string, data []byte) error

	// Create creates a new blob for streaming writes. The blob becomes
	// visible under its name when Close returns nil.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a streaming write handle.
type WritableBlob interface {
	io.WriteCloser
	// Sync flushes written data to stable storage where the backend
	// supports it.
	Sync() error
}

// Mappable is an optional interface for Blobs that expose their content as a
// byte slice without copying. The slice is valid until the Blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// ReadAll reads the full content of the named blob.
func ReadAll(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err == nil {
			// Copy out: the mapping dies with the blob handle.
			out := make([]byte, len(data))
			copy(out, data)
			return out, nil
		}
	}

	out := make([]byte, b.Size())
	if _, err := b.ReadAt(out, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}
