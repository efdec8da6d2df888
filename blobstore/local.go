package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore implements BlobStore on a local filesystem directory.
//
// Put writes to a temp file in the same directory and renames it into place,
// so concurrent readers never see a partial blob. Reads use mmap where the
// platform supports it and fall back to pread otherwise.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at the given directory,
// creating it if necessary.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the store's root directory.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, name)
}

// Open opens a blob for reading.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if data, ok := mapFile(f, st.Size()); ok {
		f.Close()
		return &mappedBlob{data: data}, nil
	}
	return &fileBlob{f: f, size: st.Size()}, nil
}

// Put writes a blob atomically via temp file + rename.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.(*localWritableBlob).abort()
		return err
	}
	if err := w.Sync(); err != nil {
		w.(*localWritableBlob).abort()
		return err
	}
	return w.Close()
}

// Create creates a new blob for streaming writes. The data is renamed into
// place on Close.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	dst := s.path(name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(name)+".tmp*")
	if err != nil {
		return nil, err
	}
	return &localWritableBlob{f: tmp, dst: dst}, nil
}

// Delete removes a blob.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := os.Remove(s.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// List returns all blob names with the given prefix, sorted.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

type fileBlob struct {
	f    *os.File
	size int64
}

func (b *fileBlob) ReadAt(p []byte, off int64) (int, error) { return b.f.ReadAt(p, off) }
func (b *fileBlob) Close() error                            { return b.f.Close() }
func (b *fileBlob) Size() int64                             { return b.size }

type mappedBlob struct {
	data []byte
}

func (b *mappedBlob) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *mappedBlob) Close() error {
	return unmap(b.data)
}

func (b *mappedBlob) Size() int64 {
	return int64(len(b.data))
}

func (b *mappedBlob) Bytes() ([]byte, error) {
	return b.data, nil
}

type localWritableBlob struct {
	f   *os.File
	dst string
}

func (w *localWritableBlob) Write(p []byte) (int, error) { return w.f.Write(p) }

func (w *localWritableBlob) Sync() error { return w.f.Sync() }

func (w *localWritableBlob) Close() error {
	if err := w.f.Sync(); err != nil {
		w.abort()
		return err
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.f.Name())
		return err
	}
	if err := os.Rename(w.f.Name(), w.dst); err != nil {
		os.Remove(w.f.Name())
		return err
	}
	return syncDir(filepath.Dir(w.dst))
}

func (w *localWritableBlob) abort() {
	w.f.Close()
	os.Remove(w.f.Name())
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Directory fsync is best effort; some platforms reject it.
	_ = d.Sync()
	return nil
}
