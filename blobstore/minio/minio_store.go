// Package minio provides a blobstore.BlobStore backed by MinIO or any
// S3-compatible object storage.
package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/hupe1980/simtable/blobstore"
	"github.com/minio/minio-go/v7"
)

// Store implements blobstore.BlobStore for MinIO and S3-compatible storage.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStore creates a new MinIO blob store.
// rootPrefix is prepended to all keys (e.g. "snapshots/").
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open opens an existing blob for reading.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)

	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}

	return &minioBlob{
		client: s.client,
		bucket: s.bucket,
		key:    key,
		size:   info.Size,
	}, nil
}

// Put writes a blob atomically. Object stores give this for free: the object
// appears only once the upload completes.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

// Create creates a new blob for streaming writes.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	key := s.key(name)
	pr, pw := io.Pipe()

	blob := &minioWritableBlob{
		pw:   pw,
		done: make(chan error, 1),
	}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, key, pr, -1, minio.PutObjectOptions{})
		_ = pr.CloseWithError(err)
		blob.done <- err
	}()

	return blob, nil
}

// Delete removes a blob.
func (s *Store) Delete(ctx context.Context, name string) error {
	key := s.key(name)
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil // Already gone
		}
		return err
	}
	return nil
}

// List returns all blob names with the given prefix, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.key(prefix)

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    fullPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, s.prefix)
		name = strings.TrimPrefix(name, "/")
		if name != "" {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

type minioBlob struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (b *minioBlob) Size() int64 { return b.size }

func (b *minioBlob) ReadAt(p []byte, off int64) (int, error) {
	if off >= b.size {
		return 0, io.EOF
	}

	end := off + int64(len(p)) - 1
	if end >= b.size {
		end = b.size - 1
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, end); err != nil {
		return 0, err
	}

	obj, err := b.client.GetObject(context.Background(), b.bucket, b.key, opts)
	if err != nil {
		return 0, err
	}
	defer obj.Close()

	n, err := io.ReadFull(obj, p[:end-off+1])
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	if err == nil && int64(n) < int64(len(p)) {
		err = io.EOF
	}
	return n, err
}

func (b *minioBlob) Close() error { return nil }

type minioWritableBlob struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *minioWritableBlob) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *minioWritableBlob) Sync() error { return nil }

func (w *minioWritableBlob) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}
