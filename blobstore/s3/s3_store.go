// Package s3 provides a blobstore.BlobStore backed by Amazon S3.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/simtable/blobstore"
)

// Store implements blobstore.BlobStore for S3.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewStore creates a new S3 blob store.
// rootPrefix is prepended to all keys (e.g. "snapshots/").
func NewStore(client *s3.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

// NewFromDefaultConfig creates a Store using the ambient AWS configuration
// (environment, shared config files, instance metadata).
func NewFromDefaultConfig(ctx context.Context, bucket, rootPrefix string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	return NewStore(s3.NewFromConfig(cfg), bucket, rootPrefix), nil
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open opens an existing blob for reading.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, blobstore.ErrNotFound
		}
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}

	return &s3Blob{
		client: s.client,
		bucket: s.bucket,
		key:    key,
		size:   aws.ToInt64(head.ContentLength),
	}, nil
}

// Put writes a blob atomically: the object appears only once the upload
// completes.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

// Create creates a new blob for streaming writes via the transfer manager.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	key := s.key(name)
	pr, pw := io.Pipe()

	blob := &s3WritableBlob{
		pw:   pw,
		done: make(chan error, 1),
	}

	uploader := manager.NewUploader(s.client)
	go func() {
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		_ = pr.CloseWithError(err)
		blob.done <- err
	}()

	return blob, nil
}

// Delete removes a blob. S3 deletes are idempotent.
func (s *Store) Delete(ctx context.Context, name string) error {
	key := s.key(name)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// List returns all blob names with the given prefix, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.key(prefix)
	var names []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			name = strings.TrimPrefix(name, "/")
			if name != "" {
				names = append(names, name)
			}
		}
	}

	sort.Strings(names)
	return names, nil
}

type s3Blob struct {
	client *s3.Client
	bucket string
	key    string
	size   int64
}

func (b *s3Blob) Size() int64 { return b.size }

func (b *s3Blob) ReadAt(p []byte, off int64) (int, error) {
	if off >= b.size {
		return 0, io.EOF
	}

	end := off + int64(len(p)) - 1
	if end >= b.size {
		end = b.size - 1
	}

	out, err := b.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		return 0, err
	}
	defer out.Body.Close()

	n, err := io.ReadFull(out.Body, p[:end-off+1])
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	if err == nil && int64(n) < int64(len(p)) {
		err = io.EOF
	}
	return n, err
}

func (b *s3Blob) Close() error { return nil }

type s3WritableBlob struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *s3WritableBlob) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3WritableBlob) Sync() error { return nil }

func (w *s3WritableBlob) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}
