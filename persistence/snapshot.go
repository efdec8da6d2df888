package persistence

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/simtable/blobstore"
	"github.com/hupe1980/simtable/codec"
	"github.com/hupe1980/simtable/resource"
	"github.com/hupe1980/simtable/table"
)

// Options configure snapshot save/load.
type Options struct {
	// EmbeddingCompression is applied to the embeddings column.
	EmbeddingCompression Compression

	// PayloadCompression is applied to the labels and payloads columns.
	PayloadCompression Compression

	// Codec encodes the manifest.
	Codec codec.Codec

	// Resources, if set, rate-limits snapshot IO.
	Resources *resource.Controller
}

func defaultOptions() Options {
	return Options{
		EmbeddingCompression: CompressionZSTD,
		PayloadCompression:   CompressionLZ4,
		Codec:                codec.Default,
	}
}

func (o Options) apply(optFns []func(*Options)) Options {
	for _, fn := range optFns {
		fn(&o)
	}
	if o.Codec == nil {
		o.Codec = codec.Default
	}
	return o
}

// Save persists the entire content of t to the store: three column files
// followed by the manifest. The manifest is written last, so a snapshot
// without one is incomplete and will not load.
//
// The table is snapshotted once under its read lock, so records added
// concurrently with Save land in the next snapshot, not a torn one.
func Save(ctx context.Context, store blobstore.BlobStore, t *table.MemoryTable, optFns ...func(*Options)) error {
	o := defaultOptions().apply(optFns)

	cols := t.Columns()
	n := uint64(cols.Count())
	man := newManifest(o.Codec, n)

	raw := appendUint64s(make([]byte, 0, (len(cols.EmbeddingOffsets)*8)+(len(cols.Embeddings)*4)), cols.EmbeddingOffsets)
	raw = appendFloat32s(raw, cols.Embeddings)
	if err := writeColumn(ctx, store, o, man, FileEmbeddings, ColumnEmbeddings, o.EmbeddingCompression, n, raw); err != nil {
		return err
	}

	raw = appendInt64s(make([]byte, 0, len(cols.Labels)*8), cols.Labels)
	if err := writeColumn(ctx, store, o, man, FileLabels, ColumnLabels, o.PayloadCompression, n, raw); err != nil {
		return err
	}

	raw = appendUint64s(make([]byte, 0, (len(cols.PayloadOffsets)*8)+len(cols.Payloads)), cols.PayloadOffsets)
	raw = append(raw, cols.Payloads...)
	if err := writeColumn(ctx, store, o, man, FilePayloads, ColumnPayloads, o.PayloadCompression, n, raw); err != nil {
		return err
	}

	data, err := o.Codec.Marshal(man)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := o.Resources.AcquireIO(ctx, len(data)); err != nil {
		return err
	}
	if err := store.Put(ctx, FileManifest, data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load replaces the content of t with the snapshot in the store.
//
// All files are read and fully verified (magic, version, checksums, record
// counts against the manifest) before the table is touched; on any error the
// table keeps its prior content.
func Load(ctx context.Context, store blobstore.BlobStore, t *table.MemoryTable, optFns ...func(*Options)) error {
	o := defaultOptions().apply(optFns)

	data, err := readBlob(ctx, store, o, FileManifest)
	if err != nil {
		return fmt.Errorf("snapshot manifest: %w", err)
	}
	man, err := decodeManifest(data)
	if err != nil {
		return err
	}

	embRaw, err := readColumn(ctx, store, o, man, FileEmbeddings, ColumnEmbeddings)
	if err != nil {
		return err
	}
	lblRaw, err := readColumn(ctx, store, o, man, FileLabels, ColumnLabels)
	if err != nil {
		return err
	}
	payRaw, err := readColumn(ctx, store, o, man, FilePayloads, ColumnPayloads)
	if err != nil {
		return err
	}

	n := int(man.Count)

	embOff, rest, err := readUint64s(embRaw, n+1)
	if err != nil {
		return fmt.Errorf("%s: %w", FileEmbeddings, err)
	}
	if len(rest)%4 != 0 {
		return fmt.Errorf("%s: %w", FileEmbeddings, ErrTruncatedFile)
	}
	embeddings, _, err := readFloat32s(rest, len(rest)/4)
	if err != nil {
		return fmt.Errorf("%s: %w", FileEmbeddings, err)
	}

	labels, _, err := readInt64s(lblRaw, n)
	if err != nil {
		return fmt.Errorf("%s: %w", FileLabels, err)
	}

	payOff, payloads, err := readUint64s(payRaw, n+1)
	if err != nil {
		return fmt.Errorf("%s: %w", FilePayloads, err)
	}

	cols := table.Columns{
		Embeddings:       embeddings,
		EmbeddingOffsets: embOff,
		Labels:           labels,
		Payloads:         payloads,
		PayloadOffsets:   payOff,
	}
	if err := t.SetColumns(cols); err != nil {
		return fmt.Errorf("%w: %w", ErrManifestMismatch, err)
	}
	return nil
}

// SaveDir persists the table to a local directory, creating it if needed.
func SaveDir(ctx context.Context, dir string, t *table.MemoryTable, optFns ...func(*Options)) error {
	store, err := blobstore.NewLocalStore(dir)
	if err != nil {
		return err
	}
	return Save(ctx, store, t, optFns...)
}

// LoadDir replaces the table content from a snapshot directory.
func LoadDir(ctx context.Context, dir string, t *table.MemoryTable, optFns ...func(*Options)) error {
	store, err := blobstore.NewLocalStore(dir)
	if err != nil {
		return err
	}
	return Load(ctx, store, t, optFns...)
}

func writeColumn(ctx context.Context, store blobstore.BlobStore, o Options, man *Manifest, name string, kind uint8, comp Compression, count uint64, raw []byte) error {
	sum := Checksum(raw)
	body, actual, err := compressBody(raw, comp)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	hdr, err := encodeHeader(FileHeader{
		Magic:       MagicNumber,
		Version:     FormatVersion,
		Column:      kind,
		Compression: uint8(actual),
		Count:       count,
		RawSize:     uint64(len(raw)),
		BodySize:    uint64(len(body)),
		Checksum:    sum,
	})
	if err != nil {
		return fmt.Errorf("%s: encode header: %w", name, err)
	}

	buf := make([]byte, 0, len(hdr)+len(body))
	buf = append(buf, hdr...)
	buf = append(buf, body...)

	if err := o.Resources.AcquireIO(ctx, len(buf)); err != nil {
		return err
	}
	if err := store.Put(ctx, name, buf); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	man.Files[name] = FileRecord{Count: count, Checksum: sum, Compression: actual.String()}
	return nil
}

// readColumn reads a column file and returns its verified, decompressed body.
func readColumn(ctx context.Context, store blobstore.BlobStore, o Options, man *Manifest, name string, kind uint8) ([]byte, error) {
	data, err := readBlob(ctx, store, o, name)
	if err != nil {
		return nil, fmt.Errorf("snapshot column %s: %w", name, err)
	}

	hdr, err := decodeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if hdr.Column != kind {
		return nil, fmt.Errorf("%s: %w: got %d, want %d", name, ErrInvalidColumn, hdr.Column, kind)
	}

	body := data[FileHeaderSize:]
	if uint64(len(body)) != hdr.BodySize {
		return nil, fmt.Errorf("%s: %w", name, ErrTruncatedFile)
	}

	raw, err := decompressBody(body, Compression(hdr.Compression), int(hdr.RawSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if sum := Checksum(raw); sum != hdr.Checksum {
		return nil, &ChecksumMismatchError{File: name, Expected: hdr.Checksum, Actual: sum}
	}

	if err := man.verify(name, hdr); err != nil {
		return nil, err
	}
	return raw, nil
}

func readBlob(ctx context.Context, store blobstore.BlobStore, o Options, name string) ([]byte, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if err := o.Resources.AcquireIO(ctx, int(b.Size())); err != nil {
		return nil, err
	}

	out := make([]byte, b.Size())
	if len(out) == 0 {
		return out, nil
	}
	if _, err := b.ReadAt(out, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}
