// Package persistence serializes embedding tables to checksummed column
// files behind a blobstore, and reconstructs them losslessly.
package persistence

import "errors"

const (
	// MagicNumber identifies simtable column files (ASCII: "STB1").
	MagicNumber = 0x53544231
	// FormatVersion is the current file format version (v1.0).
	FormatVersion = 0x00010000

	// Column kinds
	ColumnEmbeddings = 1
	ColumnLabels     = 2
	ColumnPayloads   = 3

	// Snapshot file names
	FileEmbeddings = "embeddings.col"
	FileLabels     = "labels.col"
	FilePayloads   = "payloads.col"
	FileManifest   = "MANIFEST.json"
)

var (
	ErrInvalidMagic     = errors.New("invalid magic number")
	ErrInvalidVersion   = errors.New("unsupported format version")
	ErrInvalidColumn    = errors.New("unexpected column kind")
	ErrTruncatedFile    = errors.New("column file truncated")
	ErrManifestMismatch = errors.New("manifest does not match column files")
)

// FileHeader is the 64-byte header at the start of every column file.
// All integers are little-endian.
type FileHeader struct {
	Magic       uint32
	Version     uint32
	Column      uint8
	Compression uint8
	_           [2]byte
	Count       uint64 // Record count
	RawSize     uint64 // Uncompressed body size in bytes
	BodySize    uint64 // Compressed body bytes following the header
	Checksum    uint32 // CRC32 (IEEE) of the uncompressed body
	_           [4]byte
	Reserved    [20]byte
}

// FileHeaderSize is the encoded size of FileHeader in bytes.
const FileHeaderSize = 64
