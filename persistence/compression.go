package persistence

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the algorithm applied to a column body.
type Compression uint8

const (
	// CompressionNone stores the body uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 is fast with a modest ratio; good for payload bytes.
	CompressionLZ4 Compression = 1
	// CompressionZSTD trades speed for ratio; good for embedding data.
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	// EncodeAll/DecodeAll on shared instances are concurrency-safe.
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
}

// compressBody compresses raw with the requested algorithm. If compression
// does not pay (ratio above 0.9) the body is stored uncompressed and the
// returned Compression reflects that, so the header always describes the
// bytes actually written.
func compressBody(raw []byte, c Compression) ([]byte, Compression, error) {
	if c == CompressionNone || len(raw) == 0 {
		return raw, CompressionNone, nil
	}

	var compressed []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			// Incompressible
			return raw, CompressionNone, nil
		}
		compressed = buf[:n]
	case CompressionZSTD:
		compressed = zstdEncoder.EncodeAll(raw, nil)
	default:
		return nil, 0, fmt.Errorf("unknown compression: %d", c)
	}

	if float64(len(compressed)) > float64(len(raw))*0.9 {
		return raw, CompressionNone, nil
	}
	return compressed, c, nil
}

// decompressBody reverses compressBody. rawSize is the expected uncompressed
// size from the file header.
func decompressBody(body []byte, c Compression, rawSize int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(body) != rawSize {
			return nil, ErrTruncatedFile
		}
		return body, nil
	case CompressionLZ4:
		raw := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(body, raw)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != rawSize {
			return nil, ErrTruncatedFile
		}
		return raw, nil
	case CompressionZSTD:
		raw, err := zstdDecoder.DecodeAll(body, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(raw) != rawSize {
			return nil, ErrTruncatedFile
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unknown compression: %d", c)
	}
}
