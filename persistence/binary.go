package persistence

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Column bodies are little-endian. A ragged column (embeddings, payloads)
// stores count+1 uint64 offsets followed by the flat data; the labels column
// is just count int64 values.

func appendUint64s(dst []byte, src []uint64) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint64(dst, v)
	}
	return dst
}

func appendInt64s(dst []byte, src []int64) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint64(dst, uint64(v))
	}
	return dst
}

func appendFloat32s(dst []byte, src []float32) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

func readUint64s(b []byte, n int) ([]uint64, []byte, error) {
	if len(b) < n*8 {
		return nil, nil, ErrTruncatedFile
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return out, b[n*8:], nil
}

func readInt64s(b []byte, n int) ([]int64, []byte, error) {
	u, rest, err := readUint64s(b, n)
	if err != nil {
		return nil, nil, err
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(u[i])
	}
	return out, rest, nil
}

func readFloat32s(b []byte, n int) ([]float32, []byte, error) {
	if len(b) < n*4 {
		return nil, nil, ErrTruncatedFile
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, b[n*4:], nil
}

func encodeHeader(h FileHeader) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(FileHeaderSize)
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeHeader(b []byte) (FileHeader, error) {
	var h FileHeader
	if len(b) < FileHeaderSize {
		return h, ErrTruncatedFile
	}
	if err := binary.Read(bytes.NewReader(b[:FileHeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, err
	}
	if h.Magic != MagicNumber {
		return h, ErrInvalidMagic
	}
	if h.Version != FormatVersion {
		return h, ErrInvalidVersion
	}
	return h, nil
}
