package persistence

import (
	"errors"
	"fmt"
	"hash/crc32"
)

// Column bodies carry a CRC32 (IEEE) of their uncompressed bytes. CRC32 is
// fast and detects storage corruption; it is not tamper-proof.

// Checksum computes the CRC32 checksum of data.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// ChecksumMismatchError is returned when checksum verification fails.
type ChecksumMismatchError struct {
	File     string
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s: checksum mismatch: expected 0x%08x, got 0x%08x", e.File, e.Expected, e.Actual)
}

// IsChecksumMismatch returns true if err is a checksum mismatch error.
func IsChecksumMismatch(err error) bool {
	var cme *ChecksumMismatchError
	return errors.As(err, &cme)
}
