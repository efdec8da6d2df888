//go:build unix

package blobstore

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps f read-only. Returns ok=false when mapping is not possible
// (empty file, exotic filesystem); callers fall back to pread.
func mapFile(f *os.File, size int64) ([]byte, bool) {
	if size <= 0 {
		return nil, false
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, false
	}
	return data, true
}

func unmap(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}
