//go:build !unix

package blobstore

import "os"

func mapFile(_ *os.File, _ int64) ([]byte, bool) {
	return nil, false
}

func unmap(_ []byte) error {
	return nil
}
