package persistence

import (
	"fmt"
	"time"

	"github.com/hupe1980/simtable/codec"
)

// Manifest is the sidecar written last during a save. Its presence marks a
// complete snapshot, and its per-file records let Load cross-check the
// column files before touching the table.
type Manifest struct {
	FormatVersion uint32                `json:"format_version"`
	Codec         string                `json:"codec"`
	Count         uint64                `json:"count"`
	CreatedAt     time.Time             `json:"created_at"`
	Files         map[string]FileRecord `json:"files"`
}

// FileRecord describes one column file from the manifest's point of view.
type FileRecord struct {
	Count       uint64 `json:"count"`
	Checksum    uint32 `json:"checksum"`
	Compression string `json:"compression"`
}

func newManifest(c codec.Codec, count uint64) *Manifest {
	return &Manifest{
		FormatVersion: FormatVersion,
		Codec:         c.Name(),
		Count:         count,
		CreatedAt:     time.Now().UTC(),
		Files:         make(map[string]FileRecord),
	}
}

// verify cross-checks a decoded column header against the manifest.
func (m *Manifest) verify(name string, h FileHeader) error {
	rec, ok := m.Files[name]
	if !ok {
		return fmt.Errorf("%w: %s not listed", ErrManifestMismatch, name)
	}
	if rec.Count != h.Count {
		return fmt.Errorf("%w: %s: manifest count %d, file count %d", ErrManifestMismatch, name, rec.Count, h.Count)
	}
	if h.Count != m.Count {
		return fmt.Errorf("%w: %s: file count %d, snapshot count %d", ErrManifestMismatch, name, h.Count, m.Count)
	}
	if rec.Checksum != h.Checksum {
		return fmt.Errorf("%w: %s: manifest checksum 0x%08x, file checksum 0x%08x", ErrManifestMismatch, name, rec.Checksum, h.Checksum)
	}
	return nil
}

func decodeManifest(data []byte) (*Manifest, error) {
	// Both built-in codecs speak JSON, so the manifest can be decoded
	// before its recorded codec name is known.
	var m Manifest
	if err := codec.Default.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.FormatVersion != FormatVersion {
		return nil, ErrInvalidVersion
	}
	if _, ok := codec.ByName(m.Codec); !ok {
		return nil, fmt.Errorf("manifest: unknown codec %q", m.Codec)
	}
	return &m, nil
}
