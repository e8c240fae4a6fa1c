// Package manifest implements the per-snapshot catalog binding file paths to
// ordered chunk-hash sequences, plus its pretty-JSON codec. Field layout
// follows original_source/snapvault/src/repository/snapshot.rs exactly,
// since spec.md §6 pins the manifest JSON to a bit-exact field set; the
// build/verify shape is grounded on the teacher's pkg/content/manifest.go
// (BuildManifest/VerifyManifest).
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/WebFirstLanguage/snapvault/pkg/chunkhash"
	"github.com/WebFirstLanguage/snapvault/pkg/snapvaulterr"
)

// MaxManifestSize guards Load against absurdly large manifest files.
const MaxManifestSize = 100 * 1024 * 1024 // 100 MiB

// FileRecord describes one backed-up file.
type FileRecord struct {
	RelPath     string         `json:"rel_path"`
	Size        uint64         `json:"size"`
	Modified    *string        `json:"modified"`
	Chunks      []chunkhash.ID `json:"chunks"`
	ContentHash *chunkhash.ID  `json:"content_hash"`
}

// Manifest is the full per-snapshot catalog.
type Manifest struct {
	SnapshotID        string       `json:"snapshot_id"`
	CreatedAt         string       `json:"created_at"`
	SourceRoot        string       `json:"source_root"`
	TotalFiles        uint64       `json:"total_files"`
	TotalBytes        uint64       `json:"total_bytes"`
	TotalChunks       uint64       `json:"total_chunks"`
	DeduplicatedBytes uint64       `json:"deduplicated_bytes"`
	Files             []FileRecord `json:"files"`
}

// DedupRatio returns deduplicated_bytes / total_bytes * 100. The second
// return value is false when total_bytes is zero (ratio undefined).
func (m *Manifest) DedupRatio() (float64, bool) {
	if m.TotalBytes == 0 {
		return 0, false
	}
	return float64(m.DeduplicatedBytes) / float64(m.TotalBytes) * 100, true
}

// SpaceSaved returns total_bytes - deduplicated_bytes.
func (m *Manifest) SpaceSaved() uint64 {
	return m.TotalBytes - m.DeduplicatedBytes
}

// UniqueChunks returns the set of distinct chunk ids referenced by m, in no
// particular order.
func (m *Manifest) UniqueChunks() []chunkhash.ID {
	seen := make(map[chunkhash.ID]struct{})
	var out []chunkhash.ID
	for _, f := range m.Files {
		for _, c := range f.Chunks {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
	}
	return out
}

// Save writes m as pretty-printed JSON to path.
func Save(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return snapvaulterr.JSON(err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return snapvaulterr.IO(err)
	}
	return nil
}

// Load reads and parses a manifest from path, refusing files larger than
// MaxManifestSize.
func Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, snapvaulterr.New(snapvaulterr.KindSnapshotNotFound, path)
		}
		return nil, snapvaulterr.IO(err)
	}
	if uint64(info.Size()) > MaxManifestSize {
		return nil, snapvaulterr.FileTooLarge(uint64(info.Size()), MaxManifestSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, snapvaulterr.IO(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxManifestSize+1))
	if err != nil {
		return nil, snapvaulterr.IO(err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, snapvaulterr.JSON(err)
	}
	return &m, nil
}

// Validate checks that total_bytes equals the sum of the file sizes and that
// deduplicated_bytes does not exceed total_bytes. Per-file sizes are not
// checked against their chunks.
func Validate(m *Manifest) error {
	var computedBytes uint64
	for _, f := range m.Files {
		computedBytes += f.Size
	}
	if computedBytes != m.TotalBytes {
		return snapvaulterr.New(snapvaulterr.KindOther,
			fmt.Sprintf("total_bytes mismatch: manifest says %d, files sum to %d", m.TotalBytes, computedBytes))
	}
	if m.DeduplicatedBytes > m.TotalBytes {
		return snapvaulterr.New(snapvaulterr.KindOther, "deduplicated_bytes exceeds total_bytes")
	}
	return nil
}
