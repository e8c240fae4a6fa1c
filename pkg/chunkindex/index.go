// Package chunkindex implements the durable chunk-to-snapshots reference
// map that makes garbage collection and dedup accounting safe. Grounded
// almost directly on original_source/snapvault/src/index.rs (add_snapshot,
// remove_snapshot, find_orphans, rebuild, the sorted-set JSON shape); the
// teacher repo has no equivalent component.
package chunkindex

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/WebFirstLanguage/snapvault/pkg/chunkhash"
	"github.com/WebFirstLanguage/snapvault/pkg/manifest"
	"github.com/WebFirstLanguage/snapvault/pkg/snapvaulterr"
)

// Index maps chunk ids to the set of snapshot ids referencing them.
type Index struct {
	refs map[chunkhash.ID]map[string]struct{}
}

// New returns an empty Index.
func New() *Index {
	return &Index{refs: make(map[chunkhash.ID]map[string]struct{})}
}

// AddSnapshot records every chunk referenced by m as referenced by
// m.SnapshotID. Duplicate chunk ids within one manifest contribute once.
func (idx *Index) AddSnapshot(m *manifest.Manifest) {
	for _, id := range m.UniqueChunks() {
		set, ok := idx.refs[id]
		if !ok {
			set = make(map[string]struct{})
			idx.refs[id] = set
		}
		set[m.SnapshotID] = struct{}{}
	}
}

// RemoveSnapshot removes m.SnapshotID's references and returns the set of
// chunk ids that are now referenced by no snapshot at all (orphans).
func (idx *Index) RemoveSnapshot(m *manifest.Manifest) map[chunkhash.ID]struct{} {
	orphans := make(map[chunkhash.ID]struct{})
	for _, id := range m.UniqueChunks() {
		set, ok := idx.refs[id]
		if !ok {
			continue
		}
		delete(set, m.SnapshotID)
		if len(set) == 0 {
			delete(idx.refs, id)
			orphans[id] = struct{}{}
		}
	}
	return orphans
}

// IsReferenced reports whether id has at least one referring snapshot.
func (idx *Index) IsReferenced(id chunkhash.ID) bool {
	_, ok := idx.refs[id]
	return ok
}

// SnapshotsOf returns the sorted snapshot ids referencing id.
func (idx *Index) SnapshotsOf(id chunkhash.ID) []string {
	set, ok := idx.refs[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// AllChunks returns every chunk id currently tracked.
func (idx *Index) AllChunks() []chunkhash.ID {
	out := make([]chunkhash.ID, 0, len(idx.refs))
	for id := range idx.refs {
		out = append(out, id)
	}
	return out
}

// TotalChunks returns the number of distinct chunk ids tracked.
func (idx *Index) TotalChunks() int {
	return len(idx.refs)
}

// FindOrphans returns storageIDs that have no entry in the index: chunks
// physically present but referenced by nothing, used as an audit.
func (idx *Index) FindOrphans(storageIDs []chunkhash.ID) map[chunkhash.ID]struct{} {
	orphans := make(map[chunkhash.ID]struct{})
	for _, id := range storageIDs {
		if _, ok := idx.refs[id]; !ok {
			orphans[id] = struct{}{}
		}
	}
	return orphans
}

// Rebuild reconstructs an Index from every *.json manifest under
// snapshotsDir. Deterministic and idempotent.
func Rebuild(snapshotsDir string) (*Index, error) {
	idx := New()

	entries, err := os.ReadDir(snapshotsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, snapvaulterr.IO(err)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		m, err := manifest.Load(filepath.Join(snapshotsDir, e.Name()))
		if err != nil {
			return nil, err
		}
		idx.AddSnapshot(m)
	}
	return idx, nil
}

// Stats summarizes the index's bookkeeping load.
type Stats struct {
	TotalChunks     int
	TotalReferences int
	AvgRefsPerChunk float64
}

// Stats computes aggregate reference statistics.
func (idx *Index) Stats() Stats {
	var totalRefs int
	for _, set := range idx.refs {
		totalRefs += len(set)
	}
	var avg float64
	if len(idx.refs) > 0 {
		avg = float64(totalRefs) / float64(len(idx.refs))
	}
	return Stats{
		TotalChunks:     len(idx.refs),
		TotalReferences: totalRefs,
		AvgRefsPerChunk: avg,
	}
}

// jsonShape is the on-disk representation: hex chunk id -> sorted snapshot
// ids, matching spec.md §6's Index JSON description.
type jsonShape map[string][]string

// Save writes the index as pretty JSON with each snapshot-id set emitted in
// sorted ascending order for deterministic output.
func (idx *Index) Save(path string) error {
	shape := make(jsonShape, len(idx.refs))
	for id, set := range idx.refs {
		list := make([]string, 0, len(set))
		for s := range set {
			list = append(list, s)
		}
		sort.Strings(list)
		shape[id.String()] = list
	}

	data, err := json.MarshalIndent(shape, "", "  ")
	if err != nil {
		return snapvaulterr.JSON(err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return snapvaulterr.IO(err)
	}
	return nil
}

// Load reads an index from path. A non-existent file yields an empty index
// (first-backup bootstrap), per spec.md §4.5.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, snapvaulterr.IO(err)
	}

	var shape jsonShape
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, snapvaulterr.JSON(err)
	}

	idx := New()
	for hexID, snapshots := range shape {
		id, err := chunkhash.Parse(hexID)
		if err != nil {
			return nil, snapvaulterr.Wrap(snapvaulterr.KindJSON, "invalid chunk id in index", err)
		}
		set := make(map[string]struct{}, len(snapshots))
		for _, s := range snapshots {
			set[s] = struct{}{}
		}
		idx.refs[id] = set
	}
	return idx, nil
}
