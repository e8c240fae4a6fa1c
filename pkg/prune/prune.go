// Package prune implements snapshot deletion and orphan-chunk garbage
// collection. Named prune rather than delete to avoid shadowing the
// builtin. Grounded on original_source/snapvault/src/commands/delete.rs
// (delete_snapshot/delete_all) and index.rs (find_orphans), plus the
// teacher repo's error aggregation style in pkg/content for
// continue-on-error multi-item loops.
package prune

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/WebFirstLanguage/snapvault/pkg/chunkhash"
	"github.com/WebFirstLanguage/snapvault/pkg/chunkindex"
	"github.com/WebFirstLanguage/snapvault/pkg/chunkstore"
	"github.com/WebFirstLanguage/snapvault/pkg/manifest"
	"github.com/WebFirstLanguage/snapvault/pkg/pathsafety"
	"github.com/WebFirstLanguage/snapvault/pkg/repository"
	"github.com/WebFirstLanguage/snapvault/pkg/snapvaulterr"
)

// Result summarizes the outcome of a delete operation.
type Result struct {
	DeletedSnapshots []string
	OrphanChunks     int
	ReclaimedBytes   uint64
}

// DeleteOne removes a single snapshot: its manifest, its now-orphaned
// chunks, and its index entries.
func DeleteOne(repo *repository.Repository, id string, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := pathsafety.ValidateSnapshotID(id); err != nil {
		return Result{}, err
	}

	manifestPath := filepath.Join(repo.SnapshotsDir(), id+".json")
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return Result{}, err
	}

	idx, err := chunkindex.Load(repo.IndexPath())
	if err != nil {
		return Result{}, err
	}

	orphans := idx.RemoveSnapshot(m)

	store := chunkstore.New(repo.ChunksDir(), logger)
	var reclaimed uint64
	for chunkID := range orphans {
		size, sizeErr := store.Size(chunkID)
		if err := store.Delete(chunkID); err != nil {
			logger.Warn("failed to delete orphaned chunk", slog.String("chunk_id", chunkID.String()), slog.Any("error", err))
			continue
		}
		if sizeErr == nil {
			reclaimed += size
		}
	}

	if err := idx.Save(repo.IndexPath()); err != nil {
		return Result{}, err
	}
	if err := os.Remove(manifestPath); err != nil && !os.IsNotExist(err) {
		return Result{}, snapvaulterr.IO(err)
	}

	logger.Info("snapshot deleted",
		slog.String("snapshot_id", id),
		slog.Int("orphan_chunks", len(orphans)),
		slog.Uint64("reclaimed_bytes", reclaimed))

	return Result{DeletedSnapshots: []string{id}, OrphanChunks: len(orphans), ReclaimedBytes: reclaimed}, nil
}

// DeleteAll removes every snapshot in repo, continuing past individual
// failures and returning an aggregate error listing them, per the Open
// Question decision to prefer "delete as much as possible" over
// all-or-nothing.
func DeleteAll(repo *repository.Repository, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(repo.SnapshotsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, nil
		}
		return Result{}, snapvaulterr.IO(err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)

	var result Result
	var failures []string
	for _, id := range ids {
		r, err := DeleteOne(repo, id, logger)
		if err != nil {
			logger.Warn("failed to delete snapshot", slog.String("snapshot_id", id), slog.Any("error", err))
			failures = append(failures, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		result.DeletedSnapshots = append(result.DeletedSnapshots, r.DeletedSnapshots...)
		result.OrphanChunks += r.OrphanChunks
		result.ReclaimedBytes += r.ReclaimedBytes
	}

	if len(failures) > 0 {
		return result, snapvaulterr.New(snapvaulterr.KindOther,
			fmt.Sprintf("%d of %d snapshots failed to delete: %s", len(failures), len(ids), strings.Join(failures, "; ")))
	}
	return result, nil
}

// AuditReport is the read-only orphan-chunk report produced by Audit.
type AuditReport struct {
	OrphanChunks []chunkhash.ID
	OrphanBytes  uint64
}

// Audit scans the chunk store for chunks that exist on disk but are
// referenced by no snapshot in the index, without deleting anything. It backs
// the read-only "snapvault prune" command.
func Audit(repo *repository.Repository, logger *slog.Logger) (AuditReport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	idx, err := chunkindex.Load(repo.IndexPath())
	if err != nil {
		return AuditReport{}, err
	}

	store := chunkstore.New(repo.ChunksDir(), logger)
	entries, err := store.Enumerate()
	if err != nil {
		return AuditReport{}, err
	}

	storageIDs := make([]chunkhash.ID, 0, len(entries))
	sizeByID := make(map[chunkhash.ID]uint64, len(entries))
	for _, e := range entries {
		storageIDs = append(storageIDs, e.ID)
		sizeByID[e.ID] = e.Size
	}

	orphans := idx.FindOrphans(storageIDs)

	report := AuditReport{OrphanChunks: make([]chunkhash.ID, 0, len(orphans))}
	for id := range orphans {
		report.OrphanChunks = append(report.OrphanChunks, id)
		report.OrphanBytes += sizeByID[id]
	}
	sort.Slice(report.OrphanChunks, func(i, j int) bool {
		return report.OrphanChunks[i].Less(report.OrphanChunks[j])
	})

	return report, nil
}
