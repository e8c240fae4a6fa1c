// Package backup implements the snapshot-creation pipeline: walk a source
// tree, chunk and deduplicate every regular file, and write a manifest plus
// an updated chunk index. Grounded on the teacher repo's
// pkg/content/manifest.go (BuildManifest's walk-chunk-insert shape) and
// original_source/snapvault/src/backup.rs for the ordering contract and
// skip/error semantics (spec.md §4.8).
package backup

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/WebFirstLanguage/snapvault/pkg/chunkhash"
	"github.com/WebFirstLanguage/snapvault/pkg/chunkindex"
	"github.com/WebFirstLanguage/snapvault/pkg/chunker"
	"github.com/WebFirstLanguage/snapvault/pkg/chunkstore"
	"github.com/WebFirstLanguage/snapvault/pkg/manifest"
	"github.com/WebFirstLanguage/snapvault/pkg/repository"
	"github.com/WebFirstLanguage/snapvault/pkg/snapvaulterr"
)

// Options controls one backup run.
type Options struct {
	// SourceRoot is the directory tree to back up.
	SourceRoot string

	// ChunkSize overrides the chunker's default window size. Zero means
	// chunker.DefaultChunkSize.
	ChunkSize int

	// Concurrency bounds how many files are chunked and inserted in
	// parallel. Zero means sequential (concurrency 1).
	Concurrency int

	Logger *slog.Logger
}

// NewSnapshotID mints a sortable, collision-resistant snapshot id:
// "<UTC timestamp with milliseconds>-<8 hex chars>".
func NewSnapshotID() string {
	ts := time.Now().UTC().Format("20060102T150405.000Z")
	return ts + "-" + uuid.New().String()[:8]
}

// fileResult is the per-file outcome of the chunk-and-insert stage.
type fileResult struct {
	record manifest.FileRecord
}

// Run backs up opts.SourceRoot into repo as a new snapshot, returning the
// written manifest. Per-file errors (permission denied, vanished between
// walk and read, symlinks) are logged and skipped; the snapshot as a whole
// only fails on repository-level I/O errors.
func Run(ctx context.Context, repo *repository.Repository, opts Options) (*manifest.Manifest, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(opts.SourceRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, snapvaulterr.New(snapvaulterr.KindSourceNotFound, opts.SourceRoot)
		}
		return nil, snapvaulterr.IO(err)
	}
	if !info.IsDir() {
		return nil, snapvaulterr.New(snapvaulterr.KindSourceNotDirectory, opts.SourceRoot)
	}

	snapshotID := NewSnapshotID()

	store := chunkstore.New(repo.ChunksDir(), logger)
	if err := store.Init(); err != nil {
		return nil, err
	}

	idx, err := chunkindex.Load(repo.IndexPath())
	if err != nil {
		return nil, err
	}

	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = chunker.DefaultChunkSize
	}
	ck := chunker.WithSize(chunkSize)

	type walkEntry struct {
		path    string
		relPath string
	}
	var entries []walkEntry

	err = filepath.WalkDir(opts.SourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping path", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		if path == opts.SourceRoot {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			logger.Warn("skipping symlink", slog.String("path", path))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			logger.Warn("skipping non-regular file", slog.String("path", path))
			return nil
		}
		rel, err := filepath.Rel(opts.SourceRoot, path)
		if err != nil {
			logger.Warn("skipping path outside source root", slog.String("path", path))
			return nil
		}
		entries = append(entries, walkEntry{path: path, relPath: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, snapvaulterr.IO(err)
	}

	results := make([]*fileResult, len(entries))

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, ent := range entries {
		i, ent := i, ent
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			res, err := chunkAndInsertFile(store, ck, ent.path, ent.relPath)
			if err != nil {
				logger.Warn("skipping file", slog.String("path", ent.path), slog.Any("error", err))
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, snapvaulterr.Wrap(snapvaulterr.KindOther, "backup aborted", err)
	}

	m := &manifest.Manifest{
		SnapshotID: snapshotID,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		SourceRoot: opts.SourceRoot,
	}

	for _, res := range results {
		if res == nil {
			continue
		}
		m.Files = append(m.Files, res.record)
		m.TotalFiles++
		m.TotalBytes += res.record.Size
	}

	// total_chunks and deduplicated_bytes are defined over the unique set of
	// chunk ids referenced by the manifest, not per-occurrence (spec.md §3).
	unique := m.UniqueChunks()
	m.TotalChunks = uint64(len(unique))
	for _, id := range unique {
		size, err := store.Size(id)
		if err != nil {
			return nil, err
		}
		m.DeduplicatedBytes += size
	}

	idx.AddSnapshot(m)
	if err := manifest.Save(filepath.Join(repo.SnapshotsDir(), m.SnapshotID+".json"), m); err != nil {
		return nil, err
	}
	if err := idx.Save(repo.IndexPath()); err != nil {
		return nil, err
	}

	logger.Info("snapshot created",
		slog.String("snapshot_id", m.SnapshotID),
		slog.Uint64("total_files", m.TotalFiles),
		slog.Uint64("total_bytes", m.TotalBytes))

	return m, nil
}

// chunkAndInsertFile chunks path, inserts every chunk into store, and
// returns the resulting manifest FileRecord.
func chunkAndInsertFile(store *chunkstore.Store, ck *chunker.Chunker, path, relPath string) (*fileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	chunks, err := ck.ChunkFile(path)
	if err != nil {
		return nil, err
	}

	record := manifest.FileRecord{
		RelPath: relPath,
		Size:    uint64(info.Size()),
	}
	mtime := info.ModTime().UTC().Format(time.RFC3339)
	record.Modified = &mtime

	for _, c := range chunks {
		record.Chunks = append(record.Chunks, c.ID)
		if _, err := store.InsertWindow(f, c.ID, int64(c.Offset), c.Size); err != nil {
			return nil, err
		}
	}

	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	contentHash, err := chunkhash.SumReader(f)
	if err != nil {
		return nil, err
	}
	record.ContentHash = &contentHash

	return &fileResult{record: record}, nil
}
