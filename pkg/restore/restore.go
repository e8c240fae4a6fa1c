// Package restore implements snapshot restoration: reconstruct a manifest's
// files into a destination directory by concatenating each file's chunk
// sequence, verifying per-chunk integrity as it streams. Grounded on
// original_source/snapvault/src/restore.rs for the ordering and
// abort-on-error semantics (stricter than backup: a single bad chunk fails
// the whole restore, since a half-written file is worse than no file).
package restore

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/WebFirstLanguage/snapvault/pkg/chunkstore"
	"github.com/WebFirstLanguage/snapvault/pkg/manifest"
	"github.com/WebFirstLanguage/snapvault/pkg/pathsafety"
	"github.com/WebFirstLanguage/snapvault/pkg/repository"
	"github.com/WebFirstLanguage/snapvault/pkg/snapvaulterr"
)

// Options controls one restore run.
type Options struct {
	// SnapshotID selects which snapshot to restore. Empty means the
	// lexicographically greatest (latest, since ids are timestamp-prefixed).
	SnapshotID string

	// Destination is the directory files are restored into. It must not
	// already exist, or must exist and be empty.
	Destination string

	Logger *slog.Logger
}

// Run restores a snapshot into opts.Destination, returning the manifest that
// was restored.
func Run(repo *repository.Repository, opts Options) (*manifest.Manifest, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := opts.SnapshotID
	if id == "" {
		latest, err := latestSnapshotID(repo)
		if err != nil {
			return nil, err
		}
		id = latest
	}
	if err := pathsafety.ValidateSnapshotID(id); err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(repo.SnapshotsDir(), id+".json")
	if _, err := os.Stat(manifestPath); err != nil {
		if os.IsNotExist(err) {
			return nil, snapvaulterr.New(snapvaulterr.KindSnapshotNotFound, id)
		}
		return nil, snapvaulterr.IO(err)
	}

	if err := ensureEmptyDestination(opts.Destination); err != nil {
		return nil, err
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	if m.SnapshotID != id {
		return nil, snapvaulterr.New(snapvaulterr.KindOther,
			"manifest snapshot_id does not match its filename: "+m.SnapshotID+" != "+id)
	}

	store := chunkstore.New(repo.ChunksDir(), logger)

	for _, rec := range m.Files {
		if !pathsafety.IsSafeRelPath(rec.RelPath) {
			logger.Warn("skipping unsafe path", slog.String("rel_path", rec.RelPath))
			continue
		}

		destPath := filepath.Join(opts.Destination, filepath.FromSlash(rec.RelPath))
		if err := os.MkdirAll(filepath.Dir(destPath), 0o700); err != nil {
			return nil, snapvaulterr.IO(err)
		}

		if err := restoreFile(store, destPath, rec); err != nil {
			return nil, annotateRestoreError(rec.RelPath, err)
		}
	}

	logger.Info("snapshot restored",
		slog.String("snapshot_id", m.SnapshotID),
		slog.String("destination", opts.Destination),
		slog.Int("files", len(m.Files)))

	return m, nil
}

// restoreFile writes one file's chunk sequence to destPath, truncating any
// existing content, and fsyncs before close. A chunk read or write failure
// leaves no partial file behind at destPath (spec.md §8 scenario S6): a
// half-written file is worse than no file.
func restoreFile(store *chunkstore.Store, destPath string, rec manifest.FileRecord) (err error) {
	f, ferr := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if ferr != nil {
		return ferr
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(destPath)
		}
	}()

	for _, chunkID := range rec.Chunks {
		data, rerr := store.Read(chunkID)
		if rerr != nil {
			err = rerr
			return err
		}
		if _, werr := f.Write(data); werr != nil {
			err = werr
			return err
		}
	}

	if serr := f.Sync(); serr != nil {
		err = serr
		return err
	}
	err = f.Close()
	return err
}

// annotateRestoreError prepends relPath context to err's message while
// preserving its Kind, so callers matching on snapvaulterr.Is / errors.As
// still see the original cause (ChunkNotFound, Corruption, ...) rather than
// a generic wrapper.
func annotateRestoreError(relPath string, err error) error {
	var e *snapvaulterr.Error
	if errors.As(err, &e) {
		annotated := *e
		annotated.Message = "failed to restore " + relPath + ": " + annotated.Message
		return &annotated
	}
	return snapvaulterr.Wrap(snapvaulterr.KindOther, "failed to restore "+relPath, err)
}

// ensureEmptyDestination fails with DestinationNotEmpty before any write
// happens, per spec.md §4.6, rather than partially overwriting an existing
// directory's contents.
func ensureEmptyDestination(dest string) error {
	entries, err := os.ReadDir(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dest, 0o700)
		}
		return snapvaulterr.IO(err)
	}
	if len(entries) > 0 {
		return snapvaulterr.New(snapvaulterr.KindDestinationNotEmpty, dest)
	}
	return nil
}

// latestSnapshotID returns the lexicographically greatest snapshot id under
// repo, which is also the most recent since ids are timestamp-prefixed.
func latestSnapshotID(repo *repository.Repository) (string, error) {
	entries, err := os.ReadDir(repo.SnapshotsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return "", snapvaulterr.New(snapvaulterr.KindNoSnapshots, repo.SnapshotsDir())
		}
		return "", snapvaulterr.IO(err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, e.Name()[:len(e.Name())-len(".json")])
	}
	if len(ids) == 0 {
		return "", snapvaulterr.New(snapvaulterr.KindNoSnapshots, repo.SnapshotsDir())
	}

	sort.Strings(ids)
	return ids[len(ids)-1], nil
}
