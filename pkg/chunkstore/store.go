// Package chunkstore implements the durable content-addressed chunk store:
// insert-once, read-many storage on a two-level sharded filesystem layout,
// with hash verification on both insert and read. Grounded on
// original_source/snapvault/src/storage.rs (ChunkStore::store/read/delete,
// chunk_path sharding, list_chunks, StorageStats), adapted to Go's
// temp-file+rename idiom for crash-atomic writes as spec.md §4.3 recommends.
package chunkstore

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/WebFirstLanguage/snapvault/pkg/chunkhash"
	"github.com/WebFirstLanguage/snapvault/pkg/snapvaulterr"
)

// Store is a content-addressed chunk store rooted at a single directory.
type Store struct {
	root   string
	logger *slog.Logger
}

// New returns a Store rooted at root. Call Init before first use.
func New(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, logger: logger}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Init creates the root directory if absent.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.root, 0o700); err != nil {
		return snapvaulterr.IO(err)
	}
	return nil
}

// Path returns the on-disk path for id: <root>/<prefix>/<hex64>.
func (s *Store) Path(id chunkhash.ID) string {
	return filepath.Join(s.root, id.Prefix(), id.String())
}

// Contains reports whether id is present in the store.
func (s *Store) Contains(id chunkhash.ID) bool {
	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Insert stores data under id, verifying hash and using temp-file+rename for
// crash atomicity. Returns (false, nil) if the chunk already exists (no
// write performed). Returns HashMismatch if data does not hash to id.
func (s *Store) Insert(id chunkhash.ID, data []byte) (bool, error) {
	if s.Contains(id) {
		return false, nil
	}

	if actual := chunkhash.Sum(data); actual != id {
		return false, snapvaulterr.New(snapvaulterr.KindHashMismatch,
			fmt.Sprintf("expected %s, got %s", id, actual))
	}

	shardDir := filepath.Join(s.root, id.Prefix())
	if err := os.MkdirAll(shardDir, 0o700); err != nil {
		return false, snapvaulterr.IO(err)
	}

	tmp, err := os.CreateTemp(shardDir, id.String()+".tmp-*")
	if err != nil {
		return false, snapvaulterr.IO(err)
	}
	tmpName := tmp.Name()
	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, snapvaulterr.IO(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return false, snapvaulterr.IO(err)
	}
	if err := tmp.Close(); err != nil {
		return false, snapvaulterr.IO(err)
	}

	finalPath := s.Path(id)
	if err := os.Rename(tmpName, finalPath); err != nil {
		return false, snapvaulterr.IO(err)
	}
	cleanupTmp = false

	s.logger.Debug("chunk stored", slog.String("chunk_id", id.String()), slog.Int("size", len(data)))
	return true, nil
}

// Read returns the bytes stored under id, re-hashing and comparing against
// id to detect bit rot or tampering.
func (s *Store) Read(id chunkhash.ID) ([]byte, error) {
	path := s.Path(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, snapvaulterr.New(snapvaulterr.KindChunkNotFound, id.String())
		}
		return nil, snapvaulterr.IO(err)
	}

	if actual := chunkhash.Sum(data); actual != id {
		s.logger.Warn("chunk integrity check failed",
			slog.String("chunk_id", id.String()), slog.String("actual", actual.String()))
		return nil, snapvaulterr.New(snapvaulterr.KindCorruption, id.String())
	}
	return data, nil
}

// Delete removes id from the store. Absent is not an error. Best-effort
// removal of the now-possibly-empty shard directory follows.
func (s *Store) Delete(id chunkhash.ID) error {
	path := s.Path(id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return snapvaulterr.IO(err)
	}

	shardDir := filepath.Join(s.root, id.Prefix())
	entries, err := os.ReadDir(shardDir)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(shardDir) // race-tolerant, best effort
	}
	return nil
}

// Size returns the stored size in bytes of id.
func (s *Store) Size(id chunkhash.ID) (uint64, error) {
	info, err := os.Stat(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, snapvaulterr.New(snapvaulterr.KindChunkNotFound, id.String())
		}
		return 0, snapvaulterr.IO(err)
	}
	return uint64(info.Size()), nil
}

// Entry is one (id, size) pair returned by Enumerate.
type Entry struct {
	ID   chunkhash.ID
	Size uint64
}

// Enumerate walks the two-level shard layout and returns every chunk
// present. Filenames that are not valid 64-hex chunk ids are skipped, which
// also discards leftover ".tmp-*" files from an interrupted Insert.
func (s *Store) Enumerate() ([]Entry, error) {
	var entries []Entry

	shardDirs, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, snapvaulterr.IO(err)
	}

	for _, shard := range shardDirs {
		if !shard.IsDir() {
			continue
		}
		shardPath := filepath.Join(s.root, shard.Name())
		files, err := os.ReadDir(shardPath)
		if err != nil {
			return nil, snapvaulterr.IO(err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			id, err := chunkhash.Parse(f.Name())
			if err != nil {
				continue
			}
			info, err := f.Info()
			if err != nil {
				return nil, snapvaulterr.IO(err)
			}
			entries = append(entries, Entry{ID: id, Size: uint64(info.Size())})
		}
	}
	return entries, nil
}

// Stats summarizes the store's contents.
type Stats struct {
	Count int
	Bytes uint64
}

// Stats returns aggregate counts for the store.
func (s *Store) Stats() (Stats, error) {
	entries, err := s.Enumerate()
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	stats.Count = len(entries)
	for _, e := range entries {
		stats.Bytes += e.Size
	}
	return stats, nil
}

// InsertWindow reads length bytes at offset from f and inserts them under
// id, verifying the hash matches. Used by the backup pipeline to re-read a
// chunk window by (offset, length) from an already-chunked file, rather
// than holding every chunk's bytes in memory at once.
func (s *Store) InsertWindow(f *os.File, id chunkhash.ID, offset int64, length uint64) (bool, error) {
	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return false, snapvaulterr.IO(err)
	}
	return s.Insert(id, buf)
}
