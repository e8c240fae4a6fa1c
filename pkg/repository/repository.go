// Package repository implements the on-disk repository layout: root path,
// version config, and open/init. Grounded on
// original_source/snapvault/src/repository/mod.rs (Repository::init/open,
// 0700 permission, MAX_CONFIG_SIZE guard, version check); the advisory lock
// is new, added per spec.md §5's suggestion that implementations MAY take
// an exclusive lock on a repo-level sentinel file for backup/delete.
package repository

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/WebFirstLanguage/snapvault/pkg/snapvaulterr"
	"golang.org/x/sys/unix"
)

// MaxConfigSize guards config.json reads against a maliciously huge file.
const MaxConfigSize = 1024 * 1024 // 1 MiB

// CurrentVersion is the only repository format version this binary
// understands. A version mismatch is fatal (spec.md §3).
const CurrentVersion = 1

// Config is the persisted repository manifest, config.json.
type Config struct {
	Version   uint32 `json:"version"`
	CreatedAt string `json:"created_at"`
}

// Repository holds the root path and opened config of a snapvault repo.
type Repository struct {
	root   string
	config Config
}

// Root returns the repository's root directory.
func (r *Repository) Root() string { return r.root }

// Config returns the repository's parsed config.json.
func (r *Repository) Config() Config { return r.config }

// SnapshotsDir is <root>/snapshots.
func (r *Repository) SnapshotsDir() string { return filepath.Join(r.root, "snapshots") }

// DataDir is <root>/data.
func (r *Repository) DataDir() string { return filepath.Join(r.root, "data") }

// ChunksDir is <root>/data/chunks.
func (r *Repository) ChunksDir() string { return filepath.Join(r.DataDir(), "chunks") }

// IndexPath is <root>/index.json.
func (r *Repository) IndexPath() string { return filepath.Join(r.root, "index.json") }

// lockPath is <root>/.lock, the advisory-lock sentinel (spec.md §5).
func (r *Repository) lockPath() string { return filepath.Join(r.root, ".lock") }

func configPath(root string) string { return filepath.Join(root, "config.json") }

// Init creates a new repository at path. Fails with RepoAlreadyExists if
// path already exists.
func Init(path string) (*Repository, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, snapvaulterr.New(snapvaulterr.KindRepoAlreadyExists, path)
	} else if !os.IsNotExist(err) {
		return nil, snapvaulterr.IO(err)
	}

	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, snapvaulterr.IO(err)
	}
	if err := os.Chmod(path, 0o700); err != nil {
		return nil, snapvaulterr.IO(err)
	}

	repo := &Repository{root: path}
	if err := os.MkdirAll(repo.SnapshotsDir(), 0o700); err != nil {
		return nil, snapvaulterr.IO(err)
	}
	if err := os.MkdirAll(repo.ChunksDir(), 0o700); err != nil {
		return nil, snapvaulterr.IO(err)
	}

	cfg := Config{Version: CurrentVersion, CreatedAt: time.Now().UTC().Format(time.RFC3339)}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, snapvaulterr.JSON(err)
	}
	if err := os.WriteFile(configPath(path), data, 0o600); err != nil {
		return nil, snapvaulterr.IO(err)
	}
	repo.config = cfg

	return repo, nil
}

// Open opens an existing repository at path.
func Open(path string) (*Repository, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, snapvaulterr.New(snapvaulterr.KindRepoNotFound, path)
		}
		return nil, snapvaulterr.IO(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}

	return &Repository{root: path, config: cfg}, nil
}

func loadConfig(root string) (Config, error) {
	cfgPath := configPath(root)
	info, err := os.Stat(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, snapvaulterr.New(snapvaulterr.KindInvalidRepo, cfgPath)
		}
		return Config{}, snapvaulterr.IO(err)
	}
	if uint64(info.Size()) > MaxConfigSize {
		return Config{}, snapvaulterr.FileTooLarge(uint64(info.Size()), MaxConfigSize)
	}

	f, err := os.Open(cfgPath)
	if err != nil {
		return Config{}, snapvaulterr.IO(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigSize+1))
	if err != nil {
		return Config{}, snapvaulterr.IO(err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, snapvaulterr.JSON(err)
	}
	if cfg.Version != CurrentVersion {
		return Config{}, snapvaulterr.UnsupportedVersion(cfg.Version, CurrentVersion)
	}
	return cfg, nil
}

// Lock is an advisory exclusive lock on the repository, held for the
// duration of a backup or delete operation (spec.md §5). It is not required
// for correctness against a single writer, only a courtesy against
// accidental concurrent invocations.
type Lock struct {
	f *os.File
}

// Lock acquires an exclusive advisory flock on <root>/.lock, creating it if
// necessary. The caller must call Unlock when done.
func (r *Repository) Lock() (*Lock, error) {
	f, err := os.OpenFile(r.lockPath(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, snapvaulterr.IO(err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, snapvaulterr.Wrap(snapvaulterr.KindOther, "failed to acquire repository lock", err)
	}
	return &Lock{f: f}, nil
}

// Unlock releases the lock and closes the underlying file.
func (l *Lock) Unlock() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return snapvaulterr.IO(err)
	}
	return l.f.Close()
}
