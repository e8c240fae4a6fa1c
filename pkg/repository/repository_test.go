package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/WebFirstLanguage/snapvault/pkg/snapvaulterr"
)

func TestInitCreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")

	repo, err := Init(root)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, dir := range []string{repo.SnapshotsDir(), repo.ChunksDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", dir)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "config.json")); err != nil {
		t.Errorf("expected config.json to exist: %v", err)
	}
	if repo.Config().Version != CurrentVersion {
		t.Errorf("Config().Version = %d, want %d", repo.Config().Version, CurrentVersion)
	}
}

func TestInitRejectsExistingPath(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	if _, err := Init(root); err != nil {
		t.Fatalf("first Init: %v", err)
	}

	_, err := Init(root)
	if !snapvaulterr.Is(err, snapvaulterr.KindRepoAlreadyExists) {
		t.Errorf("expected RepoAlreadyExists, got %v", err)
	}
}

func TestOpenRoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	if _, err := Init(root); err != nil {
		t.Fatalf("Init: %v", err)
	}

	repo, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if repo.Root() != root {
		t.Errorf("Root() = %s, want %s", repo.Root(), root)
	}
}

func TestOpenMissingRepo(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "does-not-exist"))
	if !snapvaulterr.Is(err, snapvaulterr.KindRepoNotFound) {
		t.Errorf("expected RepoNotFound, got %v", err)
	}
}

func TestOpenRejectsMissingConfig(t *testing.T) {
	root := t.TempDir()
	_, err := Open(root)
	if !snapvaulterr.Is(err, snapvaulterr.KindInvalidRepo) {
		t.Errorf("expected InvalidRepo, got %v", err)
	}
}

func TestOpenRejectsUnsupportedVersion(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "config.json"), []byte(`{"version":99,"created_at":"x"}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Open(root)
	if !snapvaulterr.Is(err, snapvaulterr.KindUnsupportedVersion) {
		t.Errorf("expected UnsupportedVersion, got %v", err)
	}
}

func TestLockReacquiredAfterUnlock(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	repo, err := Init(root)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	lock, err := repo.Lock()
	if err != nil {
		t.Fatalf("first Lock: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	lock2, err := repo.Lock()
	if err != nil {
		t.Fatalf("Lock after Unlock should succeed: %v", err)
	}
	if err := lock2.Unlock(); err != nil {
		t.Fatalf("second Unlock: %v", err)
	}
}
