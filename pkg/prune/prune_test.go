package prune

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/WebFirstLanguage/snapvault/pkg/backup"
	"github.com/WebFirstLanguage/snapvault/pkg/chunkindex"
	"github.com/WebFirstLanguage/snapvault/pkg/repository"
)

func mustWriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func setupRepoWithTwoSnapshots(t *testing.T) (*repository.Repository, string, string) {
	t.Helper()
	shared := []byte("shared content present in both snapshots")

	src1 := t.TempDir()
	mustWriteFile(t, filepath.Join(src1, "shared.txt"), shared)
	mustWriteFile(t, filepath.Join(src1, "only-in-one.txt"), []byte("unique to snapshot one"))

	repoRoot := filepath.Join(t.TempDir(), "repo")
	repo, err := repository.Init(repoRoot)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	m1, err := backup.Run(context.Background(), repo, backup.Options{SourceRoot: src1})
	if err != nil {
		t.Fatalf("first backup.Run: %v", err)
	}

	src2 := t.TempDir()
	mustWriteFile(t, filepath.Join(src2, "shared.txt"), shared)

	m2, err := backup.Run(context.Background(), repo, backup.Options{SourceRoot: src2})
	if err != nil {
		t.Fatalf("second backup.Run: %v", err)
	}

	return repo, m1.SnapshotID, m2.SnapshotID
}

func TestDeleteOneRemovesOrphansButKeepsSharedChunks(t *testing.T) {
	repo, snap1, snap2 := setupRepoWithTwoSnapshots(t)

	result, err := DeleteOne(repo, snap1, nil)
	if err != nil {
		t.Fatalf("DeleteOne: %v", err)
	}
	if result.OrphanChunks == 0 {
		t.Error("expected deleting the snapshot with the unique file to orphan at least one chunk")
	}

	if _, err := os.Stat(filepath.Join(repo.SnapshotsDir(), snap1+".json")); !os.IsNotExist(err) {
		t.Error("expected manifest file to be removed")
	}

	idx, err := chunkindex.Load(repo.IndexPath())
	if err != nil {
		t.Fatalf("Load index: %v", err)
	}
	if idx.TotalChunks() == 0 {
		t.Error("expected chunks still referenced by the remaining snapshot")
	}

	_ = snap2
}

func TestDeleteAllRemovesEverySnapshot(t *testing.T) {
	repo, _, _ := setupRepoWithTwoSnapshots(t)

	result, err := DeleteAll(repo, nil)
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if len(result.DeletedSnapshots) != 2 {
		t.Errorf("expected 2 deleted snapshots, got %d", len(result.DeletedSnapshots))
	}

	idx, err := chunkindex.Load(repo.IndexPath())
	if err != nil {
		t.Fatalf("Load index: %v", err)
	}
	if idx.TotalChunks() != 0 {
		t.Errorf("expected empty index after deleting all snapshots, got %d chunks", idx.TotalChunks())
	}
}

func TestAuditReportsNoOrphansAfterDeleteOne(t *testing.T) {
	repo, snap1, _ := setupRepoWithTwoSnapshots(t)

	if _, err := DeleteOne(repo, snap1, nil); err != nil {
		t.Fatalf("DeleteOne: %v", err)
	}

	report, err := Audit(repo, nil)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(report.OrphanChunks) != 0 {
		t.Errorf("expected no orphans immediately after DeleteOne already reclaimed them, got %d", len(report.OrphanChunks))
	}
}
