package chunkstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/WebFirstLanguage/snapvault/pkg/chunkhash"
	"github.com/WebFirstLanguage/snapvault/pkg/snapvaulterr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir(), nil)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func TestInsertAndRead(t *testing.T) {
	s := newTestStore(t)
	data := []byte("chunk payload")
	id := chunkhash.Sum(data)

	inserted, err := s.Insert(id, data)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !inserted {
		t.Error("expected first insert to report true")
	}

	got, err := s.Read(id)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Read returned %q, want %q", got, data)
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	data := []byte("repeat me")
	id := chunkhash.Sum(data)

	if _, err := s.Insert(id, data); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	second, err := s.Insert(id, data)
	if err != nil {
		t.Fatalf("second Insert: %v", err)
	}
	if second {
		t.Error("second insert of an existing chunk should report false")
	}
}

func TestInsertRejectsHashMismatch(t *testing.T) {
	s := newTestStore(t)
	wrongID := chunkhash.Sum([]byte("not the real content"))

	_, err := s.Insert(wrongID, []byte("actual content"))
	if !snapvaulterr.Is(err, snapvaulterr.KindHashMismatch) {
		t.Errorf("expected HashMismatch error, got %v", err)
	}
}

func TestReadMissingChunk(t *testing.T) {
	s := newTestStore(t)
	missing := chunkhash.Sum([]byte("never inserted"))

	_, err := s.Read(missing)
	if !snapvaulterr.Is(err, snapvaulterr.KindChunkNotFound) {
		t.Errorf("expected ChunkNotFound error, got %v", err)
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	s := newTestStore(t)
	data := []byte("original content")
	id := chunkhash.Sum(data)

	if _, err := s.Insert(id, data); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	path := s.Path(id)
	if err := os.WriteFile(path, []byte("tampered content!"), 0o600); err != nil {
		t.Fatalf("tamper write: %v", err)
	}

	_, err := s.Read(id)
	if !snapvaulterr.Is(err, snapvaulterr.KindCorruption) {
		t.Errorf("expected Corruption error, got %v", err)
	}
}

func TestDeleteThenContains(t *testing.T) {
	s := newTestStore(t)
	data := []byte("delete me")
	id := chunkhash.Sum(data)

	if _, err := s.Insert(id, data); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Contains(id) {
		t.Error("chunk should be absent after Delete")
	}
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	missing := chunkhash.Sum([]byte("was never here"))
	if err := s.Delete(missing); err != nil {
		t.Errorf("Delete of missing chunk should not error, got %v", err)
	}
}

func TestEnumerateSkipsTempFiles(t *testing.T) {
	s := newTestStore(t)
	data := []byte("enumerable")
	id := chunkhash.Sum(data)
	if _, err := s.Insert(id, data); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	stray := filepath.Join(s.root, id.Prefix(), id.String()+".tmp-stray")
	if err := os.WriteFile(stray, []byte("leftover"), 0o600); err != nil {
		t.Fatalf("write stray temp file: %v", err)
	}

	entries, err := s.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID != id {
		t.Errorf("Enumerate returned wrong id: %s", entries[0].ID)
	}
}
