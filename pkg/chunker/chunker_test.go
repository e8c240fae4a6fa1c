package chunker

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/WebFirstLanguage/snapvault/pkg/chunkhash"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestWithSizeClampsLow(t *testing.T) {
	c := WithSize(1)
	if c.ChunkSize() != MinChunkSize {
		t.Errorf("ChunkSize() = %d, want %d", c.ChunkSize(), MinChunkSize)
	}
}

func TestWithSizeClampsHigh(t *testing.T) {
	c := WithSize(MaxChunkSize * 10)
	if c.ChunkSize() != MaxChunkSize {
		t.Errorf("ChunkSize() = %d, want %d", c.ChunkSize(), MaxChunkSize)
	}
}

func TestChunkFileCoversWholeFile(t *testing.T) {
	data := make([]byte, 250_000)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	path := writeTempFile(t, data)

	c := WithSize(64 * 1024)
	chunks, err := c.ChunkFile(path)
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}

	var total uint64
	for i, ch := range chunks {
		if ch.Offset != total {
			t.Errorf("chunk %d offset = %d, want %d", i, ch.Offset, total)
		}
		total += ch.Size
	}
	if total != uint64(len(data)) {
		t.Errorf("chunks cover %d bytes, want %d", total, len(data))
	}
}

func TestChunkFileEmptyFile(t *testing.T) {
	path := writeTempFile(t, nil)
	c := New()
	chunks, err := c.ChunkFile(path)
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty file, got %d", len(chunks))
	}
}

func TestChunkFileAndChunkBytesAgree(t *testing.T) {
	data := make([]byte, 300_000)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	path := writeTempFile(t, data)

	c := WithSize(100 * 1024)
	fromFile, err := c.ChunkFile(path)
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}
	fromBytes := c.ChunkBytes(data)

	if len(fromFile) != len(fromBytes) {
		t.Fatalf("chunk count mismatch: file=%d bytes=%d", len(fromFile), len(fromBytes))
	}
	for i := range fromFile {
		if fromFile[i].ID != fromBytes[i].ID || fromFile[i].Size != fromBytes[i].Size {
			t.Errorf("chunk %d mismatch: file=%+v bytes=%+v", i, fromFile[i], fromBytes[i])
		}
	}
}

func TestChunkFileDeterministic(t *testing.T) {
	data := make([]byte, 500_000)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	path := writeTempFile(t, data)

	c := New()
	first, err := c.ChunkFile(path)
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}
	second, err := c.ChunkFile(path)
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("non-deterministic chunk count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("chunk %d hash differs between runs", i)
		}
	}
}

func TestIdenticalContentProducesIdenticalChunkIDs(t *testing.T) {
	window := make([]byte, 64*1024)
	if _, err := rand.Read(window); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	data := append(append([]byte{}, window...), window...)
	path := writeTempFile(t, data)

	c := WithSize(64 * 1024)
	chunks, err := c.ChunkFile(path)
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].ID != chunks[1].ID {
		t.Error("identical windows should produce identical chunk ids")
	}
	if chunks[0].ID != chunkhash.Sum(window) {
		t.Error("chunk id should equal the direct hash of its window")
	}
}
