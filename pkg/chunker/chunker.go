// Package chunker splits file bytes into fixed-size windows and hashes each
// one, deterministically. Grounded on the teacher repo's
// pkg/content/chunker.go (ChunkFile/ChunkData read-loop shape), with the
// chunk-size clamp and short-read retry behavior taken from
// original_source/snapvault/src/chunking.rs (Chunker::with_size,
// Chunker::chunk_file).
package chunker

import (
	"bufio"
	"errors"
	"io"
	"os"
	"syscall"

	"github.com/WebFirstLanguage/snapvault/pkg/chunkhash"
)

const (
	// DefaultChunkSize is used when a caller does not request a specific size.
	DefaultChunkSize = 1024 * 1024 // 1 MiB

	// MinChunkSize is the lower clamp bound.
	MinChunkSize = 64 * 1024 // 64 KiB

	// MaxChunkSize is the upper clamp bound.
	MaxChunkSize = 16 * 1024 * 1024 // 16 MiB
)

// Chunk describes one fixed-size window of a file's bytes.
type Chunk struct {
	ID     chunkhash.ID
	Size   uint64
	Offset uint64
}

// Chunker splits byte streams into fixed-size chunks.
type Chunker struct {
	chunkSize int
}

// New returns a Chunker using DefaultChunkSize.
func New() *Chunker {
	return WithSize(DefaultChunkSize)
}

// WithSize returns a Chunker with size clamped silently into
// [MinChunkSize, MaxChunkSize].
func WithSize(size int) *Chunker {
	if size < MinChunkSize {
		size = MinChunkSize
	}
	if size > MaxChunkSize {
		size = MaxChunkSize
	}
	return &Chunker{chunkSize: size}
}

// ChunkSize returns the clamped chunk size this Chunker uses.
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// ChunkFile reads path sequentially through a buffered reader and returns an
// ordered list of Chunks covering the file byte-for-byte. An empty file
// yields an empty, non-nil slice.
func (c *Chunker) ChunkFile(path string) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return c.chunkReader(bufio.NewReaderSize(f, c.chunkSize))
}

// ChunkBytes is the in-memory equivalent of ChunkFile; it produces
// bit-identical chunk IDs for the same content.
func (c *Chunker) ChunkBytes(data []byte) []Chunk {
	chunks := make([]Chunk, 0, (len(data)/c.chunkSize)+1)
	var offset uint64
	for i := 0; i < len(data); i += c.chunkSize {
		end := i + c.chunkSize
		if end > len(data) {
			end = len(data)
		}
		window := data[i:end]
		chunks = append(chunks, Chunk{
			ID:     chunkhash.Sum(window),
			Size:   uint64(len(window)),
			Offset: offset,
		})
		offset += uint64(len(window))
	}
	return chunks
}

// chunkReader reads r in chunkSize windows until EOF, hashing each window
// independently as it fills.
func (c *Chunker) chunkReader(r io.Reader) ([]Chunk, error) {
	chunks := []Chunk{}
	buf := make([]byte, c.chunkSize)
	var offset uint64

	for {
		n, err := readWindow(r, buf)
		if n > 0 {
			chunks = append(chunks, Chunk{
				ID:     chunkhash.Sum(buf[:n]),
				Size:   uint64(n),
				Offset: offset,
			})
			offset += uint64(n)
		}
		if err != nil {
			if err == io.EOF {
				return chunks, nil
			}
			return nil, err
		}
	}
}

// readWindow fills buf as much as possible before EOF, retrying on
// transient interrupted-style errors. It returns (n, nil) when buf was
// filled completely and more data may follow, or (n, io.EOF) once the
// underlying reader is exhausted (n may be 0 or a final short count).
func readWindow(r io.Reader, buf []byte) (int, error) {
	var total int
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if err == io.EOF {
				return total, io.EOF
			}
			if isInterrupted(err) {
				continue
			}
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
	}
	return total, nil
}

func isInterrupted(err error) bool {
	return errors.Is(err, syscall.EINTR)
}
