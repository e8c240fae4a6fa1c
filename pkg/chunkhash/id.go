// Package chunkhash implements the content hash used to address chunks and
// whole files: a 32-byte BLAKE3 digest, displayed as 64 lowercase hex
// characters. Grounded on the teacher repo's pkg/content/cid.go (NewCID,
// ParseCID, HexString), with the base32 "bee:" CID string format dropped in
// favor of spec.md §3's plain hex encoding.
package chunkhash

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"lukechampine.com/blake3"
)

// Size is the length in bytes of an ID.
const Size = 32

// ID is an opaque content hash. Equality and ordering are byte-wise.
type ID [Size]byte

// Sum hashes data and returns its ID.
func Sum(data []byte) ID {
	return ID(blake3.Sum256(data))
}

// SumReader hashes the entirety of r using a streaming 64KiB buffer and
// returns its ID. Used for whole-file content hashing (spec.md §4.1).
func SumReader(r io.Reader) (ID, error) {
	h := blake3.New(Size, nil)
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return ID{}, werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return ID{}, err
		}
	}
	var id ID
	copy(id[:], h.Sum(nil))
	return id, nil
}

// String renders the ID as 64 lowercase hex characters.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Prefix returns the two-character shard key: the first byte in hex.
func (id ID) Prefix() string {
	return hex.EncodeToString(id[:1])
}

// Less reports whether id sorts before other (byte-wise).
func (id ID) Less(other ID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// IsZero reports whether id is the all-zero value (never a real hash, used
// as a "not set" sentinel for optional content_hash fields).
func (id ID) IsZero() bool {
	return id == ID{}
}

// Parse decodes a 64-character hex string (either case) into an ID.
// Any string that is not exactly 64 hex characters is rejected.
func Parse(s string) (ID, error) {
	if len(s) != Size*2 {
		return ID{}, fmt.Errorf("chunkhash: invalid length %d, want %d", len(s), Size*2)
	}
	b, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return ID{}, fmt.Errorf("chunkhash: invalid hex: %w", err)
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler so ID can be used directly
// as a JSON string (manifest "chunks" field, index keys).
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
