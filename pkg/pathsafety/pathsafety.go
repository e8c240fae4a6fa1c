// Package pathsafety validates snapshot ids and relative paths against
// traversal and injection, grounded almost one-to-one on
// original_source/snapvault/src/utils.rs (validate_snapshot_id,
// is_safe_path); the teacher repo has no equivalent component.
package pathsafety

import (
	"path"
	"strings"

	"github.com/WebFirstLanguage/snapvault/pkg/snapvaulterr"
)

// ValidateSnapshotID rejects empty ids, NUL bytes, path separators, and ids
// starting with a dot.
func ValidateSnapshotID(id string) error {
	if id == "" {
		return snapvaulterr.New(snapvaulterr.KindInvalidSnapshotID, "snapshot id cannot be empty")
	}
	if strings.ContainsRune(id, 0) {
		return snapvaulterr.New(snapvaulterr.KindInvalidSnapshotID, "snapshot id contains a NUL byte")
	}
	if strings.ContainsAny(id, "/\\") {
		return snapvaulterr.New(snapvaulterr.KindInvalidSnapshotID, "snapshot id cannot contain path separators")
	}
	if strings.HasPrefix(id, ".") {
		return snapvaulterr.New(snapvaulterr.KindInvalidSnapshotID, "snapshot id cannot start with a dot")
	}
	return nil
}

// IsSafeRelPath reports whether rel is safe to join under a destination
// root: no NUL bytes, not absolute, and no component resolves to the
// parent directory. "." components are permitted but have no effect.
func IsSafeRelPath(rel string) bool {
	if strings.ContainsRune(rel, 0) {
		return false
	}
	if path.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return false
	}
	// Windows-style absolute/drive prefixes and backslash separators are
	// never valid in a manifest's forward-slash rel_path (spec.md §3).
	if strings.Contains(rel, "\\") {
		return false
	}
	if len(rel) >= 2 && rel[1] == ':' {
		return false
	}

	for _, comp := range strings.Split(rel, "/") {
		switch comp {
		case "", ".":
			// "" arises from a leading/trailing/doubled slash; treated as a
			// no-op component like "." rather than a hard error, matching
			// path.Clean's normalization.
			continue
		case "..":
			return false
		}
	}
	return true
}
