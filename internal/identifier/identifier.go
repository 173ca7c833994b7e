// Package identifier implements the canonical form of file and folder
// identifiers and their mapping to object keys.
//
// The root folder is exactly "/". Every other identifier has no leading
// slash, folder identifiers end with "/" and file identifiers never do.
// An object key is the normalized identifier; the root maps to the empty
// key prefix.
package identifier

import (
	"fmt"
	"path"
	"strings"
)

const (
	// Root is the identifier of the storage root folder.
	Root = "/"

	// Separator is the conventional path delimiter inside object keys.
	Separator = "/"
)

// Normalize strips the leading separators of id unless id is the root.
// Stripping every leading separator keeps Normalize idempotent.
func Normalize(id string) string {
	if id == Root {
		return id
	}
	return strings.TrimLeft(id, Separator)
}

// IsRoot reports whether id addresses the root folder.
func IsRoot(id string) bool {
	return id == Root || id == ""
}

// IsFolder reports whether a normalized identifier or key addresses a
// folder. This is the single classification rule for folder markers.
func IsFolder(id string) bool {
	return strings.HasSuffix(id, Separator)
}

// AsFolder returns the folder form of id: normalized, with a trailing separator.
func AsFolder(id string) string {
	id = Normalize(id)
	if IsRoot(id) {
		return Root
	}
	if !IsFolder(id) {
		id += Separator
	}
	return id
}

// Key returns the object key (or listing prefix) for id. The root folder
// maps to the empty prefix.
func Key(id string) string {
	id = Normalize(id)
	if id == Root {
		return ""
	}
	return id
}

// FromKey returns the identifier addressed by an object key.
func FromKey(key string) string {
	if key == "" {
		return Root
	}
	return key
}

// Join appends name to folder. The result is normalized; a trailing
// separator on name is preserved so folder names stay folders.
func Join(folder, name string) string {
	return Normalize(Key(AsFolder(folder)) + strings.TrimPrefix(name, Separator))
}

// Base returns the last path element of id without a trailing separator.
// The root has an empty base name.
func Base(id string) string {
	trimmed := strings.TrimSuffix(Normalize(id), Separator)
	if trimmed == "" {
		return ""
	}
	return path.Base(trimmed)
}

// Parent returns the folder identifier containing id. The parent of a
// top-level entry, and of the root itself, is the root.
func Parent(id string) string {
	trimmed := strings.TrimSuffix(Normalize(id), Separator)
	i := strings.LastIndex(trimmed, Separator)
	if i < 0 {
		return Root
	}
	return trimmed[:i+1]
}

// Depth counts the separators in a key.
func Depth(key string) int {
	return strings.Count(key, Separator)
}

// IsWithin reports whether candidate equals container or lies below it.
// The comparison is made on normalized paths without trailing separators,
// so "docs/" contains "docs/a.txt" but not "docs-old/b.txt".
func IsWithin(container, candidate string) bool {
	c := strings.TrimSuffix(Normalize(container), Separator)
	e := strings.TrimSuffix(Normalize(candidate), Separator)
	if c == "" {
		return true
	}
	return e == c || strings.HasPrefix(e, c+Separator)
}

// Rebase substitutes the source prefix of key with dst. The key must start
// with src.
func Rebase(key, src, dst string) string {
	return dst + key[len(src):]
}

// ValidateName checks a single file or folder name supplied by a caller.
// Names may not be empty, may not be "." or "..", and may not contain a
// separator.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("name %q is reserved", name)
	}
	if strings.Contains(name, Separator) {
		return fmt.Errorf("name %q contains a path separator", name)
	}
	return nil
}
