package listing

import (
	"sort"
	"time"

	"github.com/objectfs/s3drive/internal/identifier"
	"github.com/objectfs/s3drive/pkg/types"
)

// Kind tells a folder marker from a file.
type Kind int

const (
	// KindFile is a regular object.
	KindFile Kind = iota
	// KindFolder is a folder marker, real or synthesized.
	KindFolder
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// Entry is one classified listing result.
type Entry struct {
	Key          string
	Kind         Kind
	Size         int64
	LastModified time.Time

	// Implicit is set on folders that have descendants but no marker object.
	Implicit bool
}

// Classify turns a backend object into an Entry.
func Classify(obj types.ObjectInfo) Entry {
	kind := KindFile
	if identifier.IsFolder(obj.Key) {
		kind = KindFolder
	}
	return Entry{
		Key:          obj.Key,
		Kind:         kind,
		Size:         obj.Size,
		LastModified: obj.LastModified,
	}
}

// IsFolder reports whether e is a folder entry.
func (e Entry) IsFolder() bool {
	return e.Kind == KindFolder
}

// Identifier returns the identifier addressed by the entry.
func (e Entry) Identifier() string {
	return identifier.FromKey(e.Key)
}

// Filter restricts a listing to a kind of entry.
type Filter int

const (
	FilterAll Filter = iota
	FilterFolders
	FilterFiles
)

// Accepts reports whether e passes the filter.
func (f Filter) Accepts(e Entry) bool {
	switch f {
	case FilterFolders:
		return e.IsFolder()
	case FilterFiles:
		return !e.IsFolder()
	default:
		return true
	}
}

// SortForNestedOperations orders entries so that folders come before files
// and, within each kind, shallower keys come before deeper ones. Entries of
// the same kind and depth keep their relative order.
func SortForNestedOperations(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		return identifier.Depth(a.Key) < identifier.Depth(b.Key)
	})
}

// Keys returns the keys of entries in order.
func Keys(entries []Entry) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}
