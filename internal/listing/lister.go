// Package listing enumerates the objects below a folder prefix and turns
// them into classified file and folder entries.
package listing

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/objectfs/s3drive/internal/identifier"
	"github.com/objectfs/s3drive/pkg/errors"
	"github.com/objectfs/s3drive/pkg/types"
)

// DefaultProcessingFolder is the folder hidden from root folder listings
// when none is configured.
const DefaultProcessingFolder = "_processed_"

// Lister enumerates a backend by key prefix.
type Lister struct {
	backend types.Backend
	logger  *slog.Logger
}

// NewLister creates a lister over backend.
func NewLister(backend types.Backend, logger *slog.Logger) *Lister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lister{
		backend: backend,
		logger:  logger.With("component", "lister"),
	}
}

// ListUnder returns the entries below prefix ordered by key. The object
// stored under prefix itself is never part of the result. In shallow mode
// only direct children are returned. A folder that exists only as the
// common prefix of deeper keys is reported as an implicit folder entry in
// both modes.
func (l *Lister) ListUnder(ctx context.Context, prefix string, recursive bool, filter Filter) ([]Entry, error) {
	result, err := l.backend.ListObjects(ctx, types.ListInput{Prefix: prefix})
	if err != nil {
		return nil, wrapListError(err, prefix)
	}

	var entries []Entry
	seen := make(map[string]bool)
	add := func(e Entry) {
		if seen[e.Key] || !filter.Accepts(e) {
			return
		}
		seen[e.Key] = true
		entries = append(entries, e)
	}

	var implicit []string
	for _, obj := range result.Objects {
		if obj.Key == prefix {
			continue
		}
		relative := strings.TrimSuffix(obj.Key[len(prefix):], identifier.Separator)
		if recursive {
			add(Classify(obj))
			for i := range relative {
				if strings.HasPrefix(relative[i:], identifier.Separator) {
					implicit = append(implicit, prefix+relative[:i+1])
				}
			}
			continue
		}

		relative = strings.TrimLeft(relative, identifier.Separator)
		if !strings.Contains(relative, identifier.Separator) {
			add(Classify(obj))
			continue
		}
		first := relative[:strings.Index(relative, identifier.Separator)]
		implicit = append(implicit, prefix+first+identifier.Separator)
	}

	var synthesized bool
	for _, key := range implicit {
		if seen[key] {
			continue
		}
		e := Entry{Key: key, Kind: KindFolder, Implicit: true}
		if filter.Accepts(e) {
			add(e)
			synthesized = true
		}
	}
	if synthesized {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	}

	l.logger.Debug("listed prefix",
		"prefix", prefix,
		"recursive", recursive,
		"entries", len(entries))
	return entries, nil
}

// HasChildren reports whether anything other than the marker itself is
// stored below prefix.
func (l *Lister) HasChildren(ctx context.Context, prefix string) (bool, error) {
	result, err := l.backend.ListObjects(ctx, types.ListInput{Prefix: prefix, MaxKeys: 2})
	if err != nil {
		return false, wrapListError(err, prefix)
	}
	for _, obj := range result.Objects {
		if obj.Key != prefix {
			return true, nil
		}
	}
	return false, nil
}

// RootFolders lists the top-level folders using delimiter grouping. The
// processing folder is left out.
func (l *Lister) RootFolders(ctx context.Context, processingFolder string) ([]Entry, error) {
	if processingFolder == "" {
		processingFolder = DefaultProcessingFolder
	}

	result, err := l.backend.ListObjects(ctx, types.ListInput{Delimiter: identifier.Separator})
	if err != nil {
		return nil, wrapListError(err, "")
	}

	entries := make([]Entry, 0, len(result.CommonPrefixes))
	for _, prefix := range result.CommonPrefixes {
		if identifier.Base(prefix) == processingFolder {
			continue
		}
		entries = append(entries, Entry{Key: prefix, Kind: KindFolder})
	}
	return entries, nil
}

func wrapListError(err error, prefix string) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.NewError(errors.ErrCodeStorageRead, "failed to list objects").
		WithComponent("lister").
		WithOperation("ListObjects").
		WithContext("prefix", prefix).
		WithCause(err)
}
