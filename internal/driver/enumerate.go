package driver

import (
	"context"

	"github.com/objectfs/s3drive/internal/identifier"
	"github.com/objectfs/s3drive/internal/listing"
)

// FilterFunc decides whether a listed item is kept. name is the base name,
// id the item identifier and parent the folder being listed.
type FilterFunc func(name, id, parent string) bool

// FilesInFolder lists the files of folder ordered by identifier. start
// skips that many items and count limits the result; a count of zero
// means no limit.
func (d *Driver) FilesInFolder(ctx context.Context, folder string, start, count int, recursive bool, filters ...FilterFunc) ([]string, error) {
	folder = identifier.AsFolder(folder)
	entries, err := d.lister.ListUnder(ctx, identifier.Key(folder), recursive, listing.FilterFiles)
	if err != nil {
		return nil, err
	}
	return paginate(d.apply(entries, folder, filters), start, count), nil
}

// FoldersInFolder lists the folders of folder ordered by identifier, with
// the same pagination as FilesInFolder. At the root the processing folder
// and everything below it are left out.
func (d *Driver) FoldersInFolder(ctx context.Context, folder string, start, count int, recursive bool, filters ...FilterFunc) ([]string, error) {
	folder = identifier.AsFolder(folder)

	var (
		entries []listing.Entry
		err     error
	)
	if identifier.IsRoot(folder) && !recursive {
		entries, err = d.lister.RootFolders(ctx, d.opts.ProcessingFolder)
	} else {
		entries, err = d.lister.ListUnder(ctx, identifier.Key(folder), recursive, listing.FilterFolders)
	}
	if err != nil {
		return nil, err
	}

	if identifier.IsRoot(folder) {
		hidden := d.opts.ProcessingFolder + identifier.Separator
		kept := entries[:0]
		for _, e := range entries {
			if !identifier.IsWithin(hidden, e.Key) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	return paginate(d.apply(entries, folder, filters), start, count), nil
}

func (d *Driver) apply(entries []listing.Entry, parent string, filters []FilterFunc) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		id := e.Identifier()
		keep := true
		for _, filter := range filters {
			if !filter(identifier.Base(id), id, parent) {
				keep = false
				break
			}
		}
		if keep {
			ids = append(ids, id)
		}
	}
	return ids
}

func paginate(ids []string, start, count int) []string {
	if start < 0 {
		start = 0
	}
	if start >= len(ids) {
		return []string{}
	}
	ids = ids[start:]
	if count > 0 && count < len(ids) {
		ids = ids[:count]
	}
	return ids
}
