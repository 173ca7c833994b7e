package driver

import (
	"context"
	"strings"

	"github.com/objectfs/s3drive/internal/identifier"
	"github.com/objectfs/s3drive/pkg/errors"
	"github.com/objectfs/s3drive/pkg/types"
	"github.com/objectfs/s3drive/pkg/utils"
)

// FileInfo describes a file.
type FileInfo struct {
	Name           string `json:"name"`
	Identifier     string `json:"identifier"`
	CTime          int64  `json:"ctime"`
	MTime          int64  `json:"mtime"`
	MimeType       string `json:"mimetype"`
	Size           int64  `json:"size"`
	IdentifierHash string `json:"identifier_hash"`
	FolderHash     string `json:"folder_hash"`
	StorageID      string `json:"storage"`
}

// FolderInfo describes a folder.
type FolderInfo struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	StorageID  string `json:"storage"`
}

// FileInfo returns the metadata of the file id. Both timestamps are the
// last-modified time of the object.
func (d *Driver) FileInfo(ctx context.Context, id string) (*FileInfo, error) {
	id = identifier.Normalize(id)
	if err := checkFile(id); err != nil {
		return nil, err
	}

	head, err := d.backend.HeadObject(ctx, identifier.Key(id))
	if err != nil {
		return nil, backendError(err, errors.ErrCodeStorageRead, "FileInfo", id)
	}

	idHash, _ := hashIdentifier(id, DefaultHashAlgorithm)
	folderHash, _ := hashIdentifier(identifier.Parent(id), DefaultHashAlgorithm)

	mimeType := head.ContentType
	if mimeType == "" {
		mimeType = utils.DetectContentType(id)
	}
	mtime := head.LastModified.Unix()

	return &FileInfo{
		Name:           identifier.Base(id),
		Identifier:     id,
		CTime:          mtime,
		MTime:          mtime,
		MimeType:       mimeType,
		Size:           head.Size,
		IdentifierHash: idHash,
		FolderHash:     folderHash,
		StorageID:      d.opts.StorageID,
	}, nil
}

// FolderInfo returns the metadata of the folder id. It does not check
// that the folder exists.
func (d *Driver) FolderInfo(id string) *FolderInfo {
	id = identifier.Normalize(id)
	if !identifier.IsRoot(id) {
		id = identifier.AsFolder(id)
	}
	return &FolderInfo{
		Identifier: id,
		Name:       identifier.Base(id),
		StorageID:  d.opts.StorageID,
	}
}

// FileExists reports whether the file id exists. Folder identifiers are
// never files.
func (d *Driver) FileExists(ctx context.Context, id string) bool {
	id = identifier.Normalize(id)
	if identifier.IsRoot(id) || identifier.IsFolder(id) {
		return false
	}
	return d.existence.Exists(ctx, id)
}

// FolderExists reports whether the marker of folder id exists. The root
// always exists.
func (d *Driver) FolderExists(ctx context.Context, id string) bool {
	id = identifier.Normalize(id)
	if identifier.IsRoot(id) {
		return true
	}
	return d.existence.Exists(ctx, identifier.AsFolder(id))
}

// FileExistsInFolder reports whether folder contains the file name.
func (d *Driver) FileExistsInFolder(ctx context.Context, name, folder string) bool {
	if name == "" || strings.HasSuffix(name, identifier.Separator) {
		return false
	}
	return d.existence.Exists(ctx, identifier.Join(folder, name))
}

// FolderExistsInFolder reports whether folder contains the folder name.
func (d *Driver) FolderExistsInFolder(ctx context.Context, name, folder string) bool {
	name = strings.Trim(name, identifier.Separator)
	if name == "" {
		return false
	}
	return d.existence.Exists(ctx, identifier.Join(folder, name+identifier.Separator))
}

// IsFolderEmpty reports whether folder holds nothing besides its marker.
func (d *Driver) IsFolderEmpty(ctx context.Context, folder string) (bool, error) {
	has, err := d.lister.HasChildren(ctx, identifier.Key(identifier.AsFolder(folder)))
	if err != nil {
		return false, err
	}
	return !has, nil
}

// IsWithin reports whether candidate is container or lies below it.
func (d *Driver) IsWithin(container, candidate string) bool {
	return identifier.IsWithin(container, candidate)
}

// Permissions returns the read/write summary of id. A folder may be named
// without its trailing separator.
func (d *Driver) Permissions(ctx context.Context, id string) (types.Permissions, error) {
	id = d.resolveObject(ctx, id)
	perms, err := d.permissions.PermissionsOf(ctx, id)
	if err != nil {
		return types.Permissions{}, backendError(err, errors.ErrCodeStorageRead, "Permissions", id)
	}
	return perms, nil
}

// resolveObject maps id to the identifier of the stored object: id itself
// when it is a file, otherwise the folder marker when only that exists.
func (d *Driver) resolveObject(ctx context.Context, id string) string {
	id = identifier.Normalize(id)
	if identifier.IsRoot(id) || identifier.IsFolder(id) || d.existence.Exists(ctx, id) {
		return id
	}
	if folder := identifier.AsFolder(id); d.existence.Exists(ctx, folder) {
		return folder
	}
	return id
}
