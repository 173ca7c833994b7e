package driver

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/objectfs/s3drive/internal/identifier"
	"github.com/objectfs/s3drive/internal/mutation"
	"github.com/objectfs/s3drive/pkg/errors"
	"github.com/objectfs/s3drive/pkg/utils"
)

// AddFile uploads the local file at localPath into targetFolder. newName
// defaults to the local base name. The local file is removed afterwards
// when removeOriginal is set.
func (d *Driver) AddFile(ctx context.Context, localPath, targetFolder, newName string, removeOriginal bool) (string, error) {
	if newName == "" {
		newName = filepath.Base(localPath)
	}
	if err := identifier.ValidateName(newName); err != nil {
		return "", invalidName(newName, err)
	}

	data, err := afero.ReadFile(d.fs, localPath)
	if err != nil {
		code := errors.ErrCodeLocalCopyFailed
		if os.IsNotExist(err) {
			code = errors.ErrCodeFileNotFound
		}
		return "", errors.NewError(code, "cannot read local file").
			WithComponent(component).
			WithOperation("AddFile").
			WithContext("path", localPath).
			WithCause(err)
	}

	id := identifier.Join(targetFolder, newName)
	if err := d.engine.Put(ctx, id, data, utils.DetectContentType(id)); err != nil {
		return "", err
	}
	d.logger.Debug("file added", "identifier", id, "source", localPath, "bytes", len(data))

	if removeOriginal {
		if err := d.fs.Remove(localPath); err != nil {
			return id, errors.NewError(errors.ErrCodeOperationFailed, "uploaded but could not remove local file").
				WithComponent(component).
				WithOperation("AddFile").
				WithContext("path", localPath).
				WithCause(err)
		}
	}
	return id, nil
}

// CreateFile creates an empty file name inside parent.
func (d *Driver) CreateFile(ctx context.Context, name, parent string) (string, error) {
	if err := identifier.ValidateName(name); err != nil {
		return "", invalidName(name, err)
	}
	id := identifier.Join(parent, name)
	if err := d.engine.Put(ctx, id, nil, utils.DetectContentType(id)); err != nil {
		return "", err
	}
	return id, nil
}

// CreateFolder creates the folder name inside parent. Surrounding slashes
// are trimmed from name. With recursive, a name spanning several segments
// gets a marker for every intermediate folder as well.
func (d *Driver) CreateFolder(ctx context.Context, name, parent string, recursive bool) (string, error) {
	name = strings.Trim(name, identifier.Separator)
	if name == "" {
		return "", invalidName(name, errors.NewError(errors.ErrCodeValidationFailed, "name cannot be empty"))
	}
	segments := strings.Split(name, identifier.Separator)
	for _, segment := range segments {
		if err := identifier.ValidateName(segment); err != nil {
			return "", invalidName(name, err)
		}
	}

	folder := identifier.AsFolder(parent)
	if !recursive {
		id := identifier.Join(folder, name+identifier.Separator)
		if err := d.engine.Put(ctx, id, nil, ""); err != nil {
			return "", err
		}
		return id, nil
	}

	for _, segment := range segments {
		folder = identifier.Join(folder, segment+identifier.Separator)
		if err := d.engine.Put(ctx, folder, nil, ""); err != nil {
			return "", err
		}
	}
	return folder, nil
}

// DeleteFile removes the file id.
func (d *Driver) DeleteFile(ctx context.Context, id string) error {
	id = identifier.Normalize(id)
	if err := checkFile(id); err != nil {
		return err
	}
	return d.engine.Delete(ctx, id)
}

// DeleteFolder removes folder. Without recursive only the marker is
// removed.
func (d *Driver) DeleteFolder(ctx context.Context, folder string, recursive bool) error {
	err := d.engine.DeleteFolder(ctx, folder, recursive)
	d.forgetSubtrees(err, folder)
	d.reportCaches()
	if err != nil {
		return err
	}
	d.logger.Info("folder deleted", "identifier", identifier.AsFolder(folder), "recursive", recursive)
	return nil
}

// RenameFile renames the file id within its folder and returns the new
// identifier.
func (d *Driver) RenameFile(ctx context.Context, id, newName string) (string, error) {
	if err := identifier.ValidateName(newName); err != nil {
		return "", invalidName(newName, err)
	}
	id = identifier.Normalize(id)
	target := identifier.Join(identifier.Parent(id), newName)
	if _, err := d.engine.RenameFile(ctx, id, target); err != nil {
		return "", err
	}
	return target, nil
}

// RenameFolder renames folder within its parent and returns the map of
// every identifier that moved.
func (d *Driver) RenameFolder(ctx context.Context, folder, newName string) (mutation.IdentifierMap, error) {
	remap, err := d.engine.RenameFolder(ctx, folder, newName)
	d.forgetSubtrees(err, identifier.Parent(identifier.AsFolder(folder)))
	d.reportRemaps("RenameFolder", remap)
	if err == nil {
		d.logger.Info("folder renamed", "identifier", identifier.AsFolder(folder), "name", newName, "objects", len(remap))
	}
	return remap, err
}

// MoveFileWithinStorage moves the file id into targetFolder as newName.
func (d *Driver) MoveFileWithinStorage(ctx context.Context, id, targetFolder, newName string) (string, error) {
	if err := identifier.ValidateName(newName); err != nil {
		return "", invalidName(newName, err)
	}
	target := identifier.Join(targetFolder, newName)
	if _, err := d.engine.RenameFile(ctx, id, target); err != nil {
		return "", err
	}
	return target, nil
}

// CopyFileWithinStorage copies the file id into targetFolder as name.
func (d *Driver) CopyFileWithinStorage(ctx context.Context, id, targetFolder, name string) (string, error) {
	if err := identifier.ValidateName(name); err != nil {
		return "", invalidName(name, err)
	}
	target := identifier.Join(targetFolder, name)
	if _, err := d.engine.CopyFile(ctx, id, target); err != nil {
		return "", err
	}
	return target, nil
}

// MoveFolderWithinStorage moves src into targetFolder as newName.
func (d *Driver) MoveFolderWithinStorage(ctx context.Context, src, targetFolder, newName string) (mutation.IdentifierMap, error) {
	remap, err := d.engine.MoveFolder(ctx, src, targetFolder, newName)
	d.forgetSubtrees(err, src, targetFolder)
	d.reportRemaps("MoveFolder", remap)
	if err == nil {
		d.logger.Info("folder moved", "from", identifier.AsFolder(src), "into", identifier.AsFolder(targetFolder), "objects", len(remap))
	}
	return remap, err
}

// CopyFolderWithinStorage copies src into targetFolder as newName. The
// returned map pairs every source identifier with its copy.
func (d *Driver) CopyFolderWithinStorage(ctx context.Context, src, targetFolder, newName string) (mutation.IdentifierMap, error) {
	remap, err := d.engine.CopyFolder(ctx, src, targetFolder, newName)
	d.forgetSubtrees(err, targetFolder)
	d.reportRemaps("CopyFolder", remap)
	if err == nil {
		d.logger.Info("folder copied", "from", identifier.AsFolder(src), "into", identifier.AsFolder(targetFolder), "objects", len(remap))
	}
	return remap, err
}

// SetFileContents replaces the content of the file id and returns the
// number of bytes written.
func (d *Driver) SetFileContents(ctx context.Context, id string, contents []byte) (int, error) {
	id = identifier.Normalize(id)
	if err := checkFile(id); err != nil {
		return 0, err
	}
	if err := d.engine.Put(ctx, id, contents, utils.DetectContentType(id)); err != nil {
		return 0, err
	}
	return len(contents), nil
}

// FileContents returns the content of the file id.
func (d *Driver) FileContents(ctx context.Context, id string) ([]byte, error) {
	id = identifier.Normalize(id)
	if err := checkFile(id); err != nil {
		return nil, err
	}
	data, err := d.backend.GetObject(ctx, identifier.Key(id))
	if err != nil {
		return nil, backendError(err, errors.ErrCodeStorageRead, "FileContents", id)
	}
	return data, nil
}

// FileForLocalProcessing copies the file id to a new local scratch file
// and returns its path. Changes to the copy are not written back, whatever
// the value of writable.
func (d *Driver) FileForLocalProcessing(ctx context.Context, id string, writable bool) (string, error) {
	path, err := d.materializer.Materialize(ctx, id)
	if err != nil {
		return "", err
	}
	d.logger.Debug("file materialized", "identifier", identifier.Normalize(id), "path", path, "writable", writable)
	return path, nil
}

// ReplaceFile is not supported.
func (d *Driver) ReplaceFile(ctx context.Context, id, localPath string) error {
	return notImplemented("ReplaceFile")
}

// DumpFileContents is not supported.
func (d *Driver) DumpFileContents(ctx context.Context, id string, w io.Writer) error {
	return notImplemented("DumpFileContents")
}

func notImplemented(operation string) error {
	return errors.NewError(errors.ErrCodeNotImplemented, operation+" is not implemented").
		WithComponent(component).
		WithOperation(operation)
}
