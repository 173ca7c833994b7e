package mutation

import (
	"context"
	"strings"

	"github.com/objectfs/s3drive/internal/identifier"
	"github.com/objectfs/s3drive/internal/listing"
	"github.com/objectfs/s3drive/pkg/errors"
)

// RenameFolder gives folder a new name inside its current parent. Child
// folders are renamed depth first and each folder marker is renamed after
// its contents.
func (e *Engine) RenameFolder(ctx context.Context, folder, newName string) (IdentifierMap, error) {
	src, err := folderSource(folder)
	if err != nil {
		return IdentifierMap{}, err
	}
	name, err := folderName(newName)
	if err != nil {
		return IdentifierMap{}, err
	}
	dst := identifier.Key(identifier.Parent(src)) + name + identifier.Separator

	op := e.begin("RenameFolder")
	return op.finish(op.renameTree(ctx, src, dst))
}

func (op *operation) renameTree(ctx context.Context, src, dst string) error {
	children, err := op.engine.lister.ListUnder(ctx, src, false, listing.FilterAll)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.IsFolder() {
			err = op.renameTree(ctx, child.Key, dst+identifier.Base(child.Key)+identifier.Separator)
		} else {
			err = op.rename(ctx, child.Key, dst+identifier.Base(child.Key))
		}
		if err != nil {
			return err
		}
	}
	return op.rename(ctx, src, dst)
}

// MoveFolder moves src into the folder dstParent under newName. The marker
// is moved first; every descendant is then moved from the original listing
// to dst + key[len(src):].
func (e *Engine) MoveFolder(ctx context.Context, src, dstParent, newName string) (IdentifierMap, error) {
	src, dst, err := folderTarget(src, dstParent, newName)
	if err != nil {
		return IdentifierMap{}, err
	}

	op := e.begin("MoveFolder")
	if err := op.rename(ctx, src, dst); err != nil {
		return op.finish(err)
	}
	return op.finish(op.eachDescendant(ctx, src, func(key string) error {
		return op.rename(ctx, key, identifier.Rebase(key, src, dst))
	}))
}

// CopyFolder copies src into the folder dstParent under newName. The
// source subtree is left untouched.
func (e *Engine) CopyFolder(ctx context.Context, src, dstParent, newName string) (IdentifierMap, error) {
	src, dst, err := folderTarget(src, dstParent, newName)
	if err != nil {
		return IdentifierMap{}, err
	}

	op := e.begin("CopyFolder")
	if err := op.copy(ctx, src, dst); err != nil {
		return op.finish(err)
	}
	return op.finish(op.eachDescendant(ctx, src, func(key string) error {
		return op.copy(ctx, key, identifier.Rebase(key, src, dst))
	}))
}

// eachDescendant lists the whole subtree below src once, orders it so that
// folders precede their contents and applies fn to every stored key.
func (op *operation) eachDescendant(ctx context.Context, src string, fn func(key string) error) error {
	entries, err := op.engine.lister.ListUnder(ctx, src, true, listing.FilterAll)
	if err != nil {
		return err
	}
	listing.SortForNestedOperations(entries)
	for _, entry := range entries {
		if entry.Implicit {
			continue
		}
		if err := fn(entry.Key); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFolder removes folder. Without recursive only the marker is
// removed; the caller is expected to have checked that the folder is empty.
func (e *Engine) DeleteFolder(ctx context.Context, folder string, recursive bool) error {
	src, err := folderSource(folder)
	if err != nil {
		return err
	}

	if !recursive {
		return e.Delete(ctx, src)
	}
	op := e.begin("DeleteFolder")
	_, err = op.finish(op.deleteTree(ctx, src))
	return err
}

func (op *operation) deleteTree(ctx context.Context, src string) error {
	children, err := op.engine.lister.ListUnder(ctx, src, false, listing.FilterAll)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.IsFolder() {
			err = op.deleteTree(ctx, child.Key)
		} else {
			err = op.remove(ctx, child.Key)
		}
		if err != nil {
			return err
		}
	}
	return op.remove(ctx, src)
}

func folderSource(folder string) (string, error) {
	src := identifier.AsFolder(folder)
	if identifier.IsRoot(src) {
		return "", errors.NewError(errors.ErrCodePathInvalid, "the root folder cannot be changed").
			WithComponent(component)
	}
	return src, nil
}

func folderName(name string) (string, error) {
	name = strings.Trim(name, identifier.Separator)
	if err := identifier.ValidateName(name); err != nil {
		return "", errors.NewError(errors.ErrCodeValidationFailed, "invalid folder name").
			WithComponent(component).
			WithContext("name", name).
			WithCause(err)
	}
	return name, nil
}

func folderTarget(folder, dstParent, newName string) (string, string, error) {
	src, err := folderSource(folder)
	if err != nil {
		return "", "", err
	}
	name, err := folderName(newName)
	if err != nil {
		return "", "", err
	}
	dst := identifier.Key(identifier.AsFolder(dstParent)) + name + identifier.Separator
	if identifier.IsWithin(src, dst) {
		return "", "", errors.NewError(errors.ErrCodePathInvalid, "cannot place a folder inside itself").
			WithComponent(component).
			WithContext("source", src).
			WithContext("target", dst)
	}
	return src, dst, nil
}
