// Package mutation performs structural writes on the emulated hierarchy.
//
// The object store has no rename and no directories, so every structural
// change is a sequence of single-object steps. A rename stages the object
// under its new key and then removes the old key; folder operations apply
// that pair to every object of a subtree in a fixed order. Nothing is
// retried or rolled back: when a step fails, the returned IdentifierMap
// lists exactly the pairs that completed.
package mutation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/objectfs/s3drive/internal/identifier"
	"github.com/objectfs/s3drive/internal/listing"
	"github.com/objectfs/s3drive/pkg/errors"
	"github.com/objectfs/s3drive/pkg/types"
)

const component = "mutation-engine"

// IdentifierMap maps old identifiers to new ones for one structural call.
type IdentifierMap map[string]string

// ChangeFunc is called with every identifier written or removed.
type ChangeFunc func(id string)

// Engine runs rename, move, copy and delete operations against a backend.
type Engine struct {
	backend types.Backend
	lister  *listing.Lister
	logger  *slog.Logger

	mu       sync.RWMutex
	onChange []ChangeFunc
}

// NewEngine creates an engine. lister must enumerate the same backend.
func NewEngine(backend types.Backend, lister *listing.Lister, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		backend: backend,
		lister:  lister,
		logger:  logger.With("component", component),
	}
}

// OnChange registers fn to be called after every completed write or remove.
func (e *Engine) OnChange(fn ChangeFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = append(e.onChange, fn)
}

func (e *Engine) notify(id string) {
	e.mu.RLock()
	hooks := e.onChange
	e.mu.RUnlock()
	for _, fn := range hooks {
		fn(id)
	}
}

// Put writes data under id.
func (e *Engine) Put(ctx context.Context, id string, data []byte, contentType string) error {
	id = identifier.Normalize(id)
	if err := e.backend.PutObject(ctx, identifier.Key(id), data, contentType); err != nil {
		return stepError(err, "PutObject", id)
	}
	e.notify(id)
	return nil
}

// Delete removes the single object stored under id.
func (e *Engine) Delete(ctx context.Context, id string) error {
	id = identifier.Normalize(id)
	if err := e.backend.DeleteObject(ctx, identifier.Key(id)); err != nil {
		return stepError(err, "DeleteObject", id)
	}
	e.notify(id)
	return nil
}

// operation is the state of one top-level structural call.
type operation struct {
	engine *Engine
	name   string
	remap  IdentifierMap
	done   int
}

func (e *Engine) begin(name string) *operation {
	return &operation{engine: e, name: name, remap: make(IdentifierMap)}
}

// finish wraps a failed step as a partial failure. The map is returned in
// both cases.
func (op *operation) finish(err error) (IdentifierMap, error) {
	if err == nil {
		op.engine.logger.Debug("operation completed", "operation", op.name, "objects", op.done)
		return op.remap, nil
	}
	op.engine.logger.Warn("operation failed partway",
		"operation", op.name,
		"completed", op.done,
		"error", err)
	return op.remap, errors.NewError(errors.ErrCodeOperationPartial, op.name+" did not complete").
		WithComponent(component).
		WithOperation(op.name).
		WithDetail("completed", op.done).
		WithCause(err)
}

// stage writes the new state at dst: folder markers are written fresh,
// which also covers folders that exist only implicitly, while files are
// copied server side.
func (op *operation) stage(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return canceled(err, src)
	}
	if identifier.IsFolder(src) {
		if err := op.engine.backend.PutObject(ctx, identifier.Key(dst), nil, ""); err != nil {
			return stepError(err, "PutObject", dst)
		}
	} else {
		if err := op.engine.backend.CopyObject(ctx, identifier.Key(src), identifier.Key(dst)); err != nil {
			return stepError(err, "CopyObject", src)
		}
	}
	op.engine.notify(dst)
	return nil
}

// remove deletes the old state at id.
func (op *operation) remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return canceled(err, id)
	}
	if err := op.engine.backend.DeleteObject(ctx, identifier.Key(id)); err != nil {
		return stepError(err, "DeleteObject", id)
	}
	op.engine.notify(id)
	op.done++
	return nil
}

// rename stages src at dst and removes src. The pair is recorded only
// when both steps succeeded.
func (op *operation) rename(ctx context.Context, src, dst string) error {
	if src == dst {
		op.remap[src] = dst
		return nil
	}
	op.engine.logger.Debug("rename object", "from", src, "to", dst)
	if err := op.stage(ctx, src, dst); err != nil {
		return err
	}
	if err := op.remove(ctx, src); err != nil {
		return err
	}
	op.remap[src] = dst
	return nil
}

// copy stages src at dst and records the pair.
func (op *operation) copy(ctx context.Context, src, dst string) error {
	if src == dst {
		op.remap[src] = dst
		return nil
	}
	op.engine.logger.Debug("copy object", "from", src, "to", dst)
	if err := op.stage(ctx, src, dst); err != nil {
		return err
	}
	op.done++
	op.remap[src] = dst
	return nil
}

// RenameFile moves the file src to dst.
func (e *Engine) RenameFile(ctx context.Context, src, dst string) (IdentifierMap, error) {
	src, dst = identifier.Normalize(src), identifier.Normalize(dst)
	if err := validateFileTarget(src, dst); err != nil {
		return IdentifierMap{}, err
	}
	op := e.begin("RenameFile")
	return op.finish(op.rename(ctx, src, dst))
}

// CopyFile copies the file src to dst.
func (e *Engine) CopyFile(ctx context.Context, src, dst string) (IdentifierMap, error) {
	src, dst = identifier.Normalize(src), identifier.Normalize(dst)
	if err := validateFileTarget(src, dst); err != nil {
		return IdentifierMap{}, err
	}
	op := e.begin("CopyFile")
	return op.finish(op.copy(ctx, src, dst))
}

func validateFileTarget(src, dst string) error {
	if identifier.IsFolder(src) || identifier.IsRoot(src) {
		return errors.NewError(errors.ErrCodePathInvalid, "not a file identifier: "+src).
			WithComponent(component)
	}
	if identifier.IsFolder(dst) || identifier.IsRoot(dst) {
		return errors.NewError(errors.ErrCodePathInvalid, "not a file identifier: "+dst).
			WithComponent(component)
	}
	return nil
}

func stepError(err error, op, id string) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	code := errors.ErrCodeStorageWrite
	if op == "GetObject" || op == "ListObjects" {
		code = errors.ErrCodeStorageRead
	}
	return errors.NewError(code, op+" failed").
		WithComponent(component).
		WithOperation(op).
		WithContext("identifier", id).
		WithCause(err)
}

func canceled(err error, id string) error {
	return errors.NewError(errors.ErrCodeOperationCanceled, "operation canceled").
		WithComponent(component).
		WithContext("identifier", id).
		WithCause(err)
}
