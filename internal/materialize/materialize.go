// Package materialize copies remote objects into local scratch files for
// callers that need a real file on disk. Copies are snapshots: nothing is
// written back and scratch files are owned by the caller.
package materialize

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path"

	"github.com/spf13/afero"

	"github.com/objectfs/s3drive/internal/identifier"
	"github.com/objectfs/s3drive/pkg/errors"
	"github.com/objectfs/s3drive/pkg/types"
)

const component = "materializer"

// Materializer writes object contents into a scratch directory.
type Materializer struct {
	backend types.Backend
	fs      afero.Fs
	dir     string
	logger  *slog.Logger
}

// New creates a materializer writing to dir on fs. An empty dir uses the
// OS temporary directory.
func New(backend types.Backend, fs afero.Fs, dir string, logger *slog.Logger) *Materializer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		backend: backend,
		fs:      fs,
		dir:     dir,
		logger:  logger.With("component", component),
	}
}

// Materialize copies the object addressed by id into a new scratch file
// and returns its path. The file keeps the extension of the object.
func (m *Materializer) Materialize(ctx context.Context, id string) (string, error) {
	id = identifier.Normalize(id)
	if identifier.IsFolder(id) || identifier.IsRoot(id) {
		return "", errors.NewError(errors.ErrCodePathInvalid, "only files can be materialized").
			WithComponent(component).
			WithContext("identifier", id)
	}

	data, err := m.backend.GetObject(ctx, identifier.Key(id))
	if err != nil {
		return "", localCopyError(id, err)
	}

	if err := m.fs.MkdirAll(m.dir, 0o755); err != nil {
		return "", localCopyError(id, err)
	}
	f, err := afero.TempFile(m.fs, m.dir, "s3drive-*"+path.Ext(id))
	if err != nil {
		return "", localCopyError(id, err)
	}

	written, err := io.Copy(f, bytes.NewReader(data))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = m.fs.Remove(f.Name())
		return "", localCopyError(id, err)
	}

	m.logger.Debug("materialized object", "identifier", id, "path", f.Name(), "bytes", written)
	return f.Name(), nil
}

func localCopyError(id string, err error) error {
	return errors.NewError(errors.ErrCodeLocalCopyFailed, "copying "+id+" to a local file failed").
		WithComponent(component).
		WithOperation("Materialize").
		WithContext("identifier", id).
		WithCause(err)
}
