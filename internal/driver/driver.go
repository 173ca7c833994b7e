package driver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/afero"

	"github.com/objectfs/s3drive/internal/cache"
	"github.com/objectfs/s3drive/internal/identifier"
	"github.com/objectfs/s3drive/internal/listing"
	"github.com/objectfs/s3drive/internal/materialize"
	"github.com/objectfs/s3drive/internal/mutation"
	"github.com/objectfs/s3drive/pkg/errors"
	"github.com/objectfs/s3drive/pkg/types"
)

const component = "driver"

// Options is the host configuration of one storage.
type Options struct {
	// StorageID tags the metadata returned by the driver.
	StorageID string `yaml:"storage_id"`

	Bucket string `yaml:"bucket"`

	// Protocol prefixes public URLs: "auto", "https" or "http".
	Protocol string `yaml:"protocol"`

	// PublicBaseURL replaces the default <bucket>.s3.amazonaws.com host.
	PublicBaseURL string `yaml:"public_base_url"`

	// ProcessingFolder is hidden from root folder listings.
	ProcessingFolder string `yaml:"processing_folder"`

	// ScratchDir receives files materialized for local processing.
	ScratchDir string `yaml:"scratch_dir"`

	// Capabilities defaults to browsable, public and writable.
	Capabilities Capabilities `yaml:"-"`
}

// CacheStatsRecorder receives cache sizes after each mutation.
type CacheStatsRecorder interface {
	UpdateCacheEntries(cache string, entries int64)
}

// RemapRecorder counts identifiers changed by structural operations.
type RemapRecorder interface {
	RecordRemaps(operation string, count int)
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the parent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithFs sets the local filesystem used for uploads and scratch files.
func WithFs(fs afero.Fs) Option {
	return func(d *Driver) { d.fs = fs }
}

// WithMetrics wires a recorder that implements any of types.CacheRecorder,
// CacheStatsRecorder and RemapRecorder.
func WithMetrics(recorder interface{}) Option {
	return func(d *Driver) {
		if r, ok := recorder.(types.CacheRecorder); ok {
			d.cacheRecorder = r
		}
		if r, ok := recorder.(CacheStatsRecorder); ok {
			d.statsRecorder = r
		}
		if r, ok := recorder.(RemapRecorder); ok {
			d.remapRecorder = r
		}
	}
}

// Driver exposes a hierarchical filesystem over a flat object store.
type Driver struct {
	opts    Options
	backend types.Backend
	fs      afero.Fs
	logger  *slog.Logger

	existence    *cache.ExistenceCache
	permissions  *cache.PermissionCache
	lister       *listing.Lister
	engine       *mutation.Engine
	materializer *materialize.Materializer

	cacheRecorder types.CacheRecorder
	statsRecorder CacheStatsRecorder
	remapRecorder RemapRecorder

	baseURL      string
	capabilities Capabilities
}

// New creates a driver over backend. Initialize must be called before the
// driver is used.
func New(backend types.Backend, opts Options, options ...Option) *Driver {
	d := &Driver{
		opts:    opts,
		backend: backend,
	}
	for _, option := range options {
		option(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.fs == nil {
		d.fs = afero.NewOsFs()
	}
	if d.opts.ProcessingFolder == "" {
		d.opts.ProcessingFolder = listing.DefaultProcessingFolder
	}
	if d.opts.Capabilities == 0 {
		d.opts.Capabilities = DefaultCapabilities
	}

	logger := d.logger
	d.logger = logger.With("component", component, "storage", d.opts.StorageID)
	d.existence = cache.NewExistenceCache(backend, d.cacheRecorder, logger)
	d.permissions = cache.NewPermissionCache(backend, d.cacheRecorder, logger)
	d.lister = listing.NewLister(backend, logger)
	d.engine = mutation.NewEngine(backend, d.lister, logger)
	d.materializer = materialize.New(backend, d.fs, d.opts.ScratchDir, logger)

	d.engine.OnChange(d.invalidate)
	return d
}

// Initialize validates the options and resolves the public base URL and
// the capability set.
func (d *Driver) Initialize(ctx context.Context) error {
	protocol, err := resolveProtocol(d.opts.Protocol)
	if err != nil {
		return err
	}

	host := strings.TrimRight(d.opts.PublicBaseURL, "/")
	if host == "" {
		if d.opts.Bucket == "" {
			return errors.NewError(errors.ErrCodeMissingConfig, "bucket or public base URL is required").
				WithComponent(component).
				WithOperation("Initialize")
		}
		host = d.opts.Bucket + ".s3.amazonaws.com"
	}

	d.baseURL = protocol + host
	d.capabilities = d.opts.Capabilities

	d.logger.Info("driver initialized",
		"bucket", d.opts.Bucket,
		"base_url", d.baseURL,
		"capabilities", d.capabilities.String(),
		"processing_folder", d.opts.ProcessingFolder)
	return nil
}

// HealthCheck probes the backend.
func (d *Driver) HealthCheck(ctx context.Context) error {
	return d.backend.HealthCheck(ctx)
}

// CacheStats returns the statistics of the driver caches.
func (d *Driver) CacheStats() map[string]types.CacheStats {
	return map[string]types.CacheStats{
		"existence":   d.existence.Stats(),
		"permissions": d.permissions.Stats(),
	}
}

// invalidate is the mutation change hook.
func (d *Driver) invalidate(id string) {
	d.existence.Invalidate(id)
	d.permissions.Invalidate(id)
}

// forgetSubtrees drops every cached answer below folders after a
// structural operation stopped partway. A failed step may still have been
// applied by the store, so no memoized answer there can be trusted.
func (d *Driver) forgetSubtrees(err error, folders ...string) {
	if !errors.IsCode(err, errors.ErrCodeOperationPartial) {
		return
	}
	for _, folder := range folders {
		d.existence.InvalidateSubtree(folder)
		d.permissions.InvalidateSubtree(folder)
	}
	d.logger.Debug("cached answers dropped after partial failure", "folders", folders)
}

func (d *Driver) reportCaches() {
	if d.statsRecorder == nil {
		return
	}
	for name, stats := range d.CacheStats() {
		d.statsRecorder.UpdateCacheEntries(name, stats.Size)
	}
}

func (d *Driver) reportRemaps(operation string, remap mutation.IdentifierMap) {
	d.reportCaches()
	if d.remapRecorder != nil {
		d.remapRecorder.RecordRemaps(operation, len(remap))
	}
}

func resolveProtocol(protocol string) (string, error) {
	switch strings.ToLower(strings.TrimSuffix(protocol, "://")) {
	case "", "auto", "https":
		return "https://", nil
	case "http":
		return "http://", nil
	default:
		return "", errors.NewError(errors.ErrCodeInvalidConfig, "unsupported protocol: "+protocol).
			WithComponent(component).
			WithOperation("Initialize")
	}
}

func backendError(err error, code errors.ErrorCode, operation, id string) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.NewError(code, operation+" failed").
		WithComponent(component).
		WithOperation(operation).
		WithContext("identifier", id).
		WithCause(err)
}

func invalidName(name string, cause error) error {
	return errors.NewError(errors.ErrCodeValidationFailed, "invalid name").
		WithComponent(component).
		WithContext("name", name).
		WithCause(cause)
}

func notAFile(id string) error {
	return errors.NewError(errors.ErrCodePathInvalid, "not a file identifier: "+id).
		WithComponent(component)
}

func checkFile(id string) error {
	if identifier.IsRoot(id) || identifier.IsFolder(id) {
		return notAFile(id)
	}
	return nil
}
