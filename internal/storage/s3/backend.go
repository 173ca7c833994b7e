package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	derrors "github.com/objectfs/s3drive/pkg/errors"
	"github.com/objectfs/s3drive/pkg/types"
	"github.com/objectfs/s3drive/pkg/utils"
)

const component = "s3-backend"

// S3 caps a single ListObjectsV2 page at this many keys.
const maxPageKeys = 1000

var _ types.Backend = (*Backend)(nil)

// Backend implements types.Backend on an S3 bucket.
type Backend struct {
	client s3API
	bucket string
	config *Config
	pool   *ConnectionPool
	upload uploadFunc
	logger *slog.Logger

	// uploadThreshold is the smallest object sent through upload.
	uploadThreshold int

	// Metrics
	mu      sync.RWMutex
	metrics BackendMetrics
}

// BackendMetrics tracks S3 backend performance metrics
type BackendMetrics struct {
	Requests        int64         `json:"requests"`
	Errors          int64         `json:"errors"`
	BytesUploaded   int64         `json:"bytes_uploaded"`
	BytesDownloaded int64         `json:"bytes_downloaded"`
	AverageLatency  time.Duration `json:"average_latency"`
	Fallbacks       int64         `json:"fallbacks"`
	LastError       string        `json:"last_error"`
	LastErrorTime   time.Time     `json:"last_error_time"`
}

// NewBackend creates a new S3 backend instance and verifies that the
// bucket is reachable.
func NewBackend(ctx context.Context, bucket string, cfg *Config) (*Backend, error) {
	if bucket == "" {
		return nil, derrors.NewError(derrors.ErrCodeMissingConfig, "bucket name cannot be empty").
			WithComponent(component)
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, derrors.NewError(derrors.ErrCodeConfigValidation, err.Error()).
			WithComponent(component)
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, derrors.NewError(derrors.ErrCodeConnectionFailed, "cannot create S3 client").
			WithComponent(component).
			WithCause(err)
	}

	logger := slog.Default().With("component", component, "bucket", bucket)
	backend := newBackend(client, bucket, cfg, logger)
	if cfg.EnableCargoShipOptimization {
		backend.upload = newCargoShipUploader(client, bucket, cfg, logger)
	}

	logger.Info("S3 backend configured",
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.ForcePathStyle,
		"storage_tier", cfg.StorageTier,
		"pool_size", cfg.PoolSize)

	if err := backend.HealthCheck(ctx); err != nil {
		return nil, err
	}
	return backend, nil
}

func newBackend(client s3API, bucket string, cfg *Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default().With("component", component, "bucket", bucket)
	}
	return &Backend{
		client: client,
		bucket: bucket,
		config: cfg,
		pool:   NewConnectionPool(cfg.PoolSize),
		logger: logger,

		uploadThreshold: cargoShipThreshold,
	}
}

// HeadObject retrieves metadata about an object
func (b *Backend) HeadObject(ctx context.Context, key string) (*types.ObjectInfo, error) {
	ctx, done, err := b.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	result, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, b.fail(err, "HeadObject", key)
	}

	info := &types.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(result.ContentLength),
		LastModified: aws.ToTime(result.LastModified),
		ETag:         aws.ToString(result.ETag),
		ContentType:  aws.ToString(result.ContentType),
		Metadata:     make(map[string]string, len(result.Metadata)),
	}
	for k, v := range result.Metadata {
		info.Metadata[k] = v
	}
	return info, nil
}

// GetObject retrieves the whole content of an object
func (b *Backend) GetObject(ctx context.Context, key string) ([]byte, error) {
	ctx, done, err := b.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, b.fail(err, "GetObject", key)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, b.fail(fmt.Errorf("failed to read object body: %w", err), "GetObject", key)
	}

	b.mu.Lock()
	b.metrics.BytesDownloaded += int64(len(data))
	b.mu.Unlock()
	return data, nil
}

// PutObject stores data under key. An empty contentType is detected from
// the key extension, except for folder markers which carry none.
func (b *Backend) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, done, err := b.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	marker := strings.HasSuffix(key, "/")
	if contentType == "" && !marker {
		contentType = utils.DetectContentType(key)
	}

	if b.upload != nil && len(data) >= b.uploadThreshold {
		uploadErr := b.upload(ctx, key, data, contentType)
		if uploadErr == nil {
			b.recordUpload(len(data))
			return nil
		}
		b.mu.Lock()
		b.metrics.Fallbacks++
		b.mu.Unlock()
		b.logger.Warn("CargoShip optimization failed, falling back to standard S3", "key", key, "error", uploadErr)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		StorageClass:  storageClassFor(b.config.StorageTier, marker),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return b.fail(err, "PutObject", key)
	}
	b.recordUpload(len(data))
	return nil
}

// DeleteObject removes an object. S3 reports success for missing keys.
func (b *Backend) DeleteObject(ctx context.Context, key string) error {
	ctx, done, err := b.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return b.fail(err, "DeleteObject", key)
	}
	return nil
}

// CopyObject duplicates srcKey under dstKey server side.
func (b *Backend) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	ctx, done, err := b.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	_, err = b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:       aws.String(b.bucket),
		Key:          aws.String(dstKey),
		CopySource:   aws.String(copySource(b.bucket, srcKey)),
		StorageClass: storageClassFor(b.config.StorageTier, strings.HasSuffix(dstKey, "/")),
	})
	if err != nil {
		return b.fail(err, "CopyObject", srcKey)
	}
	return nil
}

// ListObjects lists the keys under input.Prefix, following continuation
// tokens until the listing is exhausted or input.MaxKeys objects have been
// collected.
func (b *Backend) ListObjects(ctx context.Context, input types.ListInput) (*types.ListResult, error) {
	ctx, done, err := b.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	params := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(input.Prefix),
	}
	if input.Delimiter != "" {
		params.Delimiter = aws.String(input.Delimiter)
	}
	if input.MaxKeys > 0 && input.MaxKeys < maxPageKeys {
		params.MaxKeys = aws.Int32(int32(input.MaxKeys))
	}

	result := &types.ListResult{}
	paginator := s3.NewListObjectsV2Paginator(b.client, params)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, b.fail(err, "ListObjects", input.Prefix)
		}
		for _, obj := range page.Contents {
			result.Objects = append(result.Objects, objectInfo(obj))
		}
		for _, cp := range page.CommonPrefixes {
			result.CommonPrefixes = append(result.CommonPrefixes, aws.ToString(cp.Prefix))
		}
		if input.MaxKeys > 0 && len(result.Objects) >= input.MaxKeys {
			result.Objects = result.Objects[:input.MaxKeys]
			break
		}
	}
	return result, nil
}

// ObjectExists reports whether key is stored. A missing object is not an
// error.
func (b *Backend) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := b.HeadObject(ctx, key)
	if err == nil {
		return true, nil
	}
	if derrors.IsCode(err, derrors.ErrCodeObjectNotFound) {
		return false, nil
	}
	return false, err
}

// GetObjectACL returns the grants of key.
func (b *Backend) GetObjectACL(ctx context.Context, key string) ([]types.Grant, error) {
	ctx, done, err := b.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	result, err := b.client.GetObjectAcl(ctx, &s3.GetObjectAclInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, b.fail(err, "GetObjectACL", key)
	}

	grants := make([]types.Grant, 0, len(result.Grants))
	for _, g := range result.Grants {
		grants = append(grants, types.Grant{
			Grantee:    granteeName(g.Grantee),
			Permission: types.Permission(g.Permission),
		})
	}
	return grants, nil
}

// HealthCheck verifies the backend connection
func (b *Backend) HealthCheck(ctx context.Context) error {
	ctx, done, err := b.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)}); err != nil {
		return b.fail(err, "HeadBucket", "")
	}
	return nil
}

// GetMetrics returns current backend metrics
func (b *Backend) GetMetrics() BackendMetrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

// PoolStats returns the request pool statistics.
func (b *Backend) PoolStats() PoolStats {
	return b.pool.Stats()
}

// Close closes the backend and releases resources
func (b *Backend) Close() error {
	return b.pool.Close()
}

// begin takes a request slot and applies the request timeout. The returned
// func releases both and records the request.
func (b *Backend) begin(ctx context.Context) (context.Context, func(), error) {
	if err := b.pool.Acquire(ctx); err != nil {
		return ctx, nil, derrors.NewError(derrors.ErrCodeOperationCanceled, "no request slot available").
			WithComponent(component).
			WithCause(err)
	}

	cancel := func() {}
	if b.config.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, b.config.RequestTimeout)
	}

	start := time.Now()
	return ctx, func() {
		cancel()
		b.pool.Release()
		b.recordLatency(time.Since(start))
	}, nil
}

func (b *Backend) fail(err error, op, key string) error {
	b.mu.Lock()
	b.metrics.Errors++
	b.metrics.LastError = err.Error()
	b.metrics.LastErrorTime = time.Now()
	b.mu.Unlock()
	return b.translateError(err, op, key)
}

func (b *Backend) recordLatency(duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics.Requests++
	// Calculate rolling average latency
	if b.metrics.Requests == 1 {
		b.metrics.AverageLatency = duration
	} else {
		b.metrics.AverageLatency = time.Duration(
			(int64(b.metrics.AverageLatency)*9 + int64(duration)) / 10,
		)
	}
}

func (b *Backend) recordUpload(size int) {
	b.mu.Lock()
	b.metrics.BytesUploaded += int64(size)
	b.mu.Unlock()
}

func objectInfo(obj s3types.Object) types.ObjectInfo {
	return types.ObjectInfo{
		Key:          aws.ToString(obj.Key),
		Size:         aws.ToInt64(obj.Size),
		LastModified: aws.ToTime(obj.LastModified),
		ETag:         aws.ToString(obj.ETag),
		Metadata:     make(map[string]string),
	}
}

func granteeName(g *s3types.Grantee) string {
	if g == nil {
		return ""
	}
	for _, s := range []*string{g.DisplayName, g.ID, g.EmailAddress, g.URI} {
		if v := aws.ToString(s); v != "" {
			return v
		}
	}
	return ""
}

// copySource escapes every segment of key for the x-amz-copy-source header.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}
