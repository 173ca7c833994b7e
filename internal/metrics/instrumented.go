package metrics

import (
	"context"
	"time"

	"github.com/objectfs/s3drive/pkg/types"
)

// InstrumentedBackend records the timing and outcome of every call made
// to the wrapped backend.
type InstrumentedBackend struct {
	next     types.Backend
	recorder types.OperationRecorder
}

// Instrument wraps backend. A nil recorder returns backend unchanged.
func Instrument(backend types.Backend, recorder types.OperationRecorder) types.Backend {
	if recorder == nil {
		return backend
	}
	return &InstrumentedBackend{next: backend, recorder: recorder}
}

func (b *InstrumentedBackend) observe(operation string, start time.Time, size int64, err error) {
	b.recorder.RecordOperation(operation, time.Since(start), size, err == nil)
	if err != nil {
		b.recorder.RecordError(operation, err)
	}
}

// HeadObject records the metadata lookup of key.
func (b *InstrumentedBackend) HeadObject(ctx context.Context, key string) (*types.ObjectInfo, error) {
	start := time.Now()
	info, err := b.next.HeadObject(ctx, key)
	b.observe("head_object", start, 0, err)
	return info, err
}

// GetObject records the read of key.
func (b *InstrumentedBackend) GetObject(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := b.next.GetObject(ctx, key)
	b.observe("get_object", start, int64(len(data)), err)
	return data, err
}

// PutObject records the write of key.
func (b *InstrumentedBackend) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	start := time.Now()
	err := b.next.PutObject(ctx, key, data, contentType)
	b.observe("put_object", start, int64(len(data)), err)
	return err
}

// DeleteObject records the removal of key.
func (b *InstrumentedBackend) DeleteObject(ctx context.Context, key string) error {
	start := time.Now()
	err := b.next.DeleteObject(ctx, key)
	b.observe("delete_object", start, 0, err)
	return err
}

// CopyObject records the server-side copy of srcKey to dstKey.
func (b *InstrumentedBackend) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	start := time.Now()
	err := b.next.CopyObject(ctx, srcKey, dstKey)
	b.observe("copy_object", start, 0, err)
	return err
}

// ListObjects records one listing.
func (b *InstrumentedBackend) ListObjects(ctx context.Context, input types.ListInput) (*types.ListResult, error) {
	start := time.Now()
	result, err := b.next.ListObjects(ctx, input)
	b.observe("list_objects", start, 0, err)
	return result, err
}

// ObjectExists records the existence probe of key.
func (b *InstrumentedBackend) ObjectExists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	exists, err := b.next.ObjectExists(ctx, key)
	b.observe("object_exists", start, 0, err)
	return exists, err
}

// GetObjectACL records the ACL lookup of key.
func (b *InstrumentedBackend) GetObjectACL(ctx context.Context, key string) ([]types.Grant, error) {
	start := time.Now()
	grants, err := b.next.GetObjectACL(ctx, key)
	b.observe("get_object_acl", start, 0, err)
	return grants, err
}

// HealthCheck records the health probe.
func (b *InstrumentedBackend) HealthCheck(ctx context.Context) error {
	start := time.Now()
	err := b.next.HealthCheck(ctx)
	b.observe("health_check", start, 0, err)
	return err
}
