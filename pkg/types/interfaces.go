package types

import (
	"context"
	"time"
)

// Backend defines the capability set the driver consumes from an object store.
// Keys are flat strings; "/" is only a naming convention.
type Backend interface {
	// Object operations
	HeadObject(ctx context.Context, key string) (*ObjectInfo, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
	CopyObject(ctx context.Context, srcKey, dstKey string) error

	// List operations
	ListObjects(ctx context.Context, input ListInput) (*ListResult, error)

	// Existence and access control
	ObjectExists(ctx context.Context, key string) (bool, error)
	GetObjectACL(ctx context.Context, key string) ([]Grant, error)

	// Health check
	HealthCheck(ctx context.Context) error
}

// CacheRecorder receives cache hit/miss notifications from the driver caches.
type CacheRecorder interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
}

// OperationRecorder receives per-call timing for backend operations.
type OperationRecorder interface {
	RecordOperation(operation string, duration time.Duration, size int64, success bool)
	RecordError(operation string, err error)
}
