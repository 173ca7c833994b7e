package circuit

import (
	"context"

	"github.com/objectfs/s3drive/pkg/types"
)

// GuardedBackend routes every call of a backend through a breaker.
type GuardedBackend struct {
	backend types.Backend
	breaker *CircuitBreaker
}

var _ types.Backend = (*GuardedBackend)(nil)

// Guard wraps backend with breaker. A nil breaker returns backend as is.
func Guard(backend types.Backend, breaker *CircuitBreaker) types.Backend {
	if breaker == nil {
		return backend
	}
	return &GuardedBackend{backend: backend, breaker: breaker}
}

// HeadObject fetches the metadata of key through the breaker.
func (g *GuardedBackend) HeadObject(ctx context.Context, key string) (info *types.ObjectInfo, err error) {
	err = g.breaker.Execute("HeadObject", func() error {
		info, err = g.backend.HeadObject(ctx, key)
		return err
	})
	return info, err
}

// GetObject reads key through the breaker.
func (g *GuardedBackend) GetObject(ctx context.Context, key string) (data []byte, err error) {
	err = g.breaker.Execute("GetObject", func() error {
		data, err = g.backend.GetObject(ctx, key)
		return err
	})
	return data, err
}

// PutObject writes key through the breaker.
func (g *GuardedBackend) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	return g.breaker.Execute("PutObject", func() error {
		return g.backend.PutObject(ctx, key, data, contentType)
	})
}

// DeleteObject removes key through the breaker.
func (g *GuardedBackend) DeleteObject(ctx context.Context, key string) error {
	return g.breaker.Execute("DeleteObject", func() error {
		return g.backend.DeleteObject(ctx, key)
	})
}

// CopyObject copies srcKey to dstKey through the breaker.
func (g *GuardedBackend) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	return g.breaker.Execute("CopyObject", func() error {
		return g.backend.CopyObject(ctx, srcKey, dstKey)
	})
}

// ListObjects lists input.Prefix through the breaker.
func (g *GuardedBackend) ListObjects(ctx context.Context, input types.ListInput) (result *types.ListResult, err error) {
	err = g.breaker.Execute("ListObjects", func() error {
		result, err = g.backend.ListObjects(ctx, input)
		return err
	})
	return result, err
}

// ObjectExists probes key through the breaker.
func (g *GuardedBackend) ObjectExists(ctx context.Context, key string) (exists bool, err error) {
	err = g.breaker.Execute("ObjectExists", func() error {
		exists, err = g.backend.ObjectExists(ctx, key)
		return err
	})
	return exists, err
}

// GetObjectACL reads the grants of key through the breaker.
func (g *GuardedBackend) GetObjectACL(ctx context.Context, key string) (grants []types.Grant, err error) {
	err = g.breaker.Execute("GetObjectACL", func() error {
		grants, err = g.backend.GetObjectACL(ctx, key)
		return err
	})
	return grants, err
}

// HealthCheck bypasses the breaker so an operator can probe a store the
// breaker has given up on; a success closes the breaker.
func (g *GuardedBackend) HealthCheck(ctx context.Context) error {
	err := g.backend.HealthCheck(ctx)
	if err == nil {
		g.breaker.Reset()
	}
	return err
}
