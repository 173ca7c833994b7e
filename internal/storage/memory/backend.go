// Package memory provides an in-process implementation of types.Backend.
// It mirrors the listing and error semantics of the S3 backend and supports
// failure injection, which makes it the backend of choice for tests and for
// dry runs of the command line tool.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/objectfs/s3drive/pkg/errors"
	"github.com/objectfs/s3drive/pkg/types"
)

const component = "memory-backend"

var _ types.Backend = (*Backend)(nil)

// Call records one backend invocation.
type Call struct {
	Op  string
	Key string
}

type object struct {
	data         []byte
	contentType  string
	lastModified time.Time
	grants       []types.Grant
}

type failure struct {
	op  string
	key string
	err error
}

// Backend is a thread-safe, map-backed object store.
type Backend struct {
	mu       sync.RWMutex
	objects  map[string]*object
	failures []failure
	calls    []Call
	now      func() time.Time
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{
		objects: make(map[string]*object),
		now:     time.Now,
	}
}

// FailOn makes every subsequent call of op on key fail with err. An empty
// key matches every key.
func (b *Backend) FailOn(op, key string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, failure{op: op, key: key, err: err})
}

// ClearFailures removes every injected failure.
func (b *Backend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = nil
}

// SetGrants replaces the ACL of an existing object.
func (b *Backend) SetGrants(key string, grants []types.Grant) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if obj, ok := b.objects[key]; ok {
		obj.grants = grants
	}
}

// Calls returns the invocations recorded so far.
func (b *Backend) Calls() []Call {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// ResetCalls clears the invocation log.
func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// Keys returns every stored key in lexical order.
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// HeadObject returns the metadata of key.
func (b *Backend) HeadObject(ctx context.Context, key string) (*types.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.enter("HeadObject", key); err != nil {
		return nil, err
	}
	obj, ok := b.objects[key]
	if !ok {
		return nil, notFound("HeadObject", key)
	}
	info := obj.info(key)
	return &info, nil
}

// GetObject returns a copy of the content of key.
func (b *Backend) GetObject(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.enter("GetObject", key); err != nil {
		return nil, err
	}
	obj, ok := b.objects[key]
	if !ok {
		return nil, notFound("GetObject", key)
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, nil
}

// PutObject stores data under key, replacing any previous object.
func (b *Backend) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.enter("PutObject", key); err != nil {
		return err
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	b.objects[key] = &object{
		data:         stored,
		contentType:  contentType,
		lastModified: b.now(),
		grants:       ownerGrants(),
	}
	return nil
}

// DeleteObject removes key. Deleting a missing key succeeds.
func (b *Backend) DeleteObject(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.enter("DeleteObject", key); err != nil {
		return err
	}
	delete(b.objects, key)
	return nil
}

// CopyObject duplicates srcKey under dstKey.
func (b *Backend) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.enter("CopyObject", srcKey); err != nil {
		return err
	}
	src, ok := b.objects[srcKey]
	if !ok {
		return notFound("CopyObject", srcKey)
	}
	data := make([]byte, len(src.data))
	copy(data, src.data)
	b.objects[dstKey] = &object{
		data:         data,
		contentType:  src.contentType,
		lastModified: b.now(),
		grants:       ownerGrants(),
	}
	return nil
}

// ListObjects lists keys under input.Prefix in lexical order, grouping by
// input.Delimiter when set.
func (b *Backend) ListObjects(ctx context.Context, input types.ListInput) (*types.ListResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.enter("ListObjects", input.Prefix); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		if strings.HasPrefix(key, input.Prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	result := &types.ListResult{}
	seen := make(map[string]bool)
	for _, key := range keys {
		if input.Delimiter != "" {
			rest := key[len(input.Prefix):]
			if i := strings.Index(rest, input.Delimiter); i >= 0 {
				common := input.Prefix + rest[:i+len(input.Delimiter)]
				if !seen[common] {
					seen[common] = true
					result.CommonPrefixes = append(result.CommonPrefixes, common)
				}
				continue
			}
		}
		if input.MaxKeys > 0 && len(result.Objects) >= input.MaxKeys {
			break
		}
		result.Objects = append(result.Objects, b.objects[key].info(key))
	}
	return result, nil
}

// ObjectExists reports whether key is stored.
func (b *Backend) ObjectExists(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.enter("ObjectExists", key); err != nil {
		return false, err
	}
	_, ok := b.objects[key]
	return ok, nil
}

// GetObjectACL returns the grants of key.
func (b *Backend) GetObjectACL(ctx context.Context, key string) ([]types.Grant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.enter("GetObjectACL", key); err != nil {
		return nil, err
	}
	obj, ok := b.objects[key]
	if !ok {
		return nil, notFound("GetObjectACL", key)
	}
	grants := make([]types.Grant, len(obj.grants))
	copy(grants, obj.grants)
	return grants, nil
}

// HealthCheck always succeeds unless a failure is injected for it.
func (b *Backend) HealthCheck(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enter("HealthCheck", "")
}

// enter records the call and returns an injected failure, if any. The
// caller must hold b.mu.
func (b *Backend) enter(op, key string) error {
	b.calls = append(b.calls, Call{Op: op, Key: key})
	for _, f := range b.failures {
		if f.op == op && (f.key == "" || f.key == key) {
			return f.err
		}
	}
	return nil
}

func (o *object) info(key string) types.ObjectInfo {
	return types.ObjectInfo{
		Key:          key,
		Size:         int64(len(o.data)),
		LastModified: o.lastModified,
		ContentType:  o.contentType,
		Metadata:     make(map[string]string),
	}
}

func ownerGrants() []types.Grant {
	return []types.Grant{{Grantee: "owner", Permission: types.PermissionFullControl}}
}

func notFound(op, key string) error {
	return errors.NewError(errors.ErrCodeObjectNotFound, "object not found: "+key).
		WithComponent(component).
		WithOperation(op).
		WithContext("key", key)
}
