package mutation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/s3drive/internal/listing"
	"github.com/objectfs/s3drive/internal/storage/memory"
	"github.com/objectfs/s3drive/pkg/errors"
)

type changeLog struct {
	mu  sync.Mutex
	ids []string
}

func (c *changeLog) record(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
}

func newTestEngine(t *testing.T, keys ...string) (*Engine, *memory.Backend, *changeLog) {
	t.Helper()
	backend := memory.New()
	for _, key := range keys {
		var data []byte
		if key[len(key)-1] != '/' {
			data = []byte("content of " + key)
		}
		require.NoError(t, backend.PutObject(context.Background(), key, data, ""))
	}
	backend.ResetCalls()

	engine := NewEngine(backend, listing.NewLister(backend, nil), nil)
	changes := &changeLog{}
	engine.OnChange(changes.record)
	return engine, backend, changes
}

func sortedKeys(m IdentifierMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestEngine_PutAndDelete(t *testing.T) {
	ctx := context.Background()
	engine, backend, changes := newTestEngine(t)

	require.NoError(t, engine.Put(ctx, "/notes.txt", []byte("hi"), "text/plain"))
	data, err := backend.GetObject(ctx, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)

	require.NoError(t, engine.Delete(ctx, "notes.txt"))
	assert.Empty(t, backend.Keys())
	assert.Equal(t, []string{"notes.txt", "notes.txt"}, changes.ids)
}

func TestEngine_PutFailure(t *testing.T) {
	engine, backend, changes := newTestEngine(t)
	backend.FailOn("PutObject", "", fmt.Errorf("disk full"))

	err := engine.Put(context.Background(), "a.txt", nil, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorageWrite))
	assert.Empty(t, changes.ids)
}

func TestEngine_RenameFile(t *testing.T) {
	ctx := context.Background()
	engine, backend, _ := newTestEngine(t, "docs/a.txt")

	remap, err := engine.RenameFile(ctx, "docs/a.txt", "docs/b.txt")
	require.NoError(t, err)
	assert.Equal(t, IdentifierMap{"docs/a.txt": "docs/b.txt"}, remap)
	assert.Equal(t, []string{"docs/b.txt"}, backend.Keys())

	data, err := backend.GetObject(ctx, "docs/b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("content of docs/a.txt"), data)
}

func TestEngine_RenameFileOntoItself(t *testing.T) {
	ctx := context.Background()
	engine, backend, _ := newTestEngine(t, "a.txt")

	remap, err := engine.RenameFile(ctx, "a.txt", "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, IdentifierMap{"a.txt": "a.txt"}, remap)
	assert.Equal(t, []string{"a.txt"}, backend.Keys())
	assert.Empty(t, backend.Calls())
}

func TestEngine_RenameFileFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("copy fails", func(t *testing.T) {
		engine, backend, _ := newTestEngine(t, "a.txt")
		backend.FailOn("CopyObject", "a.txt", fmt.Errorf("throttled"))

		remap, err := engine.RenameFile(ctx, "a.txt", "b.txt")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeOperationPartial))
		assert.Empty(t, remap)
		assert.Equal(t, []string{"a.txt"}, backend.Keys())
	})

	t.Run("delete fails", func(t *testing.T) {
		engine, backend, _ := newTestEngine(t, "a.txt")
		backend.FailOn("DeleteObject", "a.txt", fmt.Errorf("throttled"))

		remap, err := engine.RenameFile(ctx, "a.txt", "b.txt")
		require.Error(t, err)
		assert.Empty(t, remap, "a pair is recorded only when both steps complete")
		assert.Equal(t, []string{"a.txt", "b.txt"}, backend.Keys())
	})

	t.Run("folder identifiers rejected", func(t *testing.T) {
		engine, _, _ := newTestEngine(t)
		_, err := engine.RenameFile(ctx, "docs/", "b.txt")
		assert.True(t, errors.IsCode(err, errors.ErrCodePathInvalid))
		_, err = engine.CopyFile(ctx, "a.txt", "/")
		assert.True(t, errors.IsCode(err, errors.ErrCodePathInvalid))
	})
}

func TestEngine_CopyFile(t *testing.T) {
	ctx := context.Background()
	engine, backend, changes := newTestEngine(t, "a.txt")

	remap, err := engine.CopyFile(ctx, "a.txt", "backup/a.txt")
	require.NoError(t, err)
	assert.Equal(t, IdentifierMap{"a.txt": "backup/a.txt"}, remap)
	assert.Equal(t, []string{"a.txt", "backup/a.txt"}, backend.Keys())
	assert.Equal(t, []string{"backup/a.txt"}, changes.ids)
}

func TestEngine_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine, backend, _ := newTestEngine(t, "a.txt")

	_, err := engine.RenameFile(ctx, "a.txt", "b.txt")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeOperationCanceled))
	assert.Equal(t, []string{"a.txt"}, backend.Keys())
}
