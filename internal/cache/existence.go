package cache

import (
	"context"
	"log/slog"

	"github.com/objectfs/s3drive/internal/identifier"
	"github.com/objectfs/s3drive/pkg/types"
)

// ExistenceCache memoizes object existence probes for one driver instance.
type ExistenceCache struct {
	memo    *Memo[bool]
	backend types.Backend
	logger  *slog.Logger
}

// NewExistenceCache creates an existence cache probing backend on misses.
func NewExistenceCache(backend types.Backend, recorder types.CacheRecorder, logger *slog.Logger) *ExistenceCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExistenceCache{
		memo:    NewMemo[bool]("existence", recorder),
		backend: backend,
		logger:  logger.With("component", "existence-cache"),
	}
}

// Exists reports whether the object addressed by id exists. Folder
// identifiers must already carry their trailing separator.
func (c *ExistenceCache) Exists(ctx context.Context, id string) bool {
	key := identifier.Key(id)
	if key == "" {
		return true
	}

	if exists, ok := c.memo.Get(key); ok {
		return exists
	}

	exists, err := c.probe(ctx, key)
	if err != nil {
		// The existence contract is boolean only: a failed probe reads as
		// "does not exist" and is left out of the memo so the next call
		// probes again.
		c.logger.Warn("existence probe failed", "key", key, "error", err)
		return false
	}

	c.memo.Put(key, exists)
	return exists
}

// Invalidate forgets the memoized result for id.
func (c *ExistenceCache) Invalidate(id string) {
	c.memo.Invalidate(identifier.Key(id))
}

// InvalidateSubtree forgets every memoized result at or below folder.
func (c *ExistenceCache) InvalidateSubtree(folder string) {
	c.memo.InvalidatePrefix(identifier.Key(identifier.AsFolder(folder)))
}

// Stats returns the cache statistics.
func (c *ExistenceCache) Stats() types.CacheStats {
	return c.memo.Stats()
}

func (c *ExistenceCache) probe(ctx context.Context, key string) (bool, error) {
	return c.backend.ObjectExists(ctx, key)
}
