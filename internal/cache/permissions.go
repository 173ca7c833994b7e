package cache

import (
	"context"
	"log/slog"

	"github.com/objectfs/s3drive/internal/identifier"
	"github.com/objectfs/s3drive/pkg/types"
)

// PermissionCache memoizes the read/write summary derived from object ACLs.
type PermissionCache struct {
	memo    *Memo[types.Permissions]
	backend types.Backend
	logger  *slog.Logger
}

// NewPermissionCache creates a permission cache reading ACLs from backend.
func NewPermissionCache(backend types.Backend, recorder types.CacheRecorder, logger *slog.Logger) *PermissionCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionCache{
		memo:    NewMemo[types.Permissions]("permissions", recorder),
		backend: backend,
		logger:  logger.With("component", "permission-cache"),
	}
}

// PermissionsOf returns the permissions for id. The root is always
// read-write. Any other object is read-write when one of its grants
// confers full control and inaccessible otherwise; finer-grained grants
// are not mapped.
func (c *PermissionCache) PermissionsOf(ctx context.Context, id string) (types.Permissions, error) {
	id = identifier.Normalize(id)
	if identifier.IsRoot(id) {
		return types.Permissions{Read: true, Write: true}, nil
	}

	if perms, ok := c.memo.Get(id); ok {
		return perms, nil
	}

	grants, err := c.backend.GetObjectACL(ctx, identifier.Key(id))
	if err != nil {
		return types.Permissions{}, err
	}

	var perms types.Permissions
	for _, grant := range grants {
		if grant.Permission == types.PermissionFullControl {
			perms = types.Permissions{Read: true, Write: true}
			break
		}
	}

	c.logger.Debug("permissions resolved", "identifier", id, "read", perms.Read, "write", perms.Write)
	c.memo.Put(id, perms)
	return perms, nil
}

// Invalidate forgets the memoized permissions for id.
func (c *PermissionCache) Invalidate(id string) {
	c.memo.Invalidate(identifier.Normalize(id))
}

// InvalidateSubtree forgets every memoized entry at or below folder.
func (c *PermissionCache) InvalidateSubtree(folder string) {
	c.memo.InvalidatePrefix(identifier.Key(identifier.AsFolder(folder)))
}

// Stats returns the cache statistics.
func (c *PermissionCache) Stats() types.CacheStats {
	return c.memo.Stats()
}
