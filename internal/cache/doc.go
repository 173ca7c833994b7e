/*
Package cache provides the per-instance memoization used by the storage driver.

Two caches sit in front of the object store:

	┌─────────────────────────────────────────────┐
	│               Driver facade                 │
	│   (fileExists, folderExists, permissions)   │
	└─────────────────────────────────────────────┘
	            │                      │
	┌──────────────────────┐ ┌──────────────────────┐
	│   ExistenceCache     │ │   PermissionCache    │  ← This Package
	│   key -> bool        │ │   id -> {r, w}       │
	└──────────────────────┘ └──────────────────────┘
	            │                      │
	┌─────────────────────────────────────────────┐
	│           types.Backend (S3, memory)        │
	└─────────────────────────────────────────────┘

Both caches are built on Memo, an unbounded map guarded by a RWMutex. Entries
do not expire; the driver invalidates them through the mutation change hook
whenever an identifier is written, renamed, copied or deleted.

# Existence

ExistenceCache.Exists never returns an error. A probe that fails is logged at
warn level, reported as "does not exist", and not memoized, so a transient
backend failure cannot poison later lookups.

# Permissions

PermissionCache maps object ACL grants to a read/write pair. The root is
always read-write. Any grant with FULL_CONTROL yields read-write; every other
grant combination yields no access. ACL read failures propagate to the caller
and are not memoized.

# Statistics

Each cache keeps hit, miss and size counters (types.CacheStats) and forwards
hits and misses to an optional types.CacheRecorder, which the metrics package
implements.
*/
package cache
