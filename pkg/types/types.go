package types

import (
	"time"
)

// ObjectInfo represents metadata about an object
type ObjectInfo struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"last_modified"`
	ETag         string            `json:"etag"`
	ContentType  string            `json:"content_type"`
	Metadata     map[string]string `json:"metadata"`
}

// ListInput selects the objects returned by Backend.ListObjects.
type ListInput struct {
	Prefix string `json:"prefix"`

	// Delimiter groups keys sharing the prefix up to the next delimiter
	// into CommonPrefixes instead of returning them as objects.
	Delimiter string `json:"delimiter"`

	// MaxKeys bounds the number of objects returned; 0 lists everything.
	MaxKeys int `json:"max_keys"`
}

// ListResult is the outcome of a prefix listing, ordered by key.
type ListResult struct {
	Objects        []ObjectInfo `json:"objects"`
	CommonPrefixes []string     `json:"common_prefixes"`
}

// Permission names an access-control permission on an object.
type Permission string

const (
	PermissionFullControl Permission = "FULL_CONTROL"
	PermissionRead        Permission = "READ"
	PermissionWrite       Permission = "WRITE"
	PermissionReadACP     Permission = "READ_ACP"
	PermissionWriteACP    Permission = "WRITE_ACP"
)

// Grant is one access-control grant on an object.
type Grant struct {
	Grantee    string     `json:"grantee"`
	Permission Permission `json:"permission"`
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Size    int64   `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// Permissions is the read/write summary the driver reports for an identifier.
type Permissions struct {
	Read  bool `json:"r"`
	Write bool `json:"w"`
}
