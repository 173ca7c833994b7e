package driver

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"net/url"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/objectfs/s3drive/internal/identifier"
	"github.com/objectfs/s3drive/pkg/errors"
)

// Capabilities is a bit set of storage capabilities.
type Capabilities int

const (
	CapabilityBrowsable Capabilities = 1 << iota
	CapabilityPublic
	CapabilityWritable
)

// DefaultCapabilities is what the driver offers before narrowing.
const DefaultCapabilities = CapabilityBrowsable | CapabilityPublic | CapabilityWritable

var capabilityNames = []struct {
	flag Capabilities
	name string
}{
	{CapabilityBrowsable, "browsable"},
	{CapabilityPublic, "public"},
	{CapabilityWritable, "writable"},
}

// Has reports whether every flag of other is set.
func (c Capabilities) Has(other Capabilities) bool {
	return c&other == other
}

func (c Capabilities) String() string {
	var names []string
	for _, cn := range capabilityNames {
		if c.Has(cn.flag) {
			names = append(names, cn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseCapabilities builds a capability set from names.
func ParseCapabilities(names []string) (Capabilities, error) {
	var c Capabilities
	for _, name := range names {
		found := false
		for _, cn := range capabilityNames {
			if strings.EqualFold(strings.TrimSpace(name), cn.name) {
				c |= cn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, errors.NewError(errors.ErrCodeInvalidConfig, "unknown capability: "+name).
				WithComponent(component)
		}
	}
	return c, nil
}

// Capabilities returns the current capability set.
func (d *Driver) Capabilities() Capabilities {
	return d.capabilities
}

// MergeCapabilities narrows the capability set to mask and returns it.
func (d *Driver) MergeCapabilities(mask Capabilities) Capabilities {
	d.capabilities &= mask
	return d.capabilities
}

// PublicURL returns the public URL of id.
func (d *Driver) PublicURL(id string) string {
	id = identifier.Normalize(id)
	if identifier.IsRoot(id) {
		return d.baseURL + "/"
	}
	segments := strings.Split(id, identifier.Separator)
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return d.baseURL + "/" + strings.Join(segments, identifier.Separator)
}

// DefaultFolder is the folder new files go to.
func (d *Driver) DefaultFolder() string {
	return d.RootLevelFolder()
}

// RootLevelFolder is the identifier of the storage root.
func (d *Driver) RootLevelFolder() string {
	return identifier.Root
}

// DefaultHashAlgorithm is used when Hash is called without an algorithm.
const DefaultHashAlgorithm = "sha1"

var hashAlgorithms = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"md5":    md5.New,
	"sha256": sha256.New,
	"blake3": func() hash.Hash { return blake3.New() },
}

// HashAlgorithms lists the supported algorithm names.
func HashAlgorithms() []string {
	names := make([]string, 0, len(hashAlgorithms))
	for name := range hashAlgorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hash hashes the normalized identifier, not the object content.
func (d *Driver) Hash(id, algorithm string) (string, error) {
	return hashIdentifier(id, algorithm)
}

func hashIdentifier(id, algorithm string) (string, error) {
	if algorithm == "" {
		algorithm = DefaultHashAlgorithm
	}
	newHash, ok := hashAlgorithms[strings.ToLower(algorithm)]
	if !ok {
		return "", errors.NewError(errors.ErrCodeValidationFailed, "unsupported hash algorithm: "+algorithm).
			WithComponent(component).
			WithOperation("Hash")
	}
	h := newHash()
	h.Write([]byte(identifier.Normalize(id)))
	return hex.EncodeToString(h.Sum(nil)), nil
}
