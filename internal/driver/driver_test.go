package driver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/s3drive/internal/storage/memory"
	"github.com/objectfs/s3drive/pkg/errors"
	"github.com/objectfs/s3drive/pkg/types"
)

type fakeRecorder struct {
	mu      sync.Mutex
	hits    map[string]int
	misses  map[string]int
	entries map[string]int64
	remaps  map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		hits:    make(map[string]int),
		misses:  make(map[string]int),
		entries: make(map[string]int64),
		remaps:  make(map[string]int),
	}
}

func (r *fakeRecorder) RecordCacheHit(cache string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits[cache]++
}

func (r *fakeRecorder) RecordCacheMiss(cache string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses[cache]++
}

func (r *fakeRecorder) UpdateCacheEntries(cache string, entries int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[cache] = entries
}

func (r *fakeRecorder) RecordRemaps(operation string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaps[operation] += count
}

func newTestDriver(t *testing.T, keys ...string) (*Driver, *memory.Backend, afero.Fs) {
	t.Helper()
	ctx := context.Background()
	backend := memory.New()
	for _, key := range keys {
		var data []byte
		if !strings.HasSuffix(key, "/") {
			data = []byte("content of " + key)
		}
		require.NoError(t, backend.PutObject(ctx, key, data, ""))
	}
	backend.ResetCalls()

	fs := afero.NewMemMapFs()
	d := New(backend, Options{StorageID: "storage-1", Bucket: "media", ScratchDir: "/scratch"}, WithFs(fs))
	require.NoError(t, d.Initialize(ctx))
	return d, backend, fs
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()

	d := New(backend, Options{})
	err := d.Initialize(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingConfig))

	d = New(backend, Options{Bucket: "media", Protocol: "ftp"})
	err = d.Initialize(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))

	d = New(backend, Options{PublicBaseURL: "cdn.example.com/", Protocol: "http"})
	require.NoError(t, d.Initialize(ctx))
	assert.Equal(t, "http://cdn.example.com/a.txt", d.PublicURL("/a.txt"))
}

func TestPublicURL(t *testing.T) {
	d, _, _ := newTestDriver(t)

	assert.Equal(t, "https://media.s3.amazonaws.com/docs/a.txt", d.PublicURL("/docs/a.txt"))
	assert.Equal(t, "https://media.s3.amazonaws.com/docs/my%20file.txt", d.PublicURL("docs/my file.txt"))
	assert.Equal(t, "https://media.s3.amazonaws.com/", d.PublicURL("/"))
}

func TestFolders(t *testing.T) {
	d, _, _ := newTestDriver(t)

	assert.Equal(t, "/", d.DefaultFolder())
	assert.Equal(t, "/", d.RootLevelFolder())

	info := d.FolderInfo("/docs")
	assert.Equal(t, "docs/", info.Identifier)
	assert.Equal(t, "docs", info.Name)
	assert.Equal(t, "storage-1", info.StorageID)

	root := d.FolderInfo("/")
	assert.Equal(t, "/", root.Identifier)
	assert.Equal(t, "", root.Name)
}

func TestCapabilities(t *testing.T) {
	d, _, _ := newTestDriver(t)

	assert.Equal(t, DefaultCapabilities, d.Capabilities())
	assert.Equal(t, "browsable|public|writable", d.Capabilities().String())

	narrowed := d.MergeCapabilities(CapabilityBrowsable | CapabilityWritable)
	assert.True(t, narrowed.Has(CapabilityBrowsable))
	assert.False(t, narrowed.Has(CapabilityPublic))
	assert.Equal(t, narrowed, d.Capabilities())

	assert.Equal(t, "none", Capabilities(0).String())

	parsed, err := ParseCapabilities([]string{"browsable", " Public "})
	require.NoError(t, err)
	assert.Equal(t, CapabilityBrowsable|CapabilityPublic, parsed)

	_, err = ParseCapabilities([]string{"mountable"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))
}

func TestHash(t *testing.T) {
	d, _, _ := newTestDriver(t)

	sum := sha1.Sum([]byte("docs/a.txt"))
	want := hex.EncodeToString(sum[:])

	got, err := d.Hash("/docs/a.txt", "")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = d.Hash("docs/a.txt", "SHA1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	for _, algo := range HashAlgorithms() {
		h, err := d.Hash("docs/a.txt", algo)
		require.NoError(t, err, algo)
		assert.NotEmpty(t, h)
	}
	assert.Equal(t, []string{"blake3", "md5", "sha1", "sha256"}, HashAlgorithms())

	_, err = d.Hash("docs/a.txt", "crc32")
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidationFailed))
}

func TestFileInfo(t *testing.T) {
	ctx := context.Background()
	d, backend, _ := newTestDriver(t)
	require.NoError(t, backend.PutObject(ctx, "docs/report.pdf", []byte("%PDF"), "application/pdf"))

	info, err := d.FileInfo(ctx, "/docs/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", info.Name)
	assert.Equal(t, "docs/report.pdf", info.Identifier)
	assert.Equal(t, "application/pdf", info.MimeType)
	assert.Equal(t, int64(4), info.Size)
	assert.Equal(t, info.MTime, info.CTime)
	assert.NotZero(t, info.MTime)
	assert.Equal(t, "storage-1", info.StorageID)

	idHash, _ := d.Hash("docs/report.pdf", "")
	folderHash, _ := d.Hash("docs/", "")
	assert.Equal(t, idHash, info.IdentifierHash)
	assert.Equal(t, folderHash, info.FolderHash)

	_, err = d.FileInfo(ctx, "docs/missing.pdf")
	assert.True(t, errors.IsCode(err, errors.ErrCodeObjectNotFound))

	_, err = d.FileInfo(ctx, "docs/")
	assert.True(t, errors.IsCode(err, errors.ErrCodePathInvalid))
}

func TestFileInfo_DetectsMissingContentType(t *testing.T) {
	d, _, _ := newTestDriver(t, "images/photo.png")

	info, err := d.FileInfo(context.Background(), "images/photo.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.MimeType)
}

func TestExistence(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDriver(t, "a.txt", "docs/", "docs/b.txt")

	assert.True(t, d.FileExists(ctx, "/a.txt"))
	assert.False(t, d.FileExists(ctx, "docs/"))
	assert.False(t, d.FileExists(ctx, "/"))
	assert.False(t, d.FileExists(ctx, "nope.txt"))

	assert.True(t, d.FolderExists(ctx, "/"))
	assert.True(t, d.FolderExists(ctx, "docs"))
	assert.True(t, d.FolderExists(ctx, "/docs/"))
	assert.False(t, d.FolderExists(ctx, "other/"))

	assert.True(t, d.FileExistsInFolder(ctx, "b.txt", "docs/"))
	assert.False(t, d.FileExistsInFolder(ctx, "b.txt", "/"))
	assert.False(t, d.FileExistsInFolder(ctx, "", "docs/"))
	assert.True(t, d.FolderExistsInFolder(ctx, "docs", "/"))
	assert.True(t, d.FolderExistsInFolder(ctx, "/docs/", "/"))
	assert.False(t, d.FolderExistsInFolder(ctx, "", "/"))

	assert.True(t, d.IsWithin("docs/", "docs/b.txt"))
	assert.False(t, d.IsWithin("docs/", "docs-old/b.txt"))
}

func TestExistence_Cached(t *testing.T) {
	ctx := context.Background()
	d, backend, _ := newTestDriver(t, "a.txt")

	assert.True(t, d.FileExists(ctx, "a.txt"))
	assert.True(t, d.FileExists(ctx, "/a.txt"))
	assert.False(t, d.FileExists(ctx, "b.txt"))
	assert.False(t, d.FileExists(ctx, "b.txt"))

	probes := 0
	for _, c := range backend.Calls() {
		if c.Op == "ObjectExists" {
			probes++
		}
	}
	assert.Equal(t, 2, probes)
	assert.Equal(t, uint64(2), d.CacheStats()["existence"].Hits)
}

func TestCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDriver(t, "docs/", "docs/a.txt")

	assert.False(t, d.FileExists(ctx, "notes.txt"))
	_, err := d.CreateFile(ctx, "notes.txt", "/")
	require.NoError(t, err)
	assert.True(t, d.FileExists(ctx, "notes.txt"))

	require.NoError(t, d.DeleteFile(ctx, "notes.txt"))
	assert.False(t, d.FileExists(ctx, "notes.txt"))

	assert.True(t, d.FileExists(ctx, "docs/a.txt"))
	assert.False(t, d.FolderExists(ctx, "archive/"))
	_, err = d.RenameFolder(ctx, "docs/", "archive")
	require.NoError(t, err)
	assert.False(t, d.FileExists(ctx, "docs/a.txt"))
	assert.False(t, d.FolderExists(ctx, "docs/"))
	assert.True(t, d.FolderExists(ctx, "archive/"))
	assert.True(t, d.FileExists(ctx, "archive/a.txt"))
}

func TestIsFolderEmpty(t *testing.T) {
	ctx := context.Background()
	d, backend, _ := newTestDriver(t, "docs/", "docs/a.txt", "empty/")

	empty, err := d.IsFolderEmpty(ctx, "empty/")
	require.NoError(t, err)
	assert.True(t, empty)

	empty, err = d.IsFolderEmpty(ctx, "/docs")
	require.NoError(t, err)
	assert.False(t, empty)

	backend.FailOn("ListObjects", "", assert.AnError)
	_, err = d.IsFolderEmpty(ctx, "docs/")
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorageRead))
}

func TestPermissions(t *testing.T) {
	ctx := context.Background()
	d, backend, _ := newTestDriver(t, "a.txt", "shared.txt")
	backend.SetGrants("shared.txt", []types.Grant{{Grantee: "everyone", Permission: types.PermissionRead}})

	perms, err := d.Permissions(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, types.Permissions{Read: true, Write: true}, perms)

	perms, err = d.Permissions(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, types.Permissions{Read: true, Write: true}, perms)

	perms, err = d.Permissions(ctx, "shared.txt")
	require.NoError(t, err)
	assert.Equal(t, types.Permissions{}, perms)

	_, err = d.Permissions(ctx, "missing.txt")
	assert.True(t, errors.IsCode(err, errors.ErrCodeObjectNotFound))
}

func TestPermissions_FolderWithoutSeparator(t *testing.T) {
	ctx := context.Background()
	d, backend, _ := newTestDriver(t, "docs/", "docs/a.txt", "notes", "notes/")
	backend.SetGrants("notes", []types.Grant{{Grantee: "everyone", Permission: types.PermissionRead}})

	require.True(t, d.FolderExists(ctx, "docs"))
	perms, err := d.Permissions(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, types.Permissions{Read: true, Write: true}, perms)

	perms, err = d.Permissions(ctx, "/docs/")
	require.NoError(t, err)
	assert.Equal(t, types.Permissions{Read: true, Write: true}, perms)

	// A file of the same name wins over the folder.
	perms, err = d.Permissions(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, types.Permissions{}, perms)

	// The memo entry follows the marker and is dropped with it.
	require.NoError(t, d.DeleteFile(ctx, "docs/a.txt"))
	require.NoError(t, d.DeleteFolder(ctx, "docs", false))
	_, err = d.Permissions(ctx, "docs")
	assert.True(t, errors.IsCode(err, errors.ErrCodeObjectNotFound))
}

func TestPartialFailureDropsCachedSubtree(t *testing.T) {
	ctx := context.Background()
	d, backend, _ := newTestDriver(t, "docs/", "docs/a.txt", "docs/b.txt")

	require.True(t, d.FileExists(ctx, "docs/b.txt"))
	backend.FailOn("CopyObject", "docs/b.txt", fmt.Errorf("slow down"))

	_, err := d.MoveFolderWithinStorage(ctx, "docs/", "/", "archive")
	require.True(t, errors.IsCode(err, errors.ErrCodeOperationPartial))

	backend.ResetCalls()
	assert.True(t, d.FileExists(ctx, "docs/b.txt"))
	assert.Contains(t, backend.Calls(), memory.Call{Op: "ObjectExists", Key: "docs/b.txt"},
		"the untouched file is probed again after the failed move")
}

func TestMetricsWiring(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	require.NoError(t, backend.PutObject(ctx, "docs/", nil, ""))
	require.NoError(t, backend.PutObject(ctx, "docs/a.txt", []byte("a"), ""))

	recorder := newFakeRecorder()
	d := New(backend, Options{Bucket: "media"}, WithFs(afero.NewMemMapFs()), WithMetrics(recorder))
	require.NoError(t, d.Initialize(ctx))

	d.FileExists(ctx, "docs/a.txt")
	d.FileExists(ctx, "docs/a.txt")
	assert.Equal(t, 1, recorder.misses["existence"])
	assert.Equal(t, 1, recorder.hits["existence"])

	_, err := d.MoveFolderWithinStorage(ctx, "docs/", "/", "archive")
	require.NoError(t, err)
	assert.Equal(t, 2, recorder.remaps["MoveFolder"])
	assert.Contains(t, recorder.entries, "existence")
	assert.Contains(t, recorder.entries, "permissions")
}

func sortedIdentifiers(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
