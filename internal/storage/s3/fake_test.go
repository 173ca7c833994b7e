package s3

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObject struct {
	data         []byte
	contentType  string
	storageClass s3types.StorageClass
	modified     time.Time
}

// fakeS3 is an in-memory stand-in for the S3 client.
type fakeS3 struct {
	mu       sync.Mutex
	bucket   string
	objects  map[string]fakeObject
	grants   map[string][]s3types.Grant
	errs     map[string]error
	hangs    map[string]bool
	pageSize int

	puts        []*s3.PutObjectInput
	copySources []string
	listCalls   int
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{
		bucket:   bucket,
		objects:  make(map[string]fakeObject),
		grants:   make(map[string][]s3types.Grant),
		errs:     make(map[string]error),
		hangs:    make(map[string]bool),
		pageSize: 1000,
	}
}

func (f *fakeS3) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

// hangOn makes op block until the request context ends.
func (f *fakeS3) hangOn(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hangs[op] = true
}

func (f *fakeS3) wait(ctx context.Context, op string) error {
	f.mu.Lock()
	hang := f.hangs[op]
	f.mu.Unlock()
	if !hang {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeS3) seed(keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		f.objects[key] = fakeObject{data: []byte("content of " + key), modified: time.Now()}
	}
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if err := f.wait(ctx, "HeadObject"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["HeadObject"]; err != nil {
		return nil, err
	}
	obj, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(obj.contentType),
		LastModified:  aws.Time(obj.modified),
		ETag:          aws.String(`"etag"`),
		Metadata:      map[string]string{"origin": "fake"},
	}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["GetObject"]; err != nil {
		return nil, err
	}
	obj, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["PutObject"]; err != nil {
		return nil, err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, params)
	f.objects[aws.ToString(params.Key)] = fakeObject{
		data:         data,
		contentType:  aws.ToString(params.ContentType),
		storageClass: params.StorageClass,
		modified:     time.Now(),
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["DeleteObject"]; err != nil {
		return nil, err
	}
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["CopyObject"]; err != nil {
		return nil, err
	}
	source := aws.ToString(params.CopySource)
	f.copySources = append(f.copySources, source)

	srcKey, err := url.PathUnescape(strings.TrimPrefix(source, f.bucket+"/"))
	if err != nil {
		return nil, err
	}
	obj, ok := f.objects[srcKey]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	obj.storageClass = params.StorageClass
	obj.modified = time.Now()
	f.objects[aws.ToString(params.Key)] = obj
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if err := f.errs["ListObjectsV2"]; err != nil {
		return nil, err
	}

	prefix := aws.ToString(params.Prefix)
	delimiter := aws.ToString(params.Delimiter)

	type item struct {
		key    string
		common bool
	}
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var items []item
	seen := make(map[string]bool)
	for _, key := range keys {
		if delimiter != "" {
			rest := key[len(prefix):]
			if i := strings.Index(rest, delimiter); i >= 0 {
				common := prefix + rest[:i+len(delimiter)]
				if !seen[common] {
					seen[common] = true
					items = append(items, item{key: common, common: true})
				}
				continue
			}
		}
		items = append(items, item{key: key})
	}

	start := 0
	if token := aws.ToString(params.ContinuationToken); token != "" {
		start, _ = strconv.Atoi(token)
	}
	size := f.pageSize
	if params.MaxKeys != nil && int(*params.MaxKeys) < size {
		size = int(*params.MaxKeys)
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(items))}
	if end < len(items) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	for _, it := range items[start:end] {
		if it.common {
			out.CommonPrefixes = append(out.CommonPrefixes, s3types.CommonPrefix{Prefix: aws.String(it.key)})
			continue
		}
		obj := f.objects[it.key]
		out.Contents = append(out.Contents, s3types.Object{
			Key:          aws.String(it.key),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modified),
		})
	}
	return out, nil
}

func (f *fakeS3) GetObjectAcl(ctx context.Context, params *s3.GetObjectAclInput, optFns ...func(*s3.Options)) (*s3.GetObjectAclOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["GetObjectAcl"]; err != nil {
		return nil, err
	}
	key := aws.ToString(params.Key)
	if _, ok := f.objects[key]; !ok {
		return nil, &s3types.NoSuchKey{}
	}
	if grants, ok := f.grants[key]; ok {
		return &s3.GetObjectAclOutput{Grants: grants}, nil
	}
	return &s3.GetObjectAclOutput{Grants: []s3types.Grant{{
		Grantee:    &s3types.Grantee{ID: aws.String("owner-id"), Type: s3types.TypeCanonicalUser},
		Permission: s3types.PermissionFullControl,
	}}}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["HeadBucket"]; err != nil {
		return nil, err
	}
	if aws.ToString(params.Bucket) != f.bucket {
		return nil, &s3types.NoSuchBucket{}
	}
	return &s3.HeadBucketOutput{}, nil
}
