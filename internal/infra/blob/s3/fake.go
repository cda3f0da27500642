package s3

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// NewMockForTests wires a Store over an in-memory bucket so the blob and
// archive tests can run without network or credentials.
func NewMockForTests() *Store {
	bucket := &fakeBucket{objects: make(map[string]fakeObject)}
	return &Store{api: bucket, signer: bucket, bucket: "mock-bucket"}
}

type fakeObject struct {
	payload     []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

// fakeBucket implements objectAPI and presignAPI over a map.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func (b *fakeBucket) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.payload))),
		ContentType:   aws.String(obj.contentType),
		ETag:          aws.String(`"fake-etag"`),
		Metadata:      obj.metadata,
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (b *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(append([]byte(nil), obj.payload...))),
		ContentLength: aws.Int64(int64(len(obj.payload))),
		ContentType:   aws.String(obj.contentType),
		ETag:          aws.String(`"fake-etag"`),
		Metadata:      obj.metadata,
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (b *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	payload, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[aws.ToString(in.Key)] = fakeObject{
		payload:     payload,
		contentType: aws.ToString(in.ContentType),
		metadata:    in.Metadata,
		modified:    time.Now().UTC(),
	}
	return &s3.PutObjectOutput{ETag: aws.String(`"fake-etag"`)}, nil
}

func (b *fakeBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (b *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for key := range b.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		obj := b.objects[key]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(obj.payload))),
			LastModified: aws.Time(obj.modified),
		})
	}
	return out, nil
}

func (b *fakeBucket) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	url := "https://mock-bucket.s3.local/" + aws.ToString(in.Key) + "?X-Amz-Signature=fake"
	return &v4.PresignedHTTPRequest{URL: url, Method: "GET"}, nil
}
