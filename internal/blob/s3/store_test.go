package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"lottrace/internal/blob/core"
)

type fakeObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

// fakeClient implements API over a map, mimicking the bucket semantics the
// store relies on.
type fakeClient struct {
	objects map[string]fakeObject
	pageLen int
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string]fakeObject)}
}

func (f *fakeClient) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	obj := fakeObject{data: data, metadata: in.Metadata, modified: time.Now().UTC()}
	if in.ContentType != nil {
		obj.contentType = *in.ContentType
	}
	f.objects[*in.Key] = obj
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	obj, ok := f.objects[*in.Key]
	if !ok {
		return nil, fmt.Errorf("NoSuchKey: %s", *in.Key)
	}
	out := &awss3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: aws.Int64(int64(len(obj.data))),
		Metadata:      obj.metadata,
		LastModified:  aws.Time(obj.modified),
	}
	if obj.contentType != "" {
		out.ContentType = aws.String(obj.contentType)
	}
	return out, nil
}

func (f *fakeClient) HeadObject(_ context.Context, in *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	obj, ok := f.objects[*in.Key]
	if !ok {
		return nil, fmt.Errorf("NotFound: %s", *in.Key)
	}
	out := &awss3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		Metadata:      obj.metadata,
		LastModified:  aws.Time(obj.modified),
	}
	if obj.contentType != "" {
		out.ContentType = aws.String(obj.contentType)
	}
	return out, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if in.Prefix == nil || strings.HasPrefix(k, *in.Prefix) {
			keys = append(keys, k)
		}
	}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k > *in.ContinuationToken {
				start = i
				break
			}
		}
	}
	end := len(keys)
	truncated := false
	if f.pageLen > 0 && start+f.pageLen < end {
		end = start + f.pageLen
		truncated = true
	}
	out := &awss3.ListObjectsV2Output{IsTruncated: aws.Bool(truncated)}
	for _, k := range keys[start:end] {
		obj := f.objects[k]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modified),
		})
	}
	if truncated {
		out.NextContinuationToken = aws.String(keys[end-1])
	}
	return out, nil
}

func TestPutGetRoundTrip(t *testing.T) {
	client := newFakeClient()
	store := NewWithClient(client, "lottrace-test")
	ctx := context.Background()
	info, err := store.Put(ctx, "traceability/run/mappings.json", strings.NewReader(`{"a":1}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"artifact": "mappings"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	got, rc, err := store.Get(ctx, "traceability/run/mappings.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("unexpected payload %s", data)
	}
	if got.Metadata["artifact"] != "mappings" {
		t.Fatalf("metadata lost: %+v", got.Metadata)
	}
}

func TestPutRejectsExistingKey(t *testing.T) {
	store := NewWithClient(newFakeClient(), "lottrace-test")
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("one"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("two"), core.PutOptions{}); err == nil {
		t.Fatal("expected error on duplicate key")
	}
}

func TestDelete(t *testing.T) {
	client := newFakeClient()
	store := NewWithClient(client, "lottrace-test")
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	existed, err := store.Delete(ctx, "k")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	if _, ok := client.objects["k"]; ok {
		t.Fatal("object still present after delete")
	}
}

func TestListPaginates(t *testing.T) {
	client := newFakeClient()
	client.pageLen = 2
	store := NewWithClient(client, "lottrace-test")
	ctx := context.Background()
	for _, key := range []string{"runs/c", "runs/a", "runs/b", "runs/d", "other/x"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "runs/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 4 {
		t.Fatalf("expected 4 objects, got %d", len(infos))
	}
	for i, want := range []string{"runs/a", "runs/b", "runs/c", "runs/d"} {
		if infos[i].Key != want {
			t.Fatalf("position %d: got %s want %s", i, infos[i].Key, want)
		}
	}
}

func TestOpenFromEnvRequiresBucket(t *testing.T) {
	t.Setenv("LOTTRACE_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatal("expected error without bucket")
	}
}
