// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package blob_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/inkshelf/internal/blob"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
		err   bool
	}{
		{"works/1/a.png", "works/1/a.png", false},
		{`works\1\a.png`, "works/1/a.png", false},
		{"works/./1//a.png", "works/1/a.png", false},
		{"works/1/../2/a.png", "works/2/a.png", false},
		{"", "", true},
		{"   ", "", true},
		{"/etc/passwd", "", true},
		{"../secret", "", true},
		{"works/../../secret", "", true},
		{"..", "", true},
		{".", "", true},
		{"C:/windows", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := blob.CleanPath(tt.input)
			if tt.err {
				assert.ErrorIs(t, err, blob.ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// # FileStore

func newFileStore(t *testing.T) *blob.FileStore {
	t.Helper()
	store, err := blob.NewFileStore(t.TempDir(), discardLogger())
	require.NoError(t, err)
	return store
}

func TestFileStore_PutExistsDelete(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	rel, err := store.Put(ctx, `works\7\page.png`, strings.NewReader("image-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "works/7/page.png", rel)

	data, err := os.ReadFile(filepath.Join(store.Root(), "works", "7", "page.png"))
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	exists, err := store.Exists(ctx, rel)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, rel))

	exists, err = store.Exists(ctx, rel)
	require.NoError(t, err)
	assert.False(t, exists)

	// Missing file is not an error.
	assert.NoError(t, store.Delete(ctx, rel))
}

func TestFileStore_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	_, err := store.Put(ctx, "a.png", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = store.Put(ctx, "a.png", strings.NewReader("second"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(store.Root(), "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk full") }

func TestFileStore_PutFailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	_, err := store.Put(ctx, "works/1/broken.png", io.MultiReader(strings.NewReader("partial"), failingReader{}))
	require.Error(t, err)

	var seen []string
	require.NoError(t, store.Walk(ctx, func(o blob.Object) error {
		seen = append(seen, o.Path)
		return nil
	}))
	assert.Empty(t, seen)

	entries, err := os.ReadDir(filepath.Join(store.Root(), "works", "1"))
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file must be removed")
}

func TestFileStore_RejectsEscapes(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	_, err := store.Put(ctx, "../outside.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, blob.ErrInvalidPath)

	_, err = store.Exists(ctx, "/abs.png")
	assert.ErrorIs(t, err, blob.ErrInvalidPath)

	assert.ErrorIs(t, store.Delete(ctx, ""), blob.ErrInvalidPath)
}

func TestFileStore_Walk(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	for _, p := range []string{"works/1/a.png", "works/1/b.png", "works/2/c.webp"} {
		_, err := store.Put(ctx, p, strings.NewReader(p))
		require.NoError(t, err)
	}

	var seen []string
	require.NoError(t, store.Walk(ctx, func(o blob.Object) error {
		seen = append(seen, o.Path)
		assert.Equal(t, int64(len(o.Path)), o.Size)
		assert.WithinDuration(t, time.Now(), o.ModTime, time.Minute)
		return nil
	}))

	sort.Strings(seen)
	assert.Equal(t, []string{"works/1/a.png", "works/1/b.png", "works/2/c.webp"}, seen)

	stop := errors.New("stop")
	err := store.Walk(ctx, func(blob.Object) error { return stop })
	assert.ErrorIs(t, err, stop)
}

// # S3Store

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	now := time.Now()
	for key, data := range f.objects {
		if !strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(data))),
			LastModified: aws.Time(now),
		})
	}
	return out, nil
}

func TestS3Store_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := blob.NewS3StoreWithClient(fake, "pages", "/prod/", discardLogger())

	rel, err := store.Put(ctx, "works/9/x.png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "works/9/x.png", rel)
	assert.Contains(t, fake.objects, "prod/works/9/x.png")
	assert.Equal(t, "image/png", fake.types["prod/works/9/x.png"])

	// Objects outside the prefix are not ours.
	fake.objects["other/y.png"] = []byte("y")

	var seen []blob.Object
	require.NoError(t, store.Walk(ctx, func(o blob.Object) error {
		seen = append(seen, o)
		return nil
	}))
	require.Len(t, seen, 1)
	assert.Equal(t, "works/9/x.png", seen[0].Path)
	assert.Equal(t, int64(3), seen[0].Size)

	exists, err := store.Exists(ctx, rel)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, rel))
	assert.NotContains(t, fake.objects, "prod/works/9/x.png")

	// Second delete hits the missing path and is tolerated.
	assert.NoError(t, store.Delete(ctx, rel))
}

func TestS3Store_RejectsEscapes(t *testing.T) {
	store := blob.NewS3StoreWithClient(newFakeS3(), "pages", "", discardLogger())
	_, err := store.Put(context.Background(), "../x.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, blob.ErrInvalidPath)
}
