package objectstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/testutil"
)

type fakeMinio struct {
	listing  []minio.ObjectInfo
	opts     minio.ListObjectsOptions
	fetchErr error
	fetched  []string
}

func (f *fakeMinio) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.opts = opts
	ch := make(chan minio.ObjectInfo, len(f.listing))
	for _, info := range f.listing {
		ch <- info
	}
	close(ch)
	return ch
}

func (f *fakeMinio) FGetObject(ctx context.Context, bucket, object, path string, opts minio.GetObjectOptions) error {
	if f.fetchErr != nil {
		return f.fetchErr
	}
	f.fetched = append(f.fetched, object)
	return os.WriteFile(path, []byte(object), 0o644)
}

func newTestMinioStore(t *testing.T, fake *fakeMinio) *MinioStore {
	t.Helper()
	store, err := NewMinioStore(config.StoreConfig{Bucket: "logs"}, testutil.NewTestLogger(), WithMinioClient(fake))
	require.NoError(t, err)
	return store
}

func TestMinioStore_List(t *testing.T) {
	fake := &fakeMinio{listing: []minio.ObjectInfo{
		{Key: "trackinglog/a.gz", Size: 3, ETag: `"d41d8cd98f00b204e9800998ecf8427e"`},
		{Key: "trackinglog/2024/"},
	}}
	store := newTestMinioStore(t, fake)

	objects, err := store.List(context.Background(), "trackinglog/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", objects[0].ETag)
	assert.True(t, objects[1].IsFolder())
	assert.Equal(t, "trackinglog/", fake.opts.Prefix)
	assert.False(t, fake.opts.Recursive)
}

func TestMinioStore_List_Error(t *testing.T) {
	fake := &fakeMinio{listing: []minio.ObjectInfo{
		{Key: "trackinglog/a.gz"},
		{Err: errors.New("connection refused")},
	}}
	store := newTestMinioStore(t, fake)

	_, err := store.List(context.Background(), "trackinglog/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMinioStore_Fetch(t *testing.T) {
	fake := &fakeMinio{}
	store := newTestMinioStore(t, fake)

	dest := filepath.Join(t.TempDir(), "a.gz")
	require.NoError(t, store.Fetch(context.Background(), "trackinglog/a.gz", dest))
	assert.Equal(t, []string{"trackinglog/a.gz"}, fake.fetched)
	assert.FileExists(t, dest)
}

func TestMinioStore_Fetch_Error(t *testing.T) {
	store := newTestMinioStore(t, &fakeMinio{fetchErr: errors.New("NoSuchKey")})

	err := store.Fetch(context.Background(), "trackinglog/a.gz", filepath.Join(t.TempDir(), "a.gz"))
	assert.ErrorContains(t, err, "NoSuchKey")
}

func TestMinioEndpoint(t *testing.T) {
	tests := []struct {
		endpoint   string
		useSSL     bool
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{"localhost:9000", false, "localhost:9000", false, false},
		{"localhost:9000", true, "localhost:9000", true, false},
		{"https://minio.example.com", false, "minio.example.com", true, false},
		{"http://minio:9000", true, "minio:9000", false, false},
		{"", false, "", false, true},
	}

	for _, tt := range tests {
		host, secure, err := minioEndpoint(tt.endpoint, tt.useSSL)
		if tt.wantErr {
			assert.Error(t, err, tt.endpoint)
			continue
		}
		require.NoError(t, err, tt.endpoint)
		assert.Equal(t, tt.wantHost, host, tt.endpoint)
		assert.Equal(t, tt.wantSecure, secure, tt.endpoint)
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.StoreConfig{Driver: "gcs"}, testutil.NewTestLogger())
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestNew_MinioDriver(t *testing.T) {
	store, err := New(context.Background(), config.StoreConfig{
		Driver:   config.DriverMinio,
		Endpoint: "localhost:9000",
		Bucket:   "logs",
	}, testutil.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, "minio", store.Name())
}
