package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
)

// MinioAPI is the subset of the MinIO client used by MinioStore.
type MinioAPI interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
}

// MinioOption configures a MinioStore.
type MinioOption func(*MinioStore)

// WithMinioClient sets a custom MinIO client for testing.
func WithMinioClient(client MinioAPI) MinioOption {
	return func(m *MinioStore) {
		m.client = client
	}
}

// MinioStore lists and fetches objects through minio-go.
type MinioStore struct {
	cfg    config.StoreConfig
	client MinioAPI
	logger logger.ILogger
}

// NewMinioStore creates a MinIO store.
func NewMinioStore(cfg config.StoreConfig, log logger.ILogger, opts ...MinioOption) (*MinioStore, error) {
	m := &MinioStore{
		cfg:    cfg,
		logger: log.SubLogger("MinioStore"),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.client == nil {
		host, secure, err := minioEndpoint(cfg.Endpoint, cfg.UseSSL)
		if err != nil {
			return nil, err
		}
		client, err := minio.New(host, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: secure,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client initialization failed: %w", err)
		}
		m.client = client
	}

	return m, nil
}

// minioEndpoint splits an endpoint that may carry a scheme into the bare host
// minio-go expects and the matching TLS setting.
func minioEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if endpoint == "" {
		return "", false, fmt.Errorf("minio endpoint must be provided")
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, useSSL, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parsing minio endpoint %q: %w", endpoint, err)
	}
	return u.Host, u.Scheme == "https", nil
}

// Name returns the driver identifier.
func (m *MinioStore) Name() string {
	return config.DriverMinio
}

// List returns the objects and sub-folders directly under prefix.
func (m *MinioStore) List(ctx context.Context, prefix string) ([]model.Object, error) {
	var objects []model.Object
	for info := range m.client.ListObjects(ctx, m.cfg.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("listing %s/%s: %w", m.cfg.Bucket, prefix, info.Err)
		}
		objects = append(objects, model.Object{
			Key:          info.Key,
			Size:         info.Size,
			ETag:         strings.Trim(info.ETag, `"`),
			LastModified: info.LastModified,
		})
	}

	m.logger.Debugf("listed %d entries: bucket=%s prefix=%s", len(objects), m.cfg.Bucket, prefix)
	return objects, nil
}

// Fetch downloads key into localPath.
func (m *MinioStore) Fetch(ctx context.Context, key, localPath string) error {
	if err := m.client.FGetObject(ctx, m.cfg.Bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("downloading %s/%s: %w", m.cfg.Bucket, key, err)
	}
	m.logger.Debugf("downloaded %s to %s", key, localPath)
	return nil
}

var _ Store = (*MinioStore)(nil)
