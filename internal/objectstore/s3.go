package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

// S3Option configures an S3Store.
type S3Option func(*S3Store)

// WithS3Client sets a custom S3 client for testing.
func WithS3Client(client S3API) S3Option {
	return func(s *S3Store) {
		s.client = client
	}
}

// S3Store lists and fetches objects through the AWS SDK.
type S3Store struct {
	cfg        config.StoreConfig
	client     S3API
	downloader *manager.Downloader
	logger     logger.ILogger
}

// NewS3Store creates an S3 store. Without WithS3Client a real client is built
// from cfg, using static credentials when an access key is configured and the
// default AWS credential chain otherwise.
func NewS3Store(ctx context.Context, cfg config.StoreConfig, log logger.ILogger, opts ...S3Option) (*S3Store, error) {
	s := &S3Store{
		cfg:    cfg,
		logger: log.SubLogger("S3Store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.client = client
	}

	s.downloader = manager.NewDownloader(s.client, func(d *manager.Downloader) {
		if cfg.PartSize > 0 {
			d.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			d.Concurrency = cfg.Concurrency
		}
	})

	return s, nil
}

func newS3Client(ctx context.Context, cfg config.StoreConfig) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

// endpointURL adds a scheme to bare host:port endpoints.
func endpointURL(endpoint string, useSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	scheme := "https"
	if !useSSL {
		scheme = "http"
	}
	return scheme + "://" + strings.TrimPrefix(endpoint, "//")
}

// Name returns the driver identifier.
func (s *S3Store) Name() string {
	return config.DriverS3
}

// List returns the objects and sub-folders directly under prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]model.Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.cfg.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(model.Delimiter),
	}

	var objects []model.Object
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.cfg.Bucket, prefix, err)
		}

		for _, obj := range page.Contents {
			o := model.Object{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
				ETag: strings.Trim(aws.ToString(obj.ETag), `"`),
			}
			if obj.LastModified != nil {
				o.LastModified = *obj.LastModified
			}
			objects = append(objects, o)
		}
		for _, cp := range page.CommonPrefixes {
			objects = append(objects, model.Object{Key: aws.ToString(cp.Prefix)})
		}
	}

	s.logger.Debugf("listed %d entries: bucket=%s prefix=%s", len(objects), s.cfg.Bucket, prefix)
	return objects, nil
}

// Fetch downloads key into localPath, creating parent directories.
func (s *S3Store) Fetch(ctx context.Context, key, localPath string) (err error) {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", localPath, err)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", localPath, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	n, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("downloading s3://%s/%s: %w", s.cfg.Bucket, key, err)
	}

	s.logger.Debugf("downloaded %s (%d bytes) to %s", key, n, localPath)
	return nil
}

var _ Store = (*S3Store)(nil)
