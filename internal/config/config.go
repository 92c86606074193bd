// Package config provides configuration loading with layered overrides.
// Load order: defaults -> YAML file -> environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	configloader "github.com/GabrielNunesIT/go-libs/config-loader"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "S3_LOG_SYNC_"

// Supported object store drivers.
const (
	DriverS3    = "s3"
	DriverMinio = "minio"
)

// Config is the root configuration structure for the sync tool.
type Config struct {
	LogLevel  string          `koanf:"loglevel" yaml:"log_level" json:"log_level"`
	Verbose   bool            `koanf:"verbose"`
	Store     StoreConfig     `koanf:"store"`
	Sync      SyncConfig      `koanf:"sync"`
	Sinks     SinkConfig      `koanf:"sinks"`
	Processor ProcessorConfig `koanf:"processor"`
}

// StoreConfig describes the remote object store and its credentials.
type StoreConfig struct {
	Driver         string `koanf:"driver"` // "s3" or "minio"
	Endpoint       string `koanf:"endpoint"`
	Region         string `koanf:"region"`
	AccessKey      string `koanf:"accesskey" yaml:"access_key" json:"access_key"`
	SecretKey      string `koanf:"secretkey" yaml:"secret_key" json:"secret_key"`
	Bucket         string `koanf:"bucket"`
	Prefix         string `koanf:"prefix"`
	ForcePathStyle bool   `koanf:"forcepathstyle" yaml:"force_path_style" json:"force_path_style"`
	UseSSL         bool   `koanf:"usessl" yaml:"use_ssl" json:"use_ssl"`
	PartSize       int64  `koanf:"partsize" yaml:"part_size" json:"part_size"`
	Concurrency    int    `koanf:"concurrency"`
}

// SyncConfig controls the orchestrator and its local working state.
type SyncConfig struct {
	StagingDir     string `koanf:"stagingdir" yaml:"staging_dir" json:"staging_dir"`
	StateDir       string `koanf:"statedir" yaml:"state_dir" json:"state_dir"`
	VerifyChecksum bool   `koanf:"verifychecksum" yaml:"verify_checksum" json:"verify_checksum"`
}

// SinkConfig holds configuration for all payload destinations.
type SinkConfig struct {
	HTTP          HTTPSinkConfig          `koanf:"http"`
	Stdout        StdoutSinkConfig        `koanf:"stdout"`
	File          FileSinkConfig          `koanf:"file"`
	Elasticsearch ElasticsearchSinkConfig `koanf:"elasticsearch"`
	Loki          LokiSinkConfig          `koanf:"loki"`
	VictoriaLogs  VictoriaLogsSinkConfig  `koanf:"victorialogs"`
}

// HTTPSinkConfig configures the downstream ingestion endpoint.
type HTTPSinkConfig struct {
	Enabled     bool          `koanf:"enabled"`
	URL         string        `koanf:"url"`
	ContentType string        `koanf:"contenttype" yaml:"content_type" json:"content_type"`
	Timeout     time.Duration `koanf:"timeout"`
}

// StdoutSinkConfig configures the stdout sink.
type StdoutSinkConfig struct {
	Enabled bool   `koanf:"enabled"`
	Format  string `koanf:"format"` // "json" or "text"
}

// FileSinkConfig configures the rotating archive sink.
type FileSinkConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"maxsizemb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `koanf:"maxbackups" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `koanf:"maxagedays" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// ElasticsearchSinkConfig configures the Elasticsearch sink.
type ElasticsearchSinkConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Addresses     []string      `koanf:"addresses"`
	Index         string        `koanf:"index"`
	Username      string        `koanf:"username"`
	Password      string        `koanf:"password"`
	FlushInterval time.Duration `koanf:"flushinterval" yaml:"flush_interval" json:"flush_interval"`
}

// LokiSinkConfig configures the Loki sink.
type LokiSinkConfig struct {
	Enabled   bool              `koanf:"enabled"`
	URL       string            `koanf:"url"`
	TenantID  string            `koanf:"tenantid" yaml:"tenant_id" json:"tenant_id"`
	Labels    map[string]string `koanf:"labels"`
	BatchSize int               `koanf:"batchsize" yaml:"batch_size" json:"batch_size"`
}

// VictoriaLogsSinkConfig configures the VictoriaLogs sink.
type VictoriaLogsSinkConfig struct {
	Enabled   bool   `koanf:"enabled"`
	URL       string `koanf:"url"`
	BatchSize int    `koanf:"batchsize" yaml:"batch_size" json:"batch_size"`
}

// ProcessorConfig holds the line processor chain used by line-oriented sinks.
type ProcessorConfig struct {
	Parser   ParserConfig   `koanf:"parser"`
	Enricher EnricherConfig `koanf:"enricher"`
}

// ParserConfig configures the parsing processor.
type ParserConfig struct {
	Enabled        bool     `koanf:"enabled"`
	JSONAutoDetect bool     `koanf:"jsonautodetect" yaml:"json_auto_detect" json:"json_auto_detect"`
	Patterns       []string `koanf:"patterns"` // Regex patterns with named groups
}

// EnricherConfig configures the enrichment processor.
type EnricherConfig struct {
	Enabled      bool              `koanf:"enabled"`
	AddHostname  bool              `koanf:"addhostname" yaml:"add_hostname" json:"add_hostname"`
	AddObjectKey bool              `koanf:"addobjectkey" yaml:"add_object_key" json:"add_object_key"`
	StaticLabels map[string]string `koanf:"staticlabels" yaml:"static_labels" json:"static_labels"`
}

// defaults returns the default configuration values.
func defaults() Config {
	return Config{
		LogLevel: "info",
		Store: StoreConfig{
			Driver:      DriverS3,
			Region:      "us-east-1",
			UseSSL:      true,
			PartSize:    5 * 1024 * 1024,
			Concurrency: 5,
		},
		Sync: SyncConfig{
			StagingDir: "./data/staging",
			StateDir:   "./data/state",
		},
		Sinks: SinkConfig{
			HTTP: HTTPSinkConfig{
				Enabled:     true,
				ContentType: "application/json",
				Timeout:     30 * time.Second,
			},
			Stdout: StdoutSinkConfig{
				Format: "json",
			},
			File: FileSinkConfig{
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 7,
				Compress:   true,
			},
			Elasticsearch: ElasticsearchSinkConfig{
				Index:         "tracking-logs",
				FlushInterval: 5 * time.Second,
			},
			Loki: LokiSinkConfig{
				BatchSize: 500,
			},
			VictoriaLogs: VictoriaLogsSinkConfig{
				BatchSize: 500,
			},
		},
		Processor: ProcessorConfig{
			Parser: ParserConfig{
				Enabled:        true,
				JSONAutoDetect: true,
			},
			Enricher: EnricherConfig{
				Enabled:      true,
				AddHostname:  true,
				AddObjectKey: true,
			},
		},
	}
}

// Load reads configuration from all sources with proper override order.
// Order: defaults -> config file -> environment variables.
func Load(configPath string) (*Config, error) {
	opts := []configloader.Option[Config]{
		configloader.WithDefaults[Config](defaults()),
	}

	if configPath != "" {
		opts = append(opts, configloader.WithFile[Config](configPath))
	} else {
		for _, path := range []string{"./config.yaml", "/etc/s3-log-sync/config.yaml"} {
			if _, err := os.Stat(path); err == nil {
				opts = append(opts, configloader.WithFile[Config](path))
				break
			}
		}
	}

	opts = append(opts, configloader.WithEnv[Config](EnvPrefix))

	loader := configloader.NewConfigLoader[Config](opts...)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the fields a run cannot do without are present.
func (c *Config) Validate() error {
	return errors.Join(c.ValidateStore(), c.validateSinks())
}

// ValidateStore checks only the store and local directory settings, which is
// all the read-only commands need.
func (c *Config) ValidateStore() error {
	var errs []error

	switch c.Store.Driver {
	case DriverS3, DriverMinio:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.Driver == DriverMinio && c.Store.Endpoint == "" {
		errs = append(errs, errors.New("store.endpoint is required for the minio driver"))
	}
	if c.Store.Bucket == "" {
		errs = append(errs, errors.New("store.bucket is required"))
	}
	if c.Sync.StagingDir == "" {
		errs = append(errs, errors.New("sync.stagingdir is required"))
	}
	if c.Sync.StateDir == "" {
		errs = append(errs, errors.New("sync.statedir is required"))
	}

	return errors.Join(errs...)
}

func (c *Config) validateSinks() error {
	var errs []error

	if c.Sinks.HTTP.Enabled && c.Sinks.HTTP.URL == "" {
		errs = append(errs, errors.New("sinks.http.url is required when the http sink is enabled"))
	}
	if c.Sinks.File.Enabled && c.Sinks.File.Path == "" {
		errs = append(errs, errors.New("sinks.file.path is required when the file sink is enabled"))
	}
	if c.Sinks.Elasticsearch.Enabled && len(c.Sinks.Elasticsearch.Addresses) == 0 {
		errs = append(errs, errors.New("sinks.elasticsearch.addresses is required when the elasticsearch sink is enabled"))
	}
	if c.Sinks.Loki.Enabled && c.Sinks.Loki.URL == "" {
		errs = append(errs, errors.New("sinks.loki.url is required when the loki sink is enabled"))
	}
	if c.Sinks.VictoriaLogs.Enabled && c.Sinks.VictoriaLogs.URL == "" {
		errs = append(errs, errors.New("sinks.victorialogs.url is required when the victorialogs sink is enabled"))
	}
	if c.EnabledSinks() == 0 {
		errs = append(errs, errors.New("no sinks enabled"))
	}

	return errors.Join(errs...)
}

// EnabledSinks returns how many sinks are switched on.
func (c *Config) EnabledSinks() int {
	n := 0
	for _, on := range []bool{
		c.Sinks.HTTP.Enabled,
		c.Sinks.Stdout.Enabled,
		c.Sinks.File.Enabled,
		c.Sinks.Elasticsearch.Enabled,
		c.Sinks.Loki.Enabled,
		c.Sinks.VictoriaLogs.Enabled,
	} {
		if on {
			n++
		}
	}
	return n
}
