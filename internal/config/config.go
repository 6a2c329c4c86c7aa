package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/hma-data/mba-ingest/pkg/logx"
)

// Config holds the global configuration for the application.
type Config struct {
	// Log contains logging-related configuration.
	Log *logx.LoggingConfig
	// Store contains the object store connection configuration.
	Store *StoreConfig
	// Scopes maps a scope name ("mba", "policy") to its bucket and prefix.
	Scopes map[string]*ScopeConfig
	// Ingest contains the ingestion pipeline configuration.
	Ingest *IngestConfig
	// Queue contains the job queue configuration.
	Queue *QueueConfig
	// API contains the job submission API configuration.
	API *APIConfig
	// Audit contains the audit recorder configuration.
	Audit *AuditConfig
}

// StoreConfig holds the object store connection settings.
type StoreConfig struct {
	// Endpoint is the S3-compatible endpoint (host:port).
	Endpoint string
	// Region is the bucket region.
	Region string
	// Profile is an optional named credentials-file profile. When set it
	// takes precedence over explicit keys.
	Profile string
	// AccessKey names the environment variable holding the access key.
	AccessKey string
	// SecretKey names the environment variable holding the secret key.
	SecretKey string
	// UseSSL enables TLS for the endpoint connection.
	UseSSL bool
	// SSE is the server-side encryption type attached to uploads.
	SSE string
	// MaxRetries is the per-file upload attempt budget.
	MaxRetries int
}

// ScopeConfig holds the destination for one data scope.
type ScopeConfig struct {
	// Bucket is the target bucket for the scope.
	Bucket string
	// Prefix is the key prefix for the scope. A trailing slash is enforced.
	Prefix string
}

// IngestConfig holds the ingestion pipeline settings.
type IngestConfig struct {
	// Input is the directory to scan.
	Input string
	// Include lists file extensions to include (empty means all).
	Include []string
	// Exclude lists file extensions to exclude.
	Exclude []string
	// ExcludePatterns lists glob patterns whose matches are dropped.
	ExcludePatterns []string
	// Concurrency is the upload worker pool size.
	Concurrency int
	// SkipDuplicates enables remote duplicate checking before upload.
	SkipDuplicates bool
	// Overwrite replaces same-key objects that differ in size.
	Overwrite bool
	// AutoDetectScope infers the scope from path segments.
	AutoDetectScope bool
	// IncludeType inserts the type category segment into object keys.
	IncludeType bool
	// CacheFile is the JSON side file backing the hash cache.
	CacheFile string
	// HashAlgo selects the content digest algorithm ("md5" or "sha256").
	HashAlgo string
}

// QueueConfig holds the job queue settings.
type QueueConfig struct {
	// PollTimeout is the worker dequeue poll timeout (e.g. "1s").
	PollTimeout string
	// DrainOnce makes workers exit once the queue is observed empty.
	DrainOnce bool
}

// APIConfig holds the job submission API settings.
type APIConfig struct {
	// Host is the listen host.
	Host string
	// Port is the listen port.
	Port int
}

// AuditConfig holds the audit recorder settings.
type AuditConfig struct {
	// Enabled turns audit recording on.
	Enabled bool
	// Directory is where audit record files are written.
	Directory string
}

var config = Config{
	Log: &logx.LoggingConfig{
		Level:          "Info",
		ConsoleLogging: true,
		FileLogging:    false,
	},
	Scopes: map[string]*ScopeConfig{},
}

// Initialize loads the configuration from the specified file.
func Initialize(path string) error {
	viper.Reset()
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("mba")
	viper.AutomaticEnv()

	// bool defaults that cannot be expressed post-unmarshal
	viper.SetDefault("ingest.skipDuplicates", true)
	viper.SetDefault("ingest.autoDetectScope", true)
	viper.SetDefault("ingest.includeType", true)

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	if err := viper.Unmarshal(&config); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	initializeNestedStructs()
	applyDefaults()
	overrideWithEnvVars()

	return nil
}

// initializeNestedStructs ensures all nested structs are initialized.
func initializeNestedStructs() {
	if config.Log == nil {
		config.Log = &logx.LoggingConfig{Level: "Info", ConsoleLogging: true}
	}
	if config.Store == nil {
		config.Store = &StoreConfig{}
	}
	if config.Scopes == nil {
		config.Scopes = map[string]*ScopeConfig{}
	}
	if config.Ingest == nil {
		config.Ingest = &IngestConfig{}
	}
	if config.Queue == nil {
		config.Queue = &QueueConfig{}
	}
	if config.API == nil {
		config.API = &APIConfig{}
	}
	if config.Audit == nil {
		config.Audit = &AuditConfig{}
	}
}

func applyDefaults() {
	if config.Store.Region == "" {
		config.Store.Region = "us-east-1"
	}
	if config.Store.SSE == "" {
		config.Store.SSE = "AES256"
	}
	if config.Store.MaxRetries <= 0 {
		config.Store.MaxRetries = 3
	}
	if config.Ingest.Input == "" {
		config.Ingest.Input = "./data"
	}
	if config.Ingest.Concurrency <= 0 {
		config.Ingest.Concurrency = 4
	}
	if config.Ingest.CacheFile == "" {
		config.Ingest.CacheFile = "logs/file_cache.json"
	}
	if config.Ingest.HashAlgo == "" {
		config.Ingest.HashAlgo = "md5"
	}
	if config.Queue.PollTimeout == "" {
		config.Queue.PollTimeout = "1s"
	}
	if config.API.Host == "" {
		config.API.Host = "0.0.0.0"
	}
	if config.API.Port == 0 {
		config.API.Port = 8000
	}
	if config.Audit.Directory == "" {
		config.Audit.Directory = "logs"
	}

	// key prefixes always end with a slash
	for _, scope := range config.Scopes {
		if scope.Prefix != "" && !strings.HasSuffix(scope.Prefix, "/") {
			scope.Prefix += "/"
		}
	}
}

// overrideWithEnvVars resolves sensitive fields that name environment
// variables, so key material never lives in the config file itself.
func overrideWithEnvVars() {
	if config.Store.AccessKey != "" {
		config.Store.AccessKey = os.Getenv(config.Store.AccessKey)
	}
	if config.Store.SecretKey != "" {
		config.Store.SecretKey = os.Getenv(config.Store.SecretKey)
	}
}

// Get returns the loaded configuration.
func Get() Config {
	return config
}

// Scope returns the destination for a scope name, or an error for an
// unknown scope.
func Scope(name string) (*ScopeConfig, error) {
	if sc, ok := config.Scopes[strings.ToLower(name)]; ok {
		return sc, nil
	}
	return nil, fmt.Errorf("unknown scope: %s", name)
}
