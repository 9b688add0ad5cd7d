package core

import "time"

// ProjectConfig holds the configuration shared by every audit operation.
type ProjectConfig struct {
	Target       *TargetConfig       `koanf:"target"`
	Catalog      *CatalogConfig      `koanf:"catalog"`
	Audit        *AuditConfig        `koanf:"audit"`
	Architecture *ArchitectureConfig `koanf:"architecture"`
}

// TargetConfig holds warehouse target configuration.
type TargetConfig struct {
	Type string `koanf:"type"` // duckdb, postgres, bigquery

	// File-based databases (DuckDB)
	Database string `koanf:"database"` // file path or database name

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Common
	Schema string `koanf:"schema"`

	// BigQuery-specific
	Project         string `koanf:"project"`
	Location        string `koanf:"location"`
	CredentialsFile string `koanf:"credentials_file"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration (e.g., DuckDB extensions, settings)
	Params map[string]any `koanf:"params"`
}

// CatalogConfig selects and configures the catalog client.
type CatalogConfig struct {
	Type string `koanf:"type"` // file, http

	// Path is the YAML/JSON catalog document (type file).
	Path string `koanf:"path"`

	// HTTP catalog service
	URL        string        `koanf:"url"`
	Token      string        `koanf:"token"`
	Timeout    time.Duration `koanf:"timeout"`
	RateLimit  float64       `koanf:"rate_limit"`
	RateBurst  int           `koanf:"rate_burst"`
	MaxRetries int           `koanf:"max_retries"`
}

// AuditConfig tunes the audit operations.
type AuditConfig struct {
	// PartitionKey is the column name that splits the census into partitions.
	PartitionKey string `koanf:"partition_key"`
	// NoPartitioning censuses every table as one implicit partition.
	NoPartitioning bool `koanf:"no_partitioning"`

	// Concurrency bounds the number of in-flight warehouse queries.
	Concurrency int `koanf:"concurrency"`

	// CensusMode is "batched" (one query per partition) or "per_column".
	CensusMode string `koanf:"census_mode"`

	// BatchColumns caps the null-count expressions per batched query.
	BatchColumns int `koanf:"batch_columns"`

	// Vocabulary replaces the recognized dimension-key names when set.
	Vocabulary []string `koanf:"vocabulary"`

	// ExtraVocabulary extends the recognized dimension-key names.
	ExtraVocabulary []string `koanf:"extra_vocabulary"`

	Retry RetryConfig `koanf:"retry"`
}

// RetryConfig controls retries of transient engine failures.
// MaxRetries counts retries after the first attempt; zero disables retrying.
type RetryConfig struct {
	MaxRetries     int           `koanf:"max_retries"`
	InitialBackoff time.Duration `koanf:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff"`
}

// ArchitectureConfig configures remote architecture locators.
type ArchitectureConfig struct {
	// Sheet selects the worksheet of .xlsx resources (default: first sheet).
	Sheet string `koanf:"sheet"`

	// S3 settings for s3:// locators
	S3Region       string `koanf:"s3_region"`
	S3Endpoint     string `koanf:"s3_endpoint"`
	S3UsePathStyle bool   `koanf:"s3_use_path_style"`

	// HTTPTimeout bounds http(s):// downloads.
	HTTPTimeout time.Duration `koanf:"http_timeout"`
}
