package config

import (
	"time"

	"github.com/leapstack-labs/leapaudit/internal/audit"
	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// Default configuration values.
const (
	DefaultTargetType     = "duckdb"
	DefaultCatalogType    = "file"
	DefaultCatalogPath    = "catalog.yaml"
	DefaultCatalogTimeout = 30 * time.Second
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// ApplyDefaults applies default values to a ProjectConfig.
func ApplyDefaults(c *core.ProjectConfig) {
	if c == nil {
		return
	}
	if c.Target == nil {
		c.Target = &core.TargetConfig{Type: DefaultTargetType}
	}
	ApplyTargetDefaults(c.Target)

	if c.Catalog == nil {
		c.Catalog = &core.CatalogConfig{}
	}
	ApplyCatalogDefaults(c.Catalog)

	if c.Audit == nil {
		c.Audit = &core.AuditConfig{}
	}
	ApplyAuditDefaults(c.Audit)

	if c.Architecture == nil {
		c.Architecture = &core.ArchitectureConfig{}
	}
	if c.Architecture.HTTPTimeout == 0 {
		c.Architecture.HTTPTimeout = DefaultHTTPTimeout
	}
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *core.TargetConfig) {
	if t == nil {
		return
	}
	if t.Type == "" {
		t.Type = DefaultTargetType
	}
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if t.Type == "postgres" && t.Port == 0 {
		t.Port = 5432
	}
}

// ApplyCatalogDefaults applies default values to a CatalogConfig.
func ApplyCatalogDefaults(c *core.CatalogConfig) {
	if c == nil {
		return
	}
	if c.Type == "" {
		c.Type = DefaultCatalogType
	}
	if c.Type == "file" && c.Path == "" {
		c.Path = DefaultCatalogPath
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultCatalogTimeout
	}
}

// ApplyAuditDefaults applies default values to an AuditConfig.
func ApplyAuditDefaults(a *core.AuditConfig) {
	if a == nil {
		return
	}
	if a.PartitionKey == "" {
		a.PartitionKey = audit.DefaultPartitionKey
	}
	if a.Concurrency <= 0 {
		a.Concurrency = audit.DefaultConcurrency
	}
	if a.CensusMode == "" {
		a.CensusMode = string(audit.CensusBatched)
	}
	if a.BatchColumns <= 0 {
		a.BatchColumns = audit.DefaultBatchColumns
	}
	if a.Retry.InitialBackoff == 0 {
		a.Retry.InitialBackoff = audit.DefaultInitialBackoff
	}
	if a.Retry.MaxBackoff == 0 {
		a.Retry.MaxBackoff = DefaultMaxBackoff
	}
}
