// Package config provides the project configuration shared by the CLI and
// any other tool that needs to build an Auditor from leapaudit.yaml.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapaudit/internal/audit"
	"github.com/leapstack-labs/leapaudit/pkg/adapter"
	"github.com/leapstack-labs/leapaudit/pkg/core"
	"github.com/leapstack-labs/leapaudit/pkg/dialect"
)

// DefaultSchemaForType returns the default schema for a warehouse type.
// It looks up the dialect in the registry; if not found, returns "main" as fallback.
func DefaultSchemaForType(dbType string) string {
	if d, ok := dialect.Get(strings.ToLower(dbType)); ok && d.DefaultSchema != "" {
		return d.DefaultSchema
	}
	return "main"
}

// ValidateTarget checks the target against the adapter registry.
func ValidateTarget(t *core.TargetConfig) error {
	if t == nil || t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	if strings.EqualFold(t.Type, "bigquery") && t.Project == "" {
		return fmt.Errorf("target project is required for bigquery")
	}
	return nil
}

// ValidateCatalog checks that the selected catalog type has its location.
func ValidateCatalog(c *core.CatalogConfig) error {
	if c == nil {
		return fmt.Errorf("catalog configuration is required")
	}
	switch c.Type {
	case "", "file":
		if c.Path == "" {
			return fmt.Errorf("catalog.path is required for file catalogs")
		}
	case "http":
		if c.URL == "" {
			return fmt.Errorf("catalog.url is required for http catalogs")
		}
	default:
		return fmt.Errorf("unknown catalog type %q (available: file, http)", c.Type)
	}
	return nil
}

// ValidateAudit checks the audit tuning values.
func ValidateAudit(a *core.AuditConfig) error {
	if a == nil {
		return nil
	}
	switch audit.CensusMode(a.CensusMode) {
	case "", audit.CensusBatched, audit.CensusPerColumn:
	default:
		return fmt.Errorf("unknown census mode %q (available: %s, %s)", a.CensusMode, audit.CensusBatched, audit.CensusPerColumn)
	}
	if a.Concurrency < 0 {
		return fmt.Errorf("audit.concurrency must not be negative")
	}
	if a.Retry.MaxRetries < 0 {
		return fmt.Errorf("audit.retry.max_retries must not be negative")
	}
	return nil
}

// AdapterConfig converts a target into the adapter connection settings.
// dataProject overrides the target project when set.
func AdapterConfig(t *core.TargetConfig, dataProject string) core.AdapterConfig {
	cfg := core.AdapterConfig{
		Type:            strings.ToLower(t.Type),
		Database:        t.Database,
		Host:            t.Host,
		Port:            t.Port,
		Username:        t.User,
		Password:        t.Password,
		Schema:          t.Schema,
		Project:         t.Project,
		Location:        t.Location,
		CredentialsFile: t.CredentialsFile,
		Options:         t.Options,
		Params:          t.Params,
	}
	if cfg.Type == "duckdb" {
		cfg.Path = t.Database
	}
	if dataProject != "" {
		cfg.Project = dataProject
	}
	return cfg
}

// AuditorConfig converts the audit section into Auditor tuning.
// Collaborators (adapter, catalog, loader, logger) are set by the caller.
func AuditorConfig(a *core.AuditConfig) audit.Config {
	if a == nil {
		return audit.Config{}
	}
	return audit.Config{
		PartitionKey:    a.PartitionKey,
		NoPartitioning:  a.NoPartitioning,
		Concurrency:     a.Concurrency,
		CensusMode:      audit.CensusMode(a.CensusMode),
		BatchColumns:    a.BatchColumns,
		Vocabulary:      a.Vocabulary,
		ExtraVocabulary: a.ExtraVocabulary,
		Retry:           a.Retry,
	}
}
