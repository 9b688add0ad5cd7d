// Package config provides configuration management for the leapaudit CLI.
//
// The shared sections (target, catalog, audit, architecture) are defined in
// pkg/core and re-exported here via type aliases; this package adds the
// CLI-only fields and the layered loading of leapaudit.yaml.
package config

import (
	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = core.TargetConfig

// CatalogConfig is an alias for the shared catalog configuration.
type CatalogConfig = core.CatalogConfig

// AuditConfig is an alias for the shared audit configuration.
type AuditConfig = core.AuditConfig

// ArchitectureConfig is an alias for the shared architecture configuration.
type ArchitectureConfig = core.ArchitectureConfig

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`

	Environment  string `koanf:"environment"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	// BillingProject is charged for warehouse queries of this invocation.
	BillingProject string `koanf:"billing_project"`
	// DataProject overrides target.project as the project hosting the datasets.
	DataProject string `koanf:"data_project"`

	Target       *TargetConfig        `koanf:"target"`
	Catalog      *CatalogConfig       `koanf:"catalog"`
	Audit        *AuditConfig         `koanf:"audit"`
	Architecture *ArchitectureConfig  `koanf:"architecture"`
	Environments map[string]EnvConfig `koanf:"environments"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	Target         *TargetConfig `koanf:"target"`
	BillingProject string        `koanf:"billing_project"`
	DataProject    string        `koanf:"data_project"`
}

// Project returns the shared sections as a core.ProjectConfig.
func (c *Config) Project() *core.ProjectConfig {
	return &core.ProjectConfig{
		Target:       c.Target,
		Catalog:      c.Catalog,
		Audit:        c.Audit,
		Architecture: c.Architecture,
	}
}

// Default configuration values.
const (
	DefaultOutput = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	EnvPrefix     = "LEAPAUDIT_"
)
