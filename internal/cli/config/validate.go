package config

import (
	"fmt"
	"slices"

	intconfig "github.com/leapstack-labs/leapaudit/internal/config"
)

// OutputFormats lists the accepted values of --output.
var OutputFormats = []string{"auto", "text", "markdown", "json", "csv"}

// DefaultSchemaForType returns the default schema for a warehouse type.
// This is a convenience wrapper that delegates to the shared config function.
func DefaultSchemaForType(dbType string) string {
	return intconfig.DefaultSchemaForType(dbType)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := intconfig.ValidateTarget(c.Target); err != nil {
		return fmt.Errorf("invalid target configuration: %w", err)
	}
	if err := intconfig.ValidateCatalog(c.Catalog); err != nil {
		return fmt.Errorf("invalid catalog configuration: %w", err)
	}
	if err := intconfig.ValidateAudit(c.Audit); err != nil {
		return fmt.Errorf("invalid audit configuration: %w", err)
	}

	if !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (available: %v)", c.OutputFormat, OutputFormats)
	}
	return nil
}
