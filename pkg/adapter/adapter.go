// Package adapter provides the query engine contract for leapaudit.
//
// This package contains the public contract that all warehouse adapters must implement.
// Concrete adapter implementations are in pkg/adapters/ subdirectories.
//
// Adapters only ever run read-only aggregate SQL: row counts, null counts and
// information-schema lookups. Results are small and are materialized into a
// core.Table before the driver cursor is released.
package adapter

import (
	"context"

	"github.com/leapstack-labs/leapaudit/pkg/core"
	"github.com/leapstack-labs/leapaudit/pkg/dialect"
)

type (
	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Table is an alias for core.Table.
	Table = core.Table
)

// Adapter defines the interface that all warehouse adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the warehouse using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Query executes a read-only SQL statement and returns its full result.
	// Args bind to the dialect's placeholders. Failures are *core.AuditError
	// values classified as EngineUnavailable, QueryRejected, TableNotFound,
	// DatasetNotFound or Cancelled.
	Query(ctx context.Context, sql string, args ...any) (*Table, error)

	// InformationSchema lists the live columns of a table in ordinal order,
	// normalized (trimmed, lowercased). An unknown table yields an empty slice.
	InformationSchema(ctx context.Context, ref core.TableRef) ([]core.InformationSchemaEntry, error)

	// Dialect returns the SQL dialect used to build audit queries.
	Dialect() *dialect.Dialect
}

type billingProjectKey struct{}

// WithBillingProject returns a context that attributes query cost to project.
// Adapters that bill per project (BigQuery) read it with BillingProject.
func WithBillingProject(ctx context.Context, project string) context.Context {
	if project == "" {
		return ctx
	}
	return context.WithValue(ctx, billingProjectKey{}, project)
}

// BillingProject returns the billing project carried by ctx, if any.
func BillingProject(ctx context.Context) string {
	if p, ok := ctx.Value(billingProjectKey{}).(string); ok {
		return p
	}
	return ""
}
