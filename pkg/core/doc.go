// Package core defines the shared language of the leapaudit system.
//
// This package contains:
//   - Domain entities (ColumnDescriptor, ArchitectureEntry, InformationSchemaEntry)
//   - Report rows (NullCensusRow, ReconciliationRow, DirectoryLinkRow)
//   - Service interfaces (Catalog) and the tabular query result (Table)
//   - Configuration types (AdapterConfig, TargetConfig)
//   - Typed audit errors (AuditError, ErrorKind)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
