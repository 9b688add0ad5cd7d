// Package dialect provides the SQL dialect settings the audit queries depend on.
//
// This package contains the public contract for dialect definitions used by the
// adapters and the census/reconciliation query builders. Concrete dialects are
// registered from pkg/adapters/*/ packages.
package dialect

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, BigQuery positional).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. (PostgreSQL).
	PlaceholderDollar
)

// IdentifierConfig defines how identifiers are quoted.
type IdentifierConfig struct {
	Quote    string // Opening quote character: ", `
	QuoteEnd string // Closing quote character
	Escape   string // Replacement for QuoteEnd inside a name: "" or \`
}

// InfoSchemaScope defines where the information schema lives.
type InfoSchemaScope int

const (
	// InfoSchemaDatabase is a single information_schema filtered by table_schema.
	InfoSchemaDatabase InfoSchemaScope = iota
	// InfoSchemaDataset is a per-dataset INFORMATION_SCHEMA (BigQuery).
	InfoSchemaDataset
)

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name        string
	Identifiers IdentifierConfig

	// DefaultSchema is used when a table reference has no dataset ("main" for DuckDB).
	DefaultSchema string
	Placeholder   PlaceholderStyle

	// QualifyProject prefixes table references with the project (BigQuery).
	QualifyProject bool
	InfoSchema     InfoSchemaScope
}

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
// Returns "?" for PlaceholderQuestion style, "$1", "$2" etc. for PlaceholderDollar style.
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	default: // PlaceholderQuestion
		return "?"
	}
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// TableReference renders a quoted, qualified table reference.
func (d *Dialect) TableReference(ref core.TableRef) string {
	dataset := ref.Dataset
	if dataset == "" {
		dataset = d.DefaultSchema
	}
	parts := make([]string, 0, 3)
	if d.QualifyProject && ref.Project != "" {
		parts = append(parts, d.QuoteIdentifier(ref.Project))
	}
	if dataset != "" {
		parts = append(parts, d.QuoteIdentifier(dataset))
	}
	parts = append(parts, d.QuoteIdentifier(ref.Table))
	return strings.Join(parts, ".")
}

// InformationSchemaQuery returns the query listing the live columns of
// ref in ordinal order, and its arguments. The result has two columns:
// column_name and data_type.
func (d *Dialect) InformationSchemaQuery(ref core.TableRef) (string, []any) {
	if d.InfoSchema == InfoSchemaDataset {
		scope := d.QuoteIdentifier(ref.Dataset)
		if d.QualifyProject && ref.Project != "" {
			scope = d.QuoteIdentifier(ref.Project) + "." + scope
		}
		return "SELECT column_name, data_type FROM " + scope +
			".INFORMATION_SCHEMA.COLUMNS WHERE table_name = " + d.FormatPlaceholder(1) +
			" ORDER BY ordinal_position", []any{ref.Table}
	}

	dataset := ref.Dataset
	if dataset == "" {
		dataset = d.DefaultSchema
	}
	return "SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = " +
		d.FormatPlaceholder(1) + " AND table_name = " + d.FormatPlaceholder(2) +
		" ORDER BY ordinal_position", []any{dataset, ref.Table}
}
