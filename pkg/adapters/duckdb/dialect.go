package duckdb

import "github.com/leapstack-labs/leapaudit/pkg/dialect"

// Dialect is the DuckDB SQL dialect.
var Dialect = &dialect.Dialect{
	Name:          "duckdb",
	Identifiers:   dialect.IdentifierConfig{Quote: `"`, QuoteEnd: `"`, Escape: `""`},
	DefaultSchema: "main",
	Placeholder:   dialect.PlaceholderQuestion,
	InfoSchema:    dialect.InfoSchemaDatabase,
}
