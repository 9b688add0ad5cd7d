package postgres

import "github.com/leapstack-labs/leapaudit/pkg/dialect"

// Dialect is the PostgreSQL SQL dialect.
var Dialect = &dialect.Dialect{
	Name:          "postgres",
	Identifiers:   dialect.IdentifierConfig{Quote: `"`, QuoteEnd: `"`, Escape: `""`},
	DefaultSchema: "public",
	Placeholder:   dialect.PlaceholderDollar,
	InfoSchema:    dialect.InfoSchemaDatabase,
}
