package bigquery

import "github.com/leapstack-labs/leapaudit/pkg/dialect"

// Dialect is the BigQuery standard SQL dialect.
var Dialect = &dialect.Dialect{
	Name:           "bigquery",
	Identifiers:    dialect.IdentifierConfig{Quote: "`", QuoteEnd: "`", Escape: "\\`"},
	Placeholder:    dialect.PlaceholderQuestion,
	QualifyProject: true,
	InfoSchema:     dialect.InfoSchemaDataset,
}
