// Package bigquery provides a BigQuery warehouse adapter for leapaudit.
//
// This file registers the BigQuery adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/leapaudit/pkg/adapters/bigquery"
package bigquery

import (
	"log/slog"

	"github.com/leapstack-labs/leapaudit/pkg/adapter"
	"github.com/leapstack-labs/leapaudit/pkg/dialect"
)

func init() {
	dialect.Register(Dialect)
	adapter.Register("bigquery", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
