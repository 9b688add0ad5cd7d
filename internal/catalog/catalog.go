// Package catalog provides the catalog clients that resolve the declared
// columns of a table.
//
// Two clients are available:
//   - file: a YAML (or JSON) document listing datasets, tables and columns
//   - http: a catalog service queried per table, rate limited with retry
package catalog

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// columnDoc is the wire shape of one catalog column, shared by the file
// document and the HTTP service response.
type columnDoc struct {
	Name            string              `json:"name" yaml:"name"`
	BigQueryType    string              `json:"bigquery_type" yaml:"bigquery_type"`
	DirectoryColumn *core.DirectoryLink `json:"directory_column,omitempty" yaml:"directory_column,omitempty"`
}

func (c columnDoc) descriptor() core.ColumnDescriptor {
	d := core.ColumnDescriptor{Name: c.Name, CatalogType: c.BigQueryType}
	if c.DirectoryColumn != nil && !c.DirectoryColumn.IsZero() {
		link := *c.DirectoryColumn
		d.DirectoryLink = &link
	}
	return d
}

func descriptors(cols []columnDoc) []core.ColumnDescriptor {
	out := make([]core.ColumnDescriptor, len(cols))
	for i, c := range cols {
		out[i] = c.descriptor()
	}
	return out
}

// New creates the catalog client selected by cfg.Type.
func New(cfg *core.CatalogConfig, logger *slog.Logger) (core.Catalog, error) {
	if cfg == nil {
		return nil, fmt.Errorf("catalog not configured")
	}
	switch strings.ToLower(cfg.Type) {
	case "file", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("catalog.path is required for the file catalog")
		}
		return LoadFile(cfg.Path, logger)
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("catalog.url is required for the http catalog")
		}
		return NewHTTP(&HTTPConfig{
			BaseURL:    cfg.URL,
			Token:      cfg.Token,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			RateBurst:  cfg.RateBurst,
			MaxRetries: cfg.MaxRetries,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown catalog type %q (available: file, http)", cfg.Type)
	}
}
