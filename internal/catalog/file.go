package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// fileDoc is the catalog document layout:
//
//	datasets:
//	  br_inep_censo_escolar:
//	    tables:
//	      escola:
//	        columns:
//	          - name: id_municipio
//	            bigquery_type: STRING
//	            directory_column:
//	              dataset_id: br_bd_diretorios_brasil
//	              table_id: municipio
//	              column_name: id_municipio
type fileDoc struct {
	Datasets map[string]struct {
		Tables map[string]struct {
			Columns []columnDoc `yaml:"columns"`
		} `yaml:"tables"`
	} `yaml:"datasets"`
}

// FileCatalog serves column metadata from an in-memory document.
type FileCatalog struct {
	datasets map[string]map[string][]core.ColumnDescriptor
	logger   *slog.Logger
}

// LoadFile reads a catalog document from path.
func LoadFile(path string, logger *slog.Logger) (*FileCatalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user config
	if err != nil {
		return nil, core.NewError(core.CatalogUnavailable, "catalog", fmt.Errorf("failed to read catalog file: %w", err))
	}
	return ParseFile(data, logger)
}

// ParseFile parses a catalog document. JSON is accepted as a subset of YAML.
func ParseFile(data []byte, logger *slog.Logger) (*FileCatalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, core.NewError(core.CatalogUnavailable, "catalog", fmt.Errorf("failed to parse catalog file: %w", err))
	}

	c := &FileCatalog{
		datasets: make(map[string]map[string][]core.ColumnDescriptor, len(doc.Datasets)),
		logger:   logger,
	}
	for ds, dataset := range doc.Datasets {
		tables := make(map[string][]core.ColumnDescriptor, len(dataset.Tables))
		for t, table := range dataset.Tables {
			tables[t] = descriptors(table.Columns)
		}
		c.datasets[ds] = tables
	}
	logger.Debug("catalog file loaded", slog.Int("datasets", len(c.datasets)))
	return c, nil
}

// Columns returns the declared columns of a table in declaration order.
func (c *FileCatalog) Columns(ctx context.Context, datasetID, tableID string) ([]core.ColumnDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewError(core.Cancelled, "catalog", err)
	}

	tables, ok := c.datasets[datasetID]
	if !ok {
		e := core.Errorf(core.DatasetNotFound, "catalog", "dataset %q is not in the catalog", datasetID)
		e.Dataset = datasetID
		return nil, e
	}
	cols, ok := tables[tableID]
	if !ok {
		return nil, core.Errorf(core.TableNotFound, "catalog", "table %q is not in the catalog", tableID).
			WithTable(core.TableRef{Dataset: datasetID, Table: tableID})
	}

	out := make([]core.ColumnDescriptor, len(cols))
	for i, col := range cols {
		out[i] = col.Clone()
	}
	return out, nil
}

var _ core.Catalog = (*FileCatalog)(nil)
