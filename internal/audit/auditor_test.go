package audit

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapaudit/pkg/adapters/duckdb"
	"github.com/leapstack-labs/leapaudit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
		check   func(t *testing.T, a *Auditor)
	}{
		{name: "missing adapter", cfg: Config{Catalog: &stubCatalog{}}, wantErr: "adapter is required"},
		{name: "missing catalog", cfg: Config{Adapter: duckdb.New(nil)}, wantErr: "catalog is required"},
		{
			name:    "unknown census mode",
			cfg:     Config{Adapter: duckdb.New(nil), Catalog: &stubCatalog{}, CensusMode: "sampled"},
			wantErr: "unknown census mode",
		},
		{
			name: "defaults",
			cfg:  Config{Adapter: duckdb.New(nil), Catalog: &stubCatalog{}},
			check: func(t *testing.T, a *Auditor) {
				assert.Equal(t, DefaultPartitionKey, a.partitionKey)
				assert.Equal(t, DefaultConcurrency, a.concurrency)
				assert.Equal(t, CensusBatched, a.mode)
				assert.Equal(t, DefaultBatchColumns, a.batchColumns)
				assert.Equal(t, 0, a.retryCfg.MaxRetries)
			},
		},
		{
			name: "partition key is normalized",
			cfg:  Config{Adapter: duckdb.New(nil), Catalog: &stubCatalog{}, PartitionKey: " Year "},
			check: func(t *testing.T, a *Auditor) {
				assert.Equal(t, "year", a.partitionKey)
			},
		},
		{
			name: "partitioning disabled",
			cfg:  Config{Adapter: duckdb.New(nil), Catalog: &stubCatalog{}, NoPartitioning: true},
			check: func(t *testing.T, a *Auditor) {
				assert.Empty(t, a.partitionKey)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, a)
		})
	}
}

func escolaFixture(t *testing.T) (*duckdb.Adapter, *stubCatalog) {
	t.Helper()
	adp := newDuckDB(t,
		"CREATE SCHEMA censo",
		"CREATE TABLE censo.escola (ano INTEGER, id_municipio VARCHAR, valor DOUBLE)",
		"INSERT INTO censo.escola VALUES (2020, '1', NULL), (2020, NULL, 1.5), (2021, '2', 2.0)",
	)
	catalog := &stubCatalog{tables: map[string][]core.ColumnDescriptor{
		"censo.escola": {
			{Name: "ano", CatalogType: "INT64"},
			{Name: "id_municipio", CatalogType: "STRING", DirectoryLink: &core.DirectoryLink{
				DatasetID: "diretorio", TableID: "municipio", ColumnName: "id_municipio",
			}},
			{Name: "valor", CatalogType: "FLOAT64"},
		},
	}}
	return adp, catalog
}

func TestAudit_FullReport(t *testing.T) {
	adp, catalog := escolaFixture(t)
	a := newAuditor(t, Config{
		Adapter: adp,
		Catalog: catalog,
		Architecture: stubLoader{entries: []core.ArchitectureEntry{
			core.NewArchitectureEntry("ano", "integer"),
			core.NewArchitectureEntry("id_municipio", "varchar"),
			core.NewArchitectureEntry("valor", "float64"),
		}},
	})

	report, err := a.Audit(context.Background(), req("censo", "escola"))
	require.NoError(t, err)
	require.NoError(t, report.SchemaErr)

	require.Len(t, report.Census.Rows, 2)
	assert.Equal(t, map[string]int64{"ano": 0, "id_municipio": 1, "valor": 1}, report.Census.Rows[0].NullCounts)
	assert.Equal(t, int64(3), report.Census.TotalRows())

	require.Len(t, report.Schema, 3)
	assert.Equal(t, 1, core.Mismatches(report.Schema), "valor is double in the warehouse")

	require.Len(t, report.Links, 3)
	assert.True(t, report.Links[1].HasLink())
}

func TestAudit_InvalidArchitectureKeepsOtherResults(t *testing.T) {
	adp, catalog := escolaFixture(t)
	invalid := core.Errorf(core.ArchitectureResourceInvalid, "architecture", "missing required columns: name")
	a := newAuditor(t, Config{Adapter: adp, Catalog: catalog, Architecture: stubLoader{err: invalid}})

	report, err := a.Audit(context.Background(), req("censo", "escola"))
	require.NoError(t, err)
	assert.ErrorIs(t, report.SchemaErr, core.ErrArchitectureResourceInvalid)
	assert.Nil(t, report.Schema)
	assert.Len(t, report.Census.Rows, 2)
	assert.Len(t, report.Links, 3)
}

func TestAudit_EngineFailureAbortsReport(t *testing.T) {
	adp, catalog := escolaFixture(t)
	failing := &recordingAdapter{Adapter: adp, failures: 100, failWith: core.EngineUnavailable}
	a := newAuditor(t, Config{Adapter: failing, Catalog: catalog, Architecture: stubLoader{}})

	report, err := a.Audit(context.Background(), req("censo", "escola"))
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, core.ErrEngineUnavailable)
}

func TestAudit_CatalogFailureBeforeAnyQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	a := newAuditor(t, Config{
		Adapter:      newMockDuckDB(db),
		Catalog:      &stubCatalog{tables: map[string][]core.ColumnDescriptor{}},
		Architecture: stubLoader{},
	})

	_, err = a.Audit(context.Background(), req("censo", "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTableNotFound)

	var ae *core.AuditError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "censo", ae.Dataset)
	assert.Equal(t, "missing", ae.Table)
	require.NoError(t, mock.ExpectationsWereMet(), "no warehouse query was issued")
}
