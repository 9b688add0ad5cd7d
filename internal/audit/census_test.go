package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapaudit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func yearlyTable(t *testing.T) (*stubCatalog, []string) {
	t.Helper()
	catalog := &stubCatalog{tables: map[string][]core.ColumnDescriptor{
		"main.valores": cols("year", "id", "valor"),
	}}
	seed := []string{
		"CREATE TABLE valores (year INTEGER, id INTEGER, valor DOUBLE)",
		"INSERT INTO valores SELECT 2019, i, CASE WHEN i < 5 THEN NULL ELSE i END FROM range(100) r(i)",
		"INSERT INTO valores SELECT 2020, i, i FROM range(150) r(i)",
	}
	return catalog, seed
}

func TestCensus_Partitioned(t *testing.T) {
	catalog, seed := yearlyTable(t)

	for _, mode := range []CensusMode{CensusBatched, CensusPerColumn} {
		t.Run(string(mode), func(t *testing.T) {
			a := newAuditor(t, Config{
				Adapter:      newDuckDB(t, seed...),
				Catalog:      catalog,
				PartitionKey: "year",
				CensusMode:   mode,
			})

			census, err := a.Census(context.Background(), req("main", "valores"))
			require.NoError(t, err)

			assert.Equal(t, "year", census.PartitionKey)
			assert.Equal(t, []string{"year", "id", "valor"}, census.Columns)
			require.Len(t, census.Rows, 2)

			assert.Equal(t, "2019", census.Rows[0].Partition.String())
			assert.Equal(t, int64(100), census.Rows[0].TableSize)
			assert.Equal(t, map[string]int64{"year": 0, "id": 0, "valor": 5}, census.Rows[0].NullCounts)

			assert.Equal(t, "2020", census.Rows[1].Partition.String())
			assert.Equal(t, int64(150), census.Rows[1].TableSize)
			assert.Equal(t, map[string]int64{"year": 0, "id": 0, "valor": 0}, census.Rows[1].NullCounts)
		})
	}
}

func TestCensus_Unpartitioned(t *testing.T) {
	a := newAuditor(t, Config{
		Adapter: newDuckDB(t,
			"CREATE TABLE plain (a INTEGER, b VARCHAR, x DOUBLE)",
			"INSERT INTO plain SELECT i, 'v', CASE WHEN i % 5 = 0 THEN NULL ELSE i END FROM range(50) r(i)",
		),
		Catalog: &stubCatalog{tables: map[string][]core.ColumnDescriptor{"main.plain": cols("a", "b", "x")}},
	})

	census, err := a.Census(context.Background(), req("main", "plain"))
	require.NoError(t, err)

	assert.Empty(t, census.PartitionKey)
	require.Len(t, census.Rows, 1)
	assert.Nil(t, census.Rows[0].Partition)
	assert.Equal(t, int64(50), census.Rows[0].TableSize)
	assert.Equal(t, map[string]int64{"a": 0, "b": 0, "x": 10}, census.Rows[0].NullCounts)
}

func TestCensus_EmptyPartitionedTable(t *testing.T) {
	a := newAuditor(t, Config{
		Adapter: newDuckDB(t, "CREATE TABLE vazia (ano INTEGER, valor DOUBLE)"),
		Catalog: &stubCatalog{tables: map[string][]core.ColumnDescriptor{"main.vazia": cols("ano", "valor")}},
	})

	census, err := a.Census(context.Background(), req("main", "vazia"))
	require.NoError(t, err)
	assert.Empty(t, census.Rows)
	assert.NotNil(t, census.Rows)
	assert.Equal(t, int64(0), census.TotalRows())
}

func TestCensus_EmptyUnpartitionedTable(t *testing.T) {
	a := newAuditor(t, Config{
		Adapter: newDuckDB(t, "CREATE TABLE vazia (valor DOUBLE)"),
		Catalog: &stubCatalog{tables: map[string][]core.ColumnDescriptor{"main.vazia": cols("valor")}},
	})

	census, err := a.Census(context.Background(), req("main", "vazia"))
	require.NoError(t, err)
	require.Len(t, census.Rows, 1)
	assert.Equal(t, map[string]int64{"valor": 0}, census.Rows[0].NullCounts)
}

func TestCensus_NullPartitionCounted(t *testing.T) {
	a := newAuditor(t, Config{
		Adapter: newDuckDB(t,
			"CREATE TABLE t (ano INTEGER, valor DOUBLE)",
			"INSERT INTO t VALUES (2020, 1), (2020, NULL), (NULL, NULL), (NULL, 2), (NULL, NULL), (2019, NULL)",
		),
		Catalog: &stubCatalog{tables: map[string][]core.ColumnDescriptor{"main.t": cols("ANO", "valor")}},
	})

	census, err := a.Census(context.Background(), req("main", "t"))
	require.NoError(t, err)

	require.Len(t, census.Rows, 3)
	assert.Equal(t, "2019", census.Rows[0].Partition.String())
	assert.Equal(t, "2020", census.Rows[1].Partition.String())
	assert.True(t, census.Rows[2].Partition.Null)
	assert.Equal(t, int64(3), census.Rows[2].TableSize)
	assert.Equal(t, map[string]int64{"ANO": 3, "valor": 2}, census.Rows[2].NullCounts)
	assert.Equal(t, int64(6), census.TotalRows(), "partition sizes sum to the table row count")
}

func TestCensus_DecimalPartitionKey(t *testing.T) {
	tests := []struct {
		name     string
		keyType  string
		keys     [3]string
		wantKeys []string
	}{
		{name: "integral decimal", keyType: "DECIMAL(4,0)", keys: [3]string{"2020", "2019", "2100"}, wantKeys: []string{"2019", "2020", "2100"}},
		{name: "fractional decimal", keyType: "DECIMAL(6,2)", keys: [3]string{"10.50", "9.25", "100.00"}, wantKeys: []string{"9.25", "10.5", "100"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAuditor(t, Config{
				Adapter: newDuckDB(t,
					"CREATE TABLE t (ano "+tt.keyType+", valor INTEGER)",
					"INSERT INTO t VALUES ("+tt.keys[0]+", 1), ("+tt.keys[0]+", NULL), ("+tt.keys[1]+", NULL), ("+tt.keys[2]+", 3)",
				),
				Catalog: &stubCatalog{tables: map[string][]core.ColumnDescriptor{"main.t": cols("ano", "valor")}},
			})

			census, err := a.Census(context.Background(), req("main", "t"))
			require.NoError(t, err)

			require.Len(t, census.Rows, 3)
			var keys []string
			for _, row := range census.Rows {
				keys = append(keys, row.Partition.String())
			}
			assert.Equal(t, tt.wantKeys, keys, "keys sort numerically")

			nulls := map[string]int64{}
			for _, row := range census.Rows {
				nulls[row.Partition.String()] = row.NullCounts["valor"]
			}
			assert.Equal(t, map[string]int64{tt.wantKeys[0]: 1, tt.wantKeys[1]: 1, tt.wantKeys[2]: 0}, nulls)
			assert.Equal(t, int64(4), census.TotalRows())
		})
	}
}

func TestCensus_ModesAgreeAcrossBatchSizes(t *testing.T) {
	seed := []string{
		"CREATE TABLE wide (ano INTEGER, c1 INTEGER, c2 VARCHAR, c3 DOUBLE, c4 DATE, c5 BOOLEAN)",
		`INSERT INTO wide SELECT
			CASE WHEN i % 7 = 0 THEN NULL ELSE 2000 + i % 3 END,
			CASE WHEN i % 2 = 0 THEN NULL ELSE i END,
			CASE WHEN i % 3 = 0 THEN NULL ELSE 'x' END,
			CASE WHEN i % 5 = 0 THEN NULL ELSE i END,
			CASE WHEN i % 4 = 0 THEN NULL ELSE DATE '2020-01-01' END,
			NULL
		FROM range(90) r(i)`,
	}
	catalog := &stubCatalog{tables: map[string][]core.ColumnDescriptor{
		"main.wide": cols("ano", "c1", "c2", "c3", "c4", "c5"),
	}}
	adp := newDuckDB(t, seed...)

	configs := []Config{
		{CensusMode: CensusBatched},
		{CensusMode: CensusBatched, BatchColumns: 2},
		{CensusMode: CensusBatched, BatchColumns: 1, Concurrency: 1},
		{CensusMode: CensusPerColumn, Concurrency: 8},
	}

	var reference *core.NullCensus
	for _, cfg := range configs {
		cfg.Adapter = adp
		cfg.Catalog = catalog
		census, err := newAuditor(t, cfg).Census(context.Background(), req("main", "wide"))
		require.NoError(t, err)

		var total int64
		for _, row := range census.Rows {
			total += row.TableSize
			for c, n := range row.NullCounts {
				assert.GreaterOrEqual(t, n, int64(0), c)
				assert.LessOrEqual(t, n, row.TableSize, c)
			}
		}
		assert.Equal(t, int64(90), total)

		if reference == nil {
			reference = census
			continue
		}
		assert.Equal(t, reference, census, "mode %s batch %d", cfg.CensusMode, cfg.BatchColumns)
	}
}

func TestCensus_QueryShape(t *testing.T) {
	tests := []struct {
		name   string
		mode   CensusMode
		expect func(mock sqlmock.Sqlmock)
	}{
		{
			name: "batched",
			mode: CensusBatched,
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT "ano", COUNT(*) FROM "censo"."escola" GROUP BY "ano"`).
					WillReturnRows(sqlmock.NewRows([]string{"ano", "n"}).
						AddRow(int64(2021), int64(8)).
						AddRow(nil, int64(2)))
				mock.ExpectQuery(`SELECT COUNT(*) - COUNT("ano"), COUNT(*) - COUNT("rede") FROM "censo"."escola" WHERE "ano" = ?`).
					WithArgs(int64(2021)).
					WillReturnRows(sqlmock.NewRows([]string{"a", "b"}).AddRow(int64(0), int64(3)))
				mock.ExpectQuery(`SELECT COUNT(*) - COUNT("ano"), COUNT(*) - COUNT("rede") FROM "censo"."escola" WHERE "ano" IS NULL`).
					WithoutArgs().
					WillReturnRows(sqlmock.NewRows([]string{"a", "b"}).AddRow(int64(2), int64(1)))
			},
		},
		{
			name: "per column",
			mode: CensusPerColumn,
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT "ano", COUNT(*) FROM "censo"."escola" GROUP BY "ano"`).
					WillReturnRows(sqlmock.NewRows([]string{"ano", "n"}).
						AddRow(int64(2021), int64(8)).
						AddRow(nil, int64(2)))
				scalar := func(n int64) *sqlmock.Rows { return sqlmock.NewRows([]string{"n"}).AddRow(n) }
				mock.ExpectQuery(`SELECT COUNT(*) FROM "censo"."escola" WHERE "ano" IS NULL AND "ano" = ?`).
					WithArgs(int64(2021)).WillReturnRows(scalar(0))
				mock.ExpectQuery(`SELECT COUNT(*) FROM "censo"."escola" WHERE "rede" IS NULL AND "ano" = ?`).
					WithArgs(int64(2021)).WillReturnRows(scalar(3))
				mock.ExpectQuery(`SELECT COUNT(*) FROM "censo"."escola" WHERE "ano" IS NULL AND "ano" IS NULL`).
					WithoutArgs().WillReturnRows(scalar(2))
				mock.ExpectQuery(`SELECT COUNT(*) FROM "censo"."escola" WHERE "rede" IS NULL AND "ano" IS NULL`).
					WithoutArgs().WillReturnRows(scalar(1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tt.expect(mock)

			a := newAuditor(t, Config{
				Adapter:     newMockDuckDB(db),
				Catalog:     &stubCatalog{tables: map[string][]core.ColumnDescriptor{"censo.escola": cols("ano", "rede")}},
				CensusMode:  tt.mode,
				Concurrency: 1,
			})

			census, err := a.Census(context.Background(), req("censo", "escola"))
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet())

			require.Len(t, census.Rows, 2)
			assert.Equal(t, map[string]int64{"ano": 0, "rede": 3}, census.Rows[0].NullCounts)
			assert.Equal(t, map[string]int64{"ano": 2, "rede": 1}, census.Rows[1].NullCounts)
		})
	}
}

func TestCensus_QuotesNormalizedNames(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT "ano", COUNT(*) FROM "censo"."escola" GROUP BY "ano"`).
		WillReturnRows(sqlmock.NewRows([]string{"ano", "n"}).AddRow(int64(2021), int64(4)))
	mock.ExpectQuery(`SELECT COUNT(*) - COUNT("ano"), COUNT(*) - COUNT("id_municipio") FROM "censo"."escola" WHERE "ano" = ?`).
		WithArgs(int64(2021)).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b"}).AddRow(int64(0), int64(1)))

	a := newAuditor(t, Config{
		Adapter:     newMockDuckDB(db),
		Catalog:     &stubCatalog{tables: map[string][]core.ColumnDescriptor{"censo.escola": cols("Ano", "Id_Municipio")}},
		Concurrency: 1,
	})

	census, err := a.Census(context.Background(), req("censo", "escola"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, map[string]int64{"Ano": 0, "Id_Municipio": 1}, census.Rows[0].NullCounts)
}

func TestCensus_RejectsCountsOutOfBounds(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT COUNT(*) FROM "main"."t"`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(10)))
	mock.ExpectQuery(`SELECT COUNT(*) - COUNT("v") FROM "main"."t"`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(11)))

	a := newAuditor(t, Config{
		Adapter: newMockDuckDB(db),
		Catalog: &stubCatalog{tables: map[string][]core.ColumnDescriptor{"main.t": cols("v")}},
	})

	census, err := a.Census(context.Background(), req("main", "t"))
	require.Error(t, err)
	assert.Nil(t, census)
	assert.Equal(t, core.QueryRejected, core.KindOf(err))

	var ae *core.AuditError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "v", ae.Column)
	assert.Equal(t, "t", ae.Table)
}

func TestCensus_Errors(t *testing.T) {
	adp := newDuckDB(t, "CREATE TABLE t (ano INTEGER, v INTEGER)", "INSERT INTO t VALUES (1, 1)")

	tests := []struct {
		name    string
		catalog map[string][]core.ColumnDescriptor
		request AuditRequest
		want    core.ErrorKind
	}{
		{
			name:    "catalog does not know the table",
			catalog: map[string][]core.ColumnDescriptor{},
			request: req("main", "t"),
			want:    core.TableNotFound,
		},
		{
			name:    "warehouse does not know the table",
			catalog: map[string][]core.ColumnDescriptor{"main.gone": cols("v")},
			request: req("main", "gone"),
			want:    core.TableNotFound,
		},
		{
			name:    "column missing from the warehouse",
			catalog: map[string][]core.ColumnDescriptor{"main.t": cols("ano", "nope")},
			request: req("main", "t"),
			want:    core.QueryRejected,
		},
		{
			name:    "invalid request",
			catalog: map[string][]core.ColumnDescriptor{},
			request: req("", "t"),
			want:    core.QueryRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAuditor(t, Config{Adapter: adp, Catalog: &stubCatalog{tables: tt.catalog}})
			census, err := a.Census(context.Background(), tt.request)
			require.Error(t, err)
			assert.Nil(t, census, "no partial census on failure")
			assert.Equal(t, tt.want, core.KindOf(err))
		})
	}
}

// blockingAdapter holds every query until its context ends.
type blockingAdapter struct {
	recordingAdapter
	started chan struct{}
	once    sync.Once
}

func (b *blockingAdapter) Query(ctx context.Context, _ string, _ ...any) (*core.Table, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return nil, core.NewError(core.Cancelled, "query", ctx.Err())
}

func TestCensus_Cancelled(t *testing.T) {
	adp := &blockingAdapter{started: make(chan struct{})}
	adp.Adapter = newDuckDB(t)
	a := newAuditor(t, Config{
		Adapter: adp,
		Catalog: &stubCatalog{tables: map[string][]core.ColumnDescriptor{"main.t": cols("v")}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-adp.started
		cancel()
	}()

	census, err := a.Census(ctx, req("main", "t"))
	require.Error(t, err)
	assert.Nil(t, census)
	assert.True(t, errors.Is(err, core.ErrCancelled))
}

func TestCensus_CancelledBeforeStart(t *testing.T) {
	catalog := &stubCatalog{tables: map[string][]core.ColumnDescriptor{"main.t": cols("v")}}
	a := newAuditor(t, Config{Adapter: newDuckDB(t), Catalog: catalog})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Census(ctx, req("main", "t"))
	assert.Equal(t, core.Cancelled, core.KindOf(err))
	assert.Equal(t, int32(0), catalog.calls.Load())
}

func TestCensus_Retry(t *testing.T) {
	_, seed := yearlyTable(t)
	catalog := &stubCatalog{tables: map[string][]core.ColumnDescriptor{"main.valores": cols("valor")}}

	tests := []struct {
		name      string
		failures  int
		failWith  core.ErrorKind
		permanent bool
		retry     core.RetryConfig
		wantErr   core.ErrorKind
		wantCalls int
	}{
		{
			name:      "disabled by default",
			failures:  1,
			failWith:  core.EngineUnavailable,
			wantErr:   core.EngineUnavailable,
			wantCalls: 1,
		},
		{
			name:      "transient failures recovered",
			failures:  2,
			failWith:  core.EngineUnavailable,
			retry:     core.RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond},
			wantCalls: 4,
		},
		{
			name:      "retries exhausted",
			failures:  5,
			failWith:  core.EngineUnavailable,
			retry:     core.RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
			wantErr:   core.EngineUnavailable,
			wantCalls: 3,
		},
		{
			name:      "rejected credentials are not retried",
			failures:  1,
			failWith:  core.EngineUnavailable,
			permanent: true,
			retry:     core.RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond},
			wantErr:   core.EngineUnavailable,
			wantCalls: 1,
		},
		{
			name:      "rejected queries are not retried",
			failures:  1,
			failWith:  core.QueryRejected,
			retry:     core.RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond},
			wantErr:   core.QueryRejected,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adp := &recordingAdapter{Adapter: newDuckDB(t, seed...), failures: tt.failures, failWith: tt.failWith, permanent: tt.permanent}
			a := newAuditor(t, Config{Adapter: adp, Catalog: catalog, Retry: tt.retry, NoPartitioning: true})

			census, err := a.Census(context.Background(), req("main", "valores"))
			if tt.wantErr != core.KindUnknown {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, core.KindOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, int64(250), census.Rows[0].TableSize)
				assert.Equal(t, int64(5), census.Rows[0].NullCounts["valor"])
			}
			assert.Equal(t, tt.wantCalls, adp.queryCount())
		})
	}
}

func TestCensus_Progress(t *testing.T) {
	catalog, seed := yearlyTable(t)

	var mu sync.Mutex
	var calls [][2]int
	a := newAuditor(t, Config{
		Adapter:      newDuckDB(t, seed...),
		Catalog:      catalog,
		PartitionKey: "year",
		CensusMode:   CensusPerColumn,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, [2]int{done, total})
		},
	})

	_, err := a.Census(context.Background(), req("main", "valores"))
	require.NoError(t, err)

	require.Len(t, calls, 6, "two partitions times three columns")
	assert.Equal(t, [2]int{6, 6}, calls[len(calls)-1])
}

func TestCensus_BillingProjectPerRequest(t *testing.T) {
	catalog, seed := yearlyTable(t)
	adp := &recordingAdapter{Adapter: newDuckDB(t, seed...)}
	a := newAuditor(t, Config{Adapter: adp, Catalog: catalog, PartitionKey: "year"})

	r := req("main", "valores")
	r.BillingProject = "billing-a"
	_, err := a.Census(context.Background(), r)
	require.NoError(t, err)

	r.BillingProject = "billing-b"
	_, err = a.Census(context.Background(), r)
	require.NoError(t, err)

	adp.mu.Lock()
	defer adp.mu.Unlock()
	half := len(adp.billing) / 2
	require.Positive(t, half)
	for i, b := range adp.billing {
		want := "billing-a"
		if i >= half {
			want = "billing-b"
		}
		assert.Equal(t, want, b)
	}
}

func TestCensus_Idempotent(t *testing.T) {
	catalog, seed := yearlyTable(t)
	a := newAuditor(t, Config{Adapter: newDuckDB(t, seed...), Catalog: catalog, PartitionKey: "year"})

	first, err := a.Census(context.Background(), req("main", "valores"))
	require.NoError(t, err)
	second, err := a.Census(context.Background(), req("main", "valores"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	first.Rows[0].NullCounts["valor"] = 99
	assert.Equal(t, int64(5), second.Rows[0].NullCounts["valor"])
}

func TestCensus_RetryStopsOnCancel(t *testing.T) {
	_, seed := yearlyTable(t)
	catalog := &stubCatalog{tables: map[string][]core.ColumnDescriptor{"main.valores": cols("valor")}}
	adp := &recordingAdapter{Adapter: newDuckDB(t, seed...), failures: 10, failWith: core.EngineUnavailable}
	a := newAuditor(t, Config{
		Adapter:        adp,
		Catalog:        catalog,
		Retry:          core.RetryConfig{MaxRetries: 5, InitialBackoff: time.Hour},
		NoPartitioning: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := a.Census(ctx, req("main", "valores"))
	require.Error(t, err)
	assert.Equal(t, core.Cancelled, core.KindOf(err))
	assert.Equal(t, 1, adp.queryCount())
}
