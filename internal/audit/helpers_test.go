package audit

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/leapstack-labs/leapaudit/internal/testutil"
	"github.com/leapstack-labs/leapaudit/pkg/adapter"
	"github.com/leapstack-labs/leapaudit/pkg/adapters/duckdb"
	"github.com/leapstack-labs/leapaudit/pkg/core"
	"github.com/stretchr/testify/require"
)

// stubCatalog serves descriptors keyed by "dataset.table".
type stubCatalog struct {
	tables map[string][]core.ColumnDescriptor
	calls  atomic.Int32
}

func (s *stubCatalog) Columns(_ context.Context, datasetID, tableID string) ([]core.ColumnDescriptor, error) {
	s.calls.Add(1)
	cols, ok := s.tables[datasetID+"."+tableID]
	if !ok {
		return nil, core.Errorf(core.TableNotFound, "catalog", "unknown table %s.%s", datasetID, tableID)
	}
	out := make([]core.ColumnDescriptor, len(cols))
	for i, c := range cols {
		out[i] = c.Clone()
	}
	return out, nil
}

// stubLoader returns fixed architecture entries.
type stubLoader struct {
	entries []core.ArchitectureEntry
	err     error
}

func (s stubLoader) Load(_ context.Context, _ string) ([]core.ArchitectureEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]core.ArchitectureEntry(nil), s.entries...), nil
}

// recordingAdapter wraps an adapter, failing the first queries and
// recording the billing project seen by every query.
type recordingAdapter struct {
	adapter.Adapter

	mu       sync.Mutex
	failures  int
	failWith  core.ErrorKind
	permanent bool
	queries   []string
	billing   []string
}

func (r *recordingAdapter) Query(ctx context.Context, q string, args ...any) (*core.Table, error) {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	r.billing = append(r.billing, adapter.BillingProject(ctx))
	fail := r.failures > 0
	if fail {
		r.failures--
	}
	r.mu.Unlock()

	if fail {
		e := core.Errorf(r.failWith, "query", "injected failure")
		e.Permanent = r.permanent
		return nil, e
	}
	return r.Adapter.Query(ctx, q, args...)
}

func (r *recordingAdapter) queryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

// newDuckDB returns a connected in-memory DuckDB adapter seeded with stmts.
func newDuckDB(t *testing.T, stmts ...string) *duckdb.Adapter {
	t.Helper()
	adp := duckdb.New(testutil.NewTestLogger(t))
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Path: ":memory:"}))
	t.Cleanup(func() { _ = adp.Close() })

	for _, s := range stmts {
		_, err := adp.DB.ExecContext(context.Background(), s)
		require.NoError(t, err, s)
	}
	return adp
}

// newMockDuckDB returns a DuckDB-dialect adapter backed by db.
func newMockDuckDB(db *sql.DB) *duckdb.Adapter {
	adp := duckdb.New(nil)
	adp.DB = db
	return adp
}

func newAuditor(t *testing.T, cfg Config) *Auditor {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = testutil.NewTestLogger(t)
	}
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func cols(names ...string) []core.ColumnDescriptor {
	out := make([]core.ColumnDescriptor, len(names))
	for i, n := range names {
		out[i] = core.ColumnDescriptor{Name: n}
	}
	return out
}

func req(dataset, table string) AuditRequest {
	return AuditRequest{Table: core.TableRef{Dataset: dataset, Table: table}}
}
