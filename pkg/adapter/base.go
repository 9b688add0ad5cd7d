package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapaudit/pkg/core"
	"github.com/leapstack-labs/leapaudit/pkg/dialect"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Query and information-schema implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger

	// Classify maps driver errors to audit error kinds.
	// Nil uses ClassifyError.
	Classify func(error) core.ErrorKind

	// Permanent reports driver errors that retrying cannot fix, such as
	// authentication failures. Nil treats every error as transient.
	Permanent func(error) bool
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		b.logger().Debug("closing database connection")
		return b.DB.Close()
	}
	return nil
}

// Query executes a SQL statement and collects every row.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string, args ...any) (*core.Table, error) {
	if b.DB == nil {
		return nil, core.Errorf(core.EngineUnavailable, "query", "database connection not established")
	}

	start := time.Now()
	rows, err := b.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, b.wrap(ctx, fmt.Errorf("failed to execute query: %w", err))
	}
	defer func() { _ = rows.Close() }()

	table, err := ScanTable(rows)
	if err != nil {
		return nil, b.wrap(ctx, err)
	}

	b.logger().Debug("query complete",
		slog.String("sql", sqlStr),
		slog.Int("rows", table.Len()),
		slog.Duration("duration", time.Since(start)))
	return table, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// InformationSchemaCommon provides a shared implementation of InformationSchema
// using the dialect's information-schema query.
func (b *BaseSQLAdapter) InformationSchemaCommon(ctx context.Context, ref core.TableRef, d *dialect.Dialect) ([]core.InformationSchemaEntry, error) {
	query, args := d.InformationSchemaQuery(ref)
	table, err := b.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return InformationSchemaFromTable(table)
}

// InformationSchemaFromTable converts a (column_name, data_type) result into entries.
func InformationSchemaFromTable(table *core.Table) ([]core.InformationSchemaEntry, error) {
	entries := make([]core.InformationSchemaEntry, 0, table.Len())
	for i, row := range table.Rows {
		if len(row) < 2 {
			return nil, core.Errorf(core.QueryRejected, "information_schema", "row %d has %d columns, want 2", i, len(row))
		}
		name, ok1 := row[0].(string)
		typ, ok2 := row[1].(string)
		if !ok1 || !ok2 {
			return nil, core.Errorf(core.QueryRejected, "information_schema", "row %d: unexpected types %T, %T", i, row[0], row[1])
		}
		entries = append(entries, core.NewInformationSchemaEntry(name, typ))
	}
	return entries, nil
}

// ScanTable reads every row of rows into a core.Table.
// Byte slices are copied into strings since the driver reuses them.
func ScanTable(rows *sql.Rows) (*core.Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	table := &core.Table{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if bs, ok := v.([]byte); ok {
				values[i] = string(bs)
			}
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return table, nil
}

func (b *BaseSQLAdapter) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return core.NewError(core.Cancelled, "query", err)
	}
	classify := b.Classify
	if classify == nil {
		classify = ClassifyError
	}
	e := core.NewError(classify(err), "query", err)
	if b.Permanent != nil {
		e.Permanent = b.Permanent(err)
	}
	return e
}

func (b *BaseSQLAdapter) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}
