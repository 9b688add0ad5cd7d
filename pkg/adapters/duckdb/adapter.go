// Package duckdb provides a DuckDB warehouse adapter for leapaudit.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"

	"github.com/marcboeker/go-duckdb"

	"github.com/leapstack-labs/leapaudit/pkg/adapter"
	"github.com/leapstack-labs/leapaudit/pkg/core"
	"github.com/leapstack-labs/leapaudit/pkg/dialect"
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, Classify: classifyError},
	}
}

// Dialect returns the DuckDB dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return Dialect
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" (or an empty path) for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		path = ":memory:"
	}

	params, err := parseParams(cfg.Params)
	if err != nil {
		return err
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return core.NewError(core.EngineUnavailable, "connect", fmt.Errorf("failed to open duckdb connection: %w", err))
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return core.NewError(core.EngineUnavailable, "connect", fmt.Errorf("failed to ping duckdb: %w", err))
	}

	// Settings and extensions are per connection; pin the pool to one.
	if len(params.Extensions) > 0 || len(params.Secrets) > 0 || len(params.Settings) > 0 {
		db.SetMaxOpenConns(1)
	}

	a.DB = db
	a.Cfg = cfg

	if err := a.applyParams(ctx, params); err != nil {
		_ = db.Close()
		a.DB = nil
		return err
	}
	return nil
}

// applyParams runs the connection setup statements of params.
func (a *Adapter) applyParams(ctx context.Context, params *Params) error {
	for _, ext := range params.Extensions {
		a.Logger.Debug("loading duckdb extension", slog.String("extension", ext))
		if _, err := a.DB.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			return core.NewError(core.EngineUnavailable, "connect", fmt.Errorf("failed to load extension %s: %w", ext, err))
		}
	}

	for i, secret := range params.Secrets {
		name := fmt.Sprintf("leapaudit_secret_%d", i)
		a.Logger.Debug("creating duckdb secret", slog.String("name", name), slog.String("type", secret.Type))
		if _, err := a.DB.ExecContext(ctx, createSecretSQL(name, secret)); err != nil {
			return core.NewError(core.EngineUnavailable, "connect", fmt.Errorf("failed to create secret %s: %w", name, err))
		}
	}

	keys := make([]string, 0, len(params.Settings))
	for k := range params.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmt := fmt.Sprintf("SET %s = '%s'", k, strings.ReplaceAll(params.Settings[k], "'", "''"))
		if _, err := a.DB.ExecContext(ctx, stmt); err != nil {
			return core.NewError(core.EngineUnavailable, "connect", fmt.Errorf("failed to apply setting %s: %w", k, err))
		}
	}
	return nil
}

// Query runs a statement with DECIMAL values exchanged as *big.Rat, the
// representation the other warehouses return for exact numerics.
func (a *Adapter) Query(ctx context.Context, sqlStr string, args ...any) (*core.Table, error) {
	bound := make([]any, len(args))
	for i, v := range args {
		bound[i] = bindValue(v)
	}
	table, err := a.BaseSQLAdapter.Query(ctx, sqlStr, bound...)
	if err != nil {
		return nil, err
	}
	for _, row := range table.Rows {
		for i, v := range row {
			if d, ok := v.(duckdb.Decimal); ok {
				row[i] = decimalRat(d)
			}
		}
	}
	return table, nil
}

func decimalRat(d duckdb.Decimal) *big.Rat {
	if d.Value == nil {
		return new(big.Rat)
	}
	den := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Scale)), nil)
	return new(big.Rat).SetFrac(d.Value, den)
}

// bindValue converts a *big.Rat to a type the driver binds. Integers stay
// exact; fractions bind as the nearest float64, which DuckDB also gets
// when comparing a DECIMAL against a DOUBLE.
func bindValue(v any) any {
	r, ok := v.(*big.Rat)
	if !ok {
		return v
	}
	if r.IsInt() {
		if r.Num().IsInt64() {
			return r.Num().Int64()
		}
		return new(big.Int).Set(r.Num())
	}
	f, _ := r.Float64()
	return f
}

// InformationSchema lists the live columns of a table.
func (a *Adapter) InformationSchema(ctx context.Context, ref core.TableRef) ([]core.InformationSchemaEntry, error) {
	return a.InformationSchemaCommon(ctx, ref, Dialect)
}

// classifyError recognizes DuckDB catalog errors for missing tables and schemas.
func classifyError(err error) core.ErrorKind {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Catalog Error: Table with name"):
		return core.TableNotFound
	case strings.Contains(msg, "Catalog Error: Schema with name"):
		return core.DatasetNotFound
	case strings.Contains(msg, "Connection Error"):
		return core.EngineUnavailable
	}
	return adapter.ClassifyError(err)
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
