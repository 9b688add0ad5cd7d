// Package postgres provides a PostgreSQL warehouse adapter for leapaudit.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/leapstack-labs/leapaudit/pkg/adapter"
	"github.com/leapstack-labs/leapaudit/pkg/core"
	"github.com/leapstack-labs/leapaudit/pkg/dialect"
)

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, Classify: classifyError, Permanent: isAuthFailure},
	}
}

// Dialect returns the PostgreSQL dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return Dialect
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return core.NewError(core.EngineUnavailable, "connect", fmt.Errorf("failed to open postgres connection: %w", err))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return core.NewError(core.EngineUnavailable, "connect", fmt.Errorf("failed to ping postgres: %w", err))
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// InformationSchema lists the live columns of a table.
func (a *Adapter) InformationSchema(ctx context.Context, ref core.TableRef) ([]core.InformationSchemaEntry, error) {
	return a.InformationSchemaCommon(ctx, ref, Dialect)
}

// buildPostgresDSN constructs a PostgreSQL keyword/value connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	parts := []string{
		"host=" + dsnValue(host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + dsnValue(cfg.Database),
		"sslmode=" + dsnValue(sslmode),
	}
	if cfg.Username != "" {
		parts = append(parts, "user="+dsnValue(cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+dsnValue(cfg.Password))
	}

	keys := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		if k != "sslmode" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+dsnValue(cfg.Options[k]))
	}

	return strings.Join(parts, " ")
}

// dsnValue quotes a keyword/value DSN value when needed.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// isAuthFailure reports SQLSTATE class 28, invalid authorization.
func isAuthFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "28")
}

// classifyError maps SQLSTATE codes to audit error kinds.
func classifyError(err error) core.ErrorKind {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return adapter.ClassifyError(err)
	}
	switch {
	case pgErr.Code == "42P01":
		return core.TableNotFound
	case pgErr.Code == "3F000", pgErr.Code == "3D000":
		return core.DatasetNotFound
	case strings.HasPrefix(pgErr.Code, "08"),
		strings.HasPrefix(pgErr.Code, "28"),
		strings.HasPrefix(pgErr.Code, "57P"):
		return core.EngineUnavailable
	default:
		return core.QueryRejected
	}
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
