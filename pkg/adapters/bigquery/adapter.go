// Package bigquery provides a BigQuery warehouse adapter for leapaudit.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	bq "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/leapstack-labs/leapaudit/pkg/adapter"
	"github.com/leapstack-labs/leapaudit/pkg/core"
	"github.com/leapstack-labs/leapaudit/pkg/dialect"
)

// Adapter implements the adapter.Adapter interface for BigQuery.
//
// Query jobs run in the billing project carried by the context
// (adapter.WithBillingProject), falling back to the configured project.
// One client is kept per billing project.
type Adapter struct {
	Logger *slog.Logger

	cfg     adapter.Config
	opts    []option.ClientOption
	mu      sync.Mutex
	clients map[string]*bq.Client
}

// New creates a new BigQuery adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{Logger: logger}
}

// Dialect returns the BigQuery dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return Dialect
}

// Connect creates the client for the configured project.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	if cfg.Project == "" {
		return core.Errorf(core.EngineUnavailable, "connect", "bigquery target requires a project")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if endpoint := cfg.Options["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}

	a.mu.Lock()
	a.cfg = cfg
	a.opts = opts
	a.clients = make(map[string]*bq.Client)
	a.mu.Unlock()

	a.Logger.Debug("connecting to bigquery",
		slog.String("project", cfg.Project),
		slog.String("location", cfg.Location))

	_, err := a.client(ctx, cfg.Project)
	return err
}

// client returns the client that bills to project, creating it on first use.
func (a *Adapter) client(ctx context.Context, project string) (*bq.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.clients == nil {
		return nil, core.Errorf(core.EngineUnavailable, "query", "bigquery client not connected")
	}
	if c, ok := a.clients[project]; ok {
		return c, nil
	}

	c, err := bq.NewClient(ctx, project, a.opts...)
	if err != nil {
		return nil, core.NewError(core.EngineUnavailable, "connect", fmt.Errorf("failed to create bigquery client: %w", err))
	}
	if a.cfg.Location != "" {
		c.Location = a.cfg.Location
	}
	a.clients[project] = c
	return c, nil
}

// Close closes every client.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, c := range a.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.clients = nil
	return errors.Join(errs...)
}

// Query runs sql as a query job with positional parameters.
func (a *Adapter) Query(ctx context.Context, sqlStr string, args ...any) (*core.Table, error) {
	project := adapter.BillingProject(ctx)
	if project == "" {
		project = a.cfg.Project
	}
	c, err := a.client(ctx, project)
	if err != nil {
		return nil, err
	}

	q := c.Query(sqlStr)
	// Unqualified table names resolve against the data project, not the billing one.
	q.DefaultProjectID = a.cfg.Project
	for _, arg := range args {
		q.Parameters = append(q.Parameters, bq.QueryParameter{Value: arg})
	}

	start := time.Now()
	it, err := q.Read(ctx)
	if err != nil {
		return nil, wrap(ctx, err)
	}

	table := &core.Table{}
	for {
		var row []bq.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, wrap(ctx, err)
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		table.Rows = append(table.Rows, values)
	}
	for _, f := range it.Schema {
		table.Columns = append(table.Columns, f.Name)
	}

	a.Logger.Debug("query complete",
		slog.String("sql", sqlStr),
		slog.String("billing_project", project),
		slog.Int("rows", table.Len()),
		slog.Duration("duration", time.Since(start)))
	return table, nil
}

// InformationSchema lists the live columns of a table from the dataset's
// INFORMATION_SCHEMA.COLUMNS view.
func (a *Adapter) InformationSchema(ctx context.Context, ref core.TableRef) ([]core.InformationSchemaEntry, error) {
	if ref.Project == "" {
		ref.Project = a.cfg.Project
	}
	query, args := Dialect.InformationSchemaQuery(ref)
	table, err := a.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return adapter.InformationSchemaFromTable(table)
}

func wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return core.NewError(core.Cancelled, "query", err)
	}
	e := core.NewError(classifyError(err), "query", err)
	e.Permanent = isAuthFailure(err)
	return e
}

// isAuthFailure reports rejected or insufficient credentials.
func isAuthFailure(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && (gErr.Code == 401 || gErr.Code == 403)
}

// classifyError maps Google API status codes to audit error kinds.
func classifyError(err error) core.ErrorKind {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return adapter.ClassifyError(err)
	}
	switch {
	case gErr.Code == 404:
		if strings.Contains(gErr.Message, "Dataset") {
			return core.DatasetNotFound
		}
		return core.TableNotFound
	case gErr.Code == 401, gErr.Code == 403, gErr.Code == 429, gErr.Code >= 500:
		return core.EngineUnavailable
	default:
		return core.QueryRejected
	}
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
