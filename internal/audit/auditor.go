// Package audit implements the table audits: the per-partition null census,
// the three-way schema reconciliation and the directory linkage check.
//
// An Auditor is safe for concurrent use. Every report it returns is built
// fresh for the call and is never modified afterwards.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapaudit/pkg/adapter"
	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultPartitionKey   = "ano"
	DefaultConcurrency    = 4
	DefaultBatchColumns   = 256
	DefaultInitialBackoff = 500 * time.Millisecond
)

// Config holds the collaborators and tuning of an Auditor.
type Config struct {
	// Adapter is a connected warehouse adapter.
	Adapter adapter.Adapter
	// Catalog resolves the declared columns of a table.
	Catalog core.Catalog
	// Architecture reads architecture resources (needed by Reconcile).
	Architecture ArchitectureLoader
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger

	// PartitionKey names the partitioning column (default "ano").
	// Set NoPartitioning to census every table as a single partition.
	PartitionKey   string
	NoPartitioning bool

	// Concurrency bounds in-flight census queries (default 4).
	Concurrency int
	// CensusMode selects the census query shape (default batched).
	CensusMode CensusMode
	// BatchColumns caps the columns counted per batched query (default 256).
	BatchColumns int

	// Vocabulary replaces DefaultVocabulary when non-nil.
	Vocabulary      []string
	ExtraVocabulary []string

	// Retry controls retries of EngineUnavailable failures; zero disables them.
	Retry core.RetryConfig

	// Progress, when set, is called after each census query.
	Progress func(done, total int)
}

// AuditRequest identifies the table to audit and the per-request resources.
type AuditRequest struct {
	Table core.TableRef
	// BillingProject is the project charged for the warehouse queries.
	BillingProject string
	// ArchitectureLocator points to the architecture resource (Reconcile only).
	ArchitectureLocator string
}

// Auditor runs audits against one warehouse and catalog.
type Auditor struct {
	adapter      adapter.Adapter
	catalog      core.Catalog
	architecture ArchitectureLoader
	logger       *slog.Logger

	partitionKey string
	concurrency  int
	mode         CensusMode
	batchColumns int
	vocabulary   Vocabulary
	retryCfg     core.RetryConfig
	progressFn   func(done, total int)
}

// New creates an Auditor.
func New(cfg Config) (*Auditor, error) {
	if cfg.Adapter == nil {
		return nil, errors.New("audit: adapter is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("audit: catalog is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	a := &Auditor{
		adapter:      cfg.Adapter,
		catalog:      cfg.Catalog,
		architecture: cfg.Architecture,
		logger:       logger,
		partitionKey: core.Normalize(cfg.PartitionKey),
		concurrency:  cfg.Concurrency,
		mode:         cfg.CensusMode,
		batchColumns: cfg.BatchColumns,
		vocabulary:   NewVocabulary(cfg.Vocabulary, cfg.ExtraVocabulary...),
		retryCfg:     cfg.Retry,
		progressFn:   cfg.Progress,
	}

	switch {
	case cfg.NoPartitioning:
		a.partitionKey = ""
	case a.partitionKey == "":
		a.partitionKey = DefaultPartitionKey
	}
	if a.concurrency <= 0 {
		a.concurrency = DefaultConcurrency
	}
	if a.batchColumns <= 0 {
		a.batchColumns = DefaultBatchColumns
	}
	switch a.mode {
	case "":
		a.mode = CensusBatched
	case CensusBatched, CensusPerColumn:
	default:
		return nil, fmt.Errorf("audit: unknown census mode %q (available: %s, %s)", cfg.CensusMode, CensusBatched, CensusPerColumn)
	}
	if a.retryCfg.MaxRetries < 0 {
		a.retryCfg.MaxRetries = 0
	}
	if a.retryCfg.InitialBackoff <= 0 {
		a.retryCfg.InitialBackoff = DefaultInitialBackoff
	}

	logger.Debug("auditor initialized",
		"dialect", cfg.Adapter.Dialect().Name,
		"partition_key", a.partitionKey,
		"census_mode", string(a.mode),
		"concurrency", a.concurrency)
	return a, nil
}

// Census computes the null count of every column per partition.
func (a *Auditor) Census(ctx context.Context, req AuditRequest) (*core.NullCensus, error) {
	ctx, cols, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.census(ctx, req.Table, cols)
}

// Reconcile compares the catalog, architecture and live schemas of a table.
func (a *Auditor) Reconcile(ctx context.Context, req AuditRequest) ([]core.ReconciliationRow, error) {
	ctx, cols, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.reconcile(ctx, req, cols)
}

// DirectoryLinks reports the directory linkage of a table's columns.
// No warehouse query is issued.
func (a *Auditor) DirectoryLinks(ctx context.Context, req AuditRequest) ([]core.DirectoryLinkRow, error) {
	_, cols, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.directoryLinks(cols), nil
}

// Audit runs the census, the reconciliation and the linkage check of one table.
// An unusable architecture resource is recorded in Report.SchemaErr; any
// other failure aborts the report.
func (a *Auditor) Audit(ctx context.Context, req AuditRequest) (*core.Report, error) {
	ctx, cols, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	report := &core.Report{Table: req.Table, Links: a.directoryLinks(cols)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		census, err := a.census(gctx, req.Table, cols)
		report.Census = census
		return err
	})
	g.Go(func() error {
		rows, err := a.reconcile(gctx, req, cols)
		if core.KindOf(err) == core.ArchitectureResourceInvalid {
			a.logger.Warn("schema reconciliation skipped", "table", req.Table.String(), "error", err.Error())
			report.SchemaErr = err
			return nil
		}
		report.Schema = rows
		return err
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, core.NewError(core.Cancelled, "audit", ctx.Err()).WithTable(req.Table)
		}
		return nil, err
	}
	return report, nil
}

// prepare validates the request, attaches the billing project and resolves
// the catalog columns. Catalog failures surface before any warehouse query.
func (a *Auditor) prepare(ctx context.Context, req AuditRequest) (context.Context, []core.ColumnDescriptor, error) {
	if err := req.Table.Validate(); err != nil {
		return ctx, nil, core.NewError(core.QueryRejected, "request", err).WithTable(req.Table)
	}
	if err := ctx.Err(); err != nil {
		return ctx, nil, core.NewError(core.Cancelled, "request", err).WithTable(req.Table)
	}
	ctx = adapter.WithBillingProject(ctx, req.BillingProject)

	cols, err := a.catalog.Columns(ctx, req.Table.Dataset, req.Table.Table)
	if err != nil {
		return ctx, nil, core.AsAuditError(err, core.CatalogUnavailable, "catalog").WithTable(req.Table)
	}
	return ctx, cols, nil
}
