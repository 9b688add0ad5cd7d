package commands

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapaudit/internal/architecture"
	"github.com/leapstack-labs/leapaudit/internal/audit"
	"github.com/leapstack-labs/leapaudit/internal/catalog"
	"github.com/leapstack-labs/leapaudit/internal/cli/config"
	"github.com/leapstack-labs/leapaudit/internal/cli/output"
	intconfig "github.com/leapstack-labs/leapaudit/internal/config"
	"github.com/leapstack-labs/leapaudit/pkg/adapter"
	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	AuditID  string
	Adapter  adapter.Adapter
	Auditor  *audit.Auditor
	Renderer *output.Renderer

	finishProgress func()
}

// NewCommandContext connects to the configured warehouse and builds an Auditor.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutAuditor(cmd)
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	adp, err := adapter.NewAdapter(intconfig.AdapterConfig(cfg.Target, cfg.DataProject), logger)
	if err != nil {
		return nil, nil, err
	}
	if err := adp.Connect(cmd.Context(), intconfig.AdapterConfig(cfg.Target, cfg.DataProject)); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.Target.Type, err)
	}

	cat, err := catalog.New(cfg.Catalog, logger)
	if err != nil {
		_ = adp.Close()
		return nil, nil, err
	}

	auditCfg := intconfig.AuditorConfig(cfg.Audit)
	auditCfg.Adapter = adp
	auditCfg.Catalog = cat
	auditCfg.Architecture = architecture.NewLoader(cfg.Architecture, logger)
	auditCfg.Logger = logger
	auditCfg.Progress, cmdCtx.finishProgress = cmdCtx.Renderer.Progress("census")

	auditor, err := audit.New(auditCfg)
	if err != nil {
		_ = adp.Close()
		return nil, nil, err
	}

	cmdCtx.Adapter = adp
	cmdCtx.Auditor = auditor

	cleanup := func() {
		cmdCtx.finishProgress()
		if err := adp.Close(); err != nil {
			logger.Warn("failed to close adapter", "error", err.Error())
		}
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutAuditor creates a CommandContext without a warehouse connection.
// Useful for commands that only print static information.
func NewCommandContextWithoutAuditor(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	auditID := uuid.NewString()
	logger := config.GetLogger(cmd.Context()).With("audit_id", auditID)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:            cfg,
		Logger:         logger,
		AuditID:        auditID,
		Renderer:       r,
		finishProgress: func() {},
	}
}

// Request builds the audit request of one table for this invocation.
func (c *CommandContext) Request(ref core.TableRef, locator string) audit.AuditRequest {
	return audit.AuditRequest{
		Table:               ref,
		BillingProject:      c.Cfg.BillingProject,
		ArchitectureLocator: locator,
	}
}

// getConfig returns the loaded configuration, or defaults when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg := &config.Config{OutputFormat: config.DefaultOutput}
	project := cfg.Project()
	intconfig.ApplyDefaults(project)
	cfg.Target, cfg.Catalog, cfg.Audit, cfg.Architecture = project.Target, project.Catalog, project.Audit, project.Architecture
	return cfg
}

// parseTableArg parses the positional table argument.
func parseTableArg(args []string) (core.TableRef, error) {
	if len(args) != 1 {
		return core.TableRef{}, fmt.Errorf("expected one table argument (dataset.table)")
	}
	return core.ParseTableRef(args[0])
}

// MismatchError is returned by --fail-on-mismatch when reconciliation found
// columns whose name or type disagree.
type MismatchError struct {
	Table      core.TableRef
	Mismatches int
	Columns    int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %d of %d columns mismatched", e.Table, e.Mismatches, e.Columns)
}

func checkMismatches(ref core.TableRef, rows []core.ReconciliationRow, fail bool) error {
	if !fail {
		return nil
	}
	if n := core.Mismatches(rows); n > 0 {
		return &MismatchError{Table: ref, Mismatches: n, Columns: len(rows)}
	}
	return nil
}
