package commands

import (
	"github.com/spf13/cobra"
)

// NewAuditCommand creates the audit command.
func NewAuditCommand() *cobra.Command {
	var architecture string
	var failOnMismatch bool

	cmd := &cobra.Command{
		Use:   "audit <dataset.table>",
		Short: "Run the null census, schema reconciliation and link check",
		Long: `Run every check on one table and print a combined report.

The null census and the schema reconciliation run concurrently. When the
architecture sheet is missing or unreadable the reconciliation is skipped
and reported, and the rest of the report is still produced.`,
		Example: `  # Full audit
  leapaudit audit br_inep_censo_escolar.escola --architecture escola.csv

  # Full audit as JSON, billed to another project
  leapaudit audit br_inep_censo_escolar.escola -a escola.xlsx \
    --billing-project my-billing -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, args, architecture, failOnMismatch)
		},
	}

	cmd.Flags().StringVarP(&architecture, "architecture", "a", "", "Architecture sheet locator (path, URL or s3://)")
	cmd.Flags().BoolVar(&failOnMismatch, "fail-on-mismatch", false, "Exit with an error when any column mismatches")

	return cmd
}

func runAudit(cmd *cobra.Command, args []string, architecture string, failOnMismatch bool) error {
	ref, err := parseTableArg(args)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rep, err := cmdCtx.Auditor.Audit(cmd.Context(), cmdCtx.Request(ref, architecture))
	if err != nil {
		return err
	}
	cmdCtx.finishProgress()

	if err := cmdCtx.Renderer.Report(cmdCtx.AuditID, rep); err != nil {
		return err
	}
	if rep.SchemaErr != nil {
		return nil
	}
	return checkMismatches(ref, rep.Schema, failOnMismatch)
}
