package commands

import (
	"github.com/spf13/cobra"
)

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand() *cobra.Command {
	var architecture string
	var failOnMismatch bool

	cmd := &cobra.Command{
		Use:   "reconcile <dataset.table>",
		Short: "Compare catalog, architecture and live schemas",
		Long: `Compare the column names and types of a table as declared by the
metadata catalog, by its architecture sheet and by the warehouse
information schema. Every column present in any of the three sources
yields one row.

The architecture sheet may be a local CSV or XLSX file, an http(s) URL
or an s3:// object.`,
		Example: `  # Reconcile against a local architecture sheet
  leapaudit reconcile br_inep_censo_escolar.escola --architecture escola.csv

  # Fail the build when any column disagrees
  leapaudit reconcile br_inep_censo_escolar.escola \
    --architecture s3://metadata/escola.xlsx --fail-on-mismatch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, args, architecture, failOnMismatch)
		},
	}

	cmd.Flags().StringVarP(&architecture, "architecture", "a", "", "Architecture sheet locator (path, URL or s3://)")
	cmd.Flags().BoolVar(&failOnMismatch, "fail-on-mismatch", false, "Exit with an error when any column mismatches")
	_ = cmd.MarkFlagRequired("architecture")

	return cmd
}

func runReconcile(cmd *cobra.Command, args []string, architecture string, failOnMismatch bool) error {
	ref, err := parseTableArg(args)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := cmdCtx.Auditor.Reconcile(cmd.Context(), cmdCtx.Request(ref, architecture))
	if err != nil {
		return err
	}

	if err := cmdCtx.Renderer.Reconciliation(ref, rows); err != nil {
		return err
	}
	return checkMismatches(ref, rows, failOnMismatch)
}
