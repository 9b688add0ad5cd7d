package commands

import (
	"github.com/spf13/cobra"
)

// NewCensusCommand creates the census command.
func NewCensusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "census <dataset.table>",
		Short: "Count null values per column and partition",
		Long: `Count the null values of every catalog column of a table, once per
value of the partition key column (or once for the whole table when the
table has no partition key).

Output adapts to environment:
  - Terminal: Styled table with a progress bar
  - Piped/Scripted: Markdown table (agent-friendly)

Use --output to override: auto, text, markdown, json, csv`,
		Example: `  # Null census partitioned by year
  leapaudit census br_inep_censo_escolar.escola

  # Census of the whole table as CSV
  leapaudit census br_inep_censo_escolar.escola --no-partitioning -o csv

  # Use a different partition column
  leapaudit census br_ibge_pib.municipio --partition-key ano_referencia`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCensus(cmd, args)
		},
	}

	return cmd
}

func runCensus(cmd *cobra.Command, args []string) error {
	ref, err := parseTableArg(args)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	census, err := cmdCtx.Auditor.Census(cmd.Context(), cmdCtx.Request(ref, ""))
	if err != nil {
		return err
	}
	cmdCtx.finishProgress()

	cmdCtx.Logger.Info("census complete", "table", ref.String(), "partitions", len(census.Rows))
	return cmdCtx.Renderer.Census(census)
}
