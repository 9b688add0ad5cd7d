package commands

import (
	"github.com/spf13/cobra"
)

// NewLinksCommand creates the links command.
func NewLinksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links <dataset.table>",
		Short: "Check directory links of dimension-key columns",
		Long: `List the columns of a table whose name is a recognized dimension key
(see 'leapaudit vocabulary') together with the directory table the
catalog links them to. Only the catalog is consulted.`,
		Example: `  # Show directory links
  leapaudit links br_inep_censo_escolar.escola

  # As JSON
  leapaudit links br_inep_censo_escolar.escola -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinks(cmd, args)
		},
	}

	return cmd
}

func runLinks(cmd *cobra.Command, args []string) error {
	ref, err := parseTableArg(args)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := cmdCtx.Auditor.DirectoryLinks(cmd.Context(), cmdCtx.Request(ref, ""))
	if err != nil {
		return err
	}
	return cmdCtx.Renderer.Links(ref, rows)
}
