package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapaudit/internal/cli/output"
	"github.com/leapstack-labs/leapaudit/pkg/adapter"
)

// NewAdaptersCommand creates the adapters command.
func NewAdaptersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List available warehouse adapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := NewCommandContextWithoutAuditor(cmd).Renderer
			names := adapter.ListAdapters()
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(names)
			}
			for _, n := range names {
				r.Println(n)
			}
			return nil
		},
	}
}
