package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapaudit/internal/audit"
	"github.com/leapstack-labs/leapaudit/internal/cli/output"
)

// NewVocabularyCommand creates the vocabulary command.
func NewVocabularyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vocabulary",
		Short: "List recognized dimension-key column names",
		Long: `List the column names treated as dimension keys by the links check.

The list is the built-in vocabulary, replaced by audit.vocabulary and
extended by audit.extra_vocabulary when configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutAuditor(cmd)
			r := cmdCtx.Renderer
			names := audit.NewVocabulary(cmdCtx.Cfg.Audit.Vocabulary, cmdCtx.Cfg.Audit.ExtraVocabulary...).Names()

			switch r.EffectiveMode() {
			case output.ModeJSON:
				return r.JSON(names)
			case output.ModeMarkdown:
				r.Header(2, "Vocabulary")
				for _, n := range names {
					r.Printf("- `%s`\n", n)
				}
			default:
				for _, n := range names {
					r.Println(n)
				}
			}
			return nil
		},
	}
}
