package cmd

import (
	"github.com/roy-sema/cto-tool-sub001/core"
	"github.com/spf13/cobra"
)

// compositionCmd charts an organization's composition over time.
var compositionCmd = &cobra.Command{
	Use:   "composition",
	Short: "Chart the AI share of an organization's code over time",
	Long: `Compute the Overall, Pure and Blended AI percentages of an organization for
each day (or week, for windows longer than two weeks) between --since and --until.

Repositories without a full scan inside a bucket carry their latest earlier scan
forward, so the chart never dips because a repository was not rescanned.

Examples:
  # Last 30 days for every repository
  aicomp composition --org acme

  # Two services, weekly, with new lines per bucket
  aicomp composition --org acme --repos api,web --since "90 days ago" --daily

  # Machine-readable output
  aicomp composition --org acme --output parquet --output-file acme.parquet`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteComposition(rootCtx, cfg, storeManager)
	},
}
