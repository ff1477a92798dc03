package cmd

import (
	"github.com/roy-sema/cto-tool-sub001/core"
	"github.com/spf13/cobra"
)

// statusCmd lists stored composition per entity.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored composition of organizations, repositories and merge requests",
	Long: `List every organization (or only --org) with its repositories and open merge
requests, along with their current line counts and AI percentages.

Examples:
  aicomp status
  aicomp status --org acme --output csv`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteStatus(rootCtx, cfg, storeManager)
	},
}
