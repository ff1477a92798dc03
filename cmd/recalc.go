package cmd

import (
	"errors"

	"github.com/roy-sema/cto-tool-sub001/core"
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// recalcCmd reruns the cascade for explicit snapshots.
var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recalculate composition for snapshots",
	Long: `Rerun the recalculation cascade over the given snapshots.

Dirty files are recounted from their code units, then the counts flow to merge
requests headed at each snapshot, to the repository when the snapshot is its
current full scan, and finally to the owning organization.

Use --force to recount every file, for example after changing exclusion rules.

Examples:
  aicomp recalc --snapshots 12,13
  aicomp recalc --snapshots 12 --force`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		ids, err := contract.ParseIDList(viper.GetString("snapshots"))
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return errors.New("--snapshots is required")
		}
		return core.ExecuteRecalc(rootCtx, cfg, storeManager, ids)
	},
}
