package cmd

import (
	"fmt"
	"strconv"

	"github.com/roy-sema/cto-tool-sub001/core"
	"github.com/spf13/cobra"
)

// repoCmd groups repository registry operations.
var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Register and inspect repositories",
	Long: `Manage the repository registry.

Snapshots are only accepted for registered repositories.

Subcommands:
  register - Create an organization and repository if missing
  show     - Print the current composition of one repository`,
}

// repoRegisterCmd registers a repository.
var repoRegisterCmd = &cobra.Command{
	Use:     "register <organization> <repository>",
	Short:   "Register a repository so its snapshots can be ingested",
	Args:    cobra.ExactArgs(2),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, args []string) error {
		return core.ExecuteRegister(rootCtx, cfg, storeManager, args[0], args[1])
	},
}

// repoShowCmd prints one repository.
var repoShowCmd = &cobra.Command{
	Use:     "show <repository-id>",
	Short:   "Print the current composition of a repository",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid repository id '%s': must be a positive integer", args[0])
		}
		return core.ExecuteRepository(rootCtx, cfg, storeManager, id)
	},
}
