package cmd

import (
	"github.com/roy-sema/cto-tool-sub001/core"
	"github.com/spf13/cobra"
)

// ingestCmd loads snapshot payloads and cascades their counts.
var ingestCmd = &cobra.Command{
	Use:   "ingest [payload-file...]",
	Short: "Ingest labeled code snapshots from JSON files or stdin",
	Long: `Store one or more snapshot payloads and recalculate the composition they affect.

Each file holds a single payload or an array of payloads. Files ending in .zst are
decompressed first. Use "-" or no argument to read from stdin.

A full scan becomes the repository's current composition unless an equal or newer
full scan is already stored. Partial scans only update the merge requests they name.
Files matching --exclude (plus vendored and lock files) are dropped before storing.

Examples:
  # Ingest a nightly full scan
  aicomp ingest scan-2024-05-01.json

  # Stream payloads from a scanner
  scanner --json | aicomp ingest -

  # Skip generated code
  aicomp ingest --exclude "**/*.pb.go,**/gen/**" scan.json.zst`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, args []string) error {
		return core.ExecuteIngest(rootCtx, cfg, storeManager, args)
	},
}
