package cmd

import (
	"github.com/roy-sema/cto-tool-sub001/core"
	"github.com/roy-sema/cto-tool-sub001/schema"
	"github.com/spf13/cobra"
)

// attestCmd records a reviewer label for a content hash.
var attestCmd = &cobra.Command{
	Use:   "attest",
	Short: "Override the label of a code unit and recalculate affected snapshots",
	Long: `Record a reviewer attestation for every code unit with the given content hash.

The attestation replaces the scanner label wherever the hash appears in the
repository. Every snapshot containing it is marked dirty and recalculated, so
repository and merge request composition reflect the new label immediately.

Examples:
  # Mark a block as human-written
  aicomp attest --repo-id 3 --hash 9f2c... --label human --author alice

  # Confirm a block was AI-generated then edited
  aicomp attest --repo-id 3 --hash 9f2c... --label ai_blended --comment "refactored by hand"`,
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		repoID, _ := flags.GetInt64("repo-id")
		hash, _ := flags.GetString("hash")
		label, _ := flags.GetString("label")
		comment, _ := flags.GetString("comment")
		author, _ := flags.GetString("author")

		return core.ExecuteAttest(rootCtx, cfg, storeManager, schema.AttestationRequest{
			RepositoryID: repoID,
			ContentHash:  hash,
			Label:        schema.Label(label),
			Comment:      comment,
			Author:       author,
		})
	},
}
