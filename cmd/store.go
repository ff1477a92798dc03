package cmd

import (
	"fmt"
	"os"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/internal/store"
	"github.com/roy-sema/cto-tool-sub001/schema"
	"github.com/spf13/cobra"
)

// storeSetup resolves config without opening the store.
// Clear and migrate must work on databases the store cannot open yet.
func storeSetup(_ *cobra.Command, _ []string) error {
	if err := resolveConfig(); err != nil {
		return err
	}
	if cfg.Backend == schema.SQLiteBackend && cfg.DBConnect == "" {
		cfg.DBConnect = contract.GetDBFilePath()
	}
	return nil
}

// storeCmd focused on store management.
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the composition store",
	Long: `Manage the database holding organizations, repositories, snapshots and attestations.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (in-memory)

Subcommands:
  status  - Show row counts and connection info
  export  - Export snapshots and repositories to Parquet
  clear   - Remove all stored data
  migrate - Run database schema migrations

Examples:
  # Check store status
  aicomp store status

  # Use MySQL through env variables
  AICOMP_DB_BACKEND=mysql AICOMP_DB_CONNECT="..." aicomp store status`,
}

// storeStatusCmd shows store status.
var storeStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display store statistics and connection details",
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		s := storeManager.GetCompositionStore()
		if s == nil {
			return fmt.Errorf("composition store is not initialized")
		}
		status, err := s.GetStatus(rootCtx)
		if err != nil {
			return fmt.Errorf("failed to get store status: %w", err)
		}
		store.PrintStoreStatus(os.Stdout, status)
		return nil
	},
}

// storeClearCmd clears the store.
var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored composition data",
	Long: `Delete every organization, repository, snapshot and attestation.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the tables and the migration ledger

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  aicomp store export --output-file backup
  aicomp store clear`,
	PreRunE: storeSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := store.ClearStore(cfg.Backend, cfg.DBConnect, cfg.DBConnect); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
		fmt.Println("Store cleared successfully.")
		return nil
	},
}

// storeExportCmd exports snapshots and repositories to Parquet files.
var storeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export snapshots and repositories to Parquet for analytics",
	Long: `Export stored snapshots and repositories to Parquet files.

Requires: --output-file parameter, used as the prefix of both files

Examples:
  aicomp store export --output-file acme
  duckdb -c "SELECT * FROM read_parquet('acme.snapshots.parquet') LIMIT 10"`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		s := storeManager.GetCompositionStore()
		if s == nil {
			return fmt.Errorf("composition store is not initialized")
		}
		return store.ExecuteExport(rootCtx, os.Stdout, s, cfg.OutputFile)
	},
}

// storeMigrateCmd runs database migrations.
var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the composition store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  aicomp store migrate

  # Rollback to initial state
  aicomp store migrate --target-version 0`,
	PreRunE: storeSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := store.Migrate(cfg.Backend, cfg.DBConnect, cfg.TargetVersion); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	},
}
