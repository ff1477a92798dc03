// Package cmd defines the command-line interface for aicomp.
package cmd

import (
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(attestCmd)
	rootCmd.AddCommand(recalcCmd)
	rootCmd.AddCommand(compositionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(repoCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the repo subcommands to the parent repo command
	repoCmd.AddCommand(repoRegisterCmd)
	repoCmd.AddCommand(repoShowCmd)

	// Add the store subcommands to the parent store command
	storeCmd.AddCommand(storeStatusCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeExportCmd)
	storeCmd.AddCommand(storeMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("db-backend", string(schema.SQLiteBackend), "Store backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("db-connect", "", "Database connection string (SQLite file path, or user:pass@tcp(host:port)/dbname for mysql)")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for percentage columns")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of snapshots recalculated concurrently")
	rootCmd.PersistentFlags().Int("rollup-workers", contract.DefaultRollupWorkers, "Number of organization rollup workers")
	rootCmd.PersistentFlags().String("org", "", "Organization name")
	rootCmd.PersistentFlags().String("exclude", "", "Comma-separated glob patterns of files to skip during ingestion")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", contract.DefaultLogFormat, "Log format: text or json")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of compositionCmd to Viper
	compositionCmd.Flags().String("since", "", "Start of the window in ISO8601 or time ago (default 30 days before --until)")
	compositionCmd.Flags().String("until", "", "End of the window in ISO8601 or time ago (default now)")
	compositionCmd.Flags().String("repos", "", "Comma-separated repository names (default all repositories of --org)")
	compositionCmd.Flags().Bool("daily", false, "Also print lines added per bucket")
	if err := viper.BindPFlags(compositionCmd.Flags()); err != nil {
		contract.LogFatal("Error binding composition flags", err)
	}

	// Bind all flags of recalcCmd to Viper
	recalcCmd.Flags().String("snapshots", "", "Comma-separated snapshot IDs to recalculate")
	recalcCmd.Flags().Bool("force", false, "Recount files even when they are not dirty")
	if err := viper.BindPFlags(recalcCmd.Flags()); err != nil {
		contract.LogFatal("Error binding recalc flags", err)
	}

	// Attestation flags are command-local and not part of the shared config
	attestCmd.Flags().Int64("repo-id", 0, "Repository ID the code unit belongs to")
	attestCmd.Flags().String("hash", "", "Content hash of the code unit")
	attestCmd.Flags().String("label", "", "Reviewer label: human or ai_pure or ai_blended")
	attestCmd.Flags().String("comment", "", "Free-form reviewer note")
	attestCmd.Flags().String("author", "", "Reviewer identity")

	// Bind all flags of serveCmd to Viper
	serveCmd.Flags().String("listen", contract.DefaultListen, "Address the HTTP API listens on")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		contract.LogFatal("Error binding serve flags", err)
	}

	// Bind all flags of storeMigrateCmd to Viper
	storeMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(storeMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding store migrate flags", err)
	}
}
