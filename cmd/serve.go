package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/roy-sema/cto-tool-sub001/internal/api"
	"github.com/spf13/cobra"
)

// serveCmd runs the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve ingestion, attestation and composition queries over HTTP",
	Long: `Start the composition HTTP API.

Routes (under /api/v1):
  GET  /health
  GET  /organizations
  GET  /organizations/:org/status
  GET  /organizations/:org/composition?since=&until=&repos=&daily=
  POST /repositories
  GET  /repositories/:id
  POST /snapshots
  POST /attestations
  POST /recalculate

The server stops gracefully on SIGINT or SIGTERM after draining queued rollups.

Examples:
  aicomp serve --listen :9090
  AICOMP_DB_BACKEND=postgresql AICOMP_DB_CONNECT="host=db dbname=aicomp" aicomp serve`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return api.Serve(ctx, cfg, storeManager, version)
	},
}
