package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/internal/parquet"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// ExecuteExport writes snapshots and repositories to Parquet files prefixed by outputFile.
func ExecuteExport(ctx context.Context, w io.Writer, s contract.CompositionStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	status, err := s.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get store status: %w", err)
	}
	if status.TotalSnapshots == 0 {
		return errors.New("no snapshot data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total snapshots: %d\n", status.TotalSnapshots)

	snapshots, err := s.ListSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve snapshots: %w", err)
	}

	orgs, err := s.ListOrganizations(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve organizations: %w", err)
	}
	var repos []schema.Repository
	for _, org := range orgs {
		orgRepos, err := s.ListRepositories(ctx, org.ID)
		if err != nil {
			return fmt.Errorf("failed to retrieve repositories of %s: %w", org.Name, err)
		}
		repos = append(repos, orgRepos...)
	}

	snapshotsFile := outputFile + ".snapshots.parquet"
	if err := parquet.WriteSnapshotsParquet(parquet.ConvertSnapshots(snapshots), snapshotsFile); err != nil {
		return fmt.Errorf("failed to write snapshots: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d snapshots to: %s\n", len(snapshots), snapshotsFile)

	reposFile := outputFile + ".repositories.parquet"
	if err := parquet.WriteRepositoriesParquet(parquet.ConvertRepositories(repos), reposFile); err != nil {
		return fmt.Errorf("failed to write repositories: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d repositories to: %s\n", len(repos), reposFile)

	_, _ = fmt.Fprintln(w, "\nExport complete! The Parquet files can be used with:")
	_, _ = fmt.Fprintln(w, "  - Apache Spark")
	_, _ = fmt.Fprintln(w, "  - Pandas (via pyarrow)")
	_, _ = fmt.Fprintln(w, "  - DuckDB")

	return nil
}
