package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// PrintOperationResult outputs what a mutating command touched.
func PrintOperationResult(w io.Writer, result *schema.OperationResult, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(w, cfg.OutputFile, func(out io.Writer) error {
			return writeJSON(out, result)
		}, "Wrote JSON "+result.Operation+" result")
	case schema.CSVOut:
		return writeWithFile(w, cfg.OutputFile, func(out io.Writer) error {
			return writeCSVOperation(out, result)
		}, "Wrote CSV "+result.Operation+" result")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for %s", result.Operation)
	default:
		return writeWithFile(w, cfg.OutputFile, func(out io.Writer) error {
			return writeOperationSummary(out, result, duration)
		}, "Wrote "+result.Operation+" summary")
	}
}

func writeOperationSummary(w io.Writer, result *schema.OperationResult, duration time.Duration) error {
	_, _ = fmt.Fprintf(w, "✅ %s finished in %v\n", result.Operation, duration)
	_, _ = fmt.Fprintf(w, "   Snapshots: %s\n", joinIDs(result.Snapshots))
	if result.ExcludedFiles > 0 {
		_, _ = fmt.Fprintf(w, "   Excluded files: %d\n", result.ExcludedFiles)
	}
	if c := result.Cascade; c != nil {
		_, _ = fmt.Fprintf(w, "   Files recounted: %d\n", c.FilesRecounted)
		_, _ = fmt.Fprintf(w, "   Merge requests updated: %s\n", joinIDs(c.MergeRequests))
		_, _ = fmt.Fprintf(w, "   Repositories updated: %s\n", joinIDs(c.Repositories))
		_, _ = fmt.Fprintf(w, "   Organization rollups scheduled: %s\n", joinIDs(c.Organizations))
	}
	for _, s := range result.Skipped {
		_, _ = fmt.Fprintf(w, "⚠️  Skipped %s/%s@%s: %s\n", s.Organization, s.Repository, s.CommitSHA, s.Reason)
	}
	return nil
}

func writeCSVOperation(w io.Writer, result *schema.OperationResult) error {
	return writeCSVWithHeader(w, []string{"operation", "kind", "id", "detail"}, func(csvWriter *csv.Writer) error {
		write := func(kind string, ids []int64) error {
			for _, id := range ids {
				if err := csvWriter.Write([]string{result.Operation, kind, strconv.FormatInt(id, 10), ""}); err != nil {
					return err
				}
			}
			return nil
		}
		if err := write("snapshot", result.Snapshots); err != nil {
			return err
		}
		if c := result.Cascade; c != nil {
			if err := write(schema.MergeRequestEntity, c.MergeRequests); err != nil {
				return err
			}
			if err := write(schema.RepositoryEntity, c.Repositories); err != nil {
				return err
			}
			if err := write(schema.OrganizationEntity, c.Organizations); err != nil {
				return err
			}
		}
		for _, s := range result.Skipped {
			detail := fmt.Sprintf("%s/%s@%s: %s", s.Organization, s.Repository, s.CommitSHA, s.Reason)
			if err := csvWriter.Write([]string{result.Operation, "skipped", "", detail}); err != nil {
				return err
			}
		}
		return nil
	})
}

func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
