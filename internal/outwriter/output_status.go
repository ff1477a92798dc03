package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// PrintStatusReport outputs the current composition of every listed entity.
func PrintStatusReport(w io.Writer, report *schema.StatusReport, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, fmtInt := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(w, cfg.OutputFile, func(out io.Writer) error {
			return writeJSON(out, report)
		}, "Wrote JSON status report"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(w, cfg.OutputFile, func(out io.Writer) error {
			return writeCSVStatus(out, report, fmtFloat, fmtInt)
		}, "Wrote CSV status report"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for status; use 'store export'")
	default:
		if err := writeWithFile(w, cfg.OutputFile, func(out io.Writer) error {
			return writeStatusTable(out, report, cfg, fmtFloat, fmtInt, duration)
		}, "Wrote status table"); err != nil {
			return fmt.Errorf("error writing status table output: %w", err)
		}
	}
	return nil
}

func statusEntities(report *schema.StatusReport) []schema.EntityComposition {
	all := make([]schema.EntityComposition, 0, len(report.Organizations)+len(report.Repositories)+len(report.MergeRequests))
	all = append(all, report.Organizations...)
	all = append(all, report.Repositories...)
	return append(all, report.MergeRequests...)
}

func writeStatusTable(w io.Writer, report *schema.StatusReport, cfg *contract.Config, fmtFloat func(float64) string, fmtInt func(int64) string, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Kind", "ID", "Name", "Total", "AI", "Blended", "Overall %", "Pure %", "Blended %", "Label"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	maxName := GetMaxTableNameWidth(cfg)
	var data [][]string
	for _, e := range statusEntities(report) {
		data = append(data, []string{
			e.Kind,
			fmtInt(e.ID),
			contract.TruncateText(e.Name, maxName),
			fmtInt(e.Counts.Total),
			fmtInt(e.Counts.AI),
			fmtInt(e.Counts.Blended),
			fmtFloat(e.Composition.Overall),
			fmtFloat(e.Composition.Pure),
			fmtFloat(e.Composition.Blended),
			riskLabel(cfg, e.Composition.Overall),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "Status of %d organizations, %d repositories and %d merge requests built in %v.\n",
		len(report.Organizations), len(report.Repositories), len(report.MergeRequests), duration)
	return nil
}

func writeCSVStatus(w io.Writer, report *schema.StatusReport, fmtFloat func(float64) string, fmtInt func(int64) string) error {
	header := []string{"kind", "id", "name", "total_lines", "ai_lines", "blended_lines", "overall_pct", "pure_pct", "blended_pct", "updated_at"}
	return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
		for _, e := range statusEntities(report) {
			updated := ""
			if e.UpdatedAt != nil {
				updated = e.UpdatedAt.Format(contract.DateTimeFormat)
			}
			row := []string{
				e.Kind,
				fmtInt(e.ID),
				e.Name,
				fmtInt(e.Counts.Total),
				fmtInt(e.Counts.AI),
				fmtInt(e.Counts.Blended),
				fmtFloat(e.Composition.Overall),
				fmtFloat(e.Composition.Pure),
				fmtFloat(e.Composition.Blended),
				updated,
			}
			if err := csvWriter.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}
