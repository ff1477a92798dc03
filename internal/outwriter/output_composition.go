package outwriter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// Series names used when a result carries both charts.
const (
	CumulativeSeries = "cumulative"
	DailySeries      = "daily"
)

// PrintComposition outputs a composition chart, dispatching based on the output format configured.
func PrintComposition(w io.Writer, result *schema.TimeseriesResult, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, fmtInt := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(w, cfg.OutputFile, func(out io.Writer) error {
			return writeJSON(out, result)
		}, "Wrote JSON composition chart"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(w, cfg.OutputFile, func(out io.Writer) error {
			return writeCSVComposition(out, result, fmtFloat, fmtInt)
		}, "Wrote CSV composition chart"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if cfg.OutputFile == "" {
			return errors.New("--output-file is required for parquet output")
		}
		if err := writeWithFile(w, cfg.OutputFile, func(out io.Writer) error {
			return writeParquetComposition(out, result)
		}, "Wrote Parquet composition chart"); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
	default:
		if err := writeWithFile(w, cfg.OutputFile, func(out io.Writer) error {
			return writeCompositionTable(out, result, cfg, fmtFloat, fmtInt, duration)
		}, "Wrote composition table"); err != nil {
			return fmt.Errorf("error writing composition table output: %w", err)
		}
	}
	return nil
}

// writeCompositionTable prints the cumulative chart and, when present, the daily one.
func writeCompositionTable(w io.Writer, result *schema.TimeseriesResult, cfg *contract.Config, fmtFloat func(float64) string, fmtInt func(int64) string, duration time.Duration) error {
	granularity := "daily"
	if result.Aggregate {
		granularity = "weekly"
	}
	_, _ = fmt.Fprintf(w, "Composition of organization %d from %s to %s (%s buckets)\n",
		result.OrganizationID, result.Since.Format(contract.DateFormat), result.Until.Format(contract.DateFormat), granularity)

	if err := renderChart(w, result.Cumulative, cfg, fmtFloat, fmtInt); err != nil {
		return err
	}
	if result.Daily != nil {
		_, _ = fmt.Fprintln(w, "\nNew lines per bucket")
		if err := renderChart(w, *result.Daily, cfg, fmtFloat, fmtInt); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintf(w, "Composition computed in %v over %d buckets.\n", duration, len(result.Cumulative.Points))
	return nil
}

func renderChart(w io.Writer, chart schema.CompositionChart, cfg *contract.Config, fmtFloat func(float64) string, fmtInt func(int64) string) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Bucket", "Total", "AI", "Blended", "Overall %", "Pure %", "Blended %", "Label"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, p := range chart.Points {
		data = append(data, []string{
			p.Label,
			fmtInt(p.Counts.Total),
			fmtInt(p.Counts.AI),
			fmtInt(p.Counts.Blended),
			fmtFloat(p.Composition.Overall),
			fmtFloat(p.Composition.Pure),
			fmtFloat(p.Composition.Blended),
			riskLabel(cfg, p.Composition.Overall),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeCSVComposition writes one row per bucket, tagged with its series.
func writeCSVComposition(w io.Writer, result *schema.TimeseriesResult, fmtFloat func(float64) string, fmtInt func(int64) string) error {
	header := []string{"series", "bucket", "label", "total_lines", "ai_lines", "blended_lines", "overall_pct", "pure_pct", "blended_pct"}
	return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
		if err := writeCSVChart(csvWriter, CumulativeSeries, result.Cumulative, fmtFloat, fmtInt); err != nil {
			return err
		}
		if result.Daily != nil {
			return writeCSVChart(csvWriter, DailySeries, *result.Daily, fmtFloat, fmtInt)
		}
		return nil
	})
}

func writeCSVChart(w *csv.Writer, series string, chart schema.CompositionChart, fmtFloat func(float64) string, fmtInt func(int64) string) error {
	for _, p := range chart.Points {
		row := []string{
			series,
			p.Bucket.Format(contract.DateTimeFormat),
			p.Label,
			fmtInt(p.Counts.Total),
			fmtInt(p.Counts.AI),
			fmtInt(p.Counts.Blended),
			fmtFloat(p.Composition.Overall),
			fmtFloat(p.Composition.Pure),
			fmtFloat(p.Composition.Blended),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
