package outwriter

import (
	"io"

	"github.com/roy-sema/cto-tool-sub001/internal/parquet"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// writeParquetComposition flattens both charts into a single Parquet table.
func writeParquetComposition(w io.Writer, result *schema.TimeseriesResult) error {
	rows := parquet.ConvertChart(CumulativeSeries, result.Cumulative)
	if result.Daily != nil {
		rows = append(rows, parquet.ConvertChart(DailySeries, *result.Daily)...)
	}
	return parquet.WriteChartPoints(w, rows)
}
