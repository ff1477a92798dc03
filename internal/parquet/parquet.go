// Package parquet provides data structures and functions for exporting composition
// data to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/roy-sema/cto-tool-sub001/core/metric"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// Snapshot is one scanned commit with its aggregate counters.
// This struct maps to the snapshots database table.
type Snapshot struct {
	SnapshotID   int64  `parquet:"snapshot_id,snappy"`
	RepositoryID int64  `parquet:"repository_id,snappy"`
	CommitSHA    string `parquet:"commit_sha,snappy"`
	Kind         string `parquet:"kind,snappy"`

	// CapturedAt is stored as TIMESTAMP with nanosecond precision
	CapturedAt time.Time `parquet:"captured_at,snappy"`

	TotalLines   int64 `parquet:"total_lines,snappy"`
	AILines      int64 `parquet:"ai_lines,snappy"`
	BlendedLines int64 `parquet:"blended_lines,snappy"`

	// LastRecalculatedAt is nil until the cascade has visited the snapshot
	LastRecalculatedAt *time.Time `parquet:"last_recalculated_at,optional,snappy"`
}

// Repository is a tracked repository with its current composition.
// This struct maps to the repositories database table.
type Repository struct {
	RepositoryID       int64      `parquet:"repository_id,snappy"`
	OrganizationID     int64      `parquet:"organization_id,snappy"`
	Name               string     `parquet:"name,snappy"`
	LastSnapshotID     *int64     `parquet:"last_snapshot_id,optional,snappy"`
	TotalLines         int64      `parquet:"total_lines,snappy"`
	AILines            int64      `parquet:"ai_lines,snappy"`
	BlendedLines       int64      `parquet:"blended_lines,snappy"`
	OverallPct         float64    `parquet:"overall_pct,snappy"`
	PurePct            float64    `parquet:"pure_pct,snappy"`
	BlendedPct         float64    `parquet:"blended_pct,snappy"`
	LastRecalculatedAt *time.Time `parquet:"last_recalculated_at,optional,snappy"`
}

// ChartPoint is one bucket of a composition chart.
type ChartPoint struct {
	// Series is "cumulative" or "daily"
	Series string `parquet:"series,snappy"`

	Bucket       time.Time `parquet:"bucket,snappy"`
	Label        string    `parquet:"label,snappy"`
	TotalLines   int64     `parquet:"total_lines,snappy"`
	AILines      int64     `parquet:"ai_lines,snappy"`
	BlendedLines int64     `parquet:"blended_lines,snappy"`
	OverallPct   float64   `parquet:"overall_pct,snappy"`
	PurePct      float64   `parquet:"pure_pct,snappy"`
	BlendedPct   float64   `parquet:"blended_pct,snappy"`
}

// write encodes data with a schema derived from the struct tags of T.
func write[T any](w io.Writer, data []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// writeFile creates outputPath and writes data into it.
func writeFile[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return write(file, data)
}

// WriteSnapshotsParquet writes snapshot rows to a Parquet file.
func WriteSnapshotsParquet(data []Snapshot, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteRepositoriesParquet writes repository rows to a Parquet file.
func WriteRepositoriesParquet(data []Repository, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteChartPoints writes chart rows to w.
func WriteChartPoints(w io.Writer, data []ChartPoint) error {
	return write(w, data)
}

// ConvertSnapshots converts stored snapshots for Parquet export.
func ConvertSnapshots(records []schema.Snapshot) []Snapshot {
	result := make([]Snapshot, len(records))
	for i, r := range records {
		result[i] = Snapshot{
			SnapshotID:         r.ID,
			RepositoryID:       r.RepositoryID,
			CommitSHA:          r.CommitSHA,
			Kind:               string(r.Kind),
			CapturedAt:         r.CapturedAt,
			TotalLines:         r.Counts.Total,
			AILines:            r.Counts.AI,
			BlendedLines:       r.Counts.Blended,
			LastRecalculatedAt: r.LastRecalculatedAt,
		}
	}
	return result
}

// ConvertRepositories converts stored repositories for Parquet export.
func ConvertRepositories(records []schema.Repository) []Repository {
	result := make([]Repository, len(records))
	for i, r := range records {
		comp := metric.Compose(r.Counts)
		result[i] = Repository{
			RepositoryID:       r.ID,
			OrganizationID:     r.OrganizationID,
			Name:               r.Name,
			LastSnapshotID:     r.LastSnapshotID,
			TotalLines:         r.Counts.Total,
			AILines:            r.Counts.AI,
			BlendedLines:       r.Counts.Blended,
			OverallPct:         comp.Overall,
			PurePct:            comp.Pure,
			BlendedPct:         comp.Blended,
			LastRecalculatedAt: r.LastRecalculatedAt,
		}
	}
	return result
}

// ConvertChart flattens a chart's points under the series name.
func ConvertChart(series string, chart schema.CompositionChart) []ChartPoint {
	result := make([]ChartPoint, len(chart.Points))
	for i, p := range chart.Points {
		result[i] = ChartPoint{
			Series:       series,
			Bucket:       p.Bucket,
			Label:        p.Label,
			TotalLines:   p.Counts.Total,
			AILines:      p.Counts.AI,
			BlendedLines: p.Counts.Blended,
			OverallPct:   p.Composition.Overall,
			PurePct:      p.Composition.Pure,
			BlendedPct:   p.Composition.Blended,
		}
	}
	return result
}
