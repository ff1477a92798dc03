package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *schema.TimeseriesResult {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	point := func(at time.Time, c schema.Counts, comp schema.Composition) schema.ChartPoint {
		return schema.ChartPoint{Bucket: at, Label: at.Format(contract.DateFormat), Counts: c, Composition: comp}
	}
	cumulative := schema.CompositionChart{
		Categories: []string{"2025-03-01", "2025-03-02"},
		Points: []schema.ChartPoint{
			point(day, schema.Counts{Total: 60, AI: 50, Blended: 25}, schema.Composition{Overall: 83.33, Pure: 41.66, Blended: 41.67}),
			point(day.Add(24*time.Hour), schema.Counts{Total: 60, AI: 50, Blended: 25}, schema.Composition{Overall: 83.33, Pure: 41.66, Blended: 41.67}),
		},
	}
	daily := schema.CompositionChart{
		Categories: []string{"2025-03-01"},
		Points: []schema.ChartPoint{
			point(day, schema.Counts{Total: 10, AI: 0, Blended: 0}, schema.Composition{}),
		},
	}
	return &schema.TimeseriesResult{
		OrganizationID: 7,
		Since:          day,
		Until:          day.Add(24 * time.Hour),
		Cumulative:     cumulative,
		Daily:          &daily,
	}
}

func sampleStatus() *schema.StatusReport {
	return &schema.StatusReport{
		Organizations: []schema.EntityComposition{
			{Kind: schema.OrganizationEntity, ID: 1, Name: "acme", Counts: schema.Counts{Total: 60, AI: 50, Blended: 25}, Composition: schema.Composition{Overall: 83.33, Pure: 41.66, Blended: 41.67}},
		},
		Repositories: []schema.EntityComposition{
			{Kind: schema.RepositoryEntity, ID: 2, Name: "api", Counts: schema.Counts{Total: 10}},
		},
	}
}

func textConfig(output schema.OutputMode) *contract.Config {
	return &contract.Config{Output: output, Precision: 2, Width: 160}
}

func TestPrintCompositionTable(t *testing.T) {
	var buf bytes.Buffer
	err := PrintComposition(&buf, sampleResult(), textConfig(schema.TextOut), 25*time.Millisecond)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Composition of organization 7 from 2025-03-01 to 2025-03-02 (daily buckets)")
	assert.Contains(t, out, "83.33")
	assert.Contains(t, out, "41.66")
	assert.Contains(t, out, contract.CriticalValue)
	assert.Contains(t, out, "New lines per bucket")
	assert.Contains(t, out, "over 2 buckets")
}

func TestPrintCompositionCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintComposition(&buf, sampleResult(), textConfig(schema.CSVOut), 0))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "series", records[0][0])
	assert.Equal(t, []string{CumulativeSeries, "2025-03-01T00:00:00Z", "2025-03-01", "60", "50", "25", "83.33", "41.66", "41.67"}, records[1])
	assert.Equal(t, DailySeries, records[3][0])
}

func TestPrintCompositionJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintComposition(&buf, sampleResult(), textConfig(schema.JSONOut), 0))

	var decoded schema.TimeseriesResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, int64(7), decoded.OrganizationID)
	assert.Len(t, decoded.Cumulative.Points, 2)
	require.NotNil(t, decoded.Daily)
}

func TestPrintCompositionParquet(t *testing.T) {
	cfg := textConfig(schema.ParquetOut)

	var buf bytes.Buffer
	err := PrintComposition(&buf, sampleResult(), cfg, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output-file")

	cfg.OutputFile = filepath.Join(t.TempDir(), "chart.parquet")
	require.NoError(t, PrintComposition(&buf, sampleResult(), cfg, 0))
	assert.Empty(t, buf.String())

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, "PAR1", string(data[:4]))
}

func TestPrintCompositionToFile(t *testing.T) {
	cfg := textConfig(schema.JSONOut)
	cfg.OutputFile = filepath.Join(t.TempDir(), "chart.json")

	var buf bytes.Buffer
	require.NoError(t, PrintComposition(&buf, sampleResult(), cfg, 0))
	assert.Empty(t, buf.String())

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"organization_id": 7`)
}

func TestPrintStatusReport(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintStatusReport(&buf, sampleStatus(), textConfig(schema.TextOut), time.Second))
		out := buf.String()
		assert.Contains(t, out, "acme")
		assert.Contains(t, out, "api")
		assert.Contains(t, out, contract.LowValue)
		assert.Contains(t, out, "Status of 1 organizations, 1 repositories and 0 merge requests")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintStatusReport(&buf, sampleStatus(), textConfig(schema.CSVOut), 0))
		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, []string{"organization", "1", "acme", "60", "50", "25", "83.33", "41.66", "41.67", ""}, records[1])
		assert.Equal(t, "repository", records[2][0])
	})

	t.Run("parquet is rejected", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, PrintStatusReport(&buf, sampleStatus(), textConfig(schema.ParquetOut), 0))
	})
}

func TestPrintOperationResult(t *testing.T) {
	result := &schema.OperationResult{
		Operation: "ingest",
		Snapshots: []int64{3, 4},
		Skipped:   []schema.SkippedItem{{Organization: "acme", Repository: "ghost", CommitSHA: "abc", Reason: "repository not found"}},
		Cascade:   &schema.CascadeResult{Snapshots: []int64{3, 4}, Repositories: []int64{2}, Organizations: []int64{1}, FilesRecounted: 5},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintOperationResult(&buf, result, textConfig(schema.TextOut), time.Millisecond))
		out := buf.String()
		assert.Contains(t, out, "Snapshots: 3, 4")
		assert.Contains(t, out, "Files recounted: 5")
		assert.Contains(t, out, "Merge requests updated: none")
		assert.Contains(t, out, "Skipped acme/ghost@abc: repository not found")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintOperationResult(&buf, result, textConfig(schema.CSVOut), 0))
		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		// header + 2 snapshots + 1 repository + 1 organization + 1 skipped
		require.Len(t, records, 6)
		assert.Equal(t, []string{"ingest", "snapshot", "3", ""}, records[1])
		assert.Equal(t, "skipped", records[5][1])
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintOperationResult(&buf, result, textConfig(schema.JSONOut), 0))
		var decoded schema.OperationResult
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, result.Snapshots, decoded.Snapshots)
		require.NotNil(t, decoded.Cascade)
		assert.Equal(t, 5, decoded.Cascade.FilesRecounted)
	})
}

func TestGetMaxTableNameWidth(t *testing.T) {
	assert.Equal(t, 15, GetMaxTableNameWidth(&contract.Config{Width: 80}))
	assert.Equal(t, 25, GetMaxTableNameWidth(&contract.Config{Width: 120}))
	assert.Equal(t, 60, GetMaxTableNameWidth(&contract.Config{Width: 300}))
}

func TestRiskLabel(t *testing.T) {
	assert.Equal(t, contract.HighValue, riskLabel(&contract.Config{}, 65))
	assert.Contains(t, riskLabel(&contract.Config{UseColors: true}, 65), contract.HighValue)
}
