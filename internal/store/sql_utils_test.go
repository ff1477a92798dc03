package store

import (
	"testing"
	"time"

	"github.com/roy-sema/cto-tool-sub001/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	query := "SELECT id FROM t WHERE a = ? AND b IN (?, ?)"
	assert.Equal(t, query, rebind(query, schema.SQLiteBackend))
	assert.Equal(t, query, rebind(query, schema.MySQLBackend))
	assert.Equal(t, "SELECT id FROM t WHERE a = $1 AND b IN ($2, $3)", rebind(query, schema.PostgreSQLBackend))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestQuoteTableName(t *testing.T) {
	assert.Equal(t, "`snapshots`", quoteTableName(snapshotsTable, schema.MySQLBackend))
	assert.Equal(t, `"snapshots"`, quoteTableName(snapshotsTable, schema.PostgreSQLBackend))
	assert.Equal(t, `"snapshots"`, quoteTableName(snapshotsTable, schema.SQLiteBackend))
}

func TestValidateTableName(t *testing.T) {
	for _, table := range append(allTables(), migrationsTable) {
		assert.NoError(t, validateTableName(table), table)
	}
	assert.Error(t, validateTableName(""))
	assert.Error(t, validateTableName("snapshots; DROP TABLE x"))
	assert.Error(t, validateTableName("1table"))
}

func TestDropOrderReversesCreation(t *testing.T) {
	order := dropOrder()
	require.Len(t, order, len(allTables()))
	assert.Equal(t, mergeRequestsTable, order[0])
	assert.Equal(t, organizationsTable, order[len(order)-1])
}

func TestFormatTimeSortsLexically(t *testing.T) {
	whole := formatTime(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), schema.SQLiteBackend).(string)
	frac := formatTime(time.Date(2025, 1, 1, 0, 0, 0, 500, time.UTC), schema.SQLiteBackend).(string)
	assert.Less(t, whole, frac)
	assert.Len(t, frac, len(whole))

	native := formatTime(time.Date(2025, 1, 1, 3, 0, 0, 0, time.FixedZone("X", 3600)), schema.PostgreSQLBackend)
	assert.Equal(t, time.UTC, native.(time.Time).Location())
}

func TestScanTime(t *testing.T) {
	want := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		src   any
		valid bool
	}{
		{"nil", nil, false},
		{"native", want, true},
		{"sqlite text", want.Format(sqliteTimeLayout), true},
		{"mysql bytes", []byte("2025-03-01 12:30:00.000000"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var st scanTime
			require.NoError(t, st.Scan(tt.src))
			assert.Equal(t, tt.valid, st.Valid)
			if tt.valid {
				assert.True(t, want.Equal(st.Time))
				require.NotNil(t, st.Ptr())
			} else {
				assert.Nil(t, st.Ptr())
			}
		})
	}

	var st scanTime
	assert.Error(t, st.Scan(42))
	assert.Error(t, st.Scan("not a time"))
}

func TestChunkStrings(t *testing.T) {
	chunks := chunkStrings([]string{"a", "b", "c", "d", "e"}, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunks)
	assert.Empty(t, chunkStrings(nil, 2))
}

func TestMergeMergeRequest(t *testing.T) {
	base, head, next := int64(1), int64(2), int64(3)
	existing := schema.MergeRequest{ID: 9, Title: "old", State: schema.OpenMergeRequest, HeadSnapshotID: &head, BaseSnapshotID: &base}

	merged := mergeMergeRequest(existing, schema.MergeRequest{HeadSnapshotID: &next, BaseSnapshotID: &head, State: schema.ClosedMergeRequest})
	assert.Equal(t, int64(9), merged.ID)
	assert.Equal(t, "old", merged.Title)
	assert.Equal(t, schema.ClosedMergeRequest, merged.State)
	assert.Equal(t, next, *merged.HeadSnapshotID)
	assert.Equal(t, base, *merged.BaseSnapshotID)
}
