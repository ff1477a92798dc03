package unitio

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roy-sema/cto-tool-sub001/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload() schema.IngestRequest {
	return schema.IngestRequest{
		Organization: "acme",
		Repository:   "api",
		CommitSHA:    "abc123",
		Kind:         schema.FullScan,
		CapturedAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Files: []schema.IngestFile{
			{Path: "main.go", Units: []schema.IngestUnit{
				{Content: "func main() {}", StartLine: 1, EndLine: 3, Label: schema.AIPureLabel, AILines: 3},
				{ContentHash: "h2", StartLine: 4, EndLine: 9, LineCount: 6, Label: schema.HumanLabel},
			}},
			{Path: "vendor/lib/lib.go", Units: []schema.IngestUnit{
				{ContentHash: "h3", StartLine: 1, EndLine: 1, LineCount: 1, Label: schema.HumanLabel},
			}},
		},
	}
}

func TestHashContent(t *testing.T) {
	h := HashContent("func main() {}")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashContent("func main() {}"))
	assert.NotEqual(t, h, HashContent("func main() { }"))
}

func TestReadRequestsObjectAndArray(t *testing.T) {
	single := `{"organization":"acme","repository":"api","commit_sha":"a","kind":"full","captured_at":"2025-03-01T00:00:00Z"}`
	reqs, err := ReadRequests(strings.NewReader(single))
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "api", reqs[0].Repository)

	array := "\n  [" + single + "," + single + "]"
	reqs, err = ReadRequests(strings.NewReader(array))
	require.NoError(t, err)
	assert.Len(t, reqs, 2)

	_, err = ReadRequests(strings.NewReader("   "))
	assert.Error(t, err)
	_, err = ReadRequests(strings.NewReader("{not json"))
	assert.Error(t, err)
}

func TestWriteAndReadCompressed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRequests(&buf, []schema.IngestRequest{samplePayload()}, true))
	assert.Equal(t, zstdMagic, buf.Bytes()[:4])

	reqs, err := ReadRequests(&buf)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "abc123", reqs[0].CommitSHA)
	assert.Len(t, reqs[0].Files, 2)
}

func TestSaveAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"payload.json", "payload.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, SaveFile(path, []schema.IngestRequest{samplePayload()}))

			reqs, err := LoadFile(path)
			require.NoError(t, err)
			require.Len(t, reqs, 1)
			assert.True(t, samplePayload().CapturedAt.Equal(reqs[0].CapturedAt))
		})
	}

	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	req := samplePayload()
	dropped := Normalize(&req, []string{"**/vendor/**", "vendor/**"})

	assert.Equal(t, []string{"vendor/lib/lib.go"}, dropped)
	require.Len(t, req.Files, 1)

	units := req.Files[0].Units
	assert.Equal(t, HashContent("func main() {}"), units[0].ContentHash)
	assert.Empty(t, units[0].Content)
	assert.Equal(t, int64(3), units[0].LineCount)
	assert.Equal(t, "h2", units[1].ContentHash)
	assert.Equal(t, int64(6), units[1].LineCount)
	assert.NoError(t, req.Validate())
}
