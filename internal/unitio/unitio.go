// Package unitio reads and writes scanner payloads for ingestion.
package unitio

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
	"lukechampine.com/blake3"
)

// StdinPath selects standard input instead of a file.
const StdinPath = "-"

// ZstdExt marks payload files written compressed.
const ZstdExt = ".zst"

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// HashContent returns the hex BLAKE3-256 digest of a unit's content.
func HashContent(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// LoadFile reads payloads from a file, or from stdin when path is "-".
func LoadFile(path string) ([]schema.IngestRequest, error) {
	if path == StdinPath {
		return ReadRequests(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open payload %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	reqs, err := ReadRequests(f)
	if err != nil {
		return nil, fmt.Errorf("read payload %s: %w", path, err)
	}
	return reqs, nil
}

// ReadRequests decodes a single payload object or an array of them.
// Zstd-compressed input is detected from its frame magic.
func ReadRequests(r io.Reader) ([]schema.IngestRequest, error) {
	br := bufio.NewReader(r)
	if head, _ := br.Peek(len(zstdMagic)); bytes.Equal(head, zstdMagic) {
		decoder, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer decoder.Close()
		return decodeRequests(decoder)
	}
	return decodeRequests(br)
}

func decodeRequests(r io.Reader) ([]schema.IngestRequest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	if data[0] == '[' {
		var reqs []schema.IngestRequest
		if err := json.Unmarshal(data, &reqs); err != nil {
			return nil, fmt.Errorf("decoding payload array: %w", err)
		}
		return reqs, nil
	}

	var req schema.IngestRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return []schema.IngestRequest{req}, nil
}

// Normalize prepares a payload for ingestion: units carrying content are hashed
// and stripped of it, missing line counts are taken from the line range, and
// files matching the exclude globs are dropped. It returns the dropped paths.
func Normalize(req *schema.IngestRequest, excludes []string) []string {
	var dropped []string
	kept := req.Files[:0]
	for _, file := range req.Files {
		if contract.ShouldIgnore(file.Path, excludes) {
			dropped = append(dropped, file.Path)
			continue
		}
		for i := range file.Units {
			normalizeUnit(&file.Units[i])
		}
		kept = append(kept, file)
	}
	req.Files = kept
	return dropped
}

func normalizeUnit(u *schema.IngestUnit) {
	if u.ContentHash == "" && u.Content != "" {
		u.ContentHash = HashContent(u.Content)
	}
	u.Content = ""
	if u.LineCount == 0 && u.EndLine >= u.StartLine && u.EndLine > 0 {
		u.LineCount = int64(u.EndLine - u.StartLine + 1)
	}
}

// WriteRequests encodes payloads as a JSON array, zstd-compressed when compress is set.
func WriteRequests(w io.Writer, reqs []schema.IngestRequest, compress bool) error {
	if !compress {
		return encodeRequests(w, reqs)
	}
	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	if err := encodeRequests(encoder, reqs); err != nil {
		_ = encoder.Close()
		return err
	}
	return encoder.Close()
}

func encodeRequests(w io.Writer, reqs []schema.IngestRequest) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reqs); err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	return nil
}

// SaveFile writes payloads to path, compressing when it ends in ".zst".
func SaveFile(path string, reqs []schema.IngestRequest) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create payload %s: %w", path, err)
	}
	if err := WriteRequests(f, reqs, strings.HasSuffix(path, ZstdExt)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
