package outwriter

import (
	"fmt"
	"io"
	"strings"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
)

// LogCompositionHeader prints a concise, 2-line header for a composition chart.
func LogCompositionHeader(w io.Writer, cfg *contract.Config) {
	scope := "all repositories"
	if len(cfg.Repositories) > 0 {
		scope = strings.Join(cfg.Repositories, ", ")
	}

	// Line 1: the organization and repository scope
	_, _ = fmt.Fprintf(w, "🔎 Organization: %s (%s)\n", cfg.Organization, scope)

	// Line 2: the requested date range
	_, _ = fmt.Fprintf(w, "📅 Range: %s → %s\n", cfg.Since.Format(contract.DateTimeFormat), cfg.Until.Format(contract.DateTimeFormat))
}

// LogIngestHeader prints a header before a batch of payloads is stored.
func LogIngestHeader(w io.Writer, payloads, sources int) {
	_, _ = fmt.Fprintf(w, "📥 Ingesting %d payload(s) from %d source(s)\n", payloads, sources)
}
