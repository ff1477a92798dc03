// Package outwriter has output and writer logic.
package outwriter

import (
	"io"
	"os"
	"time"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
	"golang.org/x/term"
)

// OutWriter provides a unified interface for all output operations.
type OutWriter struct {
	stdout io.Writer
}

// NewOutWriter creates an output writer printing to stdout.
func NewOutWriter() *OutWriter {
	return &OutWriter{stdout: os.Stdout}
}

// NewOutWriterTo creates an output writer printing to w instead of stdout.
func NewOutWriterTo(w io.Writer) *OutWriter {
	return &OutWriter{stdout: w}
}

// WriteComposition prints composition charts using the configured output format.
func (ow *OutWriter) WriteComposition(result *schema.TimeseriesResult, cfg *contract.Config, duration time.Duration) error {
	return PrintComposition(ow.stdout, result, cfg, duration)
}

// WriteStatus prints the composition status report using the configured output format.
func (ow *OutWriter) WriteStatus(report *schema.StatusReport, cfg *contract.Config, duration time.Duration) error {
	return PrintStatusReport(ow.stdout, report, cfg, duration)
}

// WriteOperation prints what an ingest, attestation or recalculation changed.
func (ow *OutWriter) WriteOperation(result *schema.OperationResult, cfg *contract.Config, duration time.Duration) error {
	return PrintOperationResult(ow.stdout, result, cfg, duration)
}

// GetMaxTableNameWidth calculates the maximum width for entity names in table
// output based on terminal width.
func GetMaxTableNameWidth(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth == 0 {
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Kind + ID + counters + percentages + label, with borders and padding.
	baseWidth := 95

	available := termWidth - baseWidth
	if available < 15 {
		return 15
	}
	if available > 60 {
		return 60
	}
	return available
}
