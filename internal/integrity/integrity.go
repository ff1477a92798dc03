// Package integrity collects data-integrity violations found while building charts.
package integrity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// SlogSink reports violations as structured warnings.
type SlogSink struct {
	logger *slog.Logger
}

var _ contract.IntegritySink = &SlogSink{} // Compile-time check

// NewSlogSink returns a sink writing to logger, or to the default logger when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

// Record implements contract.IntegritySink.
func (s *SlogSink) Record(ctx context.Context, v schema.IntegrityViolation) {
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, "composition integrity violation",
		slog.String("kind", string(v.Kind)),
		slog.Int64("organization_id", v.OrganizationID),
		slog.Time("bucket", v.Bucket),
		slog.Bool("delta", v.Delta),
		slog.Int64("total", v.Counts.Total),
		slog.Int64("ai", v.Counts.AI),
		slog.Int64("blended", v.Counts.Blended),
		slog.Float64("overall", v.Composition.Overall),
		slog.Float64("pure", v.Composition.Pure),
		slog.Float64("blended_pct", v.Composition.Blended),
	)
}

// Recorder keeps every violation in memory.
type Recorder struct {
	mu         sync.Mutex
	violations []schema.IntegrityViolation
}

var _ contract.IntegritySink = &Recorder{} // Compile-time check

// Record implements contract.IntegritySink.
func (r *Recorder) Record(_ context.Context, v schema.IntegrityViolation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, v)
}

// Violations returns a copy of what was recorded so far.
func (r *Recorder) Violations() []schema.IntegrityViolation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schema.IntegrityViolation, len(r.violations))
	copy(out, r.violations)
	return out
}

// Len returns how many violations were recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.violations)
}

// Multi fans a violation out to every sink.
type Multi []contract.IntegritySink

var _ contract.IntegritySink = Multi{} // Compile-time check

// Record implements contract.IntegritySink.
func (m Multi) Record(ctx context.Context, v schema.IntegrityViolation) {
	for _, sink := range m {
		if sink != nil {
			sink.Record(ctx, v)
		}
	}
}

// Check returns the violations found in one bucket. Delta marks the daily series.
func Check(organizationID int64, point schema.ChartPoint, delta bool) []schema.IntegrityViolation {
	var kinds []schema.ViolationKind
	if point.Counts.AI > point.Counts.Total {
		kinds = append(kinds, schema.AIExceedsTotal)
	}
	if point.Counts.Blended > point.Counts.AI {
		kinds = append(kinds, schema.BlendedExceedsAI)
	}
	if outOfBounds(point.Composition.Overall) || outOfBounds(point.Composition.Pure) || outOfBounds(point.Composition.Blended) {
		kinds = append(kinds, schema.PercentageOutOfBounds)
	}

	out := make([]schema.IntegrityViolation, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, schema.IntegrityViolation{
			OrganizationID: organizationID,
			Bucket:         point.Bucket,
			Kind:           kind,
			Delta:          delta,
			Counts:         point.Counts,
			Composition:    point.Composition,
		})
	}
	return out
}

// outOfBounds is true for values outside [0, 100]; NaN counts as out of bounds.
func outOfBounds(pct float64) bool {
	return !(pct >= 0 && pct <= 100)
}
