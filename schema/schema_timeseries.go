package schema

import "time"

// ChartSeries is one named line of a composition chart.
type ChartSeries struct {
	Name SeriesCategory `json:"name"`
	Data []float64      `json:"data"`
}

// ChartPoint carries the raw counters and percentages behind one bucket.
type ChartPoint struct {
	Bucket      time.Time   `json:"bucket"`
	Label       string      `json:"label"`
	Counts      Counts      `json:"counts"`
	Composition Composition `json:"composition"`
}

// CompositionChart holds parallel series keyed by bucket label.
type CompositionChart struct {
	Categories []string      `json:"categories"`
	Series     []ChartSeries `json:"series"`
	Points     []ChartPoint  `json:"points"`
}

// TimeseriesResult is the answer to a composition chart query.
type TimeseriesResult struct {
	OrganizationID int64             `json:"organization_id"`
	RepositoryIDs  []int64           `json:"repository_ids"`
	Since          time.Time         `json:"since"`
	Until          time.Time         `json:"until"`
	Aggregate      bool              `json:"aggregate"`
	Cumulative     CompositionChart  `json:"cumulative"`
	Daily          *CompositionChart `json:"daily,omitempty"`
}

// IntegrityViolation describes a bucket whose figures break an invariant.
type IntegrityViolation struct {
	OrganizationID int64         `json:"organization_id"`
	Bucket         time.Time     `json:"bucket"`
	Kind           ViolationKind `json:"kind"`
	Delta          bool          `json:"delta"`
	Counts         Counts        `json:"counts"`
	Composition    Composition   `json:"composition"`
}
