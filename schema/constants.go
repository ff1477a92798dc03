package schema

// Custom string types for type safety.
type (
	// Label is the classification assigned to a code unit.
	Label string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for the composition store.
	DatabaseBackend string

	// ScanKind distinguishes full repository scans from merge request scans.
	ScanKind string

	// MergeRequestState represents the lifecycle of a merge request.
	MergeRequestState string

	// FileState tells whether a snapshot file needs its counters recomputed.
	FileState string

	// SeriesCategory names one of the three chart series.
	SeriesCategory string

	// ViolationKind names a data-integrity check that failed.
	ViolationKind string
)

// All unit labels supported.
const (
	HumanLabel        Label = "human"
	AIPureLabel       Label = "ai_pure"
	AIBlendedLabel    Label = "ai_blended"
	NotEvaluatedLabel Label = "not_evaluated"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All store backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none" // in-memory
)

// Snapshot scan kinds.
const (
	FullScan    ScanKind = "full"
	PartialScan ScanKind = "partial"
)

// Merge request states.
const (
	OpenMergeRequest   MergeRequestState = "open"
	ClosedMergeRequest MergeRequestState = "closed"
	MergedMergeRequest MergeRequestState = "merged"
)

// Snapshot file states.
const (
	FileClean FileState = "clean"
	FileDirty FileState = "dirty"
)

// Chart series categories.
const (
	OverallCategory SeriesCategory = "Overall"
	PureCategory    SeriesCategory = "Pure"
	BlendedCategory SeriesCategory = "Blended"
)

// Data-integrity violation kinds.
const (
	AIExceedsTotal        ViolationKind = "ai_exceeds_total"
	BlendedExceedsAI      ViolationKind = "blended_exceeds_ai"
	PercentageOutOfBounds ViolationKind = "percentage_out_of_bounds"
)

// AllCategories lists the chart series in display order.
var AllCategories = []SeriesCategory{OverallCategory, PureCategory, BlendedCategory}

// ValidLabels lists all labels a code unit may carry.
var ValidLabels = map[Label]struct{}{
	HumanLabel:        {},
	AIPureLabel:       {},
	AIBlendedLabel:    {},
	NotEvaluatedLabel: {},
}

// AttestableLabels lists the labels a reviewer may attest to.
var AttestableLabels = map[Label]struct{}{
	HumanLabel:     {},
	AIPureLabel:    {},
	AIBlendedLabel: {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid store backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidMergeRequestStates lists all merge request states.
var ValidMergeRequestStates = map[MergeRequestState]struct{}{
	OpenMergeRequest:   {},
	ClosedMergeRequest: {},
	MergedMergeRequest: {},
}

// IsAI reports whether the label counts toward AI lines.
func (l Label) IsAI() bool {
	return l == AIPureLabel || l == AIBlendedLabel
}
