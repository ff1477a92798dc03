package schema

import "time"

// StoreStatus represents the status of the composition store.
type StoreStatus struct {
	Backend          string           `json:"backend"`
	Connected        bool             `json:"connected"`
	SchemaVersion    uint             `json:"schema_version"`
	TotalSnapshots   int64            `json:"total_snapshots"`
	DirtyFiles       int64            `json:"dirty_files"`
	LastCapturedAt   time.Time        `json:"last_captured_at"`
	OldestCapturedAt time.Time        `json:"oldest_captured_at"`
	TableSizes       map[string]int64 `json:"table_sizes"`
}

// CascadeResult summarizes one recalculation run.
type CascadeResult struct {
	Snapshots      []int64 `json:"snapshots"`
	MergeRequests  []int64 `json:"merge_requests"`
	Repositories   []int64 `json:"repositories"`
	Organizations  []int64 `json:"organizations"`
	FilesRecounted int     `json:"files_recounted"`
}

// EntityComposition is the outbound view consumed by risk evaluation and status output.
type EntityComposition struct {
	Kind        string      `json:"kind"`
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Counts      Counts      `json:"counts"`
	Composition Composition `json:"composition"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
}

// SkippedItem is a batch entry that was not ingested.
type SkippedItem struct {
	Organization string `json:"organization"`
	Repository   string `json:"repository"`
	CommitSHA    string `json:"commit_sha"`
	Reason       string `json:"reason"`
}

// OperationResult reports what an ingest, attestation or recalculation changed.
type OperationResult struct {
	Operation     string         `json:"operation"`
	Snapshots     []int64        `json:"snapshots"`
	Skipped       []SkippedItem  `json:"skipped,omitempty"`
	ExcludedFiles int            `json:"excluded_files,omitempty"`
	Cascade       *CascadeResult `json:"cascade,omitempty"`
}

// StatusReport lists the current composition of every tracked entity.
type StatusReport struct {
	Organizations []EntityComposition `json:"organizations"`
	Repositories  []EntityComposition `json:"repositories"`
	MergeRequests []EntityComposition `json:"merge_requests"`
}

// Entity kinds used in EntityComposition.
const (
	OrganizationEntity = "organization"
	RepositoryEntity   = "repository"
	MergeRequestEntity = "merge_request"
)
