// Package schema has models, constants and request types for all parts of aicomp.
package schema

import "time"

// Counts holds the raw line counters tracked at every aggregation level.
// Pure is never stored; it is always derived from AI and Blended.
type Counts struct {
	Total   int64 `json:"total"`
	AI      int64 `json:"ai"`
	Blended int64 `json:"blended"`
}

// Pure returns the AI lines that were not blended with human edits.
func (c Counts) Pure() int64 {
	return c.AI - c.Blended
}

// Add returns the element-wise sum of two counters.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Total:   c.Total + o.Total,
		AI:      c.AI + o.AI,
		Blended: c.Blended + o.Blended,
	}
}

// IsZero reports whether no lines were counted.
func (c Counts) IsZero() bool {
	return c.Total == 0 && c.AI == 0 && c.Blended == 0
}

// Composition holds the three percentages derived from Counts.
type Composition struct {
	Overall float64 `json:"overall"`
	Pure    float64 `json:"pure"`
	Blended float64 `json:"blended"`
}

// CodeUnit is a hashable chunk of code inside one file of one snapshot.
type CodeUnit struct {
	ID           int64  `json:"id"`
	RepositoryID int64  `json:"repository_id"`
	SnapshotID   int64  `json:"snapshot_id"`
	FileID       int64  `json:"file_id"`
	ContentHash  string `json:"content_hash"`
	StartLine    int    `json:"start_line"`
	EndLine      int    `json:"end_line"`
	LineCount    int64  `json:"line_count"`
	AILines      int64  `json:"ai_lines"`
	Label        Label  `json:"label"`
}

// Attestation is a reviewer override of the label for every unit sharing
// a content hash inside one repository.
type Attestation struct {
	RepositoryID int64     `json:"repository_id"`
	ContentHash  string    `json:"content_hash"`
	Label        Label     `json:"label"`
	Comment      string    `json:"comment,omitempty"`
	Author       string    `json:"author,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot is the result of scanning one commit of a repository.
type Snapshot struct {
	ID                 int64      `json:"id"`
	RepositoryID       int64      `json:"repository_id"`
	CommitSHA          string     `json:"commit_sha"`
	Kind               ScanKind   `json:"kind"`
	CapturedAt         time.Time  `json:"captured_at"`
	Counts             Counts     `json:"counts"`
	LastRecalculatedAt *time.Time `json:"last_recalculated_at,omitempty"`
}

// IsFullScan reports whether the snapshot covers the whole repository.
func (s Snapshot) IsFullScan() bool {
	return s.Kind == FullScan
}

// SnapshotFile is one file inside one snapshot.
type SnapshotFile struct {
	ID                 int64      `json:"id"`
	SnapshotID         int64      `json:"snapshot_id"`
	Path               string     `json:"path"`
	Counts             Counts     `json:"counts"`
	State              FileState  `json:"state"`
	LastRecalculatedAt *time.Time `json:"last_recalculated_at,omitempty"`
}

// MergeRequest is a proposed change whose composition mirrors its head snapshot while open.
type MergeRequest struct {
	ID                 int64             `json:"id"`
	RepositoryID       int64             `json:"repository_id"`
	ExternalID         string            `json:"external_id"`
	Title              string            `json:"title"`
	State              MergeRequestState `json:"state"`
	HeadSnapshotID     *int64            `json:"head_snapshot_id,omitempty"`
	BaseSnapshotID     *int64            `json:"base_snapshot_id,omitempty"`
	Counts             Counts            `json:"counts"`
	LastRecalculatedAt *time.Time        `json:"last_recalculated_at,omitempty"`
}

// IsOpen reports whether the merge request still follows its head snapshot.
func (mr MergeRequest) IsOpen() bool {
	return mr.State == OpenMergeRequest
}

// Repository is a tracked code repository within an organization.
type Repository struct {
	ID                 int64      `json:"id"`
	OrganizationID     int64      `json:"organization_id"`
	Name               string     `json:"name"`
	LastSnapshotID     *int64     `json:"last_snapshot_id,omitempty"`
	Counts             Counts     `json:"counts"`
	LastRecalculatedAt *time.Time `json:"last_recalculated_at,omitempty"`
}

// IsCurrentSnapshot reports whether id is the repository's current full scan.
func (r Repository) IsCurrentSnapshot(id int64) bool {
	return r.LastSnapshotID != nil && *r.LastSnapshotID == id
}

// Organization is the top-level rollup scope.
type Organization struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Counts         Counts     `json:"counts"`
	LastRolledUpAt *time.Time `json:"last_rolled_up_at,omitempty"`
}
