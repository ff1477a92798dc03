package schema

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Limits applied when validating inbound requests.
const (
	MaxPathLength      = 1024
	MaxHashLength      = 128
	MaxCommitSHALength = 64
	MaxCommentLength   = 2000
	MaxNameLength      = 255
)

// IngestUnit is a code unit as delivered by the scanner.
// Either ContentHash or Content must be set; Content is hashed when the hash is missing.
type IngestUnit struct {
	ContentHash string `json:"content_hash,omitempty"`
	Content     string `json:"content,omitempty"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	LineCount   int64  `json:"line_count"`
	AILines     int64  `json:"ai_lines"`
	Label       Label  `json:"label"`
}

// Validate implements validation.Validatable.
func (u IngestUnit) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.ContentHash,
			validation.Required.When(u.Content == "").Error("content_hash or content is required"),
			validation.Length(0, MaxHashLength),
		),
		validation.Field(&u.Label,
			validation.Required,
			validation.In(HumanLabel, AIPureLabel, AIBlendedLabel, NotEvaluatedLabel),
		),
		validation.Field(&u.LineCount, validation.Min(0)),
		validation.Field(&u.AILines, validation.Min(0)),
		validation.Field(&u.EndLine, validation.Min(u.StartLine)),
	)
}

// IngestFile is one scanned file with its units.
type IngestFile struct {
	Path  string       `json:"path"`
	Units []IngestUnit `json:"units"`
}

// Validate implements validation.Validatable.
func (f IngestFile) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Path, validation.Required, validation.Length(1, MaxPathLength)),
		validation.Field(&f.Units),
	)
}

// MergeRequestRef links a partial scan to a merge request.
type MergeRequestRef struct {
	ExternalID string            `json:"external_id"`
	Title      string            `json:"title,omitempty"`
	State      MergeRequestState `json:"state,omitempty"`
}

// Validate implements validation.Validatable.
func (m MergeRequestRef) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.ExternalID, validation.Required, validation.Length(1, MaxNameLength)),
		validation.Field(&m.Title, validation.Length(0, MaxNameLength)),
		validation.Field(&m.State, validation.In(OpenMergeRequest, ClosedMergeRequest, MergedMergeRequest)),
	)
}

// IngestRequest carries one snapshot from the scanner into the store.
type IngestRequest struct {
	Organization  string            `json:"organization"`
	Repository    string            `json:"repository"`
	CommitSHA     string            `json:"commit_sha"`
	Kind          ScanKind          `json:"kind"`
	CapturedAt    time.Time         `json:"captured_at"`
	Files         []IngestFile      `json:"files"`
	MergeRequests []MergeRequestRef `json:"merge_requests,omitempty"`
}

// Validate implements validation.Validatable.
func (r IngestRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Organization, validation.Required, validation.Length(1, MaxNameLength)),
		validation.Field(&r.Repository, validation.Required, validation.Length(1, MaxNameLength)),
		validation.Field(&r.CommitSHA, validation.Required, validation.Length(1, MaxCommitSHALength)),
		validation.Field(&r.Kind, validation.Required, validation.In(FullScan, PartialScan)),
		validation.Field(&r.CapturedAt, validation.Required),
		validation.Field(&r.Files),
		validation.Field(&r.MergeRequests,
			validation.Empty.When(r.Kind == FullScan).Error("merge requests can only reference partial scans"),
		),
	)
}

// AttestationRequest overrides the label of every unit with a given hash in a repository.
type AttestationRequest struct {
	RepositoryID int64  `json:"repository_id"`
	ContentHash  string `json:"content_hash"`
	Label        Label  `json:"label"`
	Comment      string `json:"comment,omitempty"`
	Author       string `json:"author,omitempty"`
}

// Validate implements validation.Validatable.
func (r AttestationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RepositoryID, validation.Required, validation.Min(1)),
		validation.Field(&r.ContentHash, validation.Required, validation.Length(1, MaxHashLength)),
		validation.Field(&r.Label, validation.Required, validation.In(HumanLabel, AIPureLabel, AIBlendedLabel)),
		validation.Field(&r.Comment, validation.Length(0, MaxCommentLength)),
		validation.Field(&r.Author, validation.Length(0, MaxNameLength)),
	)
}

// TimeseriesRequest asks for composition charts of an organization over a date range.
type TimeseriesRequest struct {
	OrganizationID int64     `json:"organization_id"`
	RepositoryIDs  []int64   `json:"repository_ids,omitempty"`
	Since          time.Time `json:"since"`
	Until          time.Time `json:"until"`
	IncludeDaily   bool      `json:"include_daily"`
}

// Validate implements validation.Validatable.
func (r TimeseriesRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OrganizationID, validation.Required, validation.Min(1)),
		validation.Field(&r.Since, validation.Required),
		validation.Field(&r.Until, validation.Required, validation.Min(r.Since).Error("must not be before since")),
	)
}
