// Package contract provides interfaces and shared utilities for the aicomp internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/roy-sema/cto-tool-sub001/schema"
)

// StoreManager defines the interface for managing the composition store.
// This allows the persistence layer to be mocked for testing.
type StoreManager interface {
	GetCompositionStore() CompositionStore
}

// RegistryStore resolves organizations and repositories.
type RegistryStore interface {
	EnsureOrganization(ctx context.Context, name string) (schema.Organization, error)
	EnsureRepository(ctx context.Context, organizationID int64, name string) (schema.Repository, error)
	GetOrganization(ctx context.Context, id int64) (schema.Organization, error)
	FindOrganization(ctx context.Context, name string) (schema.Organization, error)
	ListOrganizations(ctx context.Context) ([]schema.Organization, error)
	UpdateOrganization(ctx context.Context, org schema.Organization) error
	GetRepository(ctx context.Context, id int64) (schema.Repository, error)
	FindRepository(ctx context.Context, organization, name string) (schema.Repository, error)
	ListRepositories(ctx context.Context, organizationID int64) ([]schema.Repository, error)
	UpdateRepository(ctx context.Context, repo schema.Repository) error
}

// SnapshotStore persists snapshots, their files and the code units inside them.
type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, snap *schema.Snapshot) error
	GetSnapshot(ctx context.Context, id int64) (schema.Snapshot, error)
	UpdateSnapshot(ctx context.Context, snap schema.Snapshot) error
	ListSnapshots(ctx context.Context) ([]schema.Snapshot, error)
	CreateFile(ctx context.Context, file *schema.SnapshotFile) error
	ListFiles(ctx context.Context, snapshotID int64) ([]schema.SnapshotFile, error)
	UpdateFile(ctx context.Context, file schema.SnapshotFile) error
	CreateUnits(ctx context.Context, units []schema.CodeUnit) error
	ListUnits(ctx context.Context, fileID int64) ([]schema.CodeUnit, error)
}

// UnitStore answers content-hash lookups and holds attestations.
type UnitStore interface {
	// SnapshotsForHash returns the IDs of snapshots holding a unit with the hash, ascending.
	SnapshotsForHash(ctx context.Context, repositoryID int64, hash string) ([]int64, error)
	// MarkHashDirty flags every file holding a unit with the hash and returns how many were flagged.
	MarkHashDirty(ctx context.Context, repositoryID int64, hash string) (int64, error)
	UpsertAttestation(ctx context.Context, att schema.Attestation) error
	GetAttestations(ctx context.Context, repositoryID int64, hashes []string) (map[string]schema.Attestation, error)
}

// MergeRequestStore persists merge requests.
type MergeRequestStore interface {
	UpsertMergeRequest(ctx context.Context, mr *schema.MergeRequest) error
	ListOpenMergeRequestsByHead(ctx context.Context, snapshotID int64) ([]schema.MergeRequest, error)
	ListMergeRequests(ctx context.Context, repositoryID int64) ([]schema.MergeRequest, error)
	UpdateMergeRequest(ctx context.Context, mr schema.MergeRequest) error
}

// SeriesStore provides the read paths used by the time-series service.
type SeriesStore interface {
	// ListFullScans returns full-scan snapshots captured in [from, to), ordered by capture time then ID.
	ListFullScans(ctx context.Context, repositoryIDs []int64, from, to time.Time) ([]schema.Snapshot, error)
	// LatestFullScanBefore returns the newest full scan captured strictly before the instant, or nil.
	LatestFullScanBefore(ctx context.Context, repositoryID int64, before time.Time) (*schema.Snapshot, error)
}

// CompositionStore defines the interface for composition data storage.
type CompositionStore interface {
	RegistryStore
	SnapshotStore
	UnitStore
	MergeRequestStore
	SeriesStore

	// WithTx runs fn inside a single transaction. Nested calls reuse the outer transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx CompositionStore) error) error
	GetStatus(ctx context.Context) (schema.StoreStatus, error)
	Backend() schema.DatabaseBackend
	Close() error
}

// RollupScheduler enqueues an asynchronous organization rollup.
// Schedule must not block on the rollup itself.
type RollupScheduler interface {
	Schedule(ctx context.Context, organizationID int64)
}

// RollupHook is invoked for each organization rollup task.
type RollupHook func(ctx context.Context, organizationID int64) error

// IntegritySink receives data-integrity violations. It never fails the caller.
type IntegritySink interface {
	Record(ctx context.Context, v schema.IntegrityViolation)
}
