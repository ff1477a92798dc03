package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// hashKey scopes a content hash to its repository.
type hashKey struct {
	repositoryID int64
	hash         string
}

// memoryData is the full state of a MemoryStore. It is cloned to support rollback.
type memoryData struct {
	seq           map[string]int64
	organizations map[int64]schema.Organization
	repositories  map[int64]schema.Repository
	snapshots     map[int64]schema.Snapshot
	files         map[int64]schema.SnapshotFile
	units         map[int64]schema.CodeUnit
	mergeRequests map[int64]schema.MergeRequest
	attestations  map[hashKey]schema.Attestation

	filesBySnapshot map[int64][]int64
	unitsByFile     map[int64][]int64
	unitsByHash     map[hashKey][]int64
}

func newMemoryData() *memoryData {
	return &memoryData{
		seq:             make(map[string]int64),
		organizations:   make(map[int64]schema.Organization),
		repositories:    make(map[int64]schema.Repository),
		snapshots:       make(map[int64]schema.Snapshot),
		files:           make(map[int64]schema.SnapshotFile),
		units:           make(map[int64]schema.CodeUnit),
		mergeRequests:   make(map[int64]schema.MergeRequest),
		attestations:    make(map[hashKey]schema.Attestation),
		filesBySnapshot: make(map[int64][]int64),
		unitsByFile:     make(map[int64][]int64),
		unitsByHash:     make(map[hashKey][]int64),
	}
}

func cloneIndex[K comparable](in map[K][]int64) map[K][]int64 {
	out := make(map[K][]int64, len(in))
	for k, v := range in {
		out[k] = slices.Clone(v)
	}
	return out
}

func (d *memoryData) clone() *memoryData {
	return &memoryData{
		seq:             maps.Clone(d.seq),
		organizations:   maps.Clone(d.organizations),
		repositories:    maps.Clone(d.repositories),
		snapshots:       maps.Clone(d.snapshots),
		files:           maps.Clone(d.files),
		units:           maps.Clone(d.units),
		mergeRequests:   maps.Clone(d.mergeRequests),
		attestations:    maps.Clone(d.attestations),
		filesBySnapshot: cloneIndex(d.filesBySnapshot),
		unitsByFile:     cloneIndex(d.unitsByFile),
		unitsByHash:     cloneIndex(d.unitsByHash),
	}
}

func (d *memoryData) next(table string) int64 {
	d.seq[table]++
	return d.seq[table]
}

// memoryState is shared between a MemoryStore and its transaction views.
type memoryState struct {
	txMu sync.Mutex   // Serializes transactions against every other operation
	mu   sync.RWMutex // Protects data
	data *memoryData
}

// MemoryStore implements CompositionStore in process memory. It backs the none backend and tests.
type MemoryStore struct {
	state *memoryState
	inTx  bool
}

var _ contract.CompositionStore = &MemoryStore{} // Compile-time check

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{data: newMemoryData()}}
}

// lock acquires the locks an operation needs and returns the matching release.
func (s *MemoryStore) lock(write bool) func() {
	if !s.inTx {
		s.state.txMu.Lock()
	}
	if write {
		s.state.mu.Lock()
	} else {
		s.state.mu.RLock()
	}
	return func() {
		if write {
			s.state.mu.Unlock()
		} else {
			s.state.mu.RUnlock()
		}
		if !s.inTx {
			s.state.txMu.Unlock()
		}
	}
}

// WithTx runs fn with exclusive access and restores the previous state when fn fails.
// The rollback copy clones every table, so each transaction costs O(store size).
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx contract.CompositionStore) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.state.txMu.Lock()
	defer s.state.txMu.Unlock()

	s.state.mu.RLock()
	backup := s.state.data.clone()
	s.state.mu.RUnlock()

	if err := fn(ctx, &MemoryStore{state: s.state, inTx: true}); err != nil {
		s.state.mu.Lock()
		s.state.data = backup
		s.state.mu.Unlock()
		return err
	}
	return nil
}

// Backend returns NoneBackend.
func (s *MemoryStore) Backend() schema.DatabaseBackend {
	return schema.NoneBackend
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// GetStatus summarizes the in-memory contents.
func (s *MemoryStore) GetStatus(_ context.Context) (schema.StoreStatus, error) {
	defer s.lock(false)()
	d := s.state.data

	status := schema.StoreStatus{
		Backend:        string(schema.NoneBackend),
		Connected:      true,
		TotalSnapshots: int64(len(d.snapshots)),
		TableSizes: map[string]int64{
			organizationsTable: int64(len(d.organizations)),
			repositoriesTable:  int64(len(d.repositories)),
			snapshotsTable:     int64(len(d.snapshots)),
			filesTable:         int64(len(d.files)),
			unitsTable:         int64(len(d.units)),
			attestationsTable:  int64(len(d.attestations)),
			mergeRequestsTable: int64(len(d.mergeRequests)),
		},
	}
	for _, f := range d.files {
		if f.State == schema.FileDirty {
			status.DirtyFiles++
		}
	}
	for _, snap := range d.snapshots {
		if status.LastCapturedAt.IsZero() || snap.CapturedAt.After(status.LastCapturedAt) {
			status.LastCapturedAt = snap.CapturedAt
		}
		if status.OldestCapturedAt.IsZero() || snap.CapturedAt.Before(status.OldestCapturedAt) {
			status.OldestCapturedAt = snap.CapturedAt
		}
	}
	return status, nil
}

// EnsureOrganization returns the organization with the name, creating it when missing.
func (s *MemoryStore) EnsureOrganization(_ context.Context, name string) (schema.Organization, error) {
	defer s.lock(true)()
	d := s.state.data
	for _, org := range d.organizations {
		if org.Name == name {
			return org, nil
		}
	}
	org := schema.Organization{ID: d.next(organizationsTable), Name: name}
	d.organizations[org.ID] = org
	return org, nil
}

// EnsureRepository returns the repository with the name inside the organization, creating it when missing.
func (s *MemoryStore) EnsureRepository(_ context.Context, organizationID int64, name string) (schema.Repository, error) {
	defer s.lock(true)()
	d := s.state.data
	if _, ok := d.organizations[organizationID]; !ok {
		return schema.Repository{}, fmt.Errorf("%w: id %d", contract.ErrOrganizationNotFound, organizationID)
	}
	for _, repo := range d.repositories {
		if repo.OrganizationID == organizationID && repo.Name == name {
			return repo, nil
		}
	}
	repo := schema.Repository{ID: d.next(repositoriesTable), OrganizationID: organizationID, Name: name}
	d.repositories[repo.ID] = repo
	return repo, nil
}

// GetOrganization returns the organization with the id.
func (s *MemoryStore) GetOrganization(_ context.Context, id int64) (schema.Organization, error) {
	defer s.lock(false)()
	org, ok := s.state.data.organizations[id]
	if !ok {
		return org, fmt.Errorf("%w: id %d", contract.ErrOrganizationNotFound, id)
	}
	return org, nil
}

// FindOrganization returns the organization with the name.
func (s *MemoryStore) FindOrganization(_ context.Context, name string) (schema.Organization, error) {
	defer s.lock(false)()
	for _, org := range s.state.data.organizations {
		if org.Name == name {
			return org, nil
		}
	}
	return schema.Organization{}, fmt.Errorf("%w: %q", contract.ErrOrganizationNotFound, name)
}

// ListOrganizations returns every organization ordered by id.
func (s *MemoryStore) ListOrganizations(_ context.Context) ([]schema.Organization, error) {
	defer s.lock(false)()
	return sortedByID(s.state.data.organizations, func(o schema.Organization) int64 { return o.ID }), nil
}

// UpdateOrganization writes the counters and rollup stamp.
func (s *MemoryStore) UpdateOrganization(_ context.Context, org schema.Organization) error {
	defer s.lock(true)()
	existing, ok := s.state.data.organizations[org.ID]
	if !ok {
		return fmt.Errorf("%w: id %d", contract.ErrOrganizationNotFound, org.ID)
	}
	existing.Counts = org.Counts
	existing.LastRolledUpAt = org.LastRolledUpAt
	s.state.data.organizations[org.ID] = existing
	return nil
}

// GetRepository returns the repository with the id.
func (s *MemoryStore) GetRepository(_ context.Context, id int64) (schema.Repository, error) {
	defer s.lock(false)()
	repo, ok := s.state.data.repositories[id]
	if !ok {
		return repo, fmt.Errorf("%w: id %d", contract.ErrRepositoryNotFound, id)
	}
	return repo, nil
}

// FindRepository resolves a repository by organization and repository name.
func (s *MemoryStore) FindRepository(_ context.Context, organization, name string) (schema.Repository, error) {
	defer s.lock(false)()
	d := s.state.data
	for _, org := range d.organizations {
		if org.Name != organization {
			continue
		}
		for _, repo := range d.repositories {
			if repo.OrganizationID == org.ID && repo.Name == name {
				return repo, nil
			}
		}
		return schema.Repository{}, fmt.Errorf("%w: %q", contract.ErrRepositoryNotFound, name)
	}
	return schema.Repository{}, fmt.Errorf("%w: %q", contract.ErrOrganizationNotFound, organization)
}

// ListRepositories returns the repositories of an organization ordered by id.
func (s *MemoryStore) ListRepositories(_ context.Context, organizationID int64) ([]schema.Repository, error) {
	defer s.lock(false)()
	var out []schema.Repository
	for _, repo := range s.state.data.repositories {
		if repo.OrganizationID == organizationID {
			out = append(out, repo)
		}
	}
	slices.SortFunc(out, func(a, b schema.Repository) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// UpdateRepository writes the current snapshot pointer, counters and recalculation stamp.
func (s *MemoryStore) UpdateRepository(_ context.Context, repo schema.Repository) error {
	defer s.lock(true)()
	existing, ok := s.state.data.repositories[repo.ID]
	if !ok {
		return fmt.Errorf("%w: id %d", contract.ErrRepositoryNotFound, repo.ID)
	}
	existing.LastSnapshotID = repo.LastSnapshotID
	existing.Counts = repo.Counts
	existing.LastRecalculatedAt = repo.LastRecalculatedAt
	s.state.data.repositories[repo.ID] = existing
	return nil
}

// CreateSnapshot inserts the snapshot and sets its ID.
func (s *MemoryStore) CreateSnapshot(_ context.Context, snap *schema.Snapshot) error {
	defer s.lock(true)()
	d := s.state.data
	if _, ok := d.repositories[snap.RepositoryID]; !ok {
		return fmt.Errorf("%w: id %d", contract.ErrRepositoryNotFound, snap.RepositoryID)
	}
	snap.ID = d.next(snapshotsTable)
	snap.CapturedAt = snap.CapturedAt.UTC()
	d.snapshots[snap.ID] = *snap
	return nil
}

// GetSnapshot returns the snapshot with the id.
func (s *MemoryStore) GetSnapshot(_ context.Context, id int64) (schema.Snapshot, error) {
	defer s.lock(false)()
	snap, ok := s.state.data.snapshots[id]
	if !ok {
		return snap, fmt.Errorf("%w: id %d", contract.ErrSnapshotNotFound, id)
	}
	return snap, nil
}

// UpdateSnapshot writes the counters and recalculation stamp.
func (s *MemoryStore) UpdateSnapshot(_ context.Context, snap schema.Snapshot) error {
	defer s.lock(true)()
	existing, ok := s.state.data.snapshots[snap.ID]
	if !ok {
		return fmt.Errorf("%w: id %d", contract.ErrSnapshotNotFound, snap.ID)
	}
	existing.Counts = snap.Counts
	existing.LastRecalculatedAt = snap.LastRecalculatedAt
	s.state.data.snapshots[snap.ID] = existing
	return nil
}

// ListSnapshots returns every snapshot ordered by id.
func (s *MemoryStore) ListSnapshots(_ context.Context) ([]schema.Snapshot, error) {
	defer s.lock(false)()
	return sortedByID(s.state.data.snapshots, func(sn schema.Snapshot) int64 { return sn.ID }), nil
}

// CreateFile inserts the file and sets its ID.
func (s *MemoryStore) CreateFile(_ context.Context, file *schema.SnapshotFile) error {
	defer s.lock(true)()
	d := s.state.data
	if _, ok := d.snapshots[file.SnapshotID]; !ok {
		return fmt.Errorf("%w: id %d", contract.ErrSnapshotNotFound, file.SnapshotID)
	}
	if file.State == "" {
		file.State = schema.FileDirty
	}
	file.ID = d.next(filesTable)
	d.files[file.ID] = *file
	d.filesBySnapshot[file.SnapshotID] = append(d.filesBySnapshot[file.SnapshotID], file.ID)
	return nil
}

// ListFiles returns the files of a snapshot ordered by id.
func (s *MemoryStore) ListFiles(_ context.Context, snapshotID int64) ([]schema.SnapshotFile, error) {
	defer s.lock(false)()
	d := s.state.data
	ids := d.filesBySnapshot[snapshotID]
	out := make([]schema.SnapshotFile, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.files[id])
	}
	return out, nil
}

// UpdateFile writes the counters, state and recalculation stamp.
func (s *MemoryStore) UpdateFile(_ context.Context, file schema.SnapshotFile) error {
	defer s.lock(true)()
	existing, ok := s.state.data.files[file.ID]
	if !ok {
		return fmt.Errorf("file %w: id %d", contract.ErrNotFound, file.ID)
	}
	existing.Counts = file.Counts
	existing.State = file.State
	existing.LastRecalculatedAt = file.LastRecalculatedAt
	s.state.data.files[file.ID] = existing
	return nil
}

// CreateUnits inserts the units, sets their IDs in place and indexes them by hash.
func (s *MemoryStore) CreateUnits(_ context.Context, units []schema.CodeUnit) error {
	defer s.lock(true)()
	d := s.state.data
	for i := range units {
		u := &units[i]
		if _, ok := d.files[u.FileID]; !ok {
			return fmt.Errorf("file %w: id %d", contract.ErrNotFound, u.FileID)
		}
		u.ID = d.next(unitsTable)
		d.units[u.ID] = *u
		d.unitsByFile[u.FileID] = append(d.unitsByFile[u.FileID], u.ID)
		key := hashKey{repositoryID: u.RepositoryID, hash: u.ContentHash}
		d.unitsByHash[key] = append(d.unitsByHash[key], u.ID)
	}
	return nil
}

// ListUnits returns the units of a file ordered by id.
func (s *MemoryStore) ListUnits(_ context.Context, fileID int64) ([]schema.CodeUnit, error) {
	defer s.lock(false)()
	d := s.state.data
	ids := d.unitsByFile[fileID]
	out := make([]schema.CodeUnit, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.units[id])
	}
	return out, nil
}

// SnapshotsForHash returns the snapshots holding a unit with the hash, ascending.
func (s *MemoryStore) SnapshotsForHash(_ context.Context, repositoryID int64, hash string) ([]int64, error) {
	defer s.lock(false)()
	d := s.state.data
	seen := make(map[int64]struct{})
	var ids []int64
	for _, unitID := range d.unitsByHash[hashKey{repositoryID: repositoryID, hash: hash}] {
		snapID := d.units[unitID].SnapshotID
		if _, ok := seen[snapID]; ok {
			continue
		}
		seen[snapID] = struct{}{}
		ids = append(ids, snapID)
	}
	slices.Sort(ids)
	return ids, nil
}

// MarkHashDirty flags every file holding a unit with the hash.
func (s *MemoryStore) MarkHashDirty(_ context.Context, repositoryID int64, hash string) (int64, error) {
	defer s.lock(true)()
	d := s.state.data
	flagged := make(map[int64]struct{})
	for _, unitID := range d.unitsByHash[hashKey{repositoryID: repositoryID, hash: hash}] {
		fileID := d.units[unitID].FileID
		if _, ok := flagged[fileID]; ok {
			continue
		}
		flagged[fileID] = struct{}{}
		file := d.files[fileID]
		file.State = schema.FileDirty
		d.files[fileID] = file
	}
	return int64(len(flagged)), nil
}

// UpsertAttestation stores the reviewer label for a hash, replacing any previous one.
func (s *MemoryStore) UpsertAttestation(_ context.Context, att schema.Attestation) error {
	defer s.lock(true)()
	att.UpdatedAt = att.UpdatedAt.UTC()
	s.state.data.attestations[hashKey{repositoryID: att.RepositoryID, hash: att.ContentHash}] = att
	return nil
}

// GetAttestations returns the attestations for the hashes keyed by hash.
func (s *MemoryStore) GetAttestations(_ context.Context, repositoryID int64, hashes []string) (map[string]schema.Attestation, error) {
	defer s.lock(false)()
	out := make(map[string]schema.Attestation)
	for _, h := range hashes {
		if att, ok := s.state.data.attestations[hashKey{repositoryID: repositoryID, hash: h}]; ok {
			out[h] = att
		}
	}
	return out, nil
}

// UpsertMergeRequest links a merge request by (repository, external id).
func (s *MemoryStore) UpsertMergeRequest(_ context.Context, mr *schema.MergeRequest) error {
	defer s.lock(true)()
	d := s.state.data
	for id, existing := range d.mergeRequests {
		if existing.RepositoryID == mr.RepositoryID && existing.ExternalID == mr.ExternalID {
			merged := mergeMergeRequest(existing, *mr)
			d.mergeRequests[id] = merged
			*mr = merged
			return nil
		}
	}
	if mr.State == "" {
		mr.State = schema.OpenMergeRequest
	}
	mr.ID = d.next(mergeRequestsTable)
	d.mergeRequests[mr.ID] = *mr
	return nil
}

// ListOpenMergeRequestsByHead returns open merge requests whose head is the snapshot.
func (s *MemoryStore) ListOpenMergeRequestsByHead(_ context.Context, snapshotID int64) ([]schema.MergeRequest, error) {
	defer s.lock(false)()
	var out []schema.MergeRequest
	for _, mr := range s.state.data.mergeRequests {
		if mr.IsOpen() && mr.HeadSnapshotID != nil && *mr.HeadSnapshotID == snapshotID {
			out = append(out, mr)
		}
	}
	slices.SortFunc(out, func(a, b schema.MergeRequest) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// ListMergeRequests returns the merge requests of a repository.
func (s *MemoryStore) ListMergeRequests(_ context.Context, repositoryID int64) ([]schema.MergeRequest, error) {
	defer s.lock(false)()
	var out []schema.MergeRequest
	for _, mr := range s.state.data.mergeRequests {
		if mr.RepositoryID == repositoryID {
			out = append(out, mr)
		}
	}
	slices.SortFunc(out, func(a, b schema.MergeRequest) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// UpdateMergeRequest replaces the stored merge request.
func (s *MemoryStore) UpdateMergeRequest(_ context.Context, mr schema.MergeRequest) error {
	defer s.lock(true)()
	if _, ok := s.state.data.mergeRequests[mr.ID]; !ok {
		return fmt.Errorf("%w: id %d", contract.ErrMergeRequestNotFound, mr.ID)
	}
	s.state.data.mergeRequests[mr.ID] = mr
	return nil
}

// ListFullScans returns full scans of the repositories captured in [from, to).
func (s *MemoryStore) ListFullScans(_ context.Context, repositoryIDs []int64, from, to time.Time) ([]schema.Snapshot, error) {
	defer s.lock(false)()
	wanted := make(map[int64]struct{}, len(repositoryIDs))
	for _, id := range repositoryIDs {
		wanted[id] = struct{}{}
	}

	var out []schema.Snapshot
	for _, snap := range s.state.data.snapshots {
		if _, ok := wanted[snap.RepositoryID]; !ok || !snap.IsFullScan() {
			continue
		}
		if snap.CapturedAt.Before(from) || !snap.CapturedAt.Before(to) {
			continue
		}
		out = append(out, snap)
	}
	slices.SortFunc(out, compareCaptured)
	return out, nil
}

// LatestFullScanBefore returns the newest full scan strictly before the instant, or nil.
func (s *MemoryStore) LatestFullScanBefore(_ context.Context, repositoryID int64, before time.Time) (*schema.Snapshot, error) {
	defer s.lock(false)()
	var best *schema.Snapshot
	for _, snap := range s.state.data.snapshots {
		if snap.RepositoryID != repositoryID || !snap.IsFullScan() || !snap.CapturedAt.Before(before) {
			continue
		}
		if best == nil || compareCaptured(snap, *best) > 0 {
			candidate := snap
			best = &candidate
		}
	}
	return best, nil
}

// compareCaptured orders snapshots by capture time, then ID.
func compareCaptured(a, b schema.Snapshot) int {
	if c := a.CapturedAt.Compare(b.CapturedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func sortedByID[T any](in map[int64]T, id func(T) int64) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(id(a), id(b)) })
	return out
}
