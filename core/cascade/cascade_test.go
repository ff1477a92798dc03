package cascade

import (
	"context"
	"testing"
	"time"

	"github.com/roy-sema/cto-tool-sub001/core/metric"
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/internal/store"
	"github.com/roy-sema/cto-tool-sub001/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

type unitSpec struct {
	hash    string
	lines   int64
	aiLines int64
	label   schema.Label
}

// world is one organization with one repository holding a current full scan,
// an older full scan and a partial scan headed by an open merge request.
type world struct {
	store   *store.MemoryStore
	org     schema.Organization
	repo    schema.Repository
	current schema.Snapshot
	old     schema.Snapshot
	partial schema.Snapshot
	mr      schema.MergeRequest
}

func addSnapshot(t *testing.T, s contract.CompositionStore, repoID int64, kind schema.ScanKind, at time.Time, units ...unitSpec) schema.Snapshot {
	t.Helper()
	ctx := context.Background()
	snap := schema.Snapshot{RepositoryID: repoID, CommitSHA: "sha", Kind: kind, CapturedAt: at}
	require.NoError(t, s.CreateSnapshot(ctx, &snap))
	file := schema.SnapshotFile{SnapshotID: snap.ID, Path: "main.go"}
	require.NoError(t, s.CreateFile(ctx, &file))

	rows := make([]schema.CodeUnit, 0, len(units))
	for i, u := range units {
		rows = append(rows, schema.CodeUnit{
			RepositoryID: repoID, SnapshotID: snap.ID, FileID: file.ID, ContentHash: u.hash,
			StartLine: i*100 + 1, EndLine: i*100 + int(u.lines), LineCount: u.lines, AILines: u.aiLines, Label: u.label,
		})
	}
	require.NoError(t, s.CreateUnits(ctx, rows))
	return snap
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	org, err := s.EnsureOrganization(ctx, "acme")
	require.NoError(t, err)
	repo, err := s.EnsureRepository(ctx, org.ID, "api")
	require.NoError(t, err)

	w := &world{store: s, org: org}
	w.old = addSnapshot(t, s, repo.ID, schema.FullScan, fixedNow.AddDate(0, 0, -7),
		unitSpec{"shared", 10, 0, schema.HumanLabel},
		unitSpec{"legacy", 4, 0, schema.HumanLabel},
	)
	w.current = addSnapshot(t, s, repo.ID, schema.FullScan, fixedNow.AddDate(0, 0, -1),
		unitSpec{"pure", 25, 25, schema.AIPureLabel},
		unitSpec{"blend", 25, 25, schema.AIBlendedLabel},
		unitSpec{"shared", 10, 0, schema.HumanLabel},
	)
	w.partial = addSnapshot(t, s, repo.ID, schema.PartialScan, fixedNow,
		unitSpec{"shared", 10, 0, schema.HumanLabel},
		unitSpec{"feature", 5, 5, schema.AIPureLabel},
	)

	repo.LastSnapshotID = &w.current.ID
	require.NoError(t, s.UpdateRepository(ctx, repo))
	w.repo = repo

	w.mr = schema.MergeRequest{RepositoryID: repo.ID, ExternalID: "!42", Title: "feature", HeadSnapshotID: &w.partial.ID, BaseSnapshotID: &w.current.ID}
	require.NoError(t, s.UpsertMergeRequest(ctx, &w.mr))
	return w
}

func (w *world) cascade(scheduler contract.RollupScheduler) *Cascade {
	return New(w.store, scheduler, 4, WithClock(func() time.Time { return fixedNow }))
}

// attest stores an attestation and marks every holder of the hash dirty, returning the affected snapshots.
func (w *world) attest(t *testing.T, hash string, label schema.Label) []int64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, w.store.UpsertAttestation(ctx, schema.Attestation{RepositoryID: w.repo.ID, ContentHash: hash, Label: label, UpdatedAt: fixedNow}))
	_, err := w.store.MarkHashDirty(ctx, w.repo.ID, hash)
	require.NoError(t, err)
	ids, err := w.store.SnapshotsForHash(ctx, w.repo.ID, hash)
	require.NoError(t, err)
	return ids
}

func (w *world) counts(t *testing.T) (repo, current, old, partial, mr schema.Counts) {
	t.Helper()
	ctx := context.Background()
	r, err := w.store.GetRepository(ctx, w.repo.ID)
	require.NoError(t, err)
	c, err := w.store.GetSnapshot(ctx, w.current.ID)
	require.NoError(t, err)
	o, err := w.store.GetSnapshot(ctx, w.old.ID)
	require.NoError(t, err)
	p, err := w.store.GetSnapshot(ctx, w.partial.ID)
	require.NoError(t, err)
	mrs, err := w.store.ListMergeRequests(ctx, w.repo.ID)
	require.NoError(t, err)
	require.Len(t, mrs, 1)
	return r.Counts, c.Counts, o.Counts, p.Counts, mrs[0].Counts
}

func newScheduler() *contract.MockRollupScheduler {
	m := &contract.MockRollupScheduler{}
	m.On("Schedule", mock.Anything, mock.Anything).Return()
	return m
}

func TestRunComputesFixture(t *testing.T) {
	w := newWorld(t)
	scheduler := newScheduler()

	result, err := w.cascade(scheduler).Run(context.Background(), []int64{w.current.ID, w.old.ID, w.partial.ID}, true)
	require.NoError(t, err)

	assert.Equal(t, []int64{w.old.ID, w.current.ID, w.partial.ID}, result.Snapshots)
	assert.Equal(t, []int64{w.repo.ID}, result.Repositories)
	assert.Equal(t, []int64{w.org.ID}, result.Organizations)
	assert.Equal(t, []int64{w.mr.ID}, result.MergeRequests)
	assert.Equal(t, 3, result.FilesRecounted)

	repo, current, old, partial, mr := w.counts(t)
	assert.Equal(t, schema.Counts{Total: 60, AI: 50, Blended: 25}, current)
	assert.Equal(t, current, repo)
	assert.Equal(t, schema.Counts{Total: 14}, old)
	assert.Equal(t, schema.Counts{Total: 15, AI: 5}, partial)
	assert.Equal(t, partial, mr)

	comp := metric.Compose(repo)
	assert.Equal(t, 83.33, comp.Overall)
	assert.Equal(t, 41.67, comp.Blended)
	assert.Equal(t, 41.66, comp.Pure)

	scheduler.AssertNumberOfCalls(t, "Schedule", 1)
	scheduler.AssertCalled(t, "Schedule", mock.Anything, w.org.ID)
}

func TestRunSharedHashPropagatesOnce(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	_, err := w.cascade(nil).Run(ctx, []int64{w.current.ID, w.old.ID, w.partial.ID}, true)
	require.NoError(t, err)

	affected := w.attest(t, "shared", schema.AIPureLabel)
	assert.Equal(t, []int64{w.old.ID, w.current.ID, w.partial.ID}, affected)

	scheduler := newScheduler()
	result, err := w.cascade(scheduler).Run(ctx, affected, false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.FilesRecounted)

	repo, current, old, partial, mr := w.counts(t)
	assert.Equal(t, schema.Counts{Total: 60, AI: 60, Blended: 25}, current)
	assert.Equal(t, current, repo)
	assert.Equal(t, schema.Counts{Total: 14, AI: 10}, old)
	assert.Equal(t, schema.Counts{Total: 15, AI: 15}, partial)
	assert.Equal(t, partial, mr)
	assert.Equal(t, int64(10), current.Pure()-schema.Counts{Total: 60, AI: 50, Blended: 25}.Pure())

	scheduler.AssertNumberOfCalls(t, "Schedule", 1)
}

func TestRunNonCurrentFullScanDoesNotPropagate(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	_, err := w.cascade(nil).Run(ctx, []int64{w.current.ID, w.old.ID, w.partial.ID}, true)
	require.NoError(t, err)

	affected := w.attest(t, "legacy", schema.AIBlendedLabel)
	assert.Equal(t, []int64{w.old.ID}, affected)

	scheduler := newScheduler()
	result, err := w.cascade(scheduler).Run(ctx, affected, false)
	require.NoError(t, err)
	assert.Empty(t, result.Repositories)
	assert.Empty(t, result.Organizations)

	repo, _, old, _, _ := w.counts(t)
	assert.Equal(t, schema.Counts{Total: 14, AI: 4, Blended: 4}, old)
	assert.Equal(t, schema.Counts{Total: 60, AI: 50, Blended: 25}, repo)
	scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestRunScopeIsolation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	_, err := w.cascade(nil).Run(ctx, []int64{w.current.ID, w.old.ID, w.partial.ID}, true)
	require.NoError(t, err)
	repoBefore, currentBefore, oldBefore, _, _ := w.counts(t)

	affected := w.attest(t, "feature", schema.HumanLabel)
	assert.Equal(t, []int64{w.partial.ID}, affected)

	result, err := w.cascade(nil).Run(ctx, affected, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{w.partial.ID}, result.Snapshots)

	repo, current, old, partial, mr := w.counts(t)
	assert.Equal(t, repoBefore, repo)
	assert.Equal(t, currentBefore, current)
	assert.Equal(t, oldBefore, old)
	assert.Equal(t, schema.Counts{Total: 15}, partial)
	assert.Equal(t, partial, mr)
}

func TestRunIsIdempotent(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	all := []int64{w.current.ID, w.old.ID, w.partial.ID}
	_, err := w.cascade(nil).Run(ctx, all, true)
	require.NoError(t, err)
	repo1, current1, old1, partial1, mr1 := w.counts(t)

	// Attesting the label the unit already had changes nothing.
	affected := w.attest(t, "pure", schema.AIPureLabel)
	result, err := w.cascade(nil).Run(ctx, affected, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesRecounted)

	result, err = w.cascade(nil).Run(ctx, all, false)
	require.NoError(t, err)
	assert.Zero(t, result.FilesRecounted)

	repo2, current2, old2, partial2, mr2 := w.counts(t)
	assert.Equal(t, repo1, repo2)
	assert.Equal(t, current1, current2)
	assert.Equal(t, old1, old2)
	assert.Equal(t, partial1, partial2)
	assert.Equal(t, mr1, mr2)
}

func TestRunReattestingPartialAIUnitIsIdempotent(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	snap := addSnapshot(t, w.store, w.repo.ID, schema.FullScan, fixedNow.Add(time.Hour),
		unitSpec{"mixed", 10, 7, schema.AIPureLabel},
		unitSpec{"shared", 10, 0, schema.HumanLabel},
	)
	w.repo.LastSnapshotID = &snap.ID
	require.NoError(t, w.store.UpdateRepository(ctx, w.repo))
	w.mr.HeadSnapshotID = &snap.ID
	require.NoError(t, w.store.UpdateMergeRequest(ctx, w.mr))

	_, err := w.cascade(nil).Run(ctx, []int64{snap.ID}, true)
	require.NoError(t, err)
	before, err := w.store.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.Counts{Total: 20, AI: 7}, before.Counts)

	affected := w.attest(t, "mixed", schema.AIPureLabel)
	assert.Equal(t, []int64{snap.ID}, affected)
	result, err := w.cascade(nil).Run(ctx, affected, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesRecounted)

	after, err := w.store.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Counts, after.Counts)

	repo, err := w.store.GetRepository(ctx, w.repo.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Counts, repo.Counts)

	mrs, err := w.store.ListMergeRequests(ctx, w.repo.ID)
	require.NoError(t, err)
	require.Len(t, mrs, 1)
	assert.Equal(t, before.Counts, mrs[0].Counts)
}

func TestRunSkipsClosedMergeRequests(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	w.mr.State = schema.MergedMergeRequest
	w.mr.Counts = schema.Counts{Total: 1}
	require.NoError(t, w.store.UpdateMergeRequest(ctx, w.mr))

	result, err := w.cascade(nil).Run(ctx, []int64{w.partial.ID}, true)
	require.NoError(t, err)
	assert.Empty(t, result.MergeRequests)

	_, _, _, partial, mr := w.counts(t)
	assert.Equal(t, schema.Counts{Total: 15, AI: 5}, partial)
	assert.Equal(t, schema.Counts{Total: 1}, mr)
}

func TestRunReportsMissingSnapshots(t *testing.T) {
	w := newWorld(t)
	scheduler := newScheduler()

	result, err := w.cascade(scheduler).Run(context.Background(), []int64{999, w.current.ID, w.current.ID}, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrSnapshotNotFound)
	assert.Equal(t, []int64{w.current.ID}, result.Snapshots)
	scheduler.AssertNumberOfCalls(t, "Schedule", 1)
}

func TestRunAcrossRepositories(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	other, err := w.store.EnsureRepository(ctx, w.org.ID, "web")
	require.NoError(t, err)
	snap := addSnapshot(t, w.store, other.ID, schema.FullScan, fixedNow, unitSpec{"shared", 8, 8, schema.AIPureLabel})
	other.LastSnapshotID = &snap.ID
	require.NoError(t, w.store.UpdateRepository(ctx, other))

	scheduler := newScheduler()
	result, err := w.cascade(scheduler).Run(ctx, []int64{snap.ID, w.current.ID}, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{w.repo.ID, other.ID}, result.Repositories)

	// Both repositories belong to one organization: a single rollup.
	scheduler.AssertNumberOfCalls(t, "Schedule", 1)

	got, err := w.store.GetRepository(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.Counts{Total: 8, AI: 8}, got.Counts)
	require.NotNil(t, got.LastRecalculatedAt)
	assert.Equal(t, fixedNow, *got.LastRecalculatedAt)
}

func TestRunHonorsCanceledContext(t *testing.T) {
	w := newWorld(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := w.cascade(nil).Run(ctx, []int64{w.current.ID}, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Snapshots)
}

func TestUnitCounts(t *testing.T) {
	unit := func(label schema.Label, aiLines int64) schema.CodeUnit {
		return schema.CodeUnit{LineCount: 10, AILines: aiLines, Label: label}
	}
	att := func(label schema.Label) *schema.Attestation { return &schema.Attestation{Label: label} }

	tests := []struct {
		name     string
		unit     schema.CodeUnit
		att      *schema.Attestation
		expected schema.Counts
	}{
		{"human", unit(schema.HumanLabel, 0), nil, schema.Counts{Total: 10}},
		{"not evaluated ignores ai lines", unit(schema.NotEvaluatedLabel, 6), nil, schema.Counts{Total: 10}},
		{"pure uses scanner ai lines", unit(schema.AIPureLabel, 7), nil, schema.Counts{Total: 10, AI: 7}},
		{"blended counts twice", unit(schema.AIBlendedLabel, 4), nil, schema.Counts{Total: 10, AI: 4, Blended: 4}},
		{"attested ai covers whole unit", unit(schema.HumanLabel, 0), att(schema.AIPureLabel), schema.Counts{Total: 10, AI: 10}},
		{"attested not evaluated covers whole unit", unit(schema.NotEvaluatedLabel, 2), att(schema.AIBlendedLabel), schema.Counts{Total: 10, AI: 10, Blended: 10}},
		{"same label keeps scanner ai lines", unit(schema.AIPureLabel, 7), att(schema.AIPureLabel), schema.Counts{Total: 10, AI: 7}},
		{"pure attested blended keeps scanner ai lines", unit(schema.AIPureLabel, 3), att(schema.AIBlendedLabel), schema.Counts{Total: 10, AI: 3, Blended: 3}},
		{"attested human clears ai", unit(schema.AIBlendedLabel, 10), att(schema.HumanLabel), schema.Counts{Total: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnitCounts(tt.unit, tt.att)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.expected.AI-tt.expected.Blended, got.Pure())
		})
	}
}
