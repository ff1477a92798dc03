package timeseries

import (
	"context"
	"testing"
	"time"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/internal/integrity"
	"github.com/roy-sema/cto-tool-sub001/internal/store"
	"github.com/roy-sema/cto-tool-sub001/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(month time.Month, d, hour int) time.Time {
	return time.Date(2025, month, d, hour, 0, 0, 0, time.UTC)
}

type fixture struct {
	store    *store.MemoryStore
	org      schema.Organization
	recorder *integrity.Recorder
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	org, err := s.EnsureOrganization(context.Background(), "acme")
	require.NoError(t, err)
	rec := &integrity.Recorder{}
	return &fixture{store: s, org: org, recorder: rec, service: NewService(s, rec, nil)}
}

func (f *fixture) repo(t *testing.T, name string) schema.Repository {
	t.Helper()
	repo, err := f.store.EnsureRepository(context.Background(), f.org.ID, name)
	require.NoError(t, err)
	return repo
}

func (f *fixture) snapshot(t *testing.T, repoID int64, kind schema.ScanKind, at time.Time, c schema.Counts) {
	t.Helper()
	snap := schema.Snapshot{RepositoryID: repoID, CommitSHA: "sha", Kind: kind, CapturedAt: at, Counts: c}
	require.NoError(t, f.store.CreateSnapshot(context.Background(), &snap))
}

func counts(points []schema.ChartPoint) []schema.Counts {
	out := make([]schema.Counts, 0, len(points))
	for _, p := range points {
		out = append(out, p.Counts)
	}
	return out
}

func TestZeroDeltaDay(t *testing.T) {
	f := newFixture(t)
	repo := f.repo(t, "api")
	c := schema.Counts{Total: 60, AI: 50, Blended: 25}
	f.snapshot(t, repo.ID, schema.FullScan, date(3, 4, 10), c)
	f.snapshot(t, repo.ID, schema.FullScan, date(3, 5, 10), c)

	res, err := f.service.GetComposition(context.Background(), schema.TimeseriesRequest{
		OrganizationID: f.org.ID, Since: date(3, 4, 0), Until: date(3, 5, 0), IncludeDaily: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Aggregate)
	assert.Equal(t, []int64{repo.ID}, res.RepositoryIDs)

	assert.Equal(t, []string{"2025-03-04", "2025-03-05"}, res.Cumulative.Categories)
	assert.Equal(t, []schema.Counts{c, c}, counts(res.Cumulative.Points))
	require.Len(t, res.Cumulative.Series, 3)
	assert.Equal(t, schema.OverallCategory, res.Cumulative.Series[0].Name)
	assert.Equal(t, []float64{83.33, 83.33}, res.Cumulative.Series[0].Data)
	assert.Equal(t, []float64{41.66, 41.66}, res.Cumulative.Series[1].Data)
	assert.Equal(t, []float64{41.67, 41.67}, res.Cumulative.Series[2].Data)

	require.NotNil(t, res.Daily)
	assert.Equal(t, []string{"2025-03-04", "2025-03-05"}, res.Daily.Categories)
	assert.Equal(t, schema.Counts{Total: 135, AI: 75, Blended: 25}, res.Daily.Points[0].Counts)
	assert.Equal(t, schema.Counts{}, res.Daily.Points[1].Counts)
	assert.Equal(t, schema.Composition{}, res.Daily.Points[1].Composition)
	assert.Zero(t, f.recorder.Len())
}

func TestForwardFillAndSeed(t *testing.T) {
	f := newFixture(t)
	a := f.repo(t, "api")
	b := f.repo(t, "web")
	f.snapshot(t, a.ID, schema.FullScan, date(2, 20, 8), schema.Counts{Total: 10, AI: 5})
	f.snapshot(t, a.ID, schema.FullScan, date(3, 6, 8), schema.Counts{Total: 20, AI: 10, Blended: 5})
	f.snapshot(t, b.ID, schema.FullScan, date(3, 5, 8), schema.Counts{Total: 30})
	f.snapshot(t, b.ID, schema.PartialScan, date(3, 6, 8), schema.Counts{Total: 1000, AI: 1000})

	req := schema.TimeseriesRequest{OrganizationID: f.org.ID, Since: date(3, 4, 0), Until: date(3, 7, 0)}
	res, err := f.service.GetComposition(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, res.Daily)
	assert.Equal(t, []schema.Counts{
		{Total: 10, AI: 5},
		{Total: 40, AI: 5},
		{Total: 50, AI: 10, Blended: 5},
		{Total: 50, AI: 10, Blended: 5},
	}, counts(res.Cumulative.Points))

	req.RepositoryIDs = []int64{b.ID}
	res, err = f.service.GetComposition(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []schema.Counts{{}, {Total: 30}, {Total: 30}, {Total: 30}}, counts(res.Cumulative.Points))
}

func TestLatestSnapshotOfDayWins(t *testing.T) {
	f := newFixture(t)
	repo := f.repo(t, "api")
	f.snapshot(t, repo.ID, schema.FullScan, date(3, 4, 18), schema.Counts{Total: 12, AI: 2})
	f.snapshot(t, repo.ID, schema.FullScan, date(3, 4, 9), schema.Counts{Total: 10, AI: 1})

	res, err := f.service.GetComposition(context.Background(), schema.TimeseriesRequest{
		OrganizationID: f.org.ID, Since: date(3, 4, 0), Until: date(3, 4, 23),
	})
	require.NoError(t, err)
	assert.Equal(t, []schema.Counts{{Total: 12, AI: 2}}, counts(res.Cumulative.Points))
}

func TestWeeklyBucketsSumDays(t *testing.T) {
	f := newFixture(t)
	repo := f.repo(t, "api")
	f.snapshot(t, repo.ID, schema.FullScan, date(3, 4, 9), schema.Counts{Total: 10, AI: 1})
	f.snapshot(t, repo.ID, schema.FullScan, date(3, 4, 18), schema.Counts{Total: 12, AI: 2})
	f.snapshot(t, repo.ID, schema.FullScan, date(3, 6, 9), schema.Counts{Total: 20, AI: 4, Blended: 1})
	f.snapshot(t, repo.ID, schema.FullScan, date(3, 18, 9), schema.Counts{Total: 40, AI: 8, Blended: 2})

	res, err := f.service.GetComposition(context.Background(), schema.TimeseriesRequest{
		OrganizationID: f.org.ID, Since: date(3, 3, 0), Until: date(3, 24, 0),
	})
	require.NoError(t, err)
	assert.True(t, res.Aggregate)
	assert.Equal(t, []string{"2025-03-03", "2025-03-10", "2025-03-17", "2025-03-24"}, res.Cumulative.Categories)
	assert.Equal(t, []schema.Counts{
		{Total: 32, AI: 6, Blended: 1},
		{Total: 32, AI: 6, Blended: 1},
		{Total: 40, AI: 8, Blended: 2},
		{Total: 40, AI: 8, Blended: 2},
	}, counts(res.Cumulative.Points))
}

func TestIntegrityViolationsAreRecordedNotRaised(t *testing.T) {
	f := newFixture(t)
	repo := f.repo(t, "api")
	f.snapshot(t, repo.ID, schema.FullScan, date(3, 4, 9), schema.Counts{Total: 10, AI: 20, Blended: 30})

	res, err := f.service.GetComposition(context.Background(), schema.TimeseriesRequest{
		OrganizationID: f.org.ID, Since: date(3, 4, 0), Until: date(3, 4, 0),
	})
	require.NoError(t, err)
	require.Len(t, res.Cumulative.Points, 1)
	assert.Equal(t, 200.0, res.Cumulative.Points[0].Composition.Overall)

	violations := f.recorder.Violations()
	require.Len(t, violations, 3)
	kinds := []schema.ViolationKind{violations[0].Kind, violations[1].Kind, violations[2].Kind}
	assert.ElementsMatch(t, []schema.ViolationKind{schema.AIExceedsTotal, schema.BlendedExceedsAI, schema.PercentageOutOfBounds}, kinds)
	assert.Equal(t, f.org.ID, violations[0].OrganizationID)
	assert.Equal(t, date(3, 4, 0), violations[0].Bucket)
	assert.False(t, violations[0].Delta)
}

func TestGetCompositionRejectsBadRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.store.EnsureOrganization(ctx, "globex")
	require.NoError(t, err)
	foreign, err := f.store.EnsureRepository(ctx, other.ID, "api")
	require.NoError(t, err)

	_, err = f.service.GetComposition(ctx, schema.TimeseriesRequest{
		OrganizationID: f.org.ID, RepositoryIDs: []int64{foreign.ID}, Since: date(3, 1, 0), Until: date(3, 2, 0),
	})
	assert.ErrorIs(t, err, contract.ErrRepositoryNotFound)

	_, err = f.service.GetComposition(ctx, schema.TimeseriesRequest{OrganizationID: 999, Since: date(3, 1, 0), Until: date(3, 2, 0)})
	assert.ErrorIs(t, err, contract.ErrOrganizationNotFound)

	_, err = f.service.GetComposition(ctx, schema.TimeseriesRequest{OrganizationID: f.org.ID, Since: date(3, 2, 0), Until: date(3, 1, 0)})
	assert.Error(t, err)
}

func TestEmptyOrganizationYieldsZeros(t *testing.T) {
	f := newFixture(t)
	res, err := f.service.GetComposition(context.Background(), schema.TimeseriesRequest{
		OrganizationID: f.org.ID, Since: date(3, 1, 0), Until: date(3, 2, 0), IncludeDaily: true,
	})
	require.NoError(t, err)
	assert.Empty(t, res.RepositoryIDs)
	assert.Equal(t, []schema.Counts{{}, {}}, counts(res.Cumulative.Points))
	require.NotNil(t, res.Daily)
	assert.Equal(t, []float64{0, 0}, res.Daily.Series[0].Data)
}

func TestBuckets(t *testing.T) {
	days, aggregate := Buckets(date(3, 4, 15), date(3, 6, 1), false)
	assert.False(t, aggregate)
	assert.Equal(t, []time.Time{date(3, 4, 0), date(3, 5, 0), date(3, 6, 0)}, days)

	days, _ = Buckets(date(3, 4, 15), date(3, 6, 1), true)
	assert.Equal(t, date(3, 3, 0), days[0])
	assert.Len(t, days, 4)

	weeks, aggregate := Buckets(date(3, 5, 0), date(3, 20, 0), true)
	assert.True(t, aggregate)
	assert.Equal(t, []time.Time{date(2, 24, 0), date(3, 3, 0), date(3, 10, 0), date(3, 17, 0)}, weeks)
}

func TestWeekStart(t *testing.T) {
	assert.Equal(t, date(3, 3, 0), WeekStart(date(3, 3, 0)))
	assert.Equal(t, date(3, 3, 0), WeekStart(date(3, 9, 23)))
	assert.Equal(t, date(3, 10, 0), WeekStart(date(3, 10, 1)))
}

func TestDelta(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur schema.Counts
		expected  schema.Counts
	}{
		{"unchanged", schema.Counts{Total: 60, AI: 50, Blended: 25}, schema.Counts{Total: 60, AI: 50, Blended: 25}, schema.Counts{}},
		{"shrinking clamps to zero", schema.Counts{Total: 60, AI: 50, Blended: 25}, schema.Counts{Total: 40, AI: 30, Blended: 5}, schema.Counts{}},
		{"relabel without growth", schema.Counts{Total: 60, AI: 40, Blended: 10}, schema.Counts{Total: 60, AI: 50, Blended: 10}, schema.Counts{Total: 10, AI: 10}},
		{"growth folds upward", schema.Counts{Total: 10}, schema.Counts{Total: 20, AI: 5, Blended: 2}, schema.Counts{Total: 17, AI: 7, Blended: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Delta(tt.prev, tt.cur))
		})
	}
}
