// Package timeseries reconstructs composition charts from sparse full-scan snapshots.
package timeseries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roy-sema/cto-tool-sub001/core/metric"
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/internal/integrity"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

const (
	day  = 24 * time.Hour
	week = 7 * day

	// AggregateThreshold is the range above which buckets are ISO weeks instead of days.
	AggregateThreshold = 14 * day
)

// Store is the read surface the service needs.
type Store interface {
	contract.RegistryStore
	contract.SeriesStore
}

// Service answers composition chart queries. It never writes.
type Service struct {
	store  Store
	sink   contract.IntegritySink
	logger *slog.Logger
}

// NewService builds a service. A nil sink logs violations through slog.
func NewService(store Store, sink contract.IntegritySink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = integrity.NewSlogSink(logger)
	}
	return &Service{store: store, sink: sink, logger: logger}
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of t's ISO week at midnight UTC.
func WeekStart(t time.Time) time.Time {
	d := DayStart(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// Buckets returns the bucket starts covering [since, until], plus one leading
// bucket when withPrevious is set, and whether buckets are weekly.
func Buckets(since, until time.Time, withPrevious bool) ([]time.Time, bool) {
	aggregate := until.Sub(since) > AggregateThreshold
	start, step := DayStart, day
	if aggregate {
		start, step = WeekStart, week
	}

	first, last := start(since), start(until)
	if withPrevious {
		first = first.Add(-step)
	}
	var buckets []time.Time
	for b := first; !b.After(last); b = b.Add(step) {
		buckets = append(buckets, b)
	}
	return buckets, aggregate
}

// GetComposition returns the cumulative chart and, when requested, the delta chart.
func (s *Service) GetComposition(ctx context.Context, req schema.TimeseriesRequest) (*schema.TimeseriesResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timeseries request: %w", err)
	}

	repoIDs, err := s.resolveRepositories(ctx, req.OrganizationID, req.RepositoryIDs)
	if err != nil {
		return nil, err
	}

	buckets, aggregate := Buckets(req.Since, req.Until, req.IncludeDaily)
	result := &schema.TimeseriesResult{
		OrganizationID: req.OrganizationID,
		RepositoryIDs:  repoIDs,
		Since:          req.Since.UTC(),
		Until:          req.Until.UTC(),
		Aggregate:      aggregate,
	}

	filled, err := s.forwardFilled(ctx, repoIDs, buckets, aggregate, DayStart(req.Until).Add(day))
	if err != nil {
		return nil, err
	}

	totals := make([]schema.Counts, len(buckets))
	for _, series := range filled {
		for i, c := range series {
			totals[i] = totals[i].Add(c)
		}
	}

	offset := 0
	if req.IncludeDaily {
		offset = 1
	}

	cumulative := make([]schema.ChartPoint, 0, len(buckets)-offset)
	for i := offset; i < len(buckets); i++ {
		point := newPoint(buckets[i], totals[i])
		s.validate(ctx, req.OrganizationID, point, false)
		cumulative = append(cumulative, point)
	}
	result.Cumulative = buildChart(cumulative)

	if req.IncludeDaily {
		deltas := make([]schema.ChartPoint, 0, len(buckets)-1)
		for i := 1; i < len(buckets); i++ {
			point := newPoint(buckets[i], Delta(totals[i-1], totals[i]))
			s.validate(ctx, req.OrganizationID, point, true)
			deltas = append(deltas, point)
		}
		chart := buildChart(deltas)
		result.Daily = &chart
	}
	return result, nil
}

// resolveRepositories returns the requested subset, checked against the
// organization, or every repository of the organization.
func (s *Service) resolveRepositories(ctx context.Context, organizationID int64, requested []int64) ([]int64, error) {
	if _, err := s.store.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}

	if len(requested) == 0 {
		repos, err := s.store.ListRepositories(ctx, organizationID)
		if err != nil {
			return nil, fmt.Errorf("list repositories: %w", err)
		}
		ids := make([]int64, 0, len(repos))
		for _, r := range repos {
			ids = append(ids, r.ID)
		}
		return ids, nil
	}

	ids := slices.Clone(requested)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	for _, id := range ids {
		repo, err := s.store.GetRepository(ctx, id)
		if err != nil {
			return nil, err
		}
		if repo.OrganizationID != organizationID {
			return nil, fmt.Errorf("%w: id %d in organization %d", contract.ErrRepositoryNotFound, id, organizationID)
		}
	}
	return ids, nil
}

// forwardFilled returns, per repository, one counter set per bucket.
func (s *Service) forwardFilled(ctx context.Context, repoIDs []int64, buckets []time.Time, aggregate bool, end time.Time) (map[int64][]schema.Counts, error) {
	out := make(map[int64][]schema.Counts, len(repoIDs))
	if len(repoIDs) == 0 || len(buckets) == 0 {
		return out, nil
	}

	snaps, err := s.store.ListFullScans(ctx, repoIDs, buckets[0], end)
	if err != nil {
		return nil, fmt.Errorf("list full scans: %w", err)
	}
	observed := bucketize(snaps, aggregate)

	var missing []int64
	for _, id := range repoIDs {
		if _, ok := observed[id][buckets[0]]; !ok {
			missing = append(missing, id)
		}
	}
	seeds, err := s.seeds(ctx, missing, buckets[0])
	if err != nil {
		return nil, err
	}

	for _, id := range repoIDs {
		series := make([]schema.Counts, len(buckets))
		prev := seeds[id]
		for i, b := range buckets {
			if c, ok := observed[id][b]; ok {
				prev = c
			}
			series[i] = prev
		}
		out[id] = series
	}
	return out, nil
}

// bucketize keeps the latest snapshot per repository and day, then sums the
// days inside each bucket. Input is ordered by capture time.
func bucketize(snaps []schema.Snapshot, aggregate bool) map[int64]map[time.Time]schema.Counts {
	daily := make(map[int64]map[time.Time]schema.Counts)
	for _, snap := range snaps {
		days, ok := daily[snap.RepositoryID]
		if !ok {
			days = make(map[time.Time]schema.Counts)
			daily[snap.RepositoryID] = days
		}
		days[DayStart(snap.CapturedAt)] = snap.Counts
	}
	if !aggregate {
		return daily
	}

	weekly := make(map[int64]map[time.Time]schema.Counts, len(daily))
	for repoID, days := range daily {
		weeks := make(map[time.Time]schema.Counts)
		for d, c := range days {
			w := WeekStart(d)
			weeks[w] = weeks[w].Add(c)
		}
		weekly[repoID] = weeks
	}
	return weekly
}

// seeds fetches, concurrently, each repository's last full scan before the first bucket.
func (s *Service) seeds(ctx context.Context, repoIDs []int64, before time.Time) (map[int64]schema.Counts, error) {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs []error
		out  = make(map[int64]schema.Counts, len(repoIDs))
	)
	for _, id := range repoIDs {
		wg.Go(func() {
			snap, err := s.store.LatestFullScanBefore(ctx, id, before)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("seed repository %d: %w", id, err))
				return
			}
			if snap != nil {
				out[id] = snap.Counts
			}
		})
	}
	wg.Wait()
	return out, errors.Join(errs...)
}

// Delta returns the growth between two cumulative states. Each counter is
// clamped at zero, then blended growth is folded into AI growth and AI growth
// into total growth.
func Delta(prev, cur schema.Counts) schema.Counts {
	d := schema.Counts{
		Total:   max(0, cur.Total-prev.Total),
		AI:      max(0, cur.AI-prev.AI),
		Blended: max(0, cur.Blended-prev.Blended),
	}
	d.AI += d.Blended
	d.Total += d.AI
	return d
}

func (s *Service) validate(ctx context.Context, organizationID int64, point schema.ChartPoint, delta bool) {
	for _, v := range integrity.Check(organizationID, point, delta) {
		s.sink.Record(ctx, v)
	}
}

func newPoint(bucket time.Time, c schema.Counts) schema.ChartPoint {
	return schema.ChartPoint{
		Bucket:      bucket,
		Label:       bucket.Format(contract.DateFormat),
		Counts:      c,
		Composition: metric.Compose(c),
	}
}

func buildChart(points []schema.ChartPoint) schema.CompositionChart {
	chart := schema.CompositionChart{
		Categories: make([]string, 0, len(points)),
		Points:     points,
	}
	data := make(map[schema.SeriesCategory][]float64, len(schema.AllCategories))
	for _, p := range points {
		chart.Categories = append(chart.Categories, p.Label)
		data[schema.OverallCategory] = append(data[schema.OverallCategory], p.Composition.Overall)
		data[schema.PureCategory] = append(data[schema.PureCategory], p.Composition.Pure)
		data[schema.BlendedCategory] = append(data[schema.BlendedCategory], p.Composition.Blended)
	}
	for _, cat := range schema.AllCategories {
		values := data[cat]
		if values == nil {
			values = []float64{}
		}
		chart.Series = append(chart.Series, schema.ChartSeries{Name: cat, Data: values})
	}
	return chart
}
