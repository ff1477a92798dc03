// Package cascade recomputes composition bottom-up: unit, file, snapshot,
// then merge request or repository, and finally schedules organization rollups.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// Cascade keeps stored aggregates consistent after classification changes.
type Cascade struct {
	store     contract.CompositionStore
	scheduler contract.RollupScheduler
	workers   int
	now       func() time.Time
	logger    *slog.Logger
}

// Option customizes a Cascade.
type Option func(*Cascade)

// WithClock overrides the clock used for recalculation stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cascade) { c.now = now }
}

// WithLogger sets the logger used for progress and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cascade) { c.logger = logger }
}

// New builds a cascade. Repositories are processed by up to workers goroutines.
// A nil scheduler disables organization rollups.
func New(store contract.CompositionStore, scheduler contract.RollupScheduler, workers int, opts ...Option) *Cascade {
	c := &Cascade{
		store:     store,
		scheduler: scheduler,
		workers:   max(workers, 1),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// snapshotOutcome is what one snapshot's transaction changed.
type snapshotOutcome struct {
	files          int
	mergeRequests  []int64
	repositoryID   int64
	organizationID int64
}

// Run recomputes the given snapshots. Dirty files are recounted, or every file
// when force is set. Snapshots of one repository run in ascending ID order
// inside their own transaction; repositories run concurrently. Organizations
// of repositories whose current full scan changed are scheduled for rollup
// once each, even when other snapshots failed.
func (c *Cascade) Run(ctx context.Context, snapshotIDs []int64, force bool) (*schema.CascadeResult, error) {
	groups, order, err := c.groupByRepository(ctx, snapshotIDs)

	var (
		mu     sync.Mutex
		result = &schema.CascadeResult{}
		errs   = []error{err}
		orgs   = make(map[int64]struct{})
	)

	jobs := make(chan int64, len(order))
	for _, repoID := range order {
		jobs <- repoID
	}
	close(jobs)

	var wg sync.WaitGroup
	for range min(c.workers, len(order)) {
		wg.Go(func() {
			for repoID := range jobs {
				for _, snapID := range groups[repoID] {
					if ctx.Err() != nil {
						mu.Lock()
						errs = append(errs, fmt.Errorf("snapshot %d: %w", snapID, ctx.Err()))
						mu.Unlock()
						continue
					}
					out, err := c.processSnapshot(ctx, snapID, force)

					mu.Lock()
					if err != nil {
						errs = append(errs, fmt.Errorf("snapshot %d: %w", snapID, err))
						mu.Unlock()
						c.logger.Error("cascade snapshot failed", "snapshot_id", snapID, "repository_id", repoID, "error", err)
						continue
					}
					result.Snapshots = append(result.Snapshots, snapID)
					result.FilesRecounted += out.files
					result.MergeRequests = append(result.MergeRequests, out.mergeRequests...)
					if out.repositoryID != 0 {
						result.Repositories = append(result.Repositories, out.repositoryID)
						orgs[out.organizationID] = struct{}{}
					}
					mu.Unlock()
				}
			}
		})
	}
	wg.Wait()

	slices.Sort(result.Snapshots)
	slices.Sort(result.MergeRequests)
	result.Repositories = compactSorted(result.Repositories)
	for orgID := range orgs {
		result.Organizations = append(result.Organizations, orgID)
	}
	slices.Sort(result.Organizations)

	if c.scheduler != nil {
		for _, orgID := range result.Organizations {
			c.scheduler.Schedule(ctx, orgID)
		}
	}

	c.logger.Debug("cascade finished",
		"snapshots", len(result.Snapshots),
		"files", result.FilesRecounted,
		"merge_requests", len(result.MergeRequests),
		"organizations", len(result.Organizations))

	return result, errors.Join(errs...)
}

// groupByRepository resolves snapshots to their repositories. Each group is
// sorted ascending; order lists repositories by ID.
func (c *Cascade) groupByRepository(ctx context.Context, snapshotIDs []int64) (map[int64][]int64, []int64, error) {
	ids := compactSorted(slices.Clone(snapshotIDs))
	groups := make(map[int64][]int64)
	var order []int64
	var errs []error

	for _, id := range ids {
		snap, err := c.store.GetSnapshot(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("snapshot %d: %w", id, err))
			continue
		}
		if _, ok := groups[snap.RepositoryID]; !ok {
			order = append(order, snap.RepositoryID)
		}
		groups[snap.RepositoryID] = append(groups[snap.RepositoryID], id)
	}
	slices.Sort(order)
	return groups, order, errors.Join(errs...)
}

// processSnapshot runs the file, snapshot, merge request and repository steps in one transaction.
func (c *Cascade) processSnapshot(ctx context.Context, snapshotID int64, force bool) (snapshotOutcome, error) {
	var out snapshotOutcome
	err := c.store.WithTx(ctx, func(ctx context.Context, tx contract.CompositionStore) error {
		out = snapshotOutcome{}
		stamp := c.now().UTC()

		snap, err := tx.GetSnapshot(ctx, snapshotID)
		if err != nil {
			return err
		}

		files, err := tx.ListFiles(ctx, snap.ID)
		if err != nil {
			return fmt.Errorf("list files: %w", err)
		}

		var sum schema.Counts
		for _, file := range files {
			if force || file.State != schema.FileClean {
				counts, err := recountFile(ctx, tx, snap.RepositoryID, file.ID)
				if err != nil {
					return fmt.Errorf("recount file %d: %w", file.ID, err)
				}
				file.Counts = counts
				file.State = schema.FileClean
				file.LastRecalculatedAt = &stamp
				if err := tx.UpdateFile(ctx, file); err != nil {
					return fmt.Errorf("update file %d: %w", file.ID, err)
				}
				out.files++
			}
			sum = sum.Add(file.Counts)
		}

		snap.Counts = sum
		snap.LastRecalculatedAt = &stamp
		if err := tx.UpdateSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("update snapshot: %w", err)
		}

		mrs, err := tx.ListOpenMergeRequestsByHead(ctx, snap.ID)
		if err != nil {
			return fmt.Errorf("list merge requests: %w", err)
		}
		for _, mr := range mrs {
			if !mr.IsOpen() {
				continue
			}
			mr.Counts = sum
			mr.LastRecalculatedAt = &stamp
			if err := tx.UpdateMergeRequest(ctx, mr); err != nil {
				return fmt.Errorf("update merge request %d: %w", mr.ID, err)
			}
			out.mergeRequests = append(out.mergeRequests, mr.ID)
		}

		if !snap.IsFullScan() {
			return nil
		}
		repo, err := tx.GetRepository(ctx, snap.RepositoryID)
		if err != nil {
			return err
		}
		if !repo.IsCurrentSnapshot(snap.ID) {
			return nil
		}
		repo.Counts = sum
		repo.LastRecalculatedAt = &stamp
		if err := tx.UpdateRepository(ctx, repo); err != nil {
			return fmt.Errorf("update repository: %w", err)
		}
		out.repositoryID = repo.ID
		out.organizationID = repo.OrganizationID
		return nil
	})
	return out, err
}

// recountFile sums the effective contribution of every unit in a file.
func recountFile(ctx context.Context, tx contract.CompositionStore, repositoryID, fileID int64) (schema.Counts, error) {
	units, err := tx.ListUnits(ctx, fileID)
	if err != nil {
		return schema.Counts{}, err
	}
	if len(units) == 0 {
		return schema.Counts{}, nil
	}

	hashes := make([]string, 0, len(units))
	for _, u := range units {
		hashes = append(hashes, u.ContentHash)
	}
	attestations, err := tx.GetAttestations(ctx, repositoryID, compactSorted(hashes))
	if err != nil {
		return schema.Counts{}, err
	}

	var counts schema.Counts
	for _, u := range units {
		var att *schema.Attestation
		if a, ok := attestations[u.ContentHash]; ok {
			att = &a
		}
		counts = counts.Add(UnitCounts(u, att))
	}
	return counts, nil
}

// EffectiveLabel returns the attested label when present, else the unit's own label.
func EffectiveLabel(u schema.CodeUnit, att *schema.Attestation) schema.Label {
	if att != nil {
		return att.Label
	}
	return u.Label
}

// UnitCounts returns the counters one unit contributes to its file.
// The scanner's AI line count is kept while the unit's own label is AI;
// an attestation that turns a non-AI unit into AI covers every line.
// Human and not-evaluated units add only to the total.
func UnitCounts(u schema.CodeUnit, att *schema.Attestation) schema.Counts {
	counts := schema.Counts{Total: u.LineCount}
	label := EffectiveLabel(u, att)
	if !label.IsAI() {
		return counts
	}

	ai := u.AILines
	if att != nil && !u.Label.IsAI() {
		ai = u.LineCount
	}
	counts.AI = ai
	if label == schema.AIBlendedLabel {
		counts.Blended = ai
	}
	return counts
}

func compactSorted[T int64 | string](in []T) []T {
	slices.Sort(in)
	return slices.Compact(in)
}
