package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// RegisterRepository makes sure the organization and repository exist.
func RegisterRepository(ctx context.Context, store contract.CompositionStore, organization, repository string) (schema.Organization, schema.Repository, error) {
	organization, repository = strings.TrimSpace(organization), strings.TrimSpace(repository)
	if organization == "" || repository == "" {
		return schema.Organization{}, schema.Repository{}, errors.New("organization and repository names are required")
	}

	var (
		org  schema.Organization
		repo schema.Repository
	)
	err := store.WithTx(ctx, func(ctx context.Context, tx contract.CompositionStore) error {
		var err error
		if org, err = tx.EnsureOrganization(ctx, organization); err != nil {
			return fmt.Errorf("ensure organization: %w", err)
		}
		if repo, err = tx.EnsureRepository(ctx, org.ID, repository); err != nil {
			return fmt.Errorf("ensure repository: %w", err)
		}
		return nil
	})
	return org, repo, err
}

// IngestSnapshot stores one scanned snapshot with its files and units, all
// marked dirty. A full scan at least as recent as the repository's current one
// becomes current. A partial scan becomes the head of the referenced merge
// requests, whose base defaults to the repository's current full scan.
// The repository must already be registered.
func IngestSnapshot(ctx context.Context, store contract.CompositionStore, req schema.IngestRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, fmt.Errorf("invalid ingest request: %w", err)
	}

	var snapshotID int64
	err := store.WithTx(ctx, func(ctx context.Context, tx contract.CompositionStore) error {
		repo, err := tx.FindRepository(ctx, req.Organization, req.Repository)
		if err != nil {
			return err
		}

		snap := schema.Snapshot{
			RepositoryID: repo.ID,
			CommitSHA:    req.CommitSHA,
			Kind:         req.Kind,
			CapturedAt:   req.CapturedAt.UTC(),
		}
		if err := tx.CreateSnapshot(ctx, &snap); err != nil {
			return fmt.Errorf("create snapshot: %w", err)
		}
		snapshotID = snap.ID

		for _, f := range req.Files {
			file := schema.SnapshotFile{SnapshotID: snap.ID, Path: f.Path, State: schema.FileDirty}
			if err := tx.CreateFile(ctx, &file); err != nil {
				return fmt.Errorf("create file %s: %w", f.Path, err)
			}
			if len(f.Units) == 0 {
				continue
			}
			units := make([]schema.CodeUnit, 0, len(f.Units))
			for _, u := range f.Units {
				units = append(units, schema.CodeUnit{
					RepositoryID: repo.ID,
					SnapshotID:   snap.ID,
					FileID:       file.ID,
					ContentHash:  u.ContentHash,
					StartLine:    u.StartLine,
					EndLine:      u.EndLine,
					LineCount:    u.LineCount,
					AILines:      u.AILines,
					Label:        u.Label,
				})
			}
			if err := tx.CreateUnits(ctx, units); err != nil {
				return fmt.Errorf("create units for %s: %w", f.Path, err)
			}
		}

		if snap.IsFullScan() {
			return promoteFullScan(ctx, tx, repo, snap)
		}
		return linkMergeRequests(ctx, tx, repo, snap.ID, req.MergeRequests)
	})
	if err != nil {
		return 0, err
	}
	return snapshotID, nil
}

// promoteFullScan makes snap the repository's current full scan unless a newer one exists.
func promoteFullScan(ctx context.Context, tx contract.CompositionStore, repo schema.Repository, snap schema.Snapshot) error {
	if repo.LastSnapshotID != nil {
		current, err := tx.GetSnapshot(ctx, *repo.LastSnapshotID)
		if err != nil && !errors.Is(err, contract.ErrNotFound) {
			return fmt.Errorf("load current snapshot: %w", err)
		}
		if err == nil && snap.CapturedAt.Before(current.CapturedAt) {
			return nil
		}
	}
	repo.LastSnapshotID = &snap.ID
	if err := tx.UpdateRepository(ctx, repo); err != nil {
		return fmt.Errorf("update repository: %w", err)
	}
	return nil
}

func linkMergeRequests(ctx context.Context, tx contract.CompositionStore, repo schema.Repository, snapshotID int64, refs []schema.MergeRequestRef) error {
	for _, ref := range refs {
		head := snapshotID
		mr := schema.MergeRequest{
			RepositoryID:   repo.ID,
			ExternalID:     ref.ExternalID,
			Title:          ref.Title,
			State:          ref.State,
			HeadSnapshotID: &head,
			BaseSnapshotID: repo.LastSnapshotID,
		}
		if err := tx.UpsertMergeRequest(ctx, &mr); err != nil {
			return fmt.Errorf("upsert merge request %s: %w", ref.ExternalID, err)
		}
	}
	return nil
}

// Ingest stores a snapshot and runs a forced cascade over it.
func Ingest(ctx context.Context, e *Engine, req schema.IngestRequest) (int64, *schema.CascadeResult, error) {
	id, err := IngestSnapshot(ctx, e.Store, req)
	if err != nil {
		return 0, nil, err
	}
	result, err := e.Cascade.Run(ctx, []int64{id}, true)
	return id, result, err
}

// IngestBatch stores every payload, then runs one forced cascade over the new
// snapshots. Payloads whose repository is unknown or that fail validation are
// logged and skipped; the rest of the batch continues.
func IngestBatch(ctx context.Context, e *Engine, reqs []schema.IngestRequest) (*schema.OperationResult, error) {
	result := &schema.OperationResult{Operation: "ingest"}
	var errs []error

	for _, req := range reqs {
		id, err := IngestSnapshot(ctx, e.Store, req)
		if err == nil {
			result.Snapshots = append(result.Snapshots, id)
			continue
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		skipped := schema.SkippedItem{
			Organization: req.Organization,
			Repository:   req.Repository,
			CommitSHA:    req.CommitSHA,
			Reason:       err.Error(),
		}
		result.Skipped = append(result.Skipped, skipped)
		if errors.Is(err, contract.ErrNotFound) {
			e.logger.Warn("skipping payload for unknown repository",
				"organization", req.Organization, "repository", req.Repository, "commit", req.CommitSHA)
			continue
		}
		e.logger.Error("skipping payload", "organization", req.Organization, "repository", req.Repository,
			"commit", req.CommitSHA, "error", err)
		errs = append(errs, fmt.Errorf("%s/%s@%s: %w", req.Organization, req.Repository, req.CommitSHA, err))
	}

	if len(result.Snapshots) > 0 {
		cascadeResult, err := e.Cascade.Run(ctx, result.Snapshots, true)
		result.Cascade = cascadeResult
		errs = append(errs, err)
	}
	return result, errors.Join(errs...)
}
