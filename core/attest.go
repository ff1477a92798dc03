package core

import (
	"context"
	"fmt"
	"time"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// SetAttestation records a reviewer label for a content hash, flags every file
// holding that hash as dirty and returns the snapshots that need a cascade.
func SetAttestation(ctx context.Context, store contract.CompositionStore, req schema.AttestationRequest) ([]int64, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid attestation: %w", err)
	}

	var affected []int64
	err := store.WithTx(ctx, func(ctx context.Context, tx contract.CompositionStore) error {
		if _, err := tx.GetRepository(ctx, req.RepositoryID); err != nil {
			return err
		}

		att := schema.Attestation{
			RepositoryID: req.RepositoryID,
			ContentHash:  req.ContentHash,
			Label:        req.Label,
			Comment:      req.Comment,
			Author:       req.Author,
			UpdatedAt:    time.Now().UTC(),
		}
		if err := tx.UpsertAttestation(ctx, att); err != nil {
			return fmt.Errorf("upsert attestation: %w", err)
		}
		if _, err := tx.MarkHashDirty(ctx, req.RepositoryID, req.ContentHash); err != nil {
			return fmt.Errorf("mark files dirty: %w", err)
		}

		var err error
		affected, err = tx.SnapshotsForHash(ctx, req.RepositoryID, req.ContentHash)
		if err != nil {
			return fmt.Errorf("lookup snapshots for hash: %w", err)
		}
		return nil
	})
	return affected, err
}

// Attest records the attestation and cascades it through the affected snapshots.
func Attest(ctx context.Context, e *Engine, req schema.AttestationRequest) (*schema.OperationResult, error) {
	affected, err := SetAttestation(ctx, e.Store, req)
	if err != nil {
		return nil, err
	}
	result := &schema.OperationResult{Operation: "attest", Snapshots: affected}
	if len(affected) == 0 {
		return result, nil
	}
	result.Cascade, err = e.Cascade.Run(ctx, affected, false)
	return result, err
}

// Recalculate runs the cascade over explicit snapshots.
func Recalculate(ctx context.Context, e *Engine, snapshotIDs []int64, force bool) (*schema.OperationResult, error) {
	if len(snapshotIDs) == 0 {
		return nil, fmt.Errorf("at least one snapshot id is required")
	}
	cascadeResult, err := e.Cascade.Run(ctx, snapshotIDs, force)
	return &schema.OperationResult{Operation: "recalc", Snapshots: snapshotIDs, Cascade: cascadeResult}, err
}
