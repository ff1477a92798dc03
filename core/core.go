// Package core has core logic for ingestion, attestation, recalculation and charts.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/internal/outwriter"
	"github.com/roy-sema/cto-tool-sub001/internal/unitio"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// ExecutorFunc defines the function signature for executing a store-backed command.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error

// openEngine resolves the active store and starts an engine on it.
func openEngine(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) (*Engine, error) {
	store := mgr.GetCompositionStore()
	if store == nil {
		return nil, errors.New("composition store is not initialized")
	}
	return NewEngineFromConfig(ctx, store, cfg), nil
}

// showHeader reports whether the decorative header goes to stdout.
func showHeader(ctx context.Context, cfg *contract.Config) bool {
	return cfg.Output == schema.TextOut && cfg.OutputFile == "" && !shouldSuppressHeader(ctx)
}

// ExecuteIngest loads payloads from paths ("-" for stdin), drops excluded
// files, stores every snapshot and runs the cascade over them.
// It serves as the main entry point for the 'ingest' command.
func ExecuteIngest(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, paths []string) error {
	start := time.Now()
	if len(paths) == 0 {
		paths = []string{unitio.StdinPath}
	}

	var (
		reqs     []schema.IngestRequest
		excluded int
	)
	for _, path := range paths {
		loaded, err := unitio.LoadFile(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		for i := range loaded {
			excluded += len(unitio.Normalize(&loaded[i], cfg.Excludes))
		}
		reqs = append(reqs, loaded...)
	}

	out := stdoutFrom(ctx)
	if showHeader(ctx, cfg) {
		outwriter.LogIngestHeader(out, len(reqs), len(paths))
	}

	e, err := openEngine(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	defer e.Close()

	result, ingestErr := IngestBatch(ctx, e, reqs)
	if result == nil {
		return ingestErr
	}
	result.ExcludedFiles = excluded
	if err := outwriter.PrintOperationResult(out, result, cfg, time.Since(start)); err != nil {
		return errors.Join(ingestErr, err)
	}
	return ingestErr
}

// ExecuteAttest records a reviewer label and cascades it.
// It serves as the main entry point for the 'attest' command.
func ExecuteAttest(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, req schema.AttestationRequest) error {
	start := time.Now()
	e, err := openEngine(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := Attest(ctx, e, req)
	if result == nil {
		return err
	}
	if printErr := outwriter.PrintOperationResult(stdoutFrom(ctx), result, cfg, time.Since(start)); printErr != nil {
		return errors.Join(err, printErr)
	}
	return err
}

// ExecuteRecalc reruns the cascade over explicit snapshots. cfg.Force recounts clean files too.
// It serves as the main entry point for the 'recalc' command.
func ExecuteRecalc(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, snapshotIDs []int64) error {
	start := time.Now()
	e, err := openEngine(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := Recalculate(ctx, e, snapshotIDs, cfg.Force)
	if result == nil {
		return err
	}
	if printErr := outwriter.PrintOperationResult(stdoutFrom(ctx), result, cfg, time.Since(start)); printErr != nil {
		return errors.Join(err, printErr)
	}
	return err
}

// ExecuteComposition builds the organization composition chart for the configured window.
// It serves as the main entry point for the 'composition' command.
func ExecuteComposition(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	e, err := openEngine(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	defer e.Close()

	req, err := BuildTimeseriesRequest(ctx, e.Store, cfg.Organization, cfg.Repositories, cfg.Since, cfg.Until, cfg.IncludeDaily)
	if err != nil {
		return err
	}

	out := stdoutFrom(ctx)
	if showHeader(ctx, cfg) {
		outwriter.LogCompositionHeader(out, cfg)
	}

	result, err := e.Series.GetComposition(ctx, req)
	if err != nil {
		return err
	}
	return outwriter.PrintComposition(out, result, cfg, time.Since(start))
}

// ExecuteStatus prints the stored composition of organizations, repositories
// and merge requests. An empty cfg.Organization lists every organization.
// It serves as the main entry point for the 'status' command.
func ExecuteStatus(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	store := mgr.GetCompositionStore()
	if store == nil {
		return errors.New("composition store is not initialized")
	}
	report, err := BuildStatusReport(ctx, store, cfg.Organization)
	if err != nil {
		return err
	}
	return outwriter.PrintStatusReport(stdoutFrom(ctx), report, cfg, time.Since(start))
}

// ExecuteRepository prints the current composition of one repository.
func ExecuteRepository(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, repositoryID int64) error {
	start := time.Now()
	store := mgr.GetCompositionStore()
	if store == nil {
		return errors.New("composition store is not initialized")
	}
	entity, err := RepositoryComposition(ctx, store, repositoryID)
	if err != nil {
		return err
	}
	report := &schema.StatusReport{Repositories: []schema.EntityComposition{entity}}
	return outwriter.PrintStatusReport(stdoutFrom(ctx), report, cfg, time.Since(start))
}

// ExecuteRegister registers an organization and repository so that payloads can be ingested for it.
func ExecuteRegister(ctx context.Context, _ *contract.Config, mgr contract.StoreManager, organization, repository string) error {
	store := mgr.GetCompositionStore()
	if store == nil {
		return errors.New("composition store is not initialized")
	}
	org, repo, err := RegisterRepository(ctx, store, organization, repository)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdoutFrom(ctx), "✅ Registered %s/%s (organization %d, repository %d)\n", org.Name, repo.Name, org.ID, repo.ID)
	return nil
}
