package core

import (
	"context"
	"log/slog"

	"github.com/roy-sema/cto-tool-sub001/core/cascade"
	"github.com/roy-sema/cto-tool-sub001/core/timeseries"
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/internal/integrity"
	"github.com/roy-sema/cto-tool-sub001/internal/rollup"
)

// Engine bundles the store with the cascade, the rollup queue and the chart service.
type Engine struct {
	Store   contract.CompositionStore
	Cascade *cascade.Cascade
	Rollups *rollup.Queue
	Series  *timeseries.Service
	logger  *slog.Logger
}

// NewEngine starts a rollup queue running the organization recomputation
// followed by any extra hooks, and wires the cascade to it.
func NewEngine(ctx context.Context, store contract.CompositionStore, workers, rollupWorkers int, logger *slog.Logger, hooks ...contract.RollupHook) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	chain := append([]contract.RollupHook{rollup.OrganizationRollup(store, nil)}, hooks...)
	queue := rollup.NewQueue(rollupWorkers, logger, chain...)
	queue.Start(ctx)

	return &Engine{
		Store:   store,
		Cascade: cascade.New(store, queue, workers, cascade.WithLogger(logger)),
		Rollups: queue,
		Series:  timeseries.NewService(store, integrity.NewSlogSink(logger), logger),
		logger:  logger,
	}
}

// NewEngineFromConfig builds an engine sized by the validated config.
func NewEngineFromConfig(ctx context.Context, store contract.CompositionStore, cfg *contract.Config, hooks ...contract.RollupHook) *Engine {
	return NewEngine(ctx, store, cfg.Workers, cfg.RollupWorkers, slog.Default(), hooks...)
}

// Close drains pending rollups.
func (e *Engine) Close() {
	e.Rollups.Close()
}
