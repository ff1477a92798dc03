// Package api exposes composition queries and mutations over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/roy-sema/cto-tool-sub001/core"
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
)

// AppName is reported by the health endpoint.
const AppName = "aicomp"

// NewApp builds the HTTP application without starting it.
// This is exposed for unit testing.
func NewApp(cfg *contract.Config, engine *core.Engine, version string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    64 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     AppName,
			"version": version,
			"backend": engine.Store.Backend(),
		})
	})

	h := NewHandler(cfg, engine)
	h.Register(app.Group("/api/v1"))
	return app
}

// Serve runs the HTTP server on cfg.Listen until ctx is canceled.
func Serve(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, version string) error {
	store := mgr.GetCompositionStore()
	if store == nil {
		return errors.New("composition store is not initialized")
	}
	engine := core.NewEngineFromConfig(ctx, store, cfg)
	defer engine.Close()

	app := NewApp(cfg, engine, version)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("http shutdown failed", "error", err)
		}
	}()

	slog.Info("🚀 Starting composition API", "listen", cfg.Listen, "backend", store.Backend())
	return app.Listen(cfg.Listen, fiber.ListenConfig{DisableStartupMessage: true})
}
