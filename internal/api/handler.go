package api

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v3"
	"github.com/roy-sema/cto-tool-sub001/core"
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/internal/unitio"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// Handler serves composition routes backed by one engine.
type Handler struct {
	cfg    *contract.Config
	engine *core.Engine
	now    func() time.Time
}

// NewHandler creates a new composition handler.
func NewHandler(cfg *contract.Config, engine *core.Engine) *Handler {
	return &Handler{cfg: cfg, engine: engine, now: time.Now}
}

// Register sets up composition routes on a group.
func (h *Handler) Register(api fiber.Router) {
	orgs := api.Group("/organizations")
	orgs.Get("/", h.Status)
	orgs.Get("/:org/status", h.Status)
	orgs.Get("/:org/composition", h.Composition)

	repos := api.Group("/repositories")
	repos.Post("/", h.RegisterRepository)
	repos.Get("/:id", h.Repository)

	api.Post("/snapshots", h.Ingest)
	api.Post("/attestations", h.Attest)
	api.Post("/recalculate", h.Recalculate)
}

// errorStatus maps lookup misses to 404 and validation failures to 400.
func errorStatus(err error) int {
	var verrs validation.Errors
	switch {
	case errors.Is(err, contract.ErrNotFound):
		return fiber.StatusNotFound
	case errors.As(err, &verrs):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// Composition returns the organization chart. Query: since, until, repos, daily.
func (h *Handler) Composition(c fiber.Ctx) error {
	now := h.now()
	until := now.UTC()
	if v := c.Query("until"); v != "" {
		t, err := contract.ParseTimeInput(v, now)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, err)
		}
		until = t
	}
	since := until.AddDate(0, 0, -contract.DefaultLookbackDays)
	if v := c.Query("since"); v != "" {
		t, err := contract.ParseTimeInput(v, now)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, err)
		}
		since = t
	}
	daily, err := contract.ParseBoolString(c.Query("daily", "false"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}

	var repos []string
	for name := range strings.SplitSeq(c.Query("repos"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			repos = append(repos, name)
		}
	}

	req, err := core.BuildTimeseriesRequest(c.Context(), h.engine.Store, c.Params("org"), repos, since, until, daily)
	if err != nil {
		return fail(c, errorStatus(err), err)
	}
	result, err := h.engine.Series.GetComposition(c.Context(), req)
	if err != nil {
		return fail(c, errorStatus(err), err)
	}
	return c.JSON(result)
}

// Status returns the stored composition of one organization, or of all of them.
func (h *Handler) Status(c fiber.Ctx) error {
	report, err := core.BuildStatusReport(c.Context(), h.engine.Store, c.Params("org"))
	if err != nil {
		return fail(c, errorStatus(err), err)
	}
	return c.JSON(report)
}

// Repository returns the current composition of one repository.
func (h *Handler) Repository(c fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return fail(c, fiber.StatusBadRequest, errors.New("repository id must be a positive integer"))
	}
	entity, err := core.RepositoryComposition(c.Context(), h.engine.Store, id)
	if err != nil {
		return fail(c, errorStatus(err), err)
	}
	return c.JSON(entity)
}

// RegisterRepository creates the organization and repository if missing.
func (h *Handler) RegisterRepository(c fiber.Ctx) error {
	var body struct {
		Organization string `json:"organization"`
		Repository   string `json:"repository"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, errors.New("invalid body"))
	}
	if strings.TrimSpace(body.Organization) == "" || strings.TrimSpace(body.Repository) == "" {
		return fail(c, fiber.StatusBadRequest, errors.New("organization and repository are required"))
	}

	org, repo, err := core.RegisterRepository(c.Context(), h.engine.Store, body.Organization, body.Repository)
	if err != nil {
		return fail(c, errorStatus(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"organization": org, "repository": repo})
}

// Ingest stores one payload or an array of them, optionally zstd-compressed.
func (h *Handler) Ingest(c fiber.Ctx) error {
	reqs, err := unitio.ReadRequests(bytes.NewReader(c.Body()))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}
	if len(reqs) == 0 {
		return fail(c, fiber.StatusBadRequest, errors.New("no payloads in body"))
	}
	excluded := 0
	for i := range reqs {
		excluded += len(unitio.Normalize(&reqs[i], h.cfg.Excludes))
	}

	result, err := core.IngestBatch(c.Context(), h.engine, reqs)
	if result == nil {
		return fail(c, errorStatus(err), err)
	}
	result.ExcludedFiles = excluded
	if len(result.Snapshots) == 0 {
		// Unknown repositories are skipped without an error.
		status := fiber.StatusNotFound
		if err != nil {
			if status = errorStatus(err); status == fiber.StatusInternalServerError {
				status = fiber.StatusUnprocessableEntity
			}
		}
		return c.Status(status).JSON(result)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// Attest records a reviewer label and cascades it.
func (h *Handler) Attest(c fiber.Ctx) error {
	var req schema.AttestationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, errors.New("invalid body"))
	}
	result, err := core.Attest(c.Context(), h.engine, req)
	if err != nil {
		return fail(c, errorStatus(err), err)
	}
	return c.JSON(result)
}

// Recalculate reruns the cascade over explicit snapshots.
func (h *Handler) Recalculate(c fiber.Ctx) error {
	var body struct {
		SnapshotIDs []int64 `json:"snapshot_ids"`
		Force       bool    `json:"force"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, errors.New("invalid body"))
	}
	if len(body.SnapshotIDs) == 0 {
		return fail(c, fiber.StatusBadRequest, errors.New("snapshot_ids is required"))
	}
	result, err := core.Recalculate(c.Context(), h.engine, body.SnapshotIDs, body.Force)
	if err != nil {
		return fail(c, errorStatus(err), err)
	}
	return c.JSON(result)
}
