package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"triage_server/core/port/out"
	"triage_server/core/service/ingest"
	"triage_server/core/service/report"
	"triage_server/pkg/apperr"
)

// RunHandler exposes manual triage triggers and inspection endpoints.
type RunHandler struct {
	runner    *ingest.Runner
	brief     *report.BriefBuilder
	owners    out.OwnerRepository
	threads   out.ThreadRepository
	todos     out.TodoRepository
	events    out.EventRepository
	decisions out.DecisionLog
	agentErrs out.AgentErrorRepository
}

func NewRunHandler(
	runner *ingest.Runner,
	brief *report.BriefBuilder,
	owners out.OwnerRepository,
	threads out.ThreadRepository,
	todos out.TodoRepository,
	events out.EventRepository,
	decisions out.DecisionLog,
	agentErrs out.AgentErrorRepository,
) *RunHandler {
	return &RunHandler{
		runner:    runner,
		brief:     brief,
		owners:    owners,
		threads:   threads,
		todos:     todos,
		events:    events,
		decisions: decisions,
		agentErrs: agentErrs,
	}
}

// Register registers run routes
func (h *RunHandler) Register(router fiber.Router) {
	router.Post("/runs", h.RunAll)

	owners := router.Group("/owners/:owner_id")
	owners.Post("/run", h.RunOwner)
	owners.Post("/brief", h.SendBrief)
	owners.Get("/threads", h.ListThreads)
	owners.Get("/todos", h.ListTodos)
	owners.Get("/events", h.ListEvents)
	owners.Get("/decisions", h.ListDecisions)
	owners.Get("/errors", h.ListErrors)
	owners.Get("/settings", h.GetSettings)
	owners.Put("/settings", h.UpdateSettings)
}

// RunAll triggers a triage run for every active owner.
func (h *RunHandler) RunAll(c *fiber.Ctx) error {
	reports, err := h.runner.RunAll(c.Context())
	if err != nil {
		return err
	}

	byOwner := make(map[string]*ingest.RunReport, len(reports))
	for id, rep := range reports {
		byOwner[id.String()] = rep
	}
	return c.JSON(fiber.Map{"success": true, "reports": byOwner})
}

// RunOwner triggers a triage run for one owner.
func (h *RunHandler) RunOwner(c *fiber.Ctx) error {
	ownerID, err := parseOwnerID(c)
	if err != nil {
		return err
	}

	rep, err := h.runner.RunOwner(c.Context(), ownerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "report": rep})
}

// SendBrief sends the morning brief to one owner immediately.
func (h *RunHandler) SendBrief(c *fiber.Ctx) error {
	ownerID, err := parseOwnerID(c)
	if err != nil {
		return err
	}

	owner, err := h.owners.GetByID(c.Context(), ownerID)
	if err != nil {
		return err
	}

	if err := h.brief.SendBrief(c.Context(), owner); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// ListThreads returns active threads ordered by priority.
func (h *RunHandler) ListThreads(c *fiber.Ctx) error {
	ownerID, err := parseOwnerID(c)
	if err != nil {
		return err
	}

	threads, err := h.threads.ListTop(c.Context(), ownerID, c.QueryInt("limit", 20))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "threads": threads})
}

// ListTodos returns open todos.
func (h *RunHandler) ListTodos(c *fiber.Ctx) error {
	ownerID, err := parseOwnerID(c)
	if err != nil {
		return err
	}

	todos, err := h.todos.ListOpen(c.Context(), ownerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "todos": todos})
}

// ListEvents returns upcoming scheduled events.
func (h *RunHandler) ListEvents(c *fiber.Ctx) error {
	ownerID, err := parseOwnerID(c)
	if err != nil {
		return err
	}

	events, err := h.events.ListUpcoming(c.Context(), ownerID, time.Now(), c.QueryInt("limit", 20))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "events": events})
}

// ListDecisions returns recent triage decisions for audit.
func (h *RunHandler) ListDecisions(c *fiber.Ctx) error {
	ownerID, err := parseOwnerID(c)
	if err != nil {
		return err
	}

	records, err := h.decisions.ListRecent(c.Context(), ownerID, c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "decisions": records})
}

// ListErrors returns recent per-message failures.
func (h *RunHandler) ListErrors(c *fiber.Ctx) error {
	ownerID, err := parseOwnerID(c)
	if err != nil {
		return err
	}

	errs, err := h.agentErrs.ListRecent(c.Context(), ownerID, c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "errors": errs})
}

// GetSettings returns the owner's effective settings.
func (h *RunHandler) GetSettings(c *fiber.Ctx) error {
	ownerID, err := parseOwnerID(c)
	if err != nil {
		return err
	}

	owner, err := h.owners.GetByID(c.Context(), ownerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "settings": owner.Settings})
}

// UpdateSettings replaces the owner's settings.
func (h *RunHandler) UpdateSettings(c *fiber.Ctx) error {
	ownerID, err := parseOwnerID(c)
	if err != nil {
		return err
	}

	owner, err := h.owners.GetByID(c.Context(), ownerID)
	if err != nil {
		return err
	}

	settings := owner.Settings
	if err := c.BodyParser(&settings); err != nil {
		return apperr.BadRequest("invalid settings payload")
	}
	if settings.BriefHour < 0 || settings.BriefHour > 23 {
		return apperr.BadRequest("brief_hour must be between 0 and 23")
	}
	if settings.SimilarityCutoff < 0 || settings.SimilarityCutoff > 1 {
		return apperr.BadRequest("similarity_cutoff must be between 0 and 1")
	}

	if err := h.owners.UpdateSettings(c.Context(), ownerID, settings); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "settings": settings})
}

func parseOwnerID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid owner id")
	}
	return id, nil
}
