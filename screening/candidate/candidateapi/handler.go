package candidateapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/talentsift/sift/pkg/iam/auth"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/candidate"
	"github.com/talentsift/sift/screening/candidate/candidatesrv"
)

// Handlers provides HTTP handlers for candidate operations
type Handlers struct {
	service *candidatesrv.CandidateService
}

// NewHandlers creates a new candidate handlers instance
func NewHandlers(service *candidatesrv.CandidateService) *Handlers {
	return &Handlers{
		service: service,
	}
}

// ListByJob lists candidates for a job
// GET /api/jobs/:jobId/candidates
func (h *Handlers) ListByJob(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	jobID := kernel.NewJobID(c.Params("jobId"))
	if jobID.IsEmpty() {
		return candidate.ErrCandidateNotFound().WithDetail("job_id", "missing or empty")
	}

	opts := kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}

	result, err := h.service.ListByJob(c.Context(), authContext.AccountID, jobID, opts)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// GetByID retrieves a single candidate
// GET /api/candidates/:id
func (h *Handlers) GetByID(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	id := kernel.NewCandidateID(c.Params("id"))
	if id.IsEmpty() {
		return candidate.ErrCandidateNotFound().WithDetail("id", "missing or empty")
	}

	result, err := h.service.GetByID(c.Context(), authContext.AccountID, id)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// Update patches user-editable candidate fields
// PATCH /api/candidates/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	id := kernel.NewCandidateID(c.Params("id"))
	if id.IsEmpty() {
		return candidate.ErrCandidateNotFound().WithDetail("id", "missing or empty")
	}

	var req candidate.UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Update(c.Context(), authContext.AccountID, id, req)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// Delete removes one or more candidates
// DELETE /api/candidates
func (h *Handlers) Delete(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	var req candidate.DeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	deleted, err := h.service.Delete(c.Context(), authContext.AccountID, req.IDs)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"deleted": deleted})
}

// SignedCVURL issues a short-lived download link for the raw CV
// GET /api/candidates/:id/cv-url
func (h *Handlers) SignedCVURL(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	id := kernel.NewCandidateID(c.Params("id"))
	if id.IsEmpty() {
		return candidate.ErrCandidateNotFound().WithDetail("id", "missing or empty")
	}

	result, err := h.service.SignedCVURL(c.Context(), authContext.AccountID, id)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// RegisterRoutes registers all candidate routes
func RegisterRoutes(app *fiber.App, handlers *Handlers, authMiddleware fiber.Handler) {
	app.Get("/api/jobs/:jobId/candidates", authMiddleware, handlers.ListByJob)

	api := app.Group("/api/candidates", authMiddleware)
	api.Get("/:id", handlers.GetByID)
	api.Patch("/:id", handlers.Update)
	api.Delete("/", handlers.Delete)
	api.Get("/:id/cv-url", handlers.SignedCVURL)
}
