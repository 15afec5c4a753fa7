package jobapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/talentsift/sift/pkg/iam/auth"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/job"
	"github.com/talentsift/sift/screening/job/jobsrv"
)

// Handlers provides HTTP handlers for job operations
type Handlers struct {
	service *jobsrv.JobService
}

// NewHandlers creates a new job handlers instance
func NewHandlers(service *jobsrv.JobService) *Handlers {
	return &Handlers{
		service: service,
	}
}

// Create creates a new job
// POST /api/jobs
func (h *Handlers) Create(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	var req job.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return job.ErrInvalidJob().WithDetail("parse_error", err.Error())
	}

	created, err := h.service.Create(c.Context(), authContext.AccountID, req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetByID retrieves a job
// GET /api/jobs/:id
func (h *Handlers) GetByID(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	id := kernel.NewJobID(c.Params("id"))
	if id.IsEmpty() {
		return job.ErrJobNotFound().WithDetail("id", "missing or empty")
	}

	result, err := h.service.GetByID(c.Context(), authContext.AccountID, id)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// List retrieves the account's jobs
// GET /api/jobs
func (h *Handlers) List(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	opts := kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}

	result, err := h.service.List(c.Context(), authContext.AccountID, opts)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// Update patches a job
// PATCH /api/jobs/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	id := kernel.NewJobID(c.Params("id"))
	if id.IsEmpty() {
		return job.ErrJobNotFound().WithDetail("id", "missing or empty")
	}

	var req job.UpdateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return job.ErrInvalidJob().WithDetail("parse_error", err.Error())
	}

	result, err := h.service.Update(c.Context(), authContext.AccountID, id, req)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// Delete removes a job
// DELETE /api/jobs/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	id := kernel.NewJobID(c.Params("id"))
	if id.IsEmpty() {
		return job.ErrJobNotFound().WithDetail("id", "missing or empty")
	}

	if err := h.service.Delete(c.Context(), authContext.AccountID, id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GenerateQuestions builds an assessment question set
// POST /api/jobs/:id/questions
func (h *Handlers) GenerateQuestions(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	id := kernel.NewJobID(c.Params("id"))
	if id.IsEmpty() {
		return job.ErrJobNotFound().WithDetail("id", "missing or empty")
	}

	var req job.GenerateQuestionsRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return job.ErrInvalidJob().WithDetail("parse_error", err.Error())
	}

	result, err := h.service.GenerateQuestions(c.Context(), authContext.AccountID, id, req.Count)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// RegisterRoutes registers all job routes
func RegisterRoutes(app *fiber.App, handlers *Handlers, authMiddleware fiber.Handler) {
	api := app.Group("/api/jobs", authMiddleware)

	api.Post("/", handlers.Create)
	api.Get("/", handlers.List)
	api.Get("/:id", handlers.GetByID)
	api.Patch("/:id", handlers.Update)
	api.Delete("/:id", handlers.Delete)
	api.Post("/:id/questions", handlers.GenerateQuestions)
}
