package analysisapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/talentsift/sift/pkg/iam/auth"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/analysis"
	"github.com/talentsift/sift/screening/analysis/analysissrv"
)

// Handlers provides HTTP handlers for analysis operations
type Handlers struct {
	dispatcher *analysissrv.Dispatcher
}

// NewHandlers creates a new analysis handlers instance
func NewHandlers(dispatcher *analysissrv.Dispatcher) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
	}
}

// Dispatch starts an analysis for one candidate
// POST /api/candidates/:id/analyze
func (h *Handlers) Dispatch(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	candidateID := kernel.NewCandidateID(c.Params("id"))
	if candidateID.IsEmpty() {
		return analysis.ErrTaskNotFound().WithDetail("candidate_id", "missing or empty")
	}

	result, err := h.dispatcher.DispatchByID(c.Context(), authContext.AccountID, candidateID)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// ResumeScreening re-dispatches a batch of pending or failed candidates
// POST /api/jobs/:jobId/resume-screening
func (h *Handlers) ResumeScreening(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	jobID := kernel.NewJobID(c.Params("jobId"))
	if jobID.IsEmpty() {
		return analysis.ErrTaskNotFound().WithDetail("job_id", "missing or empty")
	}

	var req analysis.ResumeScreeningRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.JobID = jobID

	result, err := h.dispatcher.ResumeScreening(c.Context(), authContext.AccountID, req)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// RegisterRoutes registers all analysis routes
func RegisterRoutes(app *fiber.App, handlers *Handlers, authMiddleware fiber.Handler) {
	app.Post("/api/candidates/:id/analyze", authMiddleware, handlers.Dispatch)
	app.Post("/api/jobs/:jobId/resume-screening", authMiddleware, handlers.ResumeScreening)
}
