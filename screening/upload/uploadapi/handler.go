package uploadapi

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/talentsift/sift/pkg/iam/auth"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/upload"
	"github.com/talentsift/sift/screening/upload/uploadsrv"
)

// Handlers provides HTTP handlers for CV upload batches
type Handlers struct {
	service *uploadsrv.UploadService
}

// NewHandlers creates a new upload handlers instance
func NewHandlers(service *uploadsrv.UploadService) *Handlers {
	return &Handlers{
		service: service,
	}
}

// StartBatch accepts a multipart batch of CV files for a job
// POST /api/jobs/:jobId/uploads
func (h *Handlers) StartBatch(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	jobID := kernel.NewJobID(c.Params("jobId"))
	if jobID.IsEmpty() {
		return upload.ErrBatchNotFound().WithDetail("job_id", "missing or empty")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return upload.ErrEmptyBatch().WithDetail("error", err.Error())
	}

	var files []upload.File
	for _, header := range form.File["files"] {
		f, err := header.Open()
		if err != nil {
			return upload.ErrEmptyBatch().
				WithDetail("filename", header.Filename).
				WithDetail("error", err.Error())
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return upload.ErrEmptyBatch().
				WithDetail("filename", header.Filename).
				WithDetail("error", err.Error())
		}
		files = append(files, upload.File{
			Filename: header.Filename,
			Data:     data,
		})
	}

	batch, err := h.service.StartBatch(c.Context(), authContext.AccountID, jobID, files)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(upload.NewBatchResponse(batch))
}

// GetBatch returns the processing state of a batch
// GET /api/uploads/:id
func (h *Handlers) GetBatch(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	id := kernel.NewBatchID(c.Params("id"))
	if id.IsEmpty() {
		return upload.ErrBatchNotFound().WithDetail("id", "missing or empty")
	}

	batch, err := h.service.GetBatch(authContext.AccountID, id)
	if err != nil {
		return err
	}

	return c.JSON(upload.NewBatchResponse(batch))
}

// CancelItem cancels one queued file in a batch
// POST /api/uploads/:id/items/:itemId/cancel
func (h *Handlers) CancelItem(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	id := kernel.NewBatchID(c.Params("id"))
	itemID := c.Params("itemId")
	if id.IsEmpty() || itemID == "" {
		return upload.ErrItemNotFound()
	}

	if err := h.service.CancelItem(authContext.AccountID, id, itemID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RegisterRoutes registers the upload routes
func RegisterRoutes(app *fiber.App, handlers *Handlers, authMiddleware fiber.Handler) {
	api := app.Group("/api", authMiddleware)

	api.Post("/jobs/:jobId/uploads", handlers.StartBatch)

	uploads := api.Group("/uploads")
	uploads.Get("/:id", handlers.GetBatch)
	uploads.Post("/:id/items/:itemId/cancel", handlers.CancelItem)
}
