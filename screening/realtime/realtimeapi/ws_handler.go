package realtimeapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/talentsift/sift/pkg/iam/auth"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/pkg/logx"
	"github.com/talentsift/sift/pkg/metrics"
	"github.com/talentsift/sift/screening/job"
	"github.com/talentsift/sift/screening/realtime"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// JobReader checks that the account owns the job it subscribes to
type JobReader interface {
	GetByID(ctx context.Context, accountID kernel.AccountID, id kernel.JobID) (*job.Job, error)
}

// Handlers provides the websocket endpoint for realtime candidate updates
type Handlers struct {
	subscriber realtime.Subscriber
	jobs       JobReader
}

// NewHandlers creates a new realtime handlers instance
func NewHandlers(subscriber realtime.Subscriber, jobs JobReader) *Handlers {
	return &Handlers{
		subscriber: subscriber,
		jobs:       jobs,
	}
}

// Upgrade gates the websocket upgrade behind authentication and job
// ownership, then stores what the connection handler needs in locals.
func (h *Handlers) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	jobID := kernel.NewJobID(c.Params("jobId"))
	if jobID.IsEmpty() {
		return fiber.ErrBadRequest
	}

	// One account must not be able to watch another account's job.
	if _, err := h.jobs.GetByID(c.Context(), authContext.AccountID, jobID); err != nil {
		return err
	}

	c.Locals("job_id", jobID)
	return c.Next()
}

// Stream forwards job events to the connected client until it goes away
func (h *Handlers) Stream(conn *websocket.Conn) {
	jobID, ok := conn.Locals("job_id").(kernel.JobID)
	if !ok {
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := h.subscriber.Subscribe(ctx, jobID)
	if err != nil {
		logx.Errorf("websocket subscribe failed for job %s: %v", jobID, err)
		_ = conn.Close()
		return
	}
	defer sub.Close()

	metrics.WebsocketConnections.Inc()
	defer metrics.WebsocketConnections.Dec()
	logx.Debugf("websocket subscriber attached to job %s", jobID)

	// Reader goroutine: we never expect client messages, but reading is
	// what surfaces close frames and keeps pong handling alive.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				logx.Debugf("websocket write failed for job %s: %v", jobID, err)
				return
			}
		}
	}
}

// RegisterRoutes registers the realtime websocket route
func RegisterRoutes(app *fiber.App, handlers *Handlers, authMiddleware fiber.Handler) {
	app.Get("/ws/jobs/:jobId", authMiddleware, handlers.Upgrade, websocket.New(handlers.Stream))
}
