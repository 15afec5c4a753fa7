package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/talentsift/sift/pkg/config"
	"github.com/talentsift/sift/pkg/errx"
	"github.com/talentsift/sift/pkg/iam/auth"
	"github.com/talentsift/sift/pkg/logx"
	"github.com/talentsift/sift/pkg/metrics"
	"github.com/talentsift/sift/screening/analysis/analysisapi"
	"github.com/talentsift/sift/screening/billing/billingapi"
	"github.com/talentsift/sift/screening/candidate/candidateapi"
	"github.com/talentsift/sift/screening/job/jobapi"
	"github.com/talentsift/sift/screening/realtime/realtimeapi"
	"github.com/talentsift/sift/screening/upload/uploadapi"
)

func main() {
	logx.SetLevel(logx.LevelInfo)
	logx.Info("Starting TalentSift API Server...")

	cfg := config.MustLoad()

	container := NewContainer(cfg)
	defer container.DB.Close()
	defer container.Redis.Close()

	app := fiber.New(fiber.Config{
		AppName:               "TalentSift Screening API",
		DisableStartupMessage: true,
		BodyLimit:             int(cfg.Screening.MaxUploadBytes) * 32,
		ErrorHandler:          globalErrorHandler,
	})

	// Global Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.API.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Webhook-Secret",
		AllowMethods: "GET, POST, PUT, DELETE, PATCH, HEAD",
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(metrics.Middleware())

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"db":     container.DB.Ping() == nil,
			"redis":  container.Redis.Ping(c.Context()).Err() == nil,
		})
	})
	app.Get("/metrics", metrics.Handler())

	// Routes
	authMiddleware := auth.Middleware(container.TokenService)
	billingapi.RegisterRoutes(app, container.BillingHandlers, authMiddleware)
	jobapi.RegisterRoutes(app, container.JobHandlers, authMiddleware)
	candidateapi.RegisterRoutes(app, container.CandidateHandlers, authMiddleware)
	analysisapi.RegisterRoutes(app, container.AnalysisHandlers, authMiddleware)
	uploadapi.RegisterRoutes(app, container.UploadHandlers, authMiddleware)
	realtimeapi.RegisterRoutes(app, container.RealtimeHandlers, authMiddleware)

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	container.Worker.Start(workerCtx)
	go container.Sweeper.Run(workerCtx)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		logx.Infof("Server listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			logx.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c
	logx.Info("Shutting down server...")

	stopWorkers()
	if err := app.Shutdown(); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}

	logx.Info("Server exited")
}

// globalErrorHandler converts internal errors to standard HTTP responses
func globalErrorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{
			"error": e.Message,
			"code":  e.Code,
		})
	}

	if e, ok := err.(*errx.Error); ok {
		return c.Status(e.HTTPStatus).JSON(e.ToHTTPResponse())
	}

	logx.Errorf("Internal Server Error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Internal Server Error",
		"type":    "INTERNAL",
		"code":    "INTERNAL_ERROR",
		"message": "An unexpected error occurred",
	})
}
