package billingapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/talentsift/sift/pkg/iam/auth"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/billing"
	"github.com/talentsift/sift/screening/billing/billingsrv"
)

// Handlers provides HTTP handlers for billing operations
type Handlers struct {
	service       *billingsrv.BillingService
	tokens        *auth.TokenService
	webhookSecret string
}

// NewHandlers creates a new billing handlers instance
func NewHandlers(service *billingsrv.BillingService, tokens *auth.TokenService, webhookSecret string) *Handlers {
	return &Handlers{
		service:       service,
		tokens:        tokens,
		webhookSecret: webhookSecret,
	}
}

// Signup registers a new account on the free tier and returns its
// first access token
// POST /api/billing/accounts
func (h *Handlers) Signup(c *fiber.Ctx) error {
	var req billing.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return billing.ErrInvalidEmail().WithDetail("parse_error", err.Error())
	}

	email := kernel.Email(strings.TrimSpace(strings.ToLower(req.Email)))
	if email.IsEmpty() || !strings.Contains(email.String(), "@") {
		return billing.ErrInvalidEmail()
	}

	account, err := h.service.CreateAccount(c.Context(), email)
	if err != nil {
		return err
	}

	token, err := h.tokens.GenerateAccessToken(account.ID, account.Email)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(billing.SignupResponse{
		AccountID:   account.ID,
		Email:       account.Email,
		Plan:        account.Plan,
		AccessToken: token,
	})
}

// GetUsage returns quota consumption for the authenticated account
// GET /api/billing/usage
func (h *Handlers) GetUsage(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	usage, err := h.service.GetUsage(c.Context(), authContext.AccountID)
	if err != nil {
		return err
	}

	return c.JSON(usage)
}

// HandleWebhook applies a payment provider event
// POST /api/billing/webhook
func (h *Handlers) HandleWebhook(c *fiber.Ctx) error {
	// Provider webhooks authenticate with a shared secret header, not a
	// user token.
	if c.Get("X-Webhook-Secret") != h.webhookSecret {
		return fiber.ErrUnauthorized
	}

	var event billing.WebhookEvent
	if err := c.BodyParser(&event); err != nil {
		return billing.ErrUnknownWebhookEvent().WithDetail("parse_error", err.Error())
	}

	if err := h.service.HandleWebhook(c.Context(), event); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RegisterRoutes registers all billing routes
func RegisterRoutes(app *fiber.App, handlers *Handlers, authMiddleware fiber.Handler) {
	api := app.Group("/api/billing")

	api.Post("/accounts", handlers.Signup)
	api.Get("/usage", authMiddleware, handlers.GetUsage)
	api.Post("/webhook", handlers.HandleWebhook)
}
