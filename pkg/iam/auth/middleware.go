package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/talentsift/sift/pkg/kernel"
)

// AuthContext is the identity attached to a request after authentication.
type AuthContext struct {
	AccountID kernel.AccountID
	Email     kernel.Email
}

// Middleware validates bearer tokens and stores the AuthContext in locals.
func Middleware(tokenService *TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := extractToken(c)
		if !ok {
			return authErrors.New(ErrMissingToken)
		}

		claims, err := tokenService.ValidateAccessToken(token)
		if err != nil {
			return err
		}

		c.Locals("auth_context", &AuthContext{
			AccountID: claims.AccountID,
			Email:     claims.Email,
		})

		return c.Next()
	}
}

// GetAuthContext extracts the authenticated account from the request context.
func GetAuthContext(c *fiber.Ctx) (*AuthContext, bool) {
	authCtx, ok := c.Locals("auth_context").(*AuthContext)
	return authCtx, ok
}

func extractToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1], true
		}
		return "", false
	}

	// Websocket clients cannot set headers, so allow a query token too.
	if token := c.Query("token"); token != "" {
		return token, true
	}

	return "", false
}
