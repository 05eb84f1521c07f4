package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/chema/chema_ledger/internal/auth"
	"github.com/chema/chema_ledger/internal/httpx"
)

// JWTAuth returns a middleware that validates JWT access tokens and checks token version.
func JWTAuth(tokens *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := tokens.ParseAccess(c.UserContext(), tokenStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(httpx.UserIDKey, claims.Subject)
		c.Locals(httpx.TokenVersionKey, claims.Version)
		return c.Next()
	}
}
