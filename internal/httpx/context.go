package httpx

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// Locals keys shared by middleware and handlers.
const (
	UserIDKey       = "user_id"
	TokenVersionKey = "token_version"
	GroupIDKey      = "group_id"
)

// IdempotencyKeyHeader is the header carrying the caller's retry token.
const IdempotencyKeyHeader = "Idempotency-Key"

// UserID returns the authenticated principal of the request.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(UserIDKey).(string)
	return uid
}

// ActiveGroup returns the group selected for this request, if any.
func ActiveGroup(c *fiber.Ctx) string {
	gid, _ := c.Locals(GroupIDKey).(string)
	return gid
}

// ClientRef prefers the reference sent in the body and falls back to the
// Idempotency-Key header. The header value is copied since it is persisted.
func ClientRef(c *fiber.Ctx, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return utils.CopyString(c.Get(IdempotencyKeyHeader))
}

// RequireUser returns the authenticated principal or a 401 error.
func RequireUser(c *fiber.Ctx) (string, error) {
	uid := UserID(c)
	if uid == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return uid, nil
}
