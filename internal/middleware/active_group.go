package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/chema/chema_ledger/internal/httpx"
	"github.com/chema/chema_ledger/internal/membership"
)

// GroupHeader selects the burial society a request acts within.
const GroupHeader = "X-Group-ID"

// ActiveGroup resolves the optional X-Group-ID header. The caller must be a
// member of the named group; requests without the header pass through.
func ActiveGroup(members membership.Repository, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		gid := c.Get(GroupHeader)
		if gid == "" {
			return c.Next()
		}
		if _, err := uuid.Parse(gid); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid X-Group-ID header")
		}
		uid := httpx.UserID(c)
		if uid == "" {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		ok, err := members.IsMember(c.UserContext(), uid, gid)
		if err != nil {
			logger.Error("membership lookup failed", slog.String("group_id", gid), slog.Any("error", err))
			return fiber.NewError(http.StatusInternalServerError, "membership lookup failed")
		}
		if !ok {
			return fiber.NewError(http.StatusForbidden, "not a member of this group")
		}
		c.Locals(httpx.GroupIDKey, gid)
		return c.Next()
	}
}
