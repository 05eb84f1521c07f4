package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chema/chema_ledger/internal/identity"
)

// RegisterIdentityRoutes wires identity endpoints. Registration provisions the wallet.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Post("/identity/register", h.Register)
	r.Post("/identity/authenticate", h.Authenticate)
}
