package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chema/chema_ledger/internal/payments"
)

// RegisterPaymentRoutes wires payment endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, money fiber.Handler) {
	r.Post("/payments/p2p", withMoney(money, h.P2P)...)
}
