package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chema/chema_ledger/internal/wallet"
)

// RegisterWalletRoutes wires the caller's wallet endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, money fiber.Handler) {
	r.Get("/wallet", h.Me)
	r.Get("/wallet/transactions", h.Transactions)
	r.Post("/wallet/topup", withMoney(money, h.TopUp)...)
}
