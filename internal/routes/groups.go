package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chema/chema_ledger/internal/campaign"
	"github.com/chema/chema_ledger/internal/membership"
)

// RegisterGroupRoutes wires group membership and group-scoped ledger endpoints.
func RegisterGroupRoutes(r fiber.Router, groups *membership.Handler, campaigns *campaign.Handler, money fiber.Handler) {
	r.Post("/groups", groups.CreateGroup)
	r.Post("/groups/:groupId/members", groups.AddMember)
	r.Get("/groups/:groupId/campaigns", campaigns.ListByGroup)
	r.Get("/groups/:groupId/ledger", campaigns.GroupLedger)
	r.Post("/groups/:groupId/transfers", withMoney(money, campaigns.TransferToGroup)...)
}

// RegisterCampaignRoutes wires campaign lifecycle, contribution and payout endpoints.
func RegisterCampaignRoutes(r fiber.Router, h *campaign.Handler, money fiber.Handler) {
	r.Post("/campaigns", h.Create)
	r.Get("/campaigns", h.ListByGroup)
	r.Get("/campaigns/:campaignId", h.Get)
	r.Post("/campaigns/:campaignId/contributions", withMoney(money, h.Contribute)...)
	r.Post("/campaigns/:campaignId/disburse", withMoney(money, h.Disburse)...)
	r.Post("/campaigns/:campaignId/close", h.Close)
	r.Put("/campaigns/:campaignId/beneficiary", h.AssignBeneficiary)
}
