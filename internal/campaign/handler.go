package campaign

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chema/chema_ledger/internal/httpx"
	"github.com/chema/chema_ledger/internal/ledger"
	"github.com/chema/chema_ledger/internal/settlement"
)

// Handler exposes campaign, contribution and payout endpoints.
type Handler struct {
	campaigns *Service
	engine    *settlement.Engine
	validator *httpx.Validator
}

// NewHandler constructs a campaign handler.
func NewHandler(campaigns *Service, engine *settlement.Engine, validator *httpx.Validator) *Handler {
	return &Handler{campaigns: campaigns, engine: engine, validator: validator}
}

type createRequest struct {
	GroupID       string `json:"group_id"`
	Title         string `json:"title" validate:"required,max=200"`
	BeneficiaryID string `json:"beneficiary_id"`
}

type contributeRequest struct {
	Amount    string `json:"amount" validate:"required,money"`
	ClientRef string `json:"client_ref" validate:"max=128"`
}

type groupTransferRequest struct {
	CampaignID string `json:"campaign_id" validate:"required"`
	Amount     string `json:"amount" validate:"required,money"`
	ClientRef  string `json:"client_ref" validate:"max=128"`
}

type disburseRequest struct {
	ClientRef string `json:"client_ref" validate:"max=128"`
}

type beneficiaryRequest struct {
	BeneficiaryID string `json:"beneficiary_id" validate:"required"`
}

// Create opens a campaign in the body's group or the request's active group.
func (h *Handler) Create(c *fiber.Ctx) error {
	uid, err := httpx.RequireUser(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return httpx.Error(c, err)
	}
	groupID := req.GroupID
	if groupID == "" {
		groupID = httpx.ActiveGroup(c)
	}
	created, err := h.campaigns.Create(c.UserContext(), uid, CreateInput{
		GroupID:       groupID,
		Title:         req.Title,
		BeneficiaryID: req.BeneficiaryID,
	})
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.Status(http.StatusCreated).JSON(created)
}

// Get returns a campaign together with its derived totals.
func (h *Handler) Get(c *fiber.Ctx) error {
	found, err := h.campaigns.Get(c.UserContext(), c.Params("campaignId"))
	if err != nil {
		return httpx.Error(c, err)
	}
	totals, err := h.engine.CampaignTotals(c.UserContext(), found.ID)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"campaign": found,
		"totals":   totalsResponse(totals),
	})
}

// ListByGroup lists the campaigns of a group.
func (h *Handler) ListByGroup(c *fiber.Ctx) error {
	list, err := h.campaigns.ListByGroup(c.UserContext(), groupParam(c))
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"campaigns": list})
}

// Contribute moves funds from the caller's wallet into the campaign.
func (h *Handler) Contribute(c *fiber.Ctx) error {
	uid, err := httpx.RequireUser(c)
	if err != nil {
		return err
	}
	var req contributeRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return httpx.Error(c, err)
	}
	amount, err := ledger.ParseAmount("amount", req.Amount)
	if err != nil {
		return httpx.Error(c, err)
	}
	res, err := h.engine.Contribute(c.UserContext(), settlement.ContributionInput{
		Principal:  uid,
		CampaignID: c.Params("campaignId"),
		Amount:     amount,
		ClientRef:  httpx.ClientRef(c, req.ClientRef),
	})
	return writeContribution(c, res, err)
}

// TransferToGroup funds a campaign of the group named in the path.
func (h *Handler) TransferToGroup(c *fiber.Ctx) error {
	uid, err := httpx.RequireUser(c)
	if err != nil {
		return err
	}
	var req groupTransferRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return httpx.Error(c, err)
	}
	amount, err := ledger.ParseAmount("amount", req.Amount)
	if err != nil {
		return httpx.Error(c, err)
	}
	res, err := h.engine.TransferToGroup(c.UserContext(), settlement.GroupTransferInput{
		Principal:  uid,
		GroupID:    groupParam(c),
		CampaignID: req.CampaignID,
		Amount:     amount,
		ClientRef:  httpx.ClientRef(c, req.ClientRef),
	})
	return writeContribution(c, res, err)
}

// Disburse pays the campaign balance to its beneficiary.
func (h *Handler) Disburse(c *fiber.Ctx) error {
	uid, err := httpx.RequireUser(c)
	if err != nil {
		return err
	}
	var req disburseRequest
	if len(c.Body()) > 0 {
		if err := h.validator.Bind(c, &req); err != nil {
			return httpx.Error(c, err)
		}
	}
	res, err := h.engine.Disburse(c.UserContext(), settlement.DisburseInput{
		CampaignID: c.Params("campaignId"),
		Actor:      uid,
		ClientRef:  httpx.ClientRef(c, req.ClientRef),
	})
	status := http.StatusCreated
	if err != nil {
		if !errors.Is(err, ledger.ErrDuplicateTransaction) {
			return httpx.Error(c, err)
		}
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"status":         res.Status,
		"amount":         res.Amount.StringFixed(ledger.Scale),
		"beneficiary_id": res.BeneficiaryID,
		"transaction":    res.Transaction,
	})
}

// Close stops contributions to the campaign.
func (h *Handler) Close(c *fiber.Ctx) error {
	uid, err := httpx.RequireUser(c)
	if err != nil {
		return err
	}
	closed, err := h.campaigns.Close(c.UserContext(), uid, c.Params("campaignId"))
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.Status(http.StatusOK).JSON(closed)
}

// AssignBeneficiary designates the payout beneficiary.
func (h *Handler) AssignBeneficiary(c *fiber.Ctx) error {
	uid, err := httpx.RequireUser(c)
	if err != nil {
		return err
	}
	var req beneficiaryRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return httpx.Error(c, err)
	}
	updated, err := h.campaigns.AssignBeneficiary(c.UserContext(), uid, c.Params("campaignId"), req.BeneficiaryID)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.Status(http.StatusOK).JSON(updated)
}

// GroupLedger returns the group's completed history and balance.
func (h *Handler) GroupLedger(c *fiber.Ctx) error {
	gl, err := h.engine.GroupLedger(c.UserContext(), groupParam(c))
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"group_id":     gl.GroupID,
		"balance":      gl.Balance.StringFixed(ledger.Scale),
		"transactions": gl.Transactions,
	})
}

func writeContribution(c *fiber.Ctx, res settlement.ContributionResult, err error) error {
	status := http.StatusCreated
	if err != nil {
		if !errors.Is(err, ledger.ErrDuplicateTransaction) {
			return httpx.Error(c, err)
		}
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"status":       res.Status,
		"balance":      res.Balance.StringFixed(ledger.Scale),
		"total_raised": res.TotalRaised.StringFixed(ledger.Scale),
		"transaction":  res.Transaction,
		"contribution": res.Contribution,
	})
}

func totalsResponse(t ledger.CampaignTotals) fiber.Map {
	return fiber.Map{
		"raised":    t.Raised.StringFixed(ledger.Scale),
		"disbursed": t.Disbursed.StringFixed(ledger.Scale),
		"balance":   t.Balance.StringFixed(ledger.Scale),
	}
}

// groupParam resolves the group from the path, falling back to the active group.
func groupParam(c *fiber.Ctx) string {
	if gid := c.Params("groupId"); gid != "" {
		return gid
	}
	return httpx.ActiveGroup(c)
}
