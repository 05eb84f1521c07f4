// Package payments exposes peer-to-peer transfers.
package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chema/chema_ledger/internal/httpx"
	"github.com/chema/chema_ledger/internal/ledger"
	"github.com/chema/chema_ledger/internal/settlement"
)

// Handler exposes payment endpoints.
type Handler struct {
	engine    *settlement.Engine
	validator *httpx.Validator
}

// NewHandler constructs a payment handler.
func NewHandler(engine *settlement.Engine, validator *httpx.Validator) *Handler {
	return &Handler{engine: engine, validator: validator}
}

type transferRequest struct {
	To        string `json:"to" validate:"required,uuid"`
	Amount    string `json:"amount" validate:"required,money"`
	ClientRef string `json:"client_ref" validate:"max=128"`
}

// P2P sends funds from the caller to another principal.
func (h *Handler) P2P(c *fiber.Ctx) error {
	uid, err := httpx.RequireUser(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return httpx.Error(c, err)
	}
	amount, err := ledger.ParseAmount("amount", req.Amount)
	if err != nil {
		return httpx.Error(c, err)
	}

	res, err := h.engine.SendPeer(c.UserContext(), settlement.PeerInput{
		From:      uid,
		To:        req.To,
		Amount:    amount,
		ClientRef: httpx.ClientRef(c, req.ClientRef),
	})
	status := http.StatusCreated
	if err != nil {
		if !errors.Is(err, ledger.ErrDuplicateTransaction) {
			return httpx.Error(c, err)
		}
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   res.Status,
		"balance":  res.Balance.StringFixed(ledger.Scale),
		"sent":     res.Sent,
		"received": res.Received,
	})
}
