// Package wallet exposes the caller's wallet over HTTP.
package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chema/chema_ledger/internal/httpx"
	"github.com/chema/chema_ledger/internal/ledger"
	"github.com/chema/chema_ledger/internal/settlement"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	engine    *settlement.Engine
	validator *httpx.Validator
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(engine *settlement.Engine, validator *httpx.Validator) *Handler {
	return &Handler{engine: engine, validator: validator}
}

type topUpRequest struct {
	Amount     string `json:"amount" validate:"required,money"`
	VoucherRef string `json:"voucher_ref" validate:"max=64"`
	ClientRef  string `json:"client_ref" validate:"max=128"`
}

type walletResponse struct {
	WalletID   string `json:"wallet_id"`
	ExternalID string `json:"external_id"`
	Balance    string `json:"balance"`
}

// Me returns the caller's wallet and its derived balance.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, err := httpx.RequireUser(c)
	if err != nil {
		return err
	}
	w, err := h.engine.EnsureWallet(c.UserContext(), uid)
	if err != nil {
		return httpx.Error(c, err)
	}
	balance, err := h.engine.GetBalance(c.UserContext(), uid)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.Status(http.StatusOK).JSON(walletResponse{
		WalletID:   w.ID,
		ExternalID: w.ExternalID,
		Balance:    balance.StringFixed(ledger.Scale),
	})
}

// Transactions lists the caller's ledger rows, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	uid, err := httpx.RequireUser(c)
	if err != nil {
		return err
	}
	rows, err := h.engine.ListTransactions(c.UserContext(), uid)
	if err != nil {
		return httpx.Error(c, err)
	}
	if rows == nil {
		rows = []ledger.Transaction{}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": rows})
}

// TopUp redeems a voucher into the caller's wallet.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	uid, err := httpx.RequireUser(c)
	if err != nil {
		return err
	}
	var req topUpRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return httpx.Error(c, err)
	}
	amount, err := ledger.ParseAmount("amount", req.Amount)
	if err != nil {
		return httpx.Error(c, err)
	}
	res, err := h.engine.TopUp(c.UserContext(), settlement.TopUpInput{
		Principal:  uid,
		Amount:     amount,
		VoucherRef: req.VoucherRef,
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
		"status":      res.Status,
		"balance":     res.Balance.StringFixed(ledger.Scale),
		"transaction": res.Transaction,
	})
}
