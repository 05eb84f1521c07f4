package identity

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chema/chema_ledger/internal/httpx"
	"github.com/chema/chema_ledger/internal/ledger"
)

// WalletProvisioner creates the member's wallet at signup.
type WalletProvisioner interface {
	EnsureWallet(ctx context.Context, principal string) (ledger.Wallet, error)
}

// Handler exposes identity endpoints.
type Handler struct {
	service   *Service
	wallets   WalletProvisioner
	validator *httpx.Validator
	logger    *slog.Logger
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service, wallets WalletProvisioner, validator *httpx.Validator, logger *slog.Logger) *Handler {
	return &Handler{service: service, wallets: wallets, validator: validator, logger: logger}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"max=120"`
}

type authenticateRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	WalletID    string `json:"wallet_id,omitempty"`
	ExternalID  string `json:"wallet_external_id,omitempty"`
}

// Register handles member onboarding and provisions the wallet.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return httpx.Error(c, err)
	}
	user, err := h.service.Register(c.UserContext(), Credentials{Email: req.Email, Password: req.Password, DisplayName: req.DisplayName})
	if err != nil {
		return httpx.Error(c, err)
	}
	resp := authResponse{UserID: user.ID, Email: user.Email, DisplayName: user.DisplayName}
	if h.wallets != nil {
		w, err := h.wallets.EnsureWallet(c.UserContext(), user.ID)
		if err != nil {
			// Lazily created on first monetary use.
			h.logger.Warn("wallet provisioning failed", slog.String("user_id", user.ID), slog.Any("error", err))
		} else {
			resp.WalletID = w.ID
			resp.ExternalID = w.ExternalID
		}
	}
	h.logger.Info("identity.register completed",
		slog.String("user_id", user.ID),
		slog.String("wallet_id", resp.WalletID),
		slog.Int("status", http.StatusCreated),
	)
	return c.Status(http.StatusCreated).JSON(resp)
}

// Authenticate verifies login credentials without issuing tokens.
func (h *Handler) Authenticate(c *fiber.Ctx) error {
	var req authenticateRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return httpx.Error(c, err)
	}
	user, err := h.service.Authenticate(c.UserContext(), Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		if err == ErrInvalidCredentials {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		return httpx.Error(c, err)
	}
	return c.Status(http.StatusOK).JSON(authResponse{UserID: user.ID, Email: user.Email, DisplayName: user.DisplayName})
}
