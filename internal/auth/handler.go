package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chema/chema_ledger/internal/httpx"
	"github.com/chema/chema_ledger/internal/identity"
)

// Handler exposes auth endpoints for login/refresh/logout.
type Handler struct {
	ids       *identity.Service
	svc       *Service
	wallets   identity.WalletProvisioner
	validator *httpx.Validator
}

func NewHandler(ids *identity.Service, svc *Service, wallets identity.WalletProvisioner, validator *httpx.Validator) *Handler {
	return &Handler{ids: ids, svc: svc, wallets: wallets, validator: validator}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
	WalletID     string `json:"wallet_id,omitempty"`
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return httpx.Error(c, err)
	}
	user, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	pair, err := h.svc.Login(user)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	var wid string
	if h.wallets != nil {
		if w, err := h.wallets.EnsureWallet(c.UserContext(), user.ID); err == nil {
			wid = w.ID
		}
	}
	return c.Status(http.StatusOK).JSON(loginResponse{UserID: user.ID, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, ExpiresIn: pair.ExpiresIn, TokenVersion: user.TokenVersion, WalletID: wid})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return httpx.Error(c, err)
	}
	token, exp, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access_token": token, "expires_in": exp})
}

// Logout invalidates the caller's tokens by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, err := httpx.RequireUser(c)
	if err != nil {
		return err
	}
	if err := h.svc.Logout(c.UserContext(), uid); err != nil {
		return httpx.Error(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
