package membership

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"

	"github.com/chema/chema_ledger/internal/httpx"
	"github.com/chema/chema_ledger/internal/ledger"
)

// Handler exposes minimal group seeding endpoints.
type Handler struct {
	repo      Repository
	validator *httpx.Validator
}

// NewHandler constructs a membership handler.
func NewHandler(repo Repository, validator *httpx.Validator) *Handler {
	return &Handler{repo: repo, validator: validator}
}

type addMemberRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role" validate:"omitempty,oneof=member admin"`
}

// CreateGroup allocates a group id and makes the caller its first admin.
func (h *Handler) CreateGroup(c *fiber.Ctx) error {
	uid, err := httpx.RequireUser(c)
	if err != nil {
		return err
	}
	groupID := uuid.NewString()
	if err := h.repo.Add(c.UserContext(), Membership{GroupID: groupID, UserID: uid, Role: RoleAdmin, IsActive: true}); err != nil {
		return httpx.Error(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"group_id":        groupID,
		"external_wallet": ledger.ExternalWalletID(groupID),
		"admin_principal": uid,
	})
}

// AddMember adds a principal to the group. Admins only.
func (h *Handler) AddMember(c *fiber.Ctx) error {
	uid, err := httpx.RequireUser(c)
	if err != nil {
		return err
	}
	groupID := utils.CopyString(c.Params("groupId"))
	admin, err := h.repo.IsGroupAdmin(c.UserContext(), uid, groupID)
	if err != nil {
		return httpx.Error(c, err)
	}
	if !admin {
		return httpx.Error(c, fmt.Errorf("%w: group admin required", ledger.ErrUnauthorized))
	}
	var req addMemberRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return httpx.Error(c, err)
	}
	role := req.Role
	if role == "" {
		role = RoleMember
	}
	m := Membership{GroupID: groupID, UserID: req.UserID, Role: role, IsActive: true}
	if err := h.repo.Add(c.UserContext(), m); err != nil {
		return httpx.Error(c, err)
	}
	return c.Status(http.StatusCreated).JSON(m)
}
