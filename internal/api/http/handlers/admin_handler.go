package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pantry-service/internal/api/dto"
	"github.com/spec-kit/pantry-service/internal/domain"
	"github.com/spec-kit/pantry-service/internal/service"
	apperrors "github.com/spec-kit/pantry-service/pkg/util/errorutil"
)

// AdminHandler exposes account administration under /admin.
type AdminHandler struct {
	auth *service.AuthService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(authService *service.AuthService) *AdminHandler {
	return &AdminHandler{auth: authService}
}

// UpdateStatus handles PATCH /admin/users/:id/status.
func (h *AdminHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	var req dto.UpdateUserStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	if req.IsActive == nil {
		return apperrors.NewValidationError("is_active required", nil)
	}

	user, err := h.auth.SetUserActive(c.UserContext(), principal.UserID, c.Params("id"), *req.IsActive)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

// UpdateRole handles PATCH /admin/users/:id/role.
func (h *AdminHandler) UpdateRole(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	var req dto.UpdateUserRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		return apperrors.NewValidationError("unknown role", map[string]any{"role": req.Role})
	}

	user, err := h.auth.SetUserRole(c.UserContext(), principal.UserID, c.Params("id"), role)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}
