package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/shift-desk/internal/api/dto"
	"github.com/spec-kit/shift-desk/internal/auth"
	"github.com/spec-kit/shift-desk/internal/service"
	apperrors "github.com/spec-kit/shift-desk/pkg/util"
)

// UsersHandler manages sign-in, sign-out and session restore.
type UsersHandler struct {
	service *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{service: authService}
}

// Register POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	user, token, exp, err := h.service.Register(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.SessionResponse{
		Token:     token,
		ExpiresAt: exp,
		UserID:    user.ID,
		Email:     user.Email,
	}})
}

// SignIn POST /auth/login.
func (h *UsersHandler) SignIn(c *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	user, token, exp, err := h.service.SignIn(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SessionResponse{
		Token:     token,
		ExpiresAt: exp,
		UserID:    user.ID,
		Email:     user.Email,
	}})
}

// Session GET /auth/session restores identity from the bearer token.
func (h *UsersHandler) Session(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("missing bearer token")
	}
	user, err := h.service.Session(c.Context(), parts[1])
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SessionResponse{
		UserID: user.ID,
		Email:  user.Email,
	}})
}

// SignOut POST /auth/logout.
func (h *UsersHandler) SignOut(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.service.SignOut(c.Context(), principal.User.ID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
