package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/utils/middleware"
	"github.com/sahilchouksey/univast-api/utils/response"
)

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// GetProfile returns the authenticated account
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	account, ok := middleware.GetAccount(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	return response.Success(c, account.ToView())
}

// ChangePassword verifies the current password and replaces it. Existing tokens stop working.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	account, ok := middleware.GetAccount(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.NewPassword == "" {
		return response.BadRequest(c, "New password is required")
	}

	if _, err := h.accounts.Authenticate(c.UserContext(), account.Username, req.CurrentPassword); err != nil {
		return response.Unauthorized(c, "Current password is incorrect")
	}

	updated, err := h.accounts.Update(c.UserContext(), account.ID, services.UpdateAccountInput{
		Password: &req.NewPassword,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return h.issueToken(c, updated, fiber.StatusOK)
}

// Logout revokes the presented token until it would have expired anyway
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	account, ok := middleware.GetAccount(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	claims, ok := middleware.GetClaims(c)
	if !ok || claims.ID == "" {
		return response.BadRequest(c, "No token ID found")
	}

	if h.revocations == nil {
		return response.Success(c, fiber.Map{"message": "Successfully logged out"})
	}

	expiresAt := time.Now().Add(h.jwtManager.Expiry())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := h.revocations.RevokeToken(c.UserContext(), claims.ID, account.ID, expiresAt, model.RevokeReasonLogout); err != nil {
		return response.InternalServerError(c, "Failed to logout")
	}

	return response.Success(c, fiber.Map{
		"message": "Successfully logged out",
	})
}
