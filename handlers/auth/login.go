package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/utils/response"
)

// LoginRequest represents a login request; Login is a username or email
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Login == "" || req.Password == "" {
		return response.BadRequest(c, "Login and password are required")
	}

	ctx := c.UserContext()
	ip := c.IP()

	account, err := h.accounts.Authenticate(ctx, req.Login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			if h.bruteForceProtection != nil {
				_ = h.bruteForceProtection.RecordFailedAttempt(ctx, ip, req.Login)
			}
			return response.Unauthorized(c, "Invalid username or password")
		case errors.Is(err, services.ErrAccountInactive):
			return response.Forbidden(c, "Account is inactive")
		default:
			return response.FromError(c, err)
		}
	}

	// Clear failed attempts on successful login
	if h.bruteForceProtection != nil {
		_ = h.bruteForceProtection.RecordSuccessfulAttempt(ctx, ip, req.Login)
	}

	return h.issueToken(c, account, fiber.StatusOK)
}
