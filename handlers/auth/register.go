package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services"
	authutil "github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/sahilchouksey/univast-api/utils/middleware"
	"github.com/sahilchouksey/univast-api/utils/response"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	accounts             *services.AccountService
	jwtManager           *authutil.JWTManager
	revocations          *authutil.RevocationStore
	bruteForceProtection *middleware.BruteForceProtection
}

// NewAuthHandler creates a new auth handler. revocations and bruteForceProtection may be nil.
func NewAuthHandler(accounts *services.AccountService, jwtManager *authutil.JWTManager, revocations *authutil.RevocationStore, bruteForceProtection *middleware.BruteForceProtection) *AuthHandler {
	return &AuthHandler{
		accounts:             accounts,
		jwtManager:           jwtManager,
		revocations:          revocations,
		bruteForceProtection: bruteForceProtection,
	}
}

// TokenResponse is returned by register and login
type TokenResponse struct {
	Account     model.AccountView `json:"account"`
	AccessToken string            `json:"access_token"`
	ExpiresIn   int               `json:"expires_in"` // in seconds
}

func (h *AuthHandler) issueToken(c *fiber.Ctx, account *model.Account, status int) error {
	accessToken, _, err := h.jwtManager.GenerateAccessToken(account.ID, account.Username, string(account.Role), account.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate access token")
	}

	res := TokenResponse{
		Account:     account.ToView(),
		AccessToken: accessToken,
		ExpiresIn:   int(h.jwtManager.Expiry().Seconds()),
	}
	if status == fiber.StatusCreated {
		return response.Created(c, res)
	}
	return response.Success(c, res)
}

// Register handles POST /api/v1/auth/register. Admin accounts cannot self-register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req services.CreateAccountInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Role == model.RoleAdmin {
		return response.Forbidden(c, "Admin accounts must be created by an administrator")
	}

	account, err := h.accounts.Create(c.UserContext(), req)
	if err != nil {
		return response.FromError(c, err)
	}

	return h.issueToken(c, account, fiber.StatusCreated)
}
