package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/apperrors"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/sahilchouksey/univast-api/utils/response"
)

// AccountLoader resolves the account behind a token
type AccountLoader interface {
	GetByID(ctx context.Context, id uint) (*model.Account, error)
}

// RevocationChecker reports whether a token ID was revoked by logout
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager  *auth.JWTManager
	accounts    AccountLoader
	revocations RevocationChecker
}

// NewAuthMiddleware creates a new auth middleware. revocations may be nil.
func NewAuthMiddleware(jwtManager *auth.JWTManager, accounts AccountLoader, revocations RevocationChecker) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:  jwtManager,
		accounts:    accounts,
		revocations: revocations,
	}
}

// authenticate validates the bearer token and loads the account. The returned
// handler error is the response to send when authentication fails.
func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (*auth.Claims, *model.Account, error) {
	// Get token from Authorization header
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, nil, response.Unauthorized(c, "Missing authorization token")
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, nil, response.Unauthorized(c, "Invalid authorization format")
	}

	claims, err := m.jwtManager.ValidateToken(parts[1])
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, nil, response.Unauthorized(c, "Token has expired")
		}
		return nil, nil, response.Unauthorized(c, "Invalid token")
	}

	if m.revocations != nil {
		revoked, err := m.revocations.IsTokenRevoked(c.UserContext(), claims.ID)
		if err != nil {
			return nil, nil, response.InternalServerError(c, "Failed to check token status")
		}
		if revoked {
			return nil, nil, response.Unauthorized(c, "Token has been revoked")
		}
	}

	account, err := m.accounts.GetByID(c.UserContext(), claims.AccountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, response.Unauthorized(c, "Account not found")
		}
		return nil, nil, response.InternalServerError(c, "Failed to load account")
	}

	if !account.Active {
		return nil, nil, response.Unauthorized(c, "Account is inactive")
	}

	// A password change bumps the version and invalidates older tokens
	if account.TokenVersion != claims.TokenVersion {
		return nil, nil, response.Unauthorized(c, "Token has been invalidated")
	}

	return claims, account, nil
}

func setLocals(c *fiber.Ctx, claims *auth.Claims, account *model.Account) {
	c.Locals("account_id", account.ID)
	c.Locals("account_role", string(account.Role))
	c.Locals("claims", claims)
	c.Locals("account", account)
	c.Locals("token_jti", claims.ID)
}

// Required is middleware that requires a valid JWT token
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, account, err := m.authenticate(c)
		if claims == nil {
			return err
		}
		setLocals(c, claims, account)
		return c.Next()
	}
}

// RequireRole is middleware that requires one of roles. It must run after Required.
func (m *AuthMiddleware) RequireRole(roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := GetAccountRole(c)
		if !ok {
			return response.Forbidden(c, "Access denied")
		}

		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}

		return response.Forbidden(c, "Insufficient permissions")
	}
}

// RequireAdmin validates the token inline and checks for the admin role
func (m *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, account, err := m.authenticate(c)
		if claims == nil {
			return err
		}

		if account.Role != model.RoleAdmin {
			return response.Forbidden(c, "Admin access required")
		}

		setLocals(c, claims, account)
		return c.Next()
	}
}

// GetAccountID extracts the account ID from context
func GetAccountID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("account_id").(uint)
	return id, ok
}

// GetAccountRole extracts the account role from context
func GetAccountRole(c *fiber.Ctx) (model.Role, bool) {
	role, ok := c.Locals("account_role").(string)
	return model.Role(role), ok
}

// GetAccount extracts the full account from context
func GetAccount(c *fiber.Ctx) (*model.Account, bool) {
	account, ok := c.Locals("account").(*model.Account)
	return account, ok
}

// GetClaims extracts full claims from context
func GetClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals("claims").(*auth.Claims)
	return claims, ok
}
