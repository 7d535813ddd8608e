package account

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/handlers"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/utils/middleware"
	"github.com/sahilchouksey/univast-api/utils/response"
	"github.com/sahilchouksey/univast-api/utils/validation"
)

// AccountHandler handles account management requests
type AccountHandler struct {
	accounts *services.AccountService
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts *services.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// selfOrAdmin resolves the :id parameter and checks the caller may act on it
func selfOrAdmin(c *fiber.Ctx) (uint, bool, error) {
	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return 0, false, response.BadRequest(c, "Invalid account ID")
	}

	caller, ok := middleware.GetAccount(c)
	if !ok {
		return 0, false, response.Unauthorized(c, "Not authenticated")
	}
	if caller.ID != id && caller.Role != model.RoleAdmin {
		return 0, false, response.Forbidden(c, "You can only manage your own account")
	}
	return id, true, nil
}

// CreateAccount handles POST /api/v1/accounts (admin only, any role)
func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req services.CreateAccountInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	account, err := h.accounts.Create(c.UserContext(), req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, account.ToView())
}

// ListAccounts handles GET /api/v1/accounts?role=ADMIN
func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	role := model.Role(c.Query("role", string(model.RoleApplicant)))

	accounts, err := h.accounts.ListByRole(c.UserContext(), role)
	if err != nil {
		return response.FromError(c, err)
	}

	views := make([]model.AccountView, 0, len(accounts))
	for i := range accounts {
		views = append(views, accounts[i].ToView())
	}
	return response.Success(c, views)
}

// GetAccount handles GET /api/v1/accounts/:id
func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	id, ok, err := selfOrAdmin(c)
	if !ok {
		return err
	}

	account, err := h.accounts.GetByID(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, account.ToView())
}

// UpdateAccount handles PUT /api/v1/accounts/:id
func (h *AccountHandler) UpdateAccount(c *fiber.Ctx) error {
	id, ok, err := selfOrAdmin(c)
	if !ok {
		return err
	}

	var req services.UpdateAccountInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if role, _ := middleware.GetAccountRole(c); req.Active != nil && role != model.RoleAdmin {
		return response.Forbidden(c, "Only administrators can change account status")
	}

	account, err := h.accounts.Update(c.UserContext(), id, req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, account.ToView())
}

// DeleteAccount handles DELETE /api/v1/accounts/:id and removes the linked profile
func (h *AccountHandler) DeleteAccount(c *fiber.Ctx) error {
	id, ok, err := selfOrAdmin(c)
	if !ok {
		return err
	}

	if err := h.accounts.Delete(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}

// CheckAvailability handles GET /api/v1/accounts/exists?username=&email=
func (h *AccountHandler) CheckAvailability(c *fiber.Ctx) error {
	username := c.Query("username")
	email := c.Query("email")
	if username == "" && email == "" {
		return response.BadRequest(c, "username or email is required")
	}

	result := fiber.Map{}
	if username != "" {
		exists, err := h.accounts.ExistsByUsername(c.UserContext(), username)
		if err != nil {
			return response.FromError(c, err)
		}
		result["username_taken"] = exists
	}
	if email != "" {
		if !validation.ValidateEmail(validation.SanitizeEmail(email)) {
			return response.BadRequest(c, "invalid email format")
		}
		exists, err := h.accounts.ExistsByEmail(c.UserContext(), email)
		if err != nil {
			return response.FromError(c, err)
		}
		result["email_taken"] = exists
	}
	return response.Success(c, result)
}
