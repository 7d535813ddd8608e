package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/middleware"
)

// IsAdmin reports whether the caller holds the admin role
func IsAdmin(c *fiber.Ctx) bool {
	role, ok := middleware.GetAccountRole(c)
	return ok && role == model.RoleAdmin
}

// CanManageInstitution reports whether the caller is an admin or the account that owns inst
func CanManageInstitution(c *fiber.Ctx, inst *model.Institution) bool {
	if IsAdmin(c) {
		return true
	}
	id, ok := middleware.GetAccountID(c)
	return ok && inst.AccountID != nil && *inst.AccountID == id
}

// OwnsApplicant reports whether the caller is the account behind applicant
func OwnsApplicant(c *fiber.Ctx, applicant *model.Applicant) bool {
	id, ok := middleware.GetAccountID(c)
	return ok && applicant.AccountID != nil && *applicant.AccountID == id
}
