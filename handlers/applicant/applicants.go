package applicant

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/handlers"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/utils/middleware"
	"github.com/sahilchouksey/univast-api/utils/response"
)

// ApplicantHandler handles applicant profile requests
type ApplicantHandler struct {
	applicants *services.ApplicantService
}

// NewApplicantHandler creates a new applicant handler
func NewApplicantHandler(applicants *services.ApplicantService) *ApplicantHandler {
	return &ApplicantHandler{applicants: applicants}
}

// ListApplicants handles GET /api/v1/applicants?search= (admin only)
func (h *ApplicantHandler) ListApplicants(c *fiber.Ctx) error {
	var (
		applicants []model.Applicant
		err        error
	)
	if search := c.Query("search"); search != "" {
		applicants, err = h.applicants.Search(c.UserContext(), search)
	} else {
		applicants, err = h.applicants.List(c.UserContext())
	}
	if err != nil {
		return response.FromError(c, err)
	}

	out := make([]model.ApplicantView, 0, len(applicants))
	for i := range applicants {
		out = append(out, applicants[i].ToView())
	}
	return response.Success(c, out)
}

// GetMyProfile handles GET /api/v1/applicants/me
func (h *ApplicantHandler) GetMyProfile(c *fiber.Ctx) error {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	applicant, err := h.applicants.GetByAccountID(c.UserContext(), accountID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, applicant.ToView())
}

// GetApplicant handles GET /api/v1/applicants/:id. Institutions may read profiles of applicants.
func (h *ApplicantHandler) GetApplicant(c *fiber.Ctx) error {
	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid applicant ID")
	}

	applicant, err := h.applicants.GetByID(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}

	role, _ := middleware.GetAccountRole(c)
	if role == model.RoleApplicant && !handlers.OwnsApplicant(c, applicant) {
		return response.Forbidden(c, "You can only view your own profile")
	}
	return response.Success(c, applicant.ToView())
}

// CreateApplicant handles POST /api/v1/applicants (admin only, profile without an account)
func (h *ApplicantHandler) CreateApplicant(c *fiber.Ctx) error {
	var req services.ApplicantInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	applicant, err := h.applicants.Create(c.UserContext(), req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, applicant.ToView())
}

// load resolves :id and checks the caller is its owner or an admin
func (h *ApplicantHandler) load(c *fiber.Ctx) (*model.Applicant, error) {
	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return nil, response.BadRequest(c, "Invalid applicant ID")
	}

	applicant, err := h.applicants.GetByID(c.UserContext(), id)
	if err != nil {
		return nil, response.FromError(c, err)
	}
	if !handlers.IsAdmin(c) && !handlers.OwnsApplicant(c, applicant) {
		return nil, response.Forbidden(c, "You can only manage your own profile")
	}
	return applicant, nil
}

// UpdateApplicant handles PUT /api/v1/applicants/:id
func (h *ApplicantHandler) UpdateApplicant(c *fiber.Ctx) error {
	applicant, err := h.load(c)
	if applicant == nil {
		return err
	}

	var req services.UpdateApplicantInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	updated, err := h.applicants.Update(c.UserContext(), applicant.ID, req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, updated.ToView())
}

// UploadProfileImage handles POST /api/v1/applicants/:id/profile-image (multipart field "file")
func (h *ApplicantHandler) UploadProfileImage(c *fiber.Ctx) error {
	applicant, err := h.load(c)
	if applicant == nil {
		return err
	}

	payload, err := handlers.ReadUpload(c, "file")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	updated, err := h.applicants.UploadProfileImage(c.UserContext(), applicant.ID, payload)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, updated.ToView())
}

// DeleteApplicant handles DELETE /api/v1/applicants/:id with its applications
func (h *ApplicantHandler) DeleteApplicant(c *fiber.Ctx) error {
	applicant, err := h.load(c)
	if applicant == nil {
		return err
	}

	if err := h.applicants.Delete(c.UserContext(), applicant.ID); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}
