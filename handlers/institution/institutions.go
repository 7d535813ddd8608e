package institution

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/handlers"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/utils/response"
)

// InstitutionHandler handles institution-related requests
type InstitutionHandler struct {
	institutions *services.InstitutionService
	applications *services.ApplicationService
}

// NewInstitutionHandler creates a new institution handler
func NewInstitutionHandler(institutions *services.InstitutionService, applications *services.ApplicationService) *InstitutionHandler {
	return &InstitutionHandler{
		institutions: institutions,
		applications: applications,
	}
}

func views(institutions []model.Institution) []model.InstitutionView {
	out := make([]model.InstitutionView, 0, len(institutions))
	for i := range institutions {
		out = append(out, institutions[i].ToView())
	}
	return out
}

// ListInstitutions handles GET /api/v1/institutions?search=
func (h *InstitutionHandler) ListInstitutions(c *fiber.Ctx) error {
	if search := c.Query("search"); search != "" {
		institutions, err := h.institutions.Search(c.UserContext(), search)
		if err != nil {
			return response.FromError(c, err)
		}
		return response.Success(c, views(institutions))
	}

	page, limit := handlers.Pagination(c)
	institutions, total, err := h.institutions.List(c.UserContext(), page, limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Paginated(c, views(institutions), response.CalculatePagination(page, limit, total))
}

// GetInstitution handles GET /api/v1/institutions/:id
func (h *InstitutionHandler) GetInstitution(c *fiber.Ctx) error {
	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid institution ID")
	}

	institution, err := h.institutions.GetByID(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, institution.ToView())
}

// CreateInstitution handles POST /api/v1/institutions (admin only)
func (h *InstitutionHandler) CreateInstitution(c *fiber.Ctx) error {
	var req services.InstitutionInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	institution, err := h.institutions.Create(c.UserContext(), req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, institution.ToView())
}

// load resolves :id and checks the caller may manage it
func (h *InstitutionHandler) load(c *fiber.Ctx) (*model.Institution, error) {
	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return nil, response.BadRequest(c, "Invalid institution ID")
	}

	institution, err := h.institutions.GetByID(c.UserContext(), id)
	if err != nil {
		return nil, response.FromError(c, err)
	}
	if !handlers.CanManageInstitution(c, institution) {
		return nil, response.Forbidden(c, "You cannot manage this institution")
	}
	return institution, nil
}

// UpdateInstitution handles PUT /api/v1/institutions/:id
func (h *InstitutionHandler) UpdateInstitution(c *fiber.Ctx) error {
	institution, err := h.load(c)
	if institution == nil {
		return err
	}

	var req services.UpdateInstitutionInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	updated, err := h.institutions.Update(c.UserContext(), institution.ID, req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, updated.ToView())
}

// UploadLogo handles POST /api/v1/institutions/:id/logo (multipart field "file")
func (h *InstitutionHandler) UploadLogo(c *fiber.Ctx) error {
	institution, err := h.load(c)
	if institution == nil {
		return err
	}

	payload, err := handlers.ReadUpload(c, "file")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	updated, err := h.institutions.UploadLogo(c.UserContext(), institution.ID, payload)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, updated.ToView())
}

// DeleteInstitution handles DELETE /api/v1/institutions/:id with its programs and applications
func (h *InstitutionHandler) DeleteInstitution(c *fiber.Ctx) error {
	institution, err := h.load(c)
	if institution == nil {
		return err
	}

	if err := h.institutions.Delete(c.UserContext(), institution.ID); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}

// GetStats handles GET /api/v1/institutions/:id/stats
func (h *InstitutionHandler) GetStats(c *fiber.Ctx) error {
	institution, err := h.load(c)
	if institution == nil {
		return err
	}

	stats, err := h.applications.StatsForInstitution(c.UserContext(), institution.ID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, stats)
}
