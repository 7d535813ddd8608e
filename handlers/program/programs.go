package program

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/handlers"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/utils/response"
)

// ProgramHandler handles program-related requests
type ProgramHandler struct {
	programs     *services.ProgramService
	institutions *services.InstitutionService
}

// NewProgramHandler creates a new program handler
func NewProgramHandler(programs *services.ProgramService, institutions *services.InstitutionService) *ProgramHandler {
	return &ProgramHandler{
		programs:     programs,
		institutions: institutions,
	}
}

func views(programs []model.Program) []model.ProgramView {
	out := make([]model.ProgramView, 0, len(programs))
	for i := range programs {
		out = append(out, programs[i].ToView())
	}
	return out
}

// ListPrograms handles GET /api/v1/programs?search=
func (h *ProgramHandler) ListPrograms(c *fiber.Ctx) error {
	var (
		programs []model.Program
		err      error
	)
	if search := c.Query("search"); search != "" {
		programs, err = h.programs.Search(c.UserContext(), search)
	} else {
		programs, err = h.programs.List(c.UserContext())
	}
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, views(programs))
}

// ListInstitutionPrograms handles GET /api/v1/institutions/:id/programs
func (h *ProgramHandler) ListInstitutionPrograms(c *fiber.Ctx) error {
	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid institution ID")
	}

	if _, err := h.institutions.GetByID(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}

	programs, err := h.programs.ListByInstitution(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, views(programs))
}

// GetProgram handles GET /api/v1/programs/:id
func (h *ProgramHandler) GetProgram(c *fiber.Ctx) error {
	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid program ID")
	}

	program, err := h.programs.GetByID(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, program.ToView())
}

// CreateProgram handles POST /api/v1/institutions/:id/programs
func (h *ProgramHandler) CreateProgram(c *fiber.Ctx) error {
	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid institution ID")
	}

	institution, err := h.institutions.GetByID(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	if !handlers.CanManageInstitution(c, institution) {
		return response.Forbidden(c, "You cannot add programs to this institution")
	}

	var req services.ProgramInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	program, err := h.programs.Create(c.UserContext(), id, req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, program.ToView())
}

// load resolves :id and checks the caller manages the owning institution
func (h *ProgramHandler) load(c *fiber.Ctx) (*model.Program, error) {
	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return nil, response.BadRequest(c, "Invalid program ID")
	}

	program, err := h.programs.GetByID(c.UserContext(), id)
	if err != nil {
		return nil, response.FromError(c, err)
	}

	institution, err := h.institutions.GetByID(c.UserContext(), program.InstitutionID)
	if err != nil {
		return nil, response.FromError(c, err)
	}
	if !handlers.CanManageInstitution(c, institution) {
		return nil, response.Forbidden(c, "You cannot manage this program")
	}
	return program, nil
}

// UpdateProgram handles PUT /api/v1/programs/:id
func (h *ProgramHandler) UpdateProgram(c *fiber.Ctx) error {
	program, err := h.load(c)
	if program == nil {
		return err
	}

	var req services.UpdateProgramInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	updated, err := h.programs.Update(c.UserContext(), program.ID, req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, updated.ToView())
}

// DeleteProgram handles DELETE /api/v1/programs/:id with its applications
func (h *ProgramHandler) DeleteProgram(c *fiber.Ctx) error {
	program, err := h.load(c)
	if program == nil {
		return err
	}

	if err := h.programs.Delete(c.UserContext(), program.ID); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}
