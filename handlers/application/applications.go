package application

import (
	"path"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/handlers"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/utils/middleware"
	"github.com/sahilchouksey/univast-api/utils/response"
)

// ApplicationHandler exposes the application lifecycle
type ApplicationHandler struct {
	applications *services.ApplicationService
	applicants   *services.ApplicantService
	institutions *services.InstitutionService
	programs     *services.ProgramService
	attachments  *services.AttachmentService
}

// NewApplicationHandler creates a new application handler
func NewApplicationHandler(
	applications *services.ApplicationService,
	applicants *services.ApplicantService,
	institutions *services.InstitutionService,
	programs *services.ProgramService,
	attachments *services.AttachmentService,
) *ApplicationHandler {
	return &ApplicationHandler{
		applications: applications,
		applicants:   applicants,
		institutions: institutions,
		programs:     programs,
		attachments:  attachments,
	}
}

// SubmitRequest is the body of POST /applications. ApplicantID is only honoured for admins.
type SubmitRequest struct {
	ApplicantID       uint   `json:"applicant_id"`
	ProgramID         uint   `json:"program_id"`
	PersonalStatement string `json:"personal_statement"`
}

// TransitionRequest is the body of PATCH /applications/:id/status
type TransitionRequest struct {
	Status   model.ApplicationStatus `json:"status"`
	Feedback string                  `json:"feedback"`
}

// WithdrawRequest is the body of POST /applications/:id/withdraw
type WithdrawRequest struct {
	Reason string `json:"reason"`
}

// StatementRequest is the body of PUT /applications/:id/statement
type StatementRequest struct {
	PersonalStatement string `json:"personal_statement"`
}

func (h *ApplicationHandler) respondList(c *fiber.Ctx, apps []model.Application, err error) error {
	if err != nil {
		return response.FromError(c, err)
	}
	views, err := h.applications.Views(c.UserContext(), apps)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, views)
}

func (h *ApplicationHandler) respondOne(c *fiber.Ctx, app *model.Application, status int) error {
	views, err := h.applications.Views(c.UserContext(), []model.Application{*app})
	if err != nil {
		return response.FromError(c, err)
	}
	if status == fiber.StatusCreated {
		return response.Created(c, views[0])
	}
	return response.Success(c, views[0])
}

// ownsApplication reports whether the caller is the applicant behind app
func (h *ApplicationHandler) ownsApplication(c *fiber.Ctx, app *model.Application) bool {
	applicant, err := h.applicants.GetByID(c.UserContext(), app.ApplicantID)
	return err == nil && handlers.OwnsApplicant(c, applicant)
}

// managesApplication reports whether the caller is an admin or manages the receiving institution
func (h *ApplicationHandler) managesApplication(c *fiber.Ctx, app *model.Application) bool {
	if handlers.IsAdmin(c) {
		return true
	}
	institution, err := h.institutions.GetByID(c.UserContext(), app.InstitutionID)
	return err == nil && handlers.CanManageInstitution(c, institution)
}

// load resolves :id; allow decides whether the caller may act on it
func (h *ApplicationHandler) load(c *fiber.Ctx, allow func(*model.Application) bool) (*model.Application, error) {
	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return nil, response.BadRequest(c, "Invalid application ID")
	}

	app, err := h.applications.GetByID(c.UserContext(), id)
	if err != nil {
		return nil, response.FromError(c, err)
	}
	if !allow(app) {
		return nil, response.Forbidden(c, "You cannot access this application")
	}
	return app, nil
}

func (h *ApplicationHandler) canView(c *fiber.Ctx) func(*model.Application) bool {
	return func(app *model.Application) bool {
		return h.managesApplication(c, app) || h.ownsApplication(c, app)
	}
}

func (h *ApplicationHandler) isOwnerOrAdmin(c *fiber.Ctx) func(*model.Application) bool {
	return func(app *model.Application) bool {
		return handlers.IsAdmin(c) || h.ownsApplication(c, app)
	}
}

func (h *ApplicationHandler) isManager(c *fiber.Ctx) func(*model.Application) bool {
	return func(app *model.Application) bool {
		return h.managesApplication(c, app)
	}
}

// Submit handles POST /api/v1/applications
func (h *ApplicationHandler) Submit(c *fiber.Ctx) error {
	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.ProgramID == 0 {
		return response.BadRequest(c, "program_id is required")
	}

	applicantID := req.ApplicantID
	if !handlers.IsAdmin(c) {
		accountID, _ := middleware.GetAccountID(c)
		applicant, err := h.applicants.GetByAccountID(c.UserContext(), accountID)
		if err != nil {
			return response.Forbidden(c, "Only applicants with a profile can apply")
		}
		applicantID = applicant.ID
	}
	if applicantID == 0 {
		return response.BadRequest(c, "applicant_id is required")
	}

	app, err := h.applications.Submit(c.UserContext(), applicantID, req.ProgramID, req.PersonalStatement)
	if err != nil {
		return response.FromError(c, err)
	}
	return h.respondOne(c, app, fiber.StatusCreated)
}

// ListApplications handles GET /api/v1/applications?status= (admin only)
func (h *ApplicationHandler) ListApplications(c *fiber.Ctx) error {
	if status := c.Query("status"); status != "" {
		apps, err := h.applications.ListByStatus(c.UserContext(), model.ApplicationStatus(status))
		return h.respondList(c, apps, err)
	}
	apps, err := h.applications.List(c.UserContext())
	return h.respondList(c, apps, err)
}

// GetApplication handles GET /api/v1/applications/:id
func (h *ApplicationHandler) GetApplication(c *fiber.Ctx) error {
	app, err := h.load(c, h.canView(c))
	if app == nil {
		return err
	}
	return h.respondOne(c, app, fiber.StatusOK)
}

// Transition handles PATCH /api/v1/applications/:id/status
func (h *ApplicationHandler) Transition(c *fiber.Ctx) error {
	app, err := h.load(c, h.isManager(c))
	if app == nil {
		return err
	}

	var req TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	updated, err := h.applications.Transition(c.UserContext(), app.ID, req.Status, req.Feedback)
	if err != nil {
		return response.FromError(c, err)
	}
	return h.respondOne(c, updated, fiber.StatusOK)
}

// Withdraw handles POST /api/v1/applications/:id/withdraw
func (h *ApplicationHandler) Withdraw(c *fiber.Ctx) error {
	app, err := h.load(c, h.isOwnerOrAdmin(c))
	if app == nil {
		return err
	}

	var req WithdrawRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	updated, err := h.applications.Withdraw(c.UserContext(), app.ID, req.Reason)
	if err != nil {
		return response.FromError(c, err)
	}
	return h.respondOne(c, updated, fiber.StatusOK)
}

// UpdateStatement handles PUT /api/v1/applications/:id/statement
func (h *ApplicationHandler) UpdateStatement(c *fiber.Ctx) error {
	app, err := h.load(c, h.isOwnerOrAdmin(c))
	if app == nil {
		return err
	}

	var req StatementRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	updated, err := h.applications.UpdateStatement(c.UserContext(), app.ID, req.PersonalStatement)
	if err != nil {
		return response.FromError(c, err)
	}
	return h.respondOne(c, updated, fiber.StatusOK)
}

// UploadDocument handles POST /api/v1/applications/:id/document (multipart field "file")
func (h *ApplicationHandler) UploadDocument(c *fiber.Ctx) error {
	app, err := h.load(c, h.isOwnerOrAdmin(c))
	if app == nil {
		return err
	}

	payload, err := handlers.ReadUpload(c, "file")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	updated, err := h.applications.AttachDocument(c.UserContext(), app.ID, payload)
	if err != nil {
		return response.FromError(c, err)
	}
	return h.respondOne(c, updated, fiber.StatusOK)
}

// DownloadDocument handles GET /api/v1/applications/:id/document
func (h *ApplicationHandler) DownloadDocument(c *fiber.Ctx) error {
	app, err := h.load(c, h.canView(c))
	if app == nil {
		return err
	}
	if app.DocumentPath == "" {
		return response.NotFound(c, "Application has no document")
	}

	object, err := h.attachments.Retrieve(c.UserContext(), app.DocumentPath)
	if err != nil {
		return response.FromError(c, err)
	}

	c.Set(fiber.HeaderContentType, object.ContentType)
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=\"application-"+strconv.FormatUint(uint64(app.ID), 10)+path.Ext(app.DocumentPath)+"\"")
	return c.Send(object.Data)
}

// DeleteApplication handles DELETE /api/v1/applications/:id
func (h *ApplicationHandler) DeleteApplication(c *fiber.Ctx) error {
	app, err := h.load(c, h.isOwnerOrAdmin(c))
	if app == nil {
		return err
	}

	if err := h.applications.Delete(c.UserContext(), app.ID); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}

// ListByApplicant handles GET /api/v1/applicants/:id/applications
func (h *ApplicationHandler) ListByApplicant(c *fiber.Ctx) error {
	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid applicant ID")
	}

	applicant, err := h.applicants.GetByID(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	if !handlers.IsAdmin(c) && !handlers.OwnsApplicant(c, applicant) {
		return response.Forbidden(c, "You can only view your own applications")
	}

	apps, err := h.applications.ListByApplicant(c.UserContext(), id)
	return h.respondList(c, apps, err)
}

// ListByInstitution handles GET /api/v1/institutions/:id/applications
func (h *ApplicationHandler) ListByInstitution(c *fiber.Ctx) error {
	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid institution ID")
	}

	institution, err := h.institutions.GetByID(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	if !handlers.CanManageInstitution(c, institution) {
		return response.Forbidden(c, "You cannot view applications for this institution")
	}

	apps, err := h.applications.ListByInstitution(c.UserContext(), id)
	return h.respondList(c, apps, err)
}

// ListByProgram handles GET /api/v1/programs/:id/applications
func (h *ApplicationHandler) ListByProgram(c *fiber.Ctx) error {
	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid program ID")
	}

	program, err := h.programs.GetByID(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	institution, err := h.institutions.GetByID(c.UserContext(), program.InstitutionID)
	if err != nil {
		return response.FromError(c, err)
	}
	if !handlers.CanManageInstitution(c, institution) {
		return response.Forbidden(c, "You cannot view applications for this program")
	}

	apps, err := h.applications.ListByProgram(c.UserContext(), id)
	return h.respondList(c, apps, err)
}
