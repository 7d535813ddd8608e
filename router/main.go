package router

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/database"
	"github.com/sahilchouksey/univast-api/handlers"
	account_handlers "github.com/sahilchouksey/univast-api/handlers/account"
	admin_handlers "github.com/sahilchouksey/univast-api/handlers/admin"
	applicant_handlers "github.com/sahilchouksey/univast-api/handlers/applicant"
	application_handlers "github.com/sahilchouksey/univast-api/handlers/application"
	auth_handlers "github.com/sahilchouksey/univast-api/handlers/auth"
	institution_handlers "github.com/sahilchouksey/univast-api/handlers/institution"
	program_handlers "github.com/sahilchouksey/univast-api/handlers/program"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/services/cron"
	"github.com/sahilchouksey/univast-api/utils"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/sahilchouksey/univast-api/utils/cache"
	"github.com/sahilchouksey/univast-api/utils/metrics"
	"github.com/sahilchouksey/univast-api/utils/middleware"
	"github.com/sirupsen/logrus"
)

// Dependencies are the wired collaborators the routes are built from.
// Audit, Cache, Cron and Revocations may be nil.
type Dependencies struct {
	Store         database.Storage
	JWT           *auth.JWTManager
	Revocations   *auth.RevocationStore
	Cache         cache.Cache
	Cron          *cron.CronManager
	Accounts      *services.AccountService
	Applicants    *services.ApplicantService
	Institutions  *services.InstitutionService
	Programs      *services.ProgramService
	Applications  *services.ApplicationService
	Attachments   *services.AttachmentService
	Notifications *services.NotificationDispatcher
	Audit         *services.AuditService
	Log           logrus.FieldLogger
}

// RouteConfig holds the HTTP-level settings
type RouteConfig struct {
	AllowedOrigins    string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	AccessLog         io.Writer // nil means stdout
}

func SetupRoutes(app *fiber.App, deps Dependencies, cfg RouteConfig) {
	// Brute force protection needs a cache
	var bruteForceProtection *middleware.BruteForceProtection
	if deps.Cache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(deps.Cache)
	} else {
		deps.Log.Warn("no cache configured, brute force protection disabled")
	}

	var revocations middleware.RevocationChecker
	if deps.Revocations != nil {
		revocations = deps.Revocations
	}
	authMiddleware := middleware.NewAuthMiddleware(deps.JWT, deps.Accounts, revocations)

	authHandler := auth_handlers.NewAuthHandler(deps.Accounts, deps.JWT, deps.Revocations, bruteForceProtection)
	accountHandler := account_handlers.NewAccountHandler(deps.Accounts)
	institutionHandler := institution_handlers.NewInstitutionHandler(deps.Institutions, deps.Applications)
	programHandler := program_handlers.NewProgramHandler(deps.Programs, deps.Institutions)
	applicantHandler := applicant_handlers.NewApplicantHandler(deps.Applicants)
	applicationHandler := application_handlers.NewApplicationHandler(deps.Applications, deps.Applicants, deps.Institutions, deps.Programs, deps.Attachments)
	attachmentHandler := handlers.NewAttachmentHandler(deps.Attachments)
	adminHandler := admin_handlers.NewAdminHandler(admin_handlers.Deps{
		Accounts:      deps.Accounts,
		Institutions:  deps.Institutions,
		Programs:      deps.Programs,
		Applicants:    deps.Applicants,
		Applications:  deps.Applications,
		Notifications: deps.Notifications,
		Audit:         deps.Audit,
		Cron:          deps.Cron,
		Cache:         deps.Cache,
	}, deps.Log)

	var recorder middleware.AuditRecorder
	if deps.Audit != nil {
		recorder = deps.Audit
	}
	audit := func(action, resource string) fiber.Handler {
		return middleware.AdminAudit(recorder, deps.Log, action, resource)
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		LogOutput:         cfg.AccessLog,
	})

	// Public operational endpoints
	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, deps.Store))
	app.Get("/metrics", metrics.Handler())

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}
	authGroup.Get("/me", authMiddleware.Required(), authHandler.GetProfile)
	authGroup.Post("/change-password", authMiddleware.Required(), authHandler.ChangePassword)
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)

	// Accounts
	accounts := api.Group("/accounts")
	accounts.Get("/exists", accountHandler.CheckAvailability)                                                             // Public: username/email availability
	accounts.Post("/", authMiddleware.RequireAdmin(), audit("account_create", "accounts"), accountHandler.CreateAccount)  // Admin: create any role
	accounts.Get("/", authMiddleware.RequireAdmin(), accountHandler.ListAccounts)                                         // Admin: list by role
	accounts.Get("/:id", authMiddleware.Required(), accountHandler.GetAccount)                                            // Self or admin
	accounts.Put("/:id", authMiddleware.Required(), audit("account_update", "accounts"), accountHandler.UpdateAccount)    // Self or admin
	accounts.Delete("/:id", authMiddleware.Required(), audit("account_delete", "accounts"), accountHandler.DeleteAccount) // Self or admin, cascades to profile

	// Institutions
	institutions := api.Group("/institutions")
	institutions.Get("/", institutionHandler.ListInstitutions)                                                                                // Public: list or search
	institutions.Get("/:id", institutionHandler.GetInstitution)                                                                               // Public
	institutions.Get("/:id/programs", programHandler.ListInstitutionPrograms)                                                                 // Public
	institutions.Post("/", authMiddleware.RequireAdmin(), audit("institution_create", "institutions"), institutionHandler.CreateInstitution)  // Admin
	institutions.Put("/:id", authMiddleware.Required(), audit("institution_update", "institutions"), institutionHandler.UpdateInstitution)    // Owner or admin
	institutions.Post("/:id/logo", authMiddleware.Required(), institutionHandler.UploadLogo)                                                  // Owner or admin
	institutions.Delete("/:id", authMiddleware.Required(), audit("institution_delete", "institutions"), institutionHandler.DeleteInstitution) // Owner or admin
	institutions.Get("/:id/stats", authMiddleware.Required(), institutionHandler.GetStats)                                                    // Owner or admin
	institutions.Post("/:id/programs", authMiddleware.Required(), audit("program_create", "institutions"), programHandler.CreateProgram)      // Owner or admin
	institutions.Get("/:id/applications", authMiddleware.Required(), applicationHandler.ListByInstitution)                                    // Owner or admin

	// Programs
	programs := api.Group("/programs")
	programs.Get("/", programHandler.ListPrograms)                                                                        // Public: list or search
	programs.Get("/:id", programHandler.GetProgram)                                                                       // Public
	programs.Put("/:id", authMiddleware.Required(), audit("program_update", "programs"), programHandler.UpdateProgram)    // Institution owner or admin
	programs.Delete("/:id", authMiddleware.Required(), audit("program_delete", "programs"), programHandler.DeleteProgram) // Institution owner or admin
	programs.Get("/:id/applications", authMiddleware.Required(), applicationHandler.ListByProgram)                        // Institution owner or admin

	// Applicants
	applicants := api.Group("/applicants", authMiddleware.Required())
	applicants.Get("/me", applicantHandler.GetMyProfile)
	applicants.Get("/", authMiddleware.RequireRole(model.RoleAdmin), applicantHandler.ListApplicants)
	applicants.Post("/", authMiddleware.RequireRole(model.RoleAdmin), audit("applicant_create", "applicants"), applicantHandler.CreateApplicant)
	applicants.Get("/:id", applicantHandler.GetApplicant)
	applicants.Put("/:id", audit("applicant_update", "applicants"), applicantHandler.UpdateApplicant)
	applicants.Post("/:id/profile-image", applicantHandler.UploadProfileImage)
	applicants.Delete("/:id", audit("applicant_delete", "applicants"), applicantHandler.DeleteApplicant)
	applicants.Get("/:id/applications", applicationHandler.ListByApplicant)

	// Applications
	applications := api.Group("/applications", authMiddleware.Required())
	applications.Post("/", authMiddleware.RequireRole(model.RoleApplicant, model.RoleAdmin), applicationHandler.Submit)
	applications.Get("/", authMiddleware.RequireRole(model.RoleAdmin), applicationHandler.ListApplications)
	applications.Get("/:id", applicationHandler.GetApplication)
	applications.Patch("/:id/status", audit("application_transition", "applications"), applicationHandler.Transition)
	applications.Post("/:id/withdraw", applicationHandler.Withdraw)
	applications.Put("/:id/statement", applicationHandler.UpdateStatement)
	applications.Post("/:id/document", applicationHandler.UploadDocument)
	applications.Get("/:id/document", applicationHandler.DownloadDocument)
	applications.Delete("/:id", audit("application_delete", "applications"), applicationHandler.DeleteApplication)

	// Attachments
	api.Get("/attachments/*", authMiddleware.Required(), attachmentHandler.GetAttachment)

	// Admin
	admin := api.Group("/admin", authMiddleware.RequireAdmin())
	admin.Get("/stats", adminHandler.GetStats)
	admin.Get("/notifications", adminHandler.ListNotifications)
	admin.Post("/reconcile", audit("reconcile_counters", "institutions"), adminHandler.Reconcile)
	admin.Get("/audit-logs", adminHandler.ListAuditLogs)
	admin.Get("/audit-logs/:id", adminHandler.GetAuditLog)
	admin.Get("/cron/runs", adminHandler.ListCronRuns)
	admin.Post("/cron/:job/run", audit("cron_run", "cron"), adminHandler.RunCronJob)
}
