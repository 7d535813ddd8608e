package admin

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/handlers"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/services/cron"
	"github.com/sahilchouksey/univast-api/utils/cache"
	"github.com/sahilchouksey/univast-api/utils/response"
	"github.com/sirupsen/logrus"
)

const (
	statsCacheKey = "admin:stats"
	statsCacheTTL = time.Minute
)

// AdminHandler serves the admin dashboard endpoints
type AdminHandler struct {
	accounts      *services.AccountService
	institutions  *services.InstitutionService
	programs      *services.ProgramService
	applicants    *services.ApplicantService
	applications  *services.ApplicationService
	notifications *services.NotificationDispatcher
	audit         *services.AuditService
	cron          *cron.CronManager
	cache         cache.Cache
	log           logrus.FieldLogger
}

// Deps groups the collaborators of AdminHandler. Audit, Cron and Cache may be nil.
type Deps struct {
	Accounts      *services.AccountService
	Institutions  *services.InstitutionService
	Programs      *services.ProgramService
	Applicants    *services.ApplicantService
	Applications  *services.ApplicationService
	Notifications *services.NotificationDispatcher
	Audit         *services.AuditService
	Cron          *cron.CronManager
	Cache         cache.Cache
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(deps Deps, log logrus.FieldLogger) *AdminHandler {
	return &AdminHandler{
		accounts:      deps.Accounts,
		institutions:  deps.Institutions,
		programs:      deps.Programs,
		applicants:    deps.Applicants,
		applications:  deps.Applications,
		notifications: deps.Notifications,
		audit:         deps.Audit,
		cron:          deps.Cron,
		cache:         deps.Cache,
		log:           log.WithField("handler", "admin"),
	}
}

// Overview is the payload of GET /admin/stats
type Overview struct {
	Accounts     int64                      `json:"accounts"`
	Institutions int64                      `json:"institutions"`
	Programs     int64                      `json:"programs"`
	Applicants   int64                      `json:"applicants"`
	Applications *services.ApplicationStats `json:"applications"`
	GeneratedAt  time.Time                  `json:"generated_at"`
}

// GetStats handles GET /api/v1/admin/stats. Results are cached briefly when a cache is configured.
func (h *AdminHandler) GetStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if h.cache != nil && c.Query("fresh") != "true" {
		var cached Overview
		if err := h.cache.GetJSON(ctx, statsCacheKey, &cached); err == nil {
			c.Set("X-Cache", "HIT")
			return response.Success(c, cached)
		}
	}

	overview, err := h.overview(ctx)
	if err != nil {
		return response.FromError(c, err)
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(ctx, statsCacheKey, overview, statsCacheTTL); err != nil {
			h.log.WithError(err).Warn("failed to cache admin stats")
		}
	}
	c.Set("X-Cache", "MISS")
	return response.Success(c, overview)
}

func (h *AdminHandler) overview(ctx context.Context) (*Overview, error) {
	var (
		o   = &Overview{GeneratedAt: time.Now().UTC()}
		err error
	)
	if o.Accounts, err = h.accounts.CountAll(ctx); err != nil {
		return nil, err
	}
	if o.Institutions, err = h.institutions.CountAll(ctx); err != nil {
		return nil, err
	}
	if o.Programs, err = h.programs.CountAll(ctx); err != nil {
		return nil, err
	}
	if o.Applicants, err = h.applicants.CountAll(ctx); err != nil {
		return nil, err
	}
	if o.Applications, err = h.applications.Stats(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// ListNotifications handles GET /api/v1/admin/notifications?recipient=&page=&limit=
func (h *AdminHandler) ListNotifications(c *fiber.Ctx) error {
	page, limit := handlers.Pagination(c)

	logs, total, err := h.notifications.ListLogs(c.UserContext(), c.Query("recipient"), limit, (page-1)*limit)
	if err != nil {
		return response.FromError(c, err)
	}

	out := make([]interface{}, 0, len(logs))
	for i := range logs {
		out = append(out, logs[i].ToResponse())
	}
	return response.Paginated(c, out, response.CalculatePagination(page, limit, total))
}

// Reconcile handles POST /api/v1/admin/reconcile
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	drifted, err := h.institutions.ReconcileCounters(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, fiber.Map{"drifted": drifted})
}

// ListAuditLogs handles GET /api/v1/admin/audit-logs?action=&resource=&admin_id=&page=&limit=
func (h *AdminHandler) ListAuditLogs(c *fiber.Ctx) error {
	if h.audit == nil {
		return response.ServiceUnavailable(c, "Audit trail is disabled", "AUDIT_DISABLED")
	}

	page, limit := handlers.Pagination(c)
	filter := services.AuditFilter{
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
	}
	if adminID, err := strconv.ParseUint(c.Query("admin_id"), 10, 64); err == nil {
		filter.AdminID = uint(adminID)
	}

	logs, total, err := h.audit.ListLogs(c.UserContext(), filter, limit, (page-1)*limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Paginated(c, logs, response.CalculatePagination(page, limit, total))
}

// GetAuditLog handles GET /api/v1/admin/audit-logs/:id
func (h *AdminHandler) GetAuditLog(c *fiber.Ctx) error {
	if h.audit == nil {
		return response.ServiceUnavailable(c, "Audit trail is disabled", "AUDIT_DISABLED")
	}

	id, err := handlers.ParseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid log ID")
	}

	entry, err := h.audit.GetLog(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, entry)
}
