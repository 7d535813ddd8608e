package admin

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/utils/response"
)

// ListCronRuns handles GET /api/v1/admin/cron/runs?limit=
func (h *AdminHandler) ListCronRuns(c *fiber.Ctx) error {
	if h.cron == nil {
		return response.ServiceUnavailable(c, "Scheduler is disabled", "CRON_DISABLED")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	runs, err := h.cron.RecentRuns(c.UserContext(), limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list cron runs")
	}
	return response.Success(c, runs)
}

// RunCronJob handles POST /api/v1/admin/cron/:job/run and runs the job synchronously
func (h *AdminHandler) RunCronJob(c *fiber.Ctx) error {
	if h.cron == nil {
		return response.ServiceUnavailable(c, "Scheduler is disabled", "CRON_DISABLED")
	}

	job := c.Params("job")
	if err := h.cron.RunNow(job); err != nil {
		h.log.WithError(err).WithField("job", job).Warn("manual cron run failed")
		return response.BadRequest(c, err.Error())
	}
	return response.Success(c, fiber.Map{"job": job, "status": "completed"})
}
