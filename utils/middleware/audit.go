package middleware

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// AuditRecorder persists admin audit entries
type AuditRecorder interface {
	Record(ctx context.Context, entry *model.AdminAuditLog) error
}

// secretKeys are dropped from recorded request bodies
var secretKeys = []string{"password", "current_password", "new_password"}

// AdminAudit records successful requests made by admin accounts. It must run
// after Required or RequireAdmin. A nil recorder disables it.
func AdminAudit(recorder AuditRecorder, log logrus.FieldLogger, action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if recorder == nil {
			return c.Next()
		}

		role, ok := GetAccountRole(c)
		if !ok || role != model.RoleAdmin {
			return c.Next()
		}
		adminID, _ := GetAccountID(c)

		// Copy before the handler runs; fiber reuses the request buffer
		payload := auditPayload(c.Body())

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil || status >= fiber.StatusBadRequest {
			return err
		}

		entry := &model.AdminAuditLog{
			AdminID:     adminID,
			Action:      action,
			Resource:    resource,
			Payload:     payload,
			StatusCode:  status,
			IPAddress:   c.IP(),
			UserAgent:   c.Get(fiber.HeaderUserAgent),
			Description: c.Method() + " " + c.Path(),
		}
		if id, perr := strconv.ParseUint(c.Params("id"), 10, 64); perr == nil {
			entry.ResourceID = uint(id)
		}

		if rerr := recorder.Record(c.UserContext(), entry); rerr != nil {
			log.WithError(rerr).WithFields(logrus.Fields{
				"action":   action,
				"admin_id": adminID,
			}).Error("failed to record audit log")
		}
		return nil
	}
}

// auditPayload keeps JSON object bodies without secrets; anything else is not recorded
func auditPayload(body []byte) datatypes.JSON {
	if len(body) == 0 {
		return nil
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil
	}
	for _, key := range secretKeys {
		delete(fields, key)
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
