package middleware

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryAudit struct {
	entries []*model.AdminAuditLog
}

func (m *memoryAudit) Record(_ context.Context, entry *model.AdminAuditLog) error {
	m.entries = append(m.entries, entry)
	return nil
}

func TestAdminAudit(t *testing.T) {
	recorder := &memoryAudit{}

	asRole := func(role model.Role) fiber.Handler {
		return func(c *fiber.Ctx) error {
			c.Locals("account_id", uint(5))
			c.Locals("account_role", string(role))
			return c.Next()
		}
	}
	status := func(code int) fiber.Handler {
		return func(c *fiber.Ctx) error {
			return c.SendStatus(code)
		}
	}

	app := fiber.New()
	audit := AdminAudit(recorder, logger.Discard(), "account_update", "accounts")
	app.Put("/admin/accounts/:id", asRole(model.RoleAdmin), audit, status(fiber.StatusOK))
	app.Put("/admin/failing/:id", asRole(model.RoleAdmin), audit, status(fiber.StatusUnprocessableEntity))
	app.Put("/self/accounts/:id", asRole(model.RoleApplicant), audit, status(fiber.StatusOK))

	send := func(path, body string) {
		req := httptest.NewRequest("PUT", path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	send("/admin/accounts/12", `{"email":"new@example.com","password":"hunter22"}`)
	send("/admin/failing/12", `{"email":"bad"}`)
	send("/self/accounts/12", `{"email":"self@example.com"}`)

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, uint(5), entry.AdminID)
	assert.Equal(t, uint(12), entry.ResourceID)
	assert.Equal(t, fiber.StatusOK, entry.StatusCode)
	assert.Equal(t, "PUT /admin/accounts/12", entry.Description)
	assert.JSONEq(t, `{"email":"new@example.com"}`, string(entry.Payload))
}

func TestAuditPayload(t *testing.T) {
	assert.Nil(t, auditPayload(nil))
	assert.Nil(t, auditPayload([]byte("not json")))
	assert.Nil(t, auditPayload([]byte(`["a"]`)))
	assert.JSONEq(t, `{"name":"x"}`, string(auditPayload([]byte(`{"name":"x","current_password":"a","new_password":"b"}`))))
}
