package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/apperrors"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRevocations map[string]bool

func (s stubRevocations) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	return s[jti], nil
}

type stubAccounts map[uint]*model.Account

func (s stubAccounts) GetByID(_ context.Context, id uint) (*model.Account, error) {
	account, ok := s[id]
	if !ok {
		return nil, apperrors.NotFound("account", id)
	}
	return account, nil
}

func newTestJWT() *auth.JWTManager {
	return auth.NewJWTManager(auth.JWTConfig{Secret: "test-secret", Expiry: time.Hour, Issuer: "test"})
}

func tokenFor(t *testing.T, jwt *auth.JWTManager, account *model.Account) string {
	t.Helper()
	token, _, err := jwt.GenerateAccessToken(account.ID, account.Username, string(account.Role), account.TokenVersion)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	jwt := newTestJWT()
	applicant := &model.Account{ID: 1, Username: "tester", Role: model.RoleApplicant, Active: true}
	admin := &model.Account{ID: 2, Username: "root", Role: model.RoleAdmin, Active: true}
	inactive := &model.Account{ID: 3, Username: "gone", Role: model.RoleApplicant, Active: false}
	rotated := &model.Account{ID: 4, Username: "rotated", Role: model.RoleApplicant, Active: true}
	accounts := stubAccounts{1: applicant, 2: admin, 3: inactive, 4: rotated}

	staleToken := tokenFor(t, jwt, rotated)
	rotated.TokenVersion = 1

	revokedToken, revokedJTI, err := jwt.GenerateAccessToken(applicant.ID, applicant.Username, string(applicant.Role), 0)
	require.NoError(t, err)

	m := NewAuthMiddleware(jwt, accounts, stubRevocations{revokedJTI: true})

	app := fiber.New()
	app.Get("/me", m.Required(), func(c *fiber.Ctx) error {
		id, _ := GetAccountID(c)
		role, _ := GetAccountRole(c)
		return c.JSON(fiber.Map{"id": id, "role": role})
	})
	app.Get("/institutions-only", m.Required(), m.RequireRole(model.RoleInstitution, model.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/admin", m.RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	other := auth.NewJWTManager(auth.JWTConfig{Secret: "other-secret", Expiry: time.Hour})
	forged, _, err := other.GenerateAccessToken(2, "root", string(model.RoleAdmin), 0)
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing header", "/me", "", fiber.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic abc", fiber.StatusUnauthorized},
		{"garbage token", "/me", "Bearer abc", fiber.StatusUnauthorized},
		{"foreign signature", "/me", "Bearer " + forged, fiber.StatusUnauthorized},
		{"valid", "/me", "Bearer " + tokenFor(t, jwt, applicant), fiber.StatusOK},
		{"inactive account", "/me", "Bearer " + tokenFor(t, jwt, inactive), fiber.StatusUnauthorized},
		{"rotated password", "/me", "Bearer " + staleToken, fiber.StatusUnauthorized},
		{"revoked by logout", "/me", "Bearer " + revokedToken, fiber.StatusUnauthorized},
		{"unknown account", "/me", "Bearer " + tokenFor(t, jwt, &model.Account{ID: 99, Role: model.RoleAdmin}), fiber.StatusUnauthorized},
		{"role denied", "/institutions-only", "Bearer " + tokenFor(t, jwt, applicant), fiber.StatusForbidden},
		{"role allowed", "/institutions-only", "Bearer " + tokenFor(t, jwt, admin), fiber.StatusOK},
		{"admin denied", "/admin", "Bearer " + tokenFor(t, jwt, applicant), fiber.StatusForbidden},
		{"admin allowed", "/admin", "Bearer " + tokenFor(t, jwt, admin), fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
