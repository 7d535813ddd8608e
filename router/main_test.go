package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/database"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/services/storage"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/sahilchouksey/univast-api/utils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	app          *fiber.App
	accounts     *services.AccountService
	institutions *services.InstitutionService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	log := logger.Discard()
	attachments := services.NewAttachmentService(backend, services.AttachmentLimits{}, log)
	institutions := services.NewInstitutionService(db, attachments, log)
	programs := services.NewProgramService(db, institutions, attachments, log)
	applicants := services.NewApplicantService(db, institutions, attachments, log)
	accounts := services.NewAccountService(db, &auth.BcryptHasher{Cost: bcrypt.MinCost}, applicants, institutions, attachments, log)
	notifications := services.NewNotificationDispatcher(db, nil, log)
	applications := services.NewApplicationService(db, institutions, attachments, notifications, log, services.ApplicationOptions{})

	app := fiber.New()
	SetupRoutes(app, Dependencies{
		Store:         database.NewGORMStore(db, log),
		JWT:           auth.NewJWTManager(auth.JWTConfig{Secret: "test-secret", Expiry: time.Hour, Issuer: "test"}),
		Revocations:   auth.NewRevocationStore(db),
		Accounts:      accounts,
		Applicants:    applicants,
		Institutions:  institutions,
		Programs:      programs,
		Applications:  applications,
		Attachments:   attachments,
		Notifications: notifications,
		Audit:         services.NewAuditService(db, log),
		Log:           log,
	}, RouteConfig{AllowedOrigins: "http://localhost:3000", AccessLog: io.Discard})

	return &testServer{app: app, accounts: accounts, institutions: institutions}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &env)
	}
	return resp.StatusCode, env
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	status, env := s.do(t, "POST", "/api/v1/auth/login", "", map[string]string{"login": username, "password": "secret123"})
	require.Equal(t, fiber.StatusOK, status)

	var token struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &token))
	require.NotEmpty(t, token.AccessToken)
	return token.AccessToken
}

func TestRoutes_Ping(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, "GET", "/ping", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRoutes_Registration(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, "POST", "/api/v1/auth/register", "", map[string]interface{}{
		"username": "root", "email": "root@example.com", "password": "secret123", "role": "ADMIN",
	})
	assert.Equal(t, fiber.StatusForbidden, status)

	body := map[string]interface{}{
		"username": "tester", "email": "tester@example.com", "password": "secret123", "role": "APPLICANT",
		"applicant": map[string]string{"first_name": "A.", "last_name": "Tester"},
	}
	status, _ = s.do(t, "POST", "/api/v1/auth/register", "", body)
	assert.Equal(t, fiber.StatusCreated, status)

	status, env := s.do(t, "POST", "/api/v1/auth/register", "", body)
	assert.Equal(t, fiber.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	status, env = s.do(t, "POST", "/api/v1/auth/register", "", map[string]interface{}{"username": "x", "role": "APPLICANT"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Fields, "password")

	status, _ = s.do(t, "POST", "/api/v1/auth/login", "", map[string]string{"login": "tester", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	token := s.login(t, "tester")
	status, _ = s.do(t, "GET", "/api/v1/auth/me", token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = s.do(t, "GET", "/api/v1/applicants/me", token, nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRoutes_AccountAvailability(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, "POST", "/api/v1/auth/register", "", map[string]interface{}{
		"username": "tester", "email": "tester@example.com", "password": "secret123", "role": "APPLICANT",
		"applicant": map[string]string{"first_name": "A.", "last_name": "Tester"},
	})
	require.Equal(t, fiber.StatusCreated, status)

	status, env := s.do(t, "GET", "/api/v1/accounts/exists?email=Tester@Example.com", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var result map[string]bool
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result["email_taken"])

	status, _ = s.do(t, "GET", "/api/v1/accounts/exists?email=not-an-email", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, "GET", "/api/v1/accounts/exists", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestRoutes_Logout(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, "POST", "/api/v1/auth/register", "", map[string]interface{}{
		"username": "tester", "email": "tester@example.com", "password": "secret123", "role": "APPLICANT",
		"applicant": map[string]string{"first_name": "A.", "last_name": "Tester"},
	})
	require.Equal(t, fiber.StatusCreated, status)

	first := s.login(t, "tester")
	second := s.login(t, "tester")

	status, _ = s.do(t, "POST", "/api/v1/auth/logout", first, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = s.do(t, "GET", "/api/v1/auth/me", first, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	// Other sessions stay valid
	status, _ = s.do(t, "GET", "/api/v1/auth/me", second, nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRoutes_AdminAuditTrail(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.accounts.Create(ctx, services.CreateAccountInput{
		Username: "root", Email: "root@example.com", Password: "secret123", Role: model.RoleAdmin,
	})
	require.NoError(t, err)
	adminToken := s.login(t, "root")

	status, _ := s.do(t, "POST", "/api/v1/accounts", adminToken, map[string]interface{}{
		"username": "ops", "email": "ops@example.com", "password": "secret123", "role": "ADMIN",
	})
	require.Equal(t, fiber.StatusCreated, status)

	// Rejected requests are not audited
	status, _ = s.do(t, "POST", "/api/v1/accounts", adminToken, map[string]interface{}{
		"username": "ops", "email": "ops@example.com", "password": "secret123", "role": "ADMIN",
	})
	require.Equal(t, fiber.StatusConflict, status)

	status, env := s.do(t, "GET", "/api/v1/admin/audit-logs?action=account_create", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)

	var logs []model.AdminAuditLog
	require.NoError(t, json.Unmarshal(env.Data, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "accounts", logs[0].Resource)
	assert.Equal(t, fiber.StatusCreated, logs[0].StatusCode)
	assert.Contains(t, string(logs[0].Payload), `"username":"ops"`)
	assert.NotContains(t, string(logs[0].Payload), "secret123")

	status, _ = s.do(t, "GET", fmt.Sprintf("/api/v1/admin/audit-logs/%d", logs[0].ID), adminToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = s.do(t, "GET", "/api/v1/admin/audit-logs/9999", adminToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestRoutes_ApplicationLifecycle(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.accounts.Create(ctx, services.CreateAccountInput{
		Username: "root", Email: "root@example.com", Password: "secret123", Role: model.RoleAdmin,
	})
	require.NoError(t, err)
	adminToken := s.login(t, "root")

	status, _ := s.do(t, "POST", "/api/v1/auth/register", "", map[string]interface{}{
		"username": "college", "email": "admissions@example.edu", "password": "secret123", "role": "INSTITUTION",
		"institution": map[string]interface{}{"name": "Example College", "location": "Springfield", "acceptance_rate": 42.5},
	})
	require.Equal(t, fiber.StatusCreated, status)
	collegeToken := s.login(t, "college")

	collegeAccount, err := s.accounts.GetByUsername(ctx, "college")
	require.NoError(t, err)
	college, err := s.institutions.GetByAccountID(ctx, collegeAccount.ID)
	require.NoError(t, err)

	status, env := s.do(t, "POST", fmt.Sprintf("/api/v1/institutions/%d/programs", college.ID), collegeToken,
		map[string]interface{}{"name": "Data Science", "degree": "MSc", "tuition_fee": 40000})
	require.Equal(t, fiber.StatusCreated, status)
	var program struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &program))

	status, _ = s.do(t, "POST", "/api/v1/auth/register", "", map[string]interface{}{
		"username": "tester", "email": "a.tester@example.com", "password": "secret123", "role": "APPLICANT",
		"applicant": map[string]string{"first_name": "A.", "last_name": "Tester"},
	})
	require.Equal(t, fiber.StatusCreated, status)
	applicantToken := s.login(t, "tester")

	// Institutions cannot apply
	status, _ = s.do(t, "POST", "/api/v1/applications", collegeToken, map[string]interface{}{"program_id": program.ID})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env = s.do(t, "POST", "/api/v1/applications", applicantToken, map[string]interface{}{
		"program_id": program.ID, "personal_statement": "statement text",
	})
	require.Equal(t, fiber.StatusCreated, status)
	var view model.ApplicationView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, model.StatusPending, view.Status)
	assert.Equal(t, "Data Science", view.Program.Name)
	assert.Equal(t, "Example College", view.Institution.Name)

	appPath := fmt.Sprintf("/api/v1/applications/%d", view.ID)

	// Applicants cannot decide their own applications
	status, _ = s.do(t, "PATCH", appPath+"/status", applicantToken, map[string]string{"status": "ACCEPTED"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env = s.do(t, "PATCH", appPath+"/status", collegeToken, map[string]string{"status": "ACCEPTED", "feedback": "Welcome!"})
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, model.StatusAccepted, view.Status)
	assert.Equal(t, "Welcome!", view.Feedback)

	status, env = s.do(t, "PATCH", appPath+"/status", collegeToken, map[string]string{"status": "PENDING"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Fields, "status")

	status, env = s.do(t, "GET", appPath, applicantToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, model.StatusAccepted, view.Status)

	status, _ = s.do(t, "GET", "/api/v1/applications/9999", adminToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, "GET", "/api/v1/applications?status=ACCEPTED", applicantToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env = s.do(t, "GET", "/api/v1/applications?status=ACCEPTED", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	var listed []model.ApplicationView
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Len(t, listed, 1)

	status, _ = s.do(t, "GET", "/api/v1/admin/stats", adminToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = s.do(t, "GET", "/api/v1/admin/stats", collegeToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.do(t, "DELETE", appPath, adminToken, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
}
