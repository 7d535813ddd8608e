package cron

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sahilchouksey/univast-api/database"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/services/storage"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/sahilchouksey/univast-api/utils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type sent struct {
	recipient string
	kind      model.NotificationKind
	params    services.NotificationParams
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []sent
}

func (r *recordingDispatcher) Notify(_ context.Context, recipient string, kind model.NotificationKind, params services.NotificationParams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, sent{recipient: recipient, kind: kind, params: params})
}

type harness struct {
	db           *gorm.DB
	dispatcher   *recordingDispatcher
	accounts     *services.AccountService
	institutions *services.InstitutionService
	programs     *services.ProgramService
	applicants   *services.ApplicantService
	applications *services.ApplicationService
	manager      *CronManager
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	log := logger.Discard()
	h := &harness{db: db, dispatcher: &recordingDispatcher{}}

	attachments := services.NewAttachmentService(backend, services.AttachmentLimits{}, log)
	h.institutions = services.NewInstitutionService(db, attachments, log)
	h.programs = services.NewProgramService(db, h.institutions, attachments, log)
	h.applicants = services.NewApplicantService(db, h.institutions, attachments, log)
	h.accounts = services.NewAccountService(db, &auth.BcryptHasher{Cost: bcrypt.MinCost}, h.applicants, h.institutions, attachments, log)
	// Submission notifications are not under test here
	h.applications = services.NewApplicationService(db, h.institutions, attachments, nil, log, services.ApplicationOptions{})

	notifications := services.NewNotificationDispatcher(db, nil, log)
	h.manager = NewCronManager(db, Services{
		Accounts:      h.accounts,
		Applications:  h.applications,
		Institutions:  h.institutions,
		Dispatcher:    h.dispatcher,
		Notifications: notifications,
		Revocations:   auth.NewRevocationStore(db),
	}, Options{}, log)
	return h
}

func (h *harness) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	for _, name := range []string{"root", "ops"} {
		_, err := h.accounts.Create(ctx, services.CreateAccountInput{
			Username: name,
			Email:    name + "@example.com",
			Password: "secret123",
			Role:     model.RoleAdmin,
		})
		require.NoError(t, err)
	}

	inst, err := h.institutions.Create(ctx, services.InstitutionInput{Name: "Example College", Location: "Springfield"})
	require.NoError(t, err)
	program, err := h.programs.Create(ctx, inst.ID, services.ProgramInput{Name: "Data Science", TuitionFee: 40000})
	require.NoError(t, err)

	for _, email := range []string{"one@example.com", "two@example.com", "three@example.com"} {
		a, err := h.applicants.Create(ctx, services.ApplicantInput{FirstName: "Test", LastName: "Applicant", Email: email})
		require.NoError(t, err)
		app, err := h.applications.Submit(ctx, a.ID, program.ID, "")
		require.NoError(t, err)
		if email == "one@example.com" {
			_, err = h.applications.Transition(ctx, app.ID, model.StatusAccepted, "")
			require.NoError(t, err)
		}
	}
}

func TestCronManager_DailyDigest(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	require.NoError(t, h.manager.RunNow(JobDailyDigest))

	require.Len(t, h.dispatcher.calls, 2)
	for _, call := range h.dispatcher.calls {
		assert.Equal(t, model.NotificationDigest, call.kind)
		assert.Equal(t, "Daily", call.params.Period)
		assert.Equal(t, int64(3), call.params.Total)
		assert.Equal(t, int64(2), call.params.StatusCount["PENDING"])
		assert.Equal(t, int64(1), call.params.StatusCount["ACCEPTED"])
	}

	runs, err := h.manager.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, JobDailyDigest, runs[0].JobName)
	assert.Equal(t, model.CronJobCompleted, runs[0].Status)
	assert.Contains(t, runs[0].Message, "Sent digest to 2 admins")
	assert.NotNil(t, runs[0].CompletedAt)
}

func TestCronManager_DigestSkipsInactiveAdmins(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	ops, err := h.accounts.GetByUsername(ctx, "ops")
	require.NoError(t, err)
	inactive := false
	_, err = h.accounts.Update(ctx, ops.ID, services.UpdateAccountInput{Active: &inactive})
	require.NoError(t, err)

	require.NoError(t, h.manager.RunNow(JobDailyDigest))
	require.Len(t, h.dispatcher.calls, 1)
	assert.Equal(t, "root@example.com", h.dispatcher.calls[0].recipient)
}

func TestCronManager_WeeklyReport(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	require.NoError(t, h.manager.RunNow(JobWeeklyReport))

	require.NotEmpty(t, h.dispatcher.calls)
	assert.Equal(t, "Weekly", h.dispatcher.calls[0].params.Period)
	assert.Equal(t, int64(3), h.dispatcher.calls[0].params.Total)
}

func TestCronManager_ReconcileCounters(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	require.NoError(t, h.db.Model(&model.Institution{}).Where("1 = 1").UpdateColumn("application_count", 99).Error)

	require.NoError(t, h.manager.RunNow(JobReconcileCounters))

	var inst model.Institution
	require.NoError(t, h.db.First(&inst).Error)
	assert.Equal(t, 3, inst.ApplicationCount)
	assert.Equal(t, 1, inst.ProgramCount)
}

func TestCronManager_CleanupOldData(t *testing.T) {
	h := newHarness(t)

	old := time.Now().Add(-100 * 24 * time.Hour)
	require.NoError(t, h.db.Create(&model.CronJobLog{JobName: JobDailyDigest, Status: model.CronJobCompleted, StartedAt: old, CreatedAt: old, Metadata: []byte("{}")}).Error)
	require.NoError(t, h.db.Create(&model.NotificationLog{CreatedAt: old, Recipient: "a@example.com", Kind: model.NotificationDigest, Status: model.NotificationSent}).Error)
	require.NoError(t, h.manager.svc.Revocations.RevokeToken(context.Background(), "expired-jti", 1, old, model.RevokeReasonLogout))

	require.NoError(t, h.manager.RunNow(JobCleanupOldData))

	var notifications int64
	require.NoError(t, h.db.Model(&model.NotificationLog{}).Count(&notifications).Error)
	assert.Zero(t, notifications)

	var tokens int64
	require.NoError(t, h.db.Model(&model.RevokedToken{}).Count(&tokens).Error)
	assert.Zero(t, tokens)

	runs, err := h.manager.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1, "only the cleanup run itself remains")
	assert.Equal(t, JobCleanupOldData, runs[0].JobName)
}

func TestCronManager_UnknownJob(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.manager.RunNow("reindex"))
}

func TestCronManager_StartRejectsBadSchedule(t *testing.T) {
	h := newHarness(t)
	m := NewCronManager(h.db, h.manager.svc, Options{DigestSchedule: "every day"}, logger.Discard())
	assert.Error(t, m.Start())
}
