package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/sahilchouksey/univast-api/utils/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job names, also used as the job_name column and metric label
const (
	JobDailyDigest       = "daily_digest"
	JobWeeklyReport      = "weekly_report"
	JobReconcileCounters = "reconcile_counters"
	JobCleanupOldData    = "cleanup_old_data"
)

const jobTimeout = 10 * time.Minute

// Options configures schedules (six-field cron specs with seconds) and retention
type Options struct {
	DigestSchedule    string
	WeeklySchedule    string
	ReconcileSchedule string
	CleanupSchedule   string
	NotificationTTL   time.Duration
}

// Services are the collaborators the jobs read from and notify through
type Services struct {
	Accounts      *services.AccountService
	Applications  *services.ApplicationService
	Institutions  *services.InstitutionService
	Dispatcher    services.Dispatcher
	Notifications *services.NotificationDispatcher
	Revocations   *auth.RevocationStore
}

// jobFunc runs one job and returns a summary message plus metadata for the log row
type jobFunc func(ctx context.Context) (string, map[string]interface{}, error)

type job struct {
	name     string
	schedule string
	run      jobFunc
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron *cron.Cron
	db   *gorm.DB
	svc  Services
	opts Options
	log  logrus.FieldLogger
	now  services.Clock
	jobs []job
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, svc Services, opts Options, log logrus.FieldLogger) *CronManager {
	if opts.NotificationTTL <= 0 {
		opts.NotificationTTL = 30 * 24 * time.Hour
	}

	m := &CronManager{
		// Create cron with seconds precision
		cron: cron.New(cron.WithSeconds()),
		db:   db,
		svc:  svc,
		opts: opts,
		log:  log.WithField("component", "cron"),
		now:  services.SystemClock,
	}

	m.jobs = []job{
		{name: JobDailyDigest, schedule: opts.DigestSchedule, run: m.SendDailyDigest},
		{name: JobWeeklyReport, schedule: opts.WeeklySchedule, run: m.SendWeeklyReport},
		{name: JobReconcileCounters, schedule: opts.ReconcileSchedule, run: m.ReconcileCounters},
		{name: JobCleanupOldData, schedule: opts.CleanupSchedule, run: m.CleanupOldData},
	}
	return m
}

// Start registers every job with a schedule and starts the scheduler
func (m *CronManager) Start() error {
	m.log.Info("starting cron jobs")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	m.log.Info("cron jobs started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (m *CronManager) Stop() {
	m.log.Info("stopping cron jobs")
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.log.Info("cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules. An empty schedule disables a job.
func (m *CronManager) registerJobs() error {
	for _, j := range m.jobs {
		if j.schedule == "" {
			m.log.WithField("job", j.name).Info("job disabled")
			continue
		}
		j := j
		if _, err := m.cron.AddFunc(j.schedule, func() { _ = m.execute(j) }); err != nil {
			return fmt.Errorf("failed to schedule %s (%q): %w", j.name, j.schedule, err)
		}
	}

	m.log.WithField("count", len(m.cron.Entries())).Info("cron jobs registered")
	return nil
}

// RunNow executes the named job synchronously
func (m *CronManager) RunNow(name string) error {
	for _, j := range m.jobs {
		if j.name == name {
			return m.execute(j)
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

// execute runs j with a timeout, keeps a CronJobLog row for the run and never panics
func (m *CronManager) execute(j job) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	entry := m.log.WithField("job", j.name)
	started := m.now()
	runLog := m.logJobStart(j.name, started)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			m.logJobError(j.name, runLog, started, err)
			entry.WithField("panic", r).Error("cron job panicked")
		}
	}()

	entry.Debug("cron job started")

	message, metadata, err := j.run(ctx)
	if err != nil {
		m.logJobError(j.name, runLog, started, err)
		entry.WithError(err).Error("cron job failed")
		return err
	}

	m.logJobComplete(j.name, runLog, started, message, metadata)
	entry.WithField("result", message).Info("cron job completed")
	return nil
}

// logJobStart records the start of a run; the returned row may be nil if the insert failed
func (m *CronManager) logJobStart(jobName string, started time.Time) *model.CronJobLog {
	runLog := &model.CronJobLog{
		JobName:   jobName,
		Status:    model.CronJobStarted,
		StartedAt: started,
		Metadata:  datatypes.JSON("{}"),
	}
	if err := m.db.Create(runLog).Error; err != nil {
		m.log.WithError(err).WithField("job", jobName).Warn("failed to record cron job start")
		return nil
	}
	return runLog
}

func (m *CronManager) logJobComplete(jobName string, runLog *model.CronJobLog, started time.Time, message string, metadata map[string]interface{}) {
	updates := map[string]interface{}{
		"status":  model.CronJobCompleted,
		"message": message,
	}
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			updates["metadata"] = datatypes.JSON(raw)
		}
	}
	m.finish(jobName, runLog, started, model.CronJobCompleted, updates)
}

func (m *CronManager) logJobError(jobName string, runLog *model.CronJobLog, started time.Time, err error) {
	m.finish(jobName, runLog, started, model.CronJobFailed, map[string]interface{}{
		"status":    model.CronJobFailed,
		"error_msg": err.Error(),
	})
}

func (m *CronManager) finish(jobName string, runLog *model.CronJobLog, started time.Time, status model.CronJobStatus, updates map[string]interface{}) {
	metrics.CronRunsTotal.WithLabelValues(jobName, string(status)).Inc()
	if runLog == nil {
		return
	}

	completed := m.now()
	updates["completed_at"] = completed
	updates["duration"] = completed.Sub(started).Milliseconds()

	if err := m.db.Model(&model.CronJobLog{}).Where("id = ?", runLog.ID).Updates(updates).Error; err != nil {
		m.log.WithError(err).WithField("job", jobName).Warn("failed to record cron job result")
	}
}

// RecentRuns returns the latest job log rows, newest first
func (m *CronManager) RecentRuns(ctx context.Context, limit int) ([]model.CronJobLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []model.CronJobLog
	if err := m.db.WithContext(ctx).Order("started_at DESC, id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list cron job logs: %w", err)
	}
	return runs, nil
}
