package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationParams are the template inputs for a notification
type NotificationParams struct {
	ApplicationID   uint   `json:"application_id,omitempty"`
	ApplicantName   string `json:"applicant_name,omitempty"`
	ProgramName     string `json:"program_name,omitempty"`
	InstitutionName string `json:"institution_name,omitempty"`
	Status          string `json:"status,omitempty"`
	Feedback        string `json:"feedback,omitempty"`

	// Digest only
	Period      string           `json:"period,omitempty"`
	Total       int64            `json:"total,omitempty"`
	StatusCount map[string]int64 `json:"status_count,omitempty"`
}

// Dispatcher sends a notification on a best-effort basis.
// Notify never fails the caller; delivery problems are logged.
type Dispatcher interface {
	Notify(ctx context.Context, recipient string, kind model.NotificationKind, params NotificationParams)
}

// NotificationDispatcher renders notifications, mails them and keeps a log row per attempt
type NotificationDispatcher struct {
	db     *gorm.DB
	mailer Mailer
	log    logrus.FieldLogger
	now    Clock
}

var _ Dispatcher = (*NotificationDispatcher)(nil)

// NewNotificationDispatcher creates a dispatcher. mailer may be nil, in which case every
// notification is logged as skipped.
func NewNotificationDispatcher(db *gorm.DB, mailer Mailer, log logrus.FieldLogger) *NotificationDispatcher {
	return &NotificationDispatcher{
		db:     db,
		mailer: mailer,
		log:    log,
		now:    SystemClock,
	}
}

// Notify renders, sends and records one notification
func (d *NotificationDispatcher) Notify(ctx context.Context, recipient string, kind model.NotificationKind, params NotificationParams) {
	entry := d.log.WithFields(logrus.Fields{
		"recipient": recipient,
		"kind":      kind,
	})

	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", r).Error("notification dispatch panicked")
			metrics.NotificationsTotal.WithLabelValues(string(kind), string(model.NotificationFailed)).Inc()
		}
	}()

	subject, body, err := RenderNotification(kind, params)
	if err != nil {
		entry.WithError(err).Warn("notification not rendered")
		d.record(ctx, recipient, kind, "", model.NotificationFailed, err.Error(), params)
		return
	}

	status := model.NotificationSent
	errMsg := ""

	switch {
	case recipient == "":
		status = model.NotificationSkipped
		errMsg = "no recipient"
	case d.mailer == nil || !d.mailer.IsConfigured():
		status = model.NotificationSkipped
		errMsg = ErrMailerNotConfigured.Error()
	default:
		if err := d.mailer.Send(ctx, recipient, subject, body); err != nil {
			status = model.NotificationFailed
			errMsg = err.Error()
			entry.WithError(err).Warn("notification delivery failed")
		}
	}

	if status == model.NotificationSent {
		entry.Info("notification sent")
	} else if status == model.NotificationSkipped {
		entry.WithField("reason", errMsg).Debug("notification skipped")
	}

	d.record(ctx, recipient, kind, subject, status, errMsg, params)
}

func (d *NotificationDispatcher) record(ctx context.Context, recipient string, kind model.NotificationKind, subject string, status model.NotificationStatus, errMsg string, params NotificationParams) {
	metrics.NotificationsTotal.WithLabelValues(string(kind), string(status)).Inc()

	if d.db == nil {
		return
	}

	logEntry := model.NotificationLog{
		CreatedAt: d.now(),
		Recipient: recipient,
		Kind:      kind,
		Subject:   subject,
		Status:    status,
		Error:     errMsg,
	}
	if params.ApplicationID != 0 {
		id := params.ApplicationID
		logEntry.ApplicationID = &id
	}
	if metadataJSON, err := json.Marshal(params); err == nil {
		logEntry.Metadata = datatypes.JSON(metadataJSON)
	}

	// Detached from ctx so a finished request still leaves its audit row
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := d.db.WithContext(writeCtx).Create(&logEntry).Error; err != nil {
		d.log.WithError(err).WithField("kind", kind).Warn("failed to record notification log")
	}
}

// ListLogs returns the most recent notification log rows, optionally for one recipient
func (d *NotificationDispatcher) ListLogs(ctx context.Context, recipient string, limit, offset int) ([]model.NotificationLog, int64, error) {
	var logs []model.NotificationLog
	var total int64

	query := d.db.WithContext(ctx).Model(&model.NotificationLog{})
	if recipient != "" {
		query = query.Where("recipient = ?", recipient)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storageError("count notification logs", err)
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, 0, storageError("list notification logs", err)
	}

	return logs, total, nil
}

// CleanupOldLogs deletes notification log rows older than olderThan
func (d *NotificationDispatcher) CleanupOldLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := d.now().Add(-olderThan)

	result := d.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.NotificationLog{})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup old notification logs: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		d.log.WithField("count", result.RowsAffected).Info("cleaned up old notification logs")
	}

	return result.RowsAffected, nil
}

// RenderNotification builds the subject and plain-text body for kind
func RenderNotification(kind model.NotificationKind, p NotificationParams) (string, string, error) {
	switch kind {
	case model.NotificationApplicationSubmitted:
		return "Application Submitted Successfully", fmt.Sprintf(
			"Dear %s,\n\n"+
				"Your application for %s at %s has been submitted successfully.\n"+
				"We will review your application and get back to you soon.\n\n"+
				"Best regards,\n"+
				"Univast Admissions",
			greetingName(p.ApplicantName), p.ProgramName, p.InstitutionName,
		), nil

	case model.NotificationStatusChanged:
		feedback := p.Feedback
		if feedback == "" {
			feedback = "none"
		}
		return "Application Status Update", fmt.Sprintf(
			"Dear %s,\n\n"+
				"Your application status for %s at %s has been updated to: %s\n"+
				"Feedback: %s\n\n"+
				"Best regards,\n"+
				"Univast Admissions",
			greetingName(p.ApplicantName), p.ProgramName, p.InstitutionName, p.Status, feedback,
		), nil

	case model.NotificationDigest:
		period := p.Period
		if period == "" {
			period = "Daily"
		}
		body := fmt.Sprintf(
			"Dear Admin,\n\n"+
				"Here is the %s summary of application activity.\n"+
				"Total applications: %d\n",
			strings.ToLower(period), p.Total,
		)
		for _, status := range model.AllStatuses {
			body += fmt.Sprintf("- %s: %d\n", status, p.StatusCount[string(status)])
		}
		body += "\nBest regards,\nUnivast Admissions"
		return fmt.Sprintf("%s Application Summary", period), body, nil
	}

	return "", "", fmt.Errorf("unknown notification kind %q", kind)
}

func greetingName(name string) string {
	if name == "" {
		return "Applicant"
	}
	return name
}
