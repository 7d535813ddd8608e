package app

import (
	"fmt"
	"time"

	"github.com/sahilchouksey/univast-api/config"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/services/storage"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container holds the wired domain services
type Container struct {
	Attachments   *services.AttachmentService
	Notifications *services.NotificationDispatcher
	Institutions  *services.InstitutionService
	Programs      *services.ProgramService
	Applicants    *services.ApplicantService
	Accounts      *services.AccountService
	Applications  *services.ApplicationService
	Audit         *services.AuditService
}

// NewStorageBackend builds the attachment backend selected by ATTACHMENT_BACKEND
func NewStorageBackend(cfg *config.EnviornmentVariable) (storage.Backend, error) {
	switch cfg.ATTACHMENT_BACKEND {
	case "spaces":
		return storage.NewSpacesBackend(storage.SpacesConfig{
			AccessKey: cfg.DO_SPACES_ACCESS_KEY,
			SecretKey: cfg.DO_SPACES_SECRET_KEY,
			Bucket:    cfg.DO_SPACES_BUCKET,
			Region:    cfg.DO_SPACES_REGION,
			Endpoint:  cfg.DO_SPACES_ENDPOINT,
		})
	case "local", "":
		return storage.NewLocalBackend(cfg.UPLOAD_DIR)
	}
	return nil, fmt.Errorf("unsupported ATTACHMENT_BACKEND %q", cfg.ATTACHMENT_BACKEND)
}

// NewContainer wires every service on top of db
func NewContainer(cfg *config.EnviornmentVariable, db *gorm.DB, backend storage.Backend, mailer services.Mailer, log logrus.FieldLogger) *Container {
	attachments := services.NewAttachmentService(backend, services.AttachmentLimits{
		MaxImageBytes:    int64(cfg.MAX_IMAGE_SIZE_MB) << 20,
		MaxDocumentBytes: int64(cfg.MAX_DOCUMENT_SIZE_MB) << 20,
	}, log)

	notifications := services.NewNotificationDispatcher(db, mailer, log.WithField("service", "notification"))
	institutions := services.NewInstitutionService(db, attachments, log)
	programs := services.NewProgramService(db, institutions, attachments, log)
	applicants := services.NewApplicantService(db, institutions, attachments, log)
	accounts := services.NewAccountService(db, auth.NewBcryptHasher(), applicants, institutions, attachments, log)
	applications := services.NewApplicationService(db, institutions, attachments, notifications, log, services.ApplicationOptions{
		Permissive: cfg.LIFECYCLE_PERMISSIVE,
	})

	return &Container{
		Attachments:   attachments,
		Notifications: notifications,
		Institutions:  institutions,
		Programs:      programs,
		Applicants:    applicants,
		Accounts:      accounts,
		Applications:  applications,
		Audit:         services.NewAuditService(db, log),
	}
}

// notificationTTL converts NOTIFICATION_TTL_HR into a duration
func notificationTTL(cfg *config.EnviornmentVariable) time.Duration {
	return time.Duration(cfg.NOTIFICATION_TTL_HR) * time.Hour
}
