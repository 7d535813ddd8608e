package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/apperrors"
	"github.com/sahilchouksey/univast-api/utils/metrics"
	"github.com/sahilchouksey/univast-api/database"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MaxPersonalStatementLength = 1000
	MaxFeedbackLength          = 500
)

// ApplicationOptions tunes the lifecycle engine
type ApplicationOptions struct {
	// Permissive allows any transition between known statuses
	Permissive bool
	Clock      Clock
}

// ApplicationStats is a per-status breakdown recomputed from the applications table
type ApplicationStats struct {
	InstitutionID uint                              `json:"institution_id,omitempty"`
	Total         int64                             `json:"total"`
	ByStatus      map[model.ApplicationStatus]int64 `json:"by_status"`
}

// ApplicationService drives applications through their lifecycle
type ApplicationService struct {
	db           *gorm.DB
	institutions *InstitutionService
	attachments  *AttachmentService
	dispatcher   Dispatcher
	log          logrus.FieldLogger
	permissive   bool
	now          Clock
}

// NewApplicationService creates the lifecycle engine
func NewApplicationService(db *gorm.DB, institutions *InstitutionService, attachments *AttachmentService, dispatcher Dispatcher, log logrus.FieldLogger, opts ApplicationOptions) *ApplicationService {
	now := opts.Clock
	if now == nil {
		now = SystemClock
	}
	return &ApplicationService{
		db:           db,
		institutions: institutions,
		attachments:  attachments,
		dispatcher:   dispatcher,
		log:          log.WithField("service", "application"),
		permissive:   opts.Permissive,
		now:          now,
	}
}

// Submit creates a PENDING application for an existing applicant and program
func (s *ApplicationService) Submit(ctx context.Context, applicantID, programID uint, statement string) (*model.Application, error) {
	if tooLong(statement, MaxPersonalStatementLength) {
		return nil, apperrors.ValidationField("personal_statement",
			fmt.Sprintf("personal_statement must be at most %d characters", MaxPersonalStatementLength))
	}

	var (
		app         *model.Application
		applicant   model.Applicant
		program     model.Program
		institution model.Institution
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Shared locks hold off a concurrent delete of either parent until commit
		if err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).First(&applicant, applicantID).Error; err != nil {
			return lookupError("applicant", applicantID, err)
		}
		if err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).First(&program, programID).Error; err != nil {
			return lookupError("program", programID, err)
		}
		if err := tx.First(&institution, program.InstitutionID).Error; err != nil {
			return lookupError("institution", program.InstitutionID, err)
		}

		now := s.now()
		app = &model.Application{
			ApplicantID:       applicant.ID,
			ProgramID:         program.ID,
			InstitutionID:     program.InstitutionID,
			Status:            model.StatusPending,
			PersonalStatement: statement,
			SubmittedAt:       now,
			LastUpdatedAt:     now,
		}
		if err := tx.Create(app).Error; err != nil {
			if database.IsForeignKeyViolation(err) {
				return apperrors.NotFound("program", programID)
			}
			return storageError("create application", err)
		}
		return s.institutions.refreshCounters(tx, program.InstitutionID)
	})
	if err != nil {
		return nil, err
	}

	metrics.SubmissionsTotal.Inc()
	s.log.WithFields(logrus.Fields{
		"application_id": app.ID,
		"applicant_id":   applicantID,
		"program_id":     programID,
	}).Info("application submitted")

	s.notify(ctx, applicant.Email, model.NotificationApplicationSubmitted, NotificationParams{
		ApplicationID:   app.ID,
		ApplicantName:   applicant.FullName(),
		ProgramName:     program.Name,
		InstitutionName: institution.Name,
		Status:          string(app.Status),
	})

	return app, nil
}

// Transition moves an application to newStatus and records the reviewer feedback.
// The applicant is notified after the change commits; a failed notification never
// undoes the transition.
func (s *ApplicationService) Transition(ctx context.Context, id uint, newStatus model.ApplicationStatus, feedback string) (*model.Application, error) {
	return s.transition(ctx, id, newStatus, &feedback)
}

// Withdraw is a Transition to WITHDRAWN with the reason as feedback.
// An empty reason keeps whatever feedback the application already has.
func (s *ApplicationService) Withdraw(ctx context.Context, id uint, reason string) (*model.Application, error) {
	if reason == "" {
		return s.transition(ctx, id, model.StatusWithdrawn, nil)
	}
	return s.transition(ctx, id, model.StatusWithdrawn, &reason)
}

// transition leaves the stored feedback alone when feedback is nil
func (s *ApplicationService) transition(ctx context.Context, id uint, newStatus model.ApplicationStatus, feedback *string) (*model.Application, error) {
	if !newStatus.Valid() {
		return nil, apperrors.ValidationField("status", fmt.Sprintf("unknown status %q", newStatus))
	}
	if feedback != nil && tooLong(*feedback, MaxFeedbackLength) {
		return nil, apperrors.ValidationField("feedback",
			fmt.Sprintf("feedback must be at most %d characters", MaxFeedbackLength))
	}

	var (
		app         model.Application
		previous    model.ApplicationStatus
		applicant   model.Applicant
		program     model.Program
		institution model.Institution
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).First(&app, id).Error; err != nil {
			return lookupError("application", id, err)
		}

		previous = app.Status
		if !s.permissive && !previous.CanTransitionTo(newStatus) {
			return apperrors.ValidationField("status",
				fmt.Sprintf("cannot move application from %s to %s", previous, newStatus))
		}

		app.Status = newStatus
		if feedback != nil {
			app.Feedback = *feedback
		}
		app.LastUpdatedAt = s.touch(app.LastUpdatedAt)

		// The status guard catches a decision committed by another reviewer
		// on databases that ignore row locks.
		result := tx.Model(&app).Where("status = ?", previous).
			Select("status", "feedback", "last_updated_at").Updates(&app)
		if result.Error != nil {
			return storageError("update application status", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ValidationField("status",
				fmt.Sprintf("application is no longer %s", previous))
		}

		// Related rows are only needed for the notification; a missing one is not fatal
		tx.First(&applicant, app.ApplicantID)
		tx.First(&program, app.ProgramID)
		tx.First(&institution, app.InstitutionID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(previous), string(newStatus)).Inc()
	s.log.WithFields(logrus.Fields{
		"application_id": id,
		"from":           previous,
		"to":             newStatus,
	}).Info("application status changed")

	s.notify(ctx, applicant.Email, model.NotificationStatusChanged, NotificationParams{
		ApplicationID:   app.ID,
		ApplicantName:   applicant.FullName(),
		ProgramName:     program.Name,
		InstitutionName: institution.Name,
		Status:          string(newStatus),
		Feedback:        app.Feedback,
	})

	return &app, nil
}

// UpdateStatement replaces the personal statement without touching the status
func (s *ApplicationService) UpdateStatement(ctx context.Context, id uint, statement string) (*model.Application, error) {
	if tooLong(statement, MaxPersonalStatementLength) {
		return nil, apperrors.ValidationField("personal_statement",
			fmt.Sprintf("personal_statement must be at most %d characters", MaxPersonalStatementLength))
	}

	var app model.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).First(&app, id).Error; err != nil {
			return lookupError("application", id, err)
		}
		app.PersonalStatement = statement
		app.LastUpdatedAt = s.touch(app.LastUpdatedAt)
		result := tx.Model(&app).Select("personal_statement", "last_updated_at").Updates(&app)
		if result.Error != nil {
			return storageError("update personal statement", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.NotFound("application", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// AttachDocument stores a supporting document and replaces any previous one
func (s *ApplicationService) AttachDocument(ctx context.Context, id uint, payload AttachmentPayload) (*model.Application, error) {
	app, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ref, err := s.attachments.Store(ctx, id, CategoryDocument, payload)
	if err != nil {
		return nil, err
	}

	previous := app.DocumentPath
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).First(app, id).Error; err != nil {
			return lookupError("application", id, err)
		}
		previous = app.DocumentPath
		app.DocumentPath = ref
		app.LastUpdatedAt = s.touch(app.LastUpdatedAt)
		result := tx.Model(app).Where("document_path = ?", previous).
			Select("document_path", "last_updated_at").Updates(app)
		if result.Error != nil {
			return storageError("record application document", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ValidationField("document", "document was replaced concurrently, retry the upload")
		}
		return nil
	})
	if err != nil {
		s.attachments.releaseAll(ctx, []string{ref}, "application document rollback")
		return nil, err
	}

	s.attachments.releaseAll(ctx, []string{previous}, "application document")
	return app, nil
}

// Delete removes an application and releases its document
func (s *ApplicationService) Delete(ctx context.Context, id uint) error {
	var app model.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&app, id).Error; err != nil {
			return lookupError("application", id, err)
		}
		if err := tx.Delete(&model.Application{}, id).Error; err != nil {
			return storageError("delete application", err)
		}
		return s.institutions.refreshCounters(tx, app.InstitutionID)
	})
	if err != nil {
		return err
	}

	s.log.WithField("application_id", id).Info("application deleted")
	if app.DocumentPath != "" {
		s.attachments.releaseAll(ctx, []string{app.DocumentPath}, fmt.Sprintf("application %d", id))
	}
	return nil
}

// GetByID retrieves an application
func (s *ApplicationService) GetByID(ctx context.Context, id uint) (*model.Application, error) {
	var app model.Application
	if err := s.db.WithContext(ctx).First(&app, id).Error; err != nil {
		return nil, lookupError("application", id, err)
	}
	return &app, nil
}

// ListByApplicant returns the applications of one applicant, newest first
func (s *ApplicationService) ListByApplicant(ctx context.Context, applicantID uint) ([]model.Application, error) {
	return s.listWhere(ctx, "applicant_id = ?", applicantID)
}

// ListByInstitution returns the applications received by one institution, newest first
func (s *ApplicationService) ListByInstitution(ctx context.Context, institutionID uint) ([]model.Application, error) {
	return s.listWhere(ctx, "institution_id = ?", institutionID)
}

// ListByProgram returns the applications for one program, newest first
func (s *ApplicationService) ListByProgram(ctx context.Context, programID uint) ([]model.Application, error) {
	return s.listWhere(ctx, "program_id = ?", programID)
}

// ListByStatus returns every application in status, newest first
func (s *ApplicationService) ListByStatus(ctx context.Context, status model.ApplicationStatus) ([]model.Application, error) {
	if !status.Valid() {
		return nil, apperrors.ValidationField("status", fmt.Sprintf("unknown status %q", status))
	}
	return s.listWhere(ctx, "status = ?", status)
}

// List returns every application, newest first
func (s *ApplicationService) List(ctx context.Context) ([]model.Application, error) {
	var apps []model.Application
	if err := s.db.WithContext(ctx).Order("submitted_at DESC, id DESC").Find(&apps).Error; err != nil {
		return nil, storageError("list applications", err)
	}
	return apps, nil
}

func (s *ApplicationService) listWhere(ctx context.Context, cond string, arg interface{}) ([]model.Application, error) {
	var apps []model.Application
	if err := s.db.WithContext(ctx).Where(cond, arg).Order("submitted_at DESC, id DESC").Find(&apps).Error; err != nil {
		return nil, storageError("list applications", err)
	}
	return apps, nil
}

// CountAll returns the number of applications
func (s *ApplicationService) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Application{}).Count(&count).Error; err != nil {
		return 0, storageError("count applications", err)
	}
	return count, nil
}

// CountByStatus returns the number of applications in status
func (s *ApplicationService) CountByStatus(ctx context.Context, status model.ApplicationStatus) (int64, error) {
	if !status.Valid() {
		return 0, apperrors.ValidationField("status", fmt.Sprintf("unknown status %q", status))
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Application{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, storageError("count applications", err)
	}
	return count, nil
}

// CountSubmittedSince returns the number of applications submitted at or after since
func (s *ApplicationService) CountSubmittedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Application{}).Where("submitted_at >= ?", since).Count(&count).Error; err != nil {
		return 0, storageError("count applications", err)
	}
	return count, nil
}

// Stats returns the per-status breakdown across all institutions
func (s *ApplicationService) Stats(ctx context.Context) (*ApplicationStats, error) {
	return s.stats(s.db.WithContext(ctx).Model(&model.Application{}), 0)
}

// StatsForInstitution recomputes the per-status breakdown for one institution
func (s *ApplicationService) StatsForInstitution(ctx context.Context, institutionID uint) (*ApplicationStats, error) {
	if _, err := s.institutions.GetByID(ctx, institutionID); err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx).Model(&model.Application{}).Where("institution_id = ?", institutionID)
	return s.stats(query, institutionID)
}

func (s *ApplicationService) stats(query *gorm.DB, institutionID uint) (*ApplicationStats, error) {
	var rows []struct {
		Status model.ApplicationStatus
		Count  int64
	}
	if err := query.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, storageError("aggregate applications", err)
	}

	stats := &ApplicationStats{
		InstitutionID: institutionID,
		ByStatus:      make(map[model.ApplicationStatus]int64, len(model.AllStatuses)),
	}
	for _, status := range model.AllStatuses {
		stats.ByStatus[status] = 0
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}
	return stats, nil
}

// Views builds the flattened projections for apps, loading related rows in batches
func (s *ApplicationService) Views(ctx context.Context, apps []model.Application) ([]model.ApplicationView, error) {
	if len(apps) == 0 {
		return []model.ApplicationView{}, nil
	}

	applicantIDs := make([]uint, 0, len(apps))
	programIDs := make([]uint, 0, len(apps))
	institutionIDs := make([]uint, 0, len(apps))
	for _, app := range apps {
		applicantIDs = append(applicantIDs, app.ApplicantID)
		programIDs = append(programIDs, app.ProgramID)
		institutionIDs = append(institutionIDs, app.InstitutionID)
	}

	db := s.db.WithContext(ctx)

	var applicants []model.Applicant
	if err := db.Where("id IN ?", applicantIDs).Find(&applicants).Error; err != nil {
		return nil, storageError("load applicants", err)
	}
	var programs []model.Program
	if err := db.Where("id IN ?", programIDs).Find(&programs).Error; err != nil {
		return nil, storageError("load programs", err)
	}
	var institutions []model.Institution
	if err := db.Where("id IN ?", institutionIDs).Find(&institutions).Error; err != nil {
		return nil, storageError("load institutions", err)
	}

	applicantByID := make(map[uint]*model.Applicant, len(applicants))
	for i := range applicants {
		applicantByID[applicants[i].ID] = &applicants[i]
	}
	programByID := make(map[uint]*model.Program, len(programs))
	for i := range programs {
		programByID[programs[i].ID] = &programs[i]
	}
	institutionByID := make(map[uint]*model.Institution, len(institutions))
	for i := range institutions {
		institutionByID[institutions[i].ID] = &institutions[i]
	}

	views := make([]model.ApplicationView, 0, len(apps))
	for i := range apps {
		app := &apps[i]
		views = append(views, app.ToView(applicantByID[app.ApplicantID], programByID[app.ProgramID], institutionByID[app.InstitutionID]))
	}
	return views, nil
}

// touch returns the next last-update timestamp, never earlier than previous
func (s *ApplicationService) touch(previous time.Time) time.Time {
	now := s.now()
	if now.Before(previous) {
		return previous
	}
	return now
}

func (s *ApplicationService) notify(ctx context.Context, recipient string, kind model.NotificationKind, params NotificationParams) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Notify(ctx, recipient, kind, params)
}
