package services

import (
	"context"
	"strings"
	"time"

	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/apperrors"
	"github.com/sahilchouksey/univast-api/utils/validation"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ApplicantInput is the payload for creating an applicant profile
type ApplicantInput struct {
	FirstName           string     `json:"first_name" validate:"required,max=50"`
	LastName            string     `json:"last_name" validate:"required,max=50"`
	Email               string     `json:"email" validate:"required,email,max=100"`
	Bio                 string     `json:"bio" validate:"max=500"`
	GPA                 *float64   `json:"gpa" validate:"omitempty,gte=0,lte=100"`
	DateOfBirth         *time.Time `json:"date_of_birth"`
	Location            string     `json:"location" validate:"max=100"`
	EducationBackground string     `json:"education_background" validate:"max=2000"`
}

func (in *ApplicantInput) sanitize() {
	in.FirstName = validation.SanitizeString(in.FirstName)
	in.LastName = validation.SanitizeString(in.LastName)
	in.Email = validation.SanitizeEmail(in.Email)
	in.Bio = validation.SanitizeString(in.Bio)
	in.Location = validation.SanitizeString(in.Location)
	in.EducationBackground = validation.SanitizeString(in.EducationBackground)
}

// UpdateApplicantInput is a partial update; nil fields are left unchanged
type UpdateApplicantInput struct {
	FirstName           *string    `json:"first_name" validate:"omitempty,min=1,max=50"`
	LastName            *string    `json:"last_name" validate:"omitempty,min=1,max=50"`
	Email               *string    `json:"email" validate:"omitempty,email,max=100"`
	Bio                 *string    `json:"bio" validate:"omitempty,max=500"`
	GPA                 *float64   `json:"gpa" validate:"omitempty,gte=0,lte=100"`
	DateOfBirth         *time.Time `json:"date_of_birth"`
	Location            *string    `json:"location" validate:"omitempty,max=100"`
	EducationBackground *string    `json:"education_background" validate:"omitempty,max=2000"`
}

// ApplicantService manages applicant profiles
type ApplicantService struct {
	db           *gorm.DB
	institutions *InstitutionService
	attachments  *AttachmentService
	validator    *validation.Validator
	log          logrus.FieldLogger
}

// NewApplicantService creates a new applicant service
func NewApplicantService(db *gorm.DB, institutions *InstitutionService, attachments *AttachmentService, log logrus.FieldLogger) *ApplicantService {
	return &ApplicantService{
		db:           db,
		institutions: institutions,
		attachments:  attachments,
		validator:    validation.NewValidator(),
		log:          log.WithField("service", "applicant"),
	}
}

// Create stores a standalone applicant profile
func (s *ApplicantService) Create(ctx context.Context, input ApplicantInput) (*model.Applicant, error) {
	var applicant *model.Applicant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		applicant, err = s.createTx(tx, input, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return applicant, nil
}

func (s *ApplicantService) createTx(tx *gorm.DB, input ApplicantInput, accountID *uint) (*model.Applicant, error) {
	input.sanitize()
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	var count int64
	if err := tx.Model(&model.Applicant{}).Where("email = ?", input.Email).Count(&count).Error; err != nil {
		return nil, storageError("check applicant email", err)
	}
	if count > 0 {
		return nil, apperrors.Duplicate("email")
	}

	applicant := &model.Applicant{
		AccountID:           accountID,
		FirstName:           input.FirstName,
		LastName:            input.LastName,
		Email:               input.Email,
		Bio:                 input.Bio,
		GPA:                 input.GPA,
		DateOfBirth:         input.DateOfBirth,
		Location:            input.Location,
		EducationBackground: input.EducationBackground,
	}

	if err := tx.Create(applicant).Error; err != nil {
		return nil, writeError("create applicant", "email", err)
	}
	return applicant, nil
}

// GetByID retrieves an applicant
func (s *ApplicantService) GetByID(ctx context.Context, id uint) (*model.Applicant, error) {
	var applicant model.Applicant
	if err := s.db.WithContext(ctx).First(&applicant, id).Error; err != nil {
		return nil, lookupError("applicant", id, err)
	}
	return &applicant, nil
}

// GetByEmail retrieves an applicant by email
func (s *ApplicantService) GetByEmail(ctx context.Context, email string) (*model.Applicant, error) {
	email = validation.SanitizeEmail(email)
	var applicant model.Applicant
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&applicant).Error; err != nil {
		return nil, lookupError("applicant", email, err)
	}
	return &applicant, nil
}

// GetByAccountID retrieves the applicant owned by an account
func (s *ApplicantService) GetByAccountID(ctx context.Context, accountID uint) (*model.Applicant, error) {
	var applicant model.Applicant
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&applicant).Error; err != nil {
		return nil, lookupError("applicant for account", accountID, err)
	}
	return &applicant, nil
}

// List returns every applicant ordered by name
func (s *ApplicantService) List(ctx context.Context) ([]model.Applicant, error) {
	var applicants []model.Applicant
	if err := s.db.WithContext(ctx).Order("last_name ASC, first_name ASC, id ASC").Find(&applicants).Error; err != nil {
		return nil, storageError("list applicants", err)
	}
	return applicants, nil
}

// Search matches first name, last name or "first last", case-insensitively
func (s *ApplicantService) Search(ctx context.Context, name string) ([]model.Applicant, error) {
	name = strings.TrimSpace(name)
	var applicants []model.Applicant

	db := s.db.WithContext(ctx)
	if name != "" {
		pattern := likePattern(name)
		db = db.Where(
			`LOWER(first_name) LIKE LOWER(?) ESCAPE '\' OR LOWER(last_name) LIKE LOWER(?) ESCAPE '\' OR LOWER(first_name || ' ' || last_name) LIKE LOWER(?) ESCAPE '\'`,
			pattern, pattern, pattern,
		)
	}
	if err := db.Order("last_name ASC, first_name ASC, id ASC").Find(&applicants).Error; err != nil {
		return nil, storageError("search applicants", err)
	}
	return applicants, nil
}

// Update applies a partial update
func (s *ApplicantService) Update(ctx context.Context, id uint, input UpdateApplicantInput) (*model.Applicant, error) {
	sanitizePtrs(input.FirstName, input.LastName, input.Bio, input.Location, input.EducationBackground)
	if input.Email != nil {
		*input.Email = validation.SanitizeEmail(*input.Email)
	}
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	var applicant model.Applicant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&applicant, id).Error; err != nil {
			return lookupError("applicant", id, err)
		}

		if input.Email != nil && *input.Email != applicant.Email {
			var count int64
			if err := tx.Model(&model.Applicant{}).Where("email = ? AND id <> ?", *input.Email, id).Count(&count).Error; err != nil {
				return storageError("check applicant email", err)
			}
			if count > 0 {
				return apperrors.Duplicate("email")
			}
			applicant.Email = *input.Email
		}
		if input.FirstName != nil {
			applicant.FirstName = *input.FirstName
		}
		if input.LastName != nil {
			applicant.LastName = *input.LastName
		}
		if input.Bio != nil {
			applicant.Bio = *input.Bio
		}
		if input.GPA != nil {
			applicant.GPA = input.GPA
		}
		if input.DateOfBirth != nil {
			applicant.DateOfBirth = input.DateOfBirth
		}
		if input.Location != nil {
			applicant.Location = *input.Location
		}
		if input.EducationBackground != nil {
			applicant.EducationBackground = *input.EducationBackground
		}

		if err := tx.Save(&applicant).Error; err != nil {
			return writeError("update applicant", "email", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &applicant, nil
}

// UploadProfileImage stores a new profile image and releases the previous one
func (s *ApplicantService) UploadProfileImage(ctx context.Context, id uint, payload AttachmentPayload) (*model.Applicant, error) {
	applicant, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ref, err := s.attachments.Store(ctx, id, CategoryProfileImage, payload)
	if err != nil {
		return nil, err
	}

	previous := applicant.ProfileImage
	result := s.db.WithContext(ctx).Model(applicant).Update("profile_image", ref)
	if result.Error != nil {
		s.attachments.releaseAll(ctx, []string{ref}, "profile image rollback")
		return nil, storageError("update profile image", result.Error)
	}
	if result.RowsAffected == 0 {
		s.attachments.releaseAll(ctx, []string{ref}, "profile image rollback")
		return nil, apperrors.NotFound("applicant", id)
	}
	applicant.ProfileImage = ref

	s.attachments.releaseAll(ctx, []string{previous}, "applicant profile image")
	return applicant, nil
}

// Delete removes the applicant and all of its applications
func (s *ApplicantService) Delete(ctx context.Context, id uint) error {
	var refs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var applicant model.Applicant
		if err := tx.First(&applicant, id).Error; err != nil {
			return lookupError("applicant", id, err)
		}
		var err error
		refs, err = s.deleteTx(tx, &applicant)
		return err
	})
	if err != nil {
		return err
	}

	s.log.WithField("applicant_id", id).Info("applicant deleted")
	s.attachments.releaseAll(ctx, refs, "applicant")
	return nil
}

// deleteTx cascades to the applicant's applications, refreshes the counters of
// every institution that lost one, and returns the attachments to release
func (s *ApplicantService) deleteTx(tx *gorm.DB, applicant *model.Applicant) ([]string, error) {
	var apps []model.Application
	if err := tx.Select("id", "institution_id", "document_path").Where("applicant_id = ?", applicant.ID).Find(&apps).Error; err != nil {
		return nil, storageError("list applicant applications", err)
	}

	var refs []string
	touched := map[uint]bool{}
	for _, app := range apps {
		if app.DocumentPath != "" {
			refs = append(refs, app.DocumentPath)
		}
		touched[app.InstitutionID] = true
	}

	if err := tx.Where("applicant_id = ?", applicant.ID).Delete(&model.Application{}).Error; err != nil {
		return nil, storageError("delete applicant applications", err)
	}
	if err := tx.Delete(&model.Applicant{}, applicant.ID).Error; err != nil {
		return nil, storageError("delete applicant", err)
	}

	for institutionID := range touched {
		if err := s.institutions.refreshCounters(tx, institutionID); err != nil {
			return nil, err
		}
	}

	if applicant.ProfileImage != "" {
		refs = append(refs, applicant.ProfileImage)
	}
	return refs, nil
}

// CountAll returns the number of applicants
func (s *ApplicantService) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Applicant{}).Count(&count).Error; err != nil {
		return 0, storageError("count applicants", err)
	}
	return count, nil
}
