package services

import (
	"context"
	"strings"

	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/apperrors"
	"github.com/sahilchouksey/univast-api/utils/validation"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// InstitutionInput is the payload for creating an institution
type InstitutionInput struct {
	Name           string  `json:"name" validate:"required,max=100"`
	Location       string  `json:"location" validate:"required,max=100"`
	Description    string  `json:"description" validate:"max=1000"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	Website        string  `json:"website" validate:"omitempty,url,max=255"`
	PhoneNumber    string  `json:"phone_number" validate:"max=30"`
	FoundedYear    *int    `json:"founded_year" validate:"omitempty,gte=1000,lte=3000"`
	Accreditation  string  `json:"accreditation" validate:"max=255"`
}

func (in *InstitutionInput) sanitize() {
	in.Name = validation.SanitizeString(in.Name)
	in.Location = validation.SanitizeString(in.Location)
	in.Description = validation.SanitizeString(in.Description)
	in.Website = validation.SanitizeString(in.Website)
	in.PhoneNumber = validation.SanitizeString(in.PhoneNumber)
	in.Accreditation = validation.SanitizeString(in.Accreditation)
}

// UpdateInstitutionInput is a partial update; nil fields are left unchanged
type UpdateInstitutionInput struct {
	Name           *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Location       *string  `json:"location" validate:"omitempty,min=1,max=100"`
	Description    *string  `json:"description" validate:"omitempty,max=1000"`
	AcceptanceRate *float64 `json:"acceptance_rate"`
	Website        *string  `json:"website" validate:"omitempty,max=255"`
	PhoneNumber    *string  `json:"phone_number" validate:"omitempty,max=30"`
	FoundedYear    *int     `json:"founded_year" validate:"omitempty,gte=1000,lte=3000"`
	Accreditation  *string  `json:"accreditation" validate:"omitempty,max=255"`
}

// InstitutionService manages institutions and their denormalized counters
type InstitutionService struct {
	db          *gorm.DB
	attachments *AttachmentService
	validator   *validation.Validator
	log         logrus.FieldLogger
}

// NewInstitutionService creates a new institution service
func NewInstitutionService(db *gorm.DB, attachments *AttachmentService, log logrus.FieldLogger) *InstitutionService {
	return &InstitutionService{
		db:          db,
		attachments: attachments,
		validator:   validation.NewValidator(),
		log:         log.WithField("service", "institution"),
	}
}

// Create stores a standalone institution
func (s *InstitutionService) Create(ctx context.Context, input InstitutionInput) (*model.Institution, error) {
	var institution *model.Institution
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		institution, err = s.createTx(tx, input, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return institution, nil
}

func (s *InstitutionService) createTx(tx *gorm.DB, input InstitutionInput, accountID *uint) (*model.Institution, error) {
	input.sanitize()
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	institution := &model.Institution{
		AccountID:      accountID,
		Name:           input.Name,
		Location:       input.Location,
		Description:    input.Description,
		AcceptanceRate: model.ClampAcceptanceRate(input.AcceptanceRate),
		Website:        input.Website,
		PhoneNumber:    input.PhoneNumber,
		FoundedYear:    input.FoundedYear,
		Accreditation:  input.Accreditation,
	}

	if err := tx.Create(institution).Error; err != nil {
		return nil, writeError("create institution", "account_id", err)
	}
	return institution, nil
}

// GetByID retrieves an institution
func (s *InstitutionService) GetByID(ctx context.Context, id uint) (*model.Institution, error) {
	var institution model.Institution
	if err := s.db.WithContext(ctx).First(&institution, id).Error; err != nil {
		return nil, lookupError("institution", id, err)
	}
	return &institution, nil
}

// GetByAccountID retrieves the institution owned by an account
func (s *InstitutionService) GetByAccountID(ctx context.Context, accountID uint) (*model.Institution, error) {
	var institution model.Institution
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&institution).Error; err != nil {
		return nil, lookupError("institution for account", accountID, err)
	}
	return &institution, nil
}

// List returns a page of institutions ordered by name
func (s *InstitutionService) List(ctx context.Context, page, limit int) ([]model.Institution, int64, error) {
	var institutions []model.Institution
	var total int64

	query := s.db.WithContext(ctx).Model(&model.Institution{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storageError("count institutions", err)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	if err := query.Order("name ASC, id ASC").Offset((page - 1) * limit).Limit(limit).Find(&institutions).Error; err != nil {
		return nil, 0, storageError("list institutions", err)
	}
	return institutions, total, nil
}

// Search matches name or location, case-insensitively
func (s *InstitutionService) Search(ctx context.Context, query string) ([]model.Institution, error) {
	query = strings.TrimSpace(query)
	var institutions []model.Institution

	db := s.db.WithContext(ctx)
	if query != "" {
		pattern := likePattern(query)
		db = db.Where(`LOWER(name) LIKE LOWER(?) ESCAPE '\' OR LOWER(location) LIKE LOWER(?) ESCAPE '\'`, pattern, pattern)
	}
	if err := db.Order("name ASC, id ASC").Find(&institutions).Error; err != nil {
		return nil, storageError("search institutions", err)
	}
	return institutions, nil
}

// Update applies a partial update
func (s *InstitutionService) Update(ctx context.Context, id uint, input UpdateInstitutionInput) (*model.Institution, error) {
	sanitizePtrs(input.Name, input.Location, input.Description, input.Website, input.PhoneNumber, input.Accreditation)
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	institution, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		institution.Name = *input.Name
	}
	if input.Location != nil {
		institution.Location = *input.Location
	}
	if input.Description != nil {
		institution.Description = *input.Description
	}
	if input.AcceptanceRate != nil {
		institution.AcceptanceRate = model.ClampAcceptanceRate(*input.AcceptanceRate)
	}
	if input.Website != nil {
		institution.Website = *input.Website
	}
	if input.PhoneNumber != nil {
		institution.PhoneNumber = *input.PhoneNumber
	}
	if input.FoundedYear != nil {
		institution.FoundedYear = input.FoundedYear
	}
	if input.Accreditation != nil {
		institution.Accreditation = *input.Accreditation
	}

	// Counters are owned by refreshCounters
	if err := s.db.WithContext(ctx).Omit("program_count", "application_count").Save(institution).Error; err != nil {
		return nil, storageError("update institution", err)
	}
	return institution, nil
}

// UploadLogo stores a new logo and releases the previous one
func (s *InstitutionService) UploadLogo(ctx context.Context, id uint, payload AttachmentPayload) (*model.Institution, error) {
	institution, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ref, err := s.attachments.Store(ctx, id, CategoryLogo, payload)
	if err != nil {
		return nil, err
	}

	previous := institution.Logo
	result := s.db.WithContext(ctx).Model(institution).Update("logo", ref)
	if result.Error != nil {
		s.attachments.releaseAll(ctx, []string{ref}, "institution logo rollback")
		return nil, storageError("update institution logo", result.Error)
	}
	if result.RowsAffected == 0 {
		s.attachments.releaseAll(ctx, []string{ref}, "institution logo rollback")
		return nil, apperrors.NotFound("institution", id)
	}
	institution.Logo = ref

	s.attachments.releaseAll(ctx, []string{previous}, "institution logo")
	return institution, nil
}

// Delete removes the institution with its programs and their applications
func (s *InstitutionService) Delete(ctx context.Context, id uint) error {
	var refs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var institution model.Institution
		if err := tx.First(&institution, id).Error; err != nil {
			return lookupError("institution", id, err)
		}
		var err error
		refs, err = s.deleteTx(tx, &institution)
		return err
	})
	if err != nil {
		return err
	}

	s.log.WithField("institution_id", id).Info("institution deleted")
	s.attachments.releaseAll(ctx, refs, "institution")
	return nil
}

// deleteTx cascades to programs and applications and returns the attachment
// references to release once the transaction commits
func (s *InstitutionService) deleteTx(tx *gorm.DB, institution *model.Institution) ([]string, error) {
	var programIDs []uint
	if err := tx.Model(&model.Program{}).Where("institution_id = ?", institution.ID).Pluck("id", &programIDs).Error; err != nil {
		return nil, storageError("list institution programs", err)
	}

	cond, args := "institution_id = ?", []interface{}{institution.ID}
	if len(programIDs) > 0 {
		cond, args = "(institution_id = ? OR program_id IN ?)", []interface{}{institution.ID, programIDs}
	}

	var refs []string
	if err := tx.Model(&model.Application{}).Where(cond, args...).Where("document_path <> ''").Pluck("document_path", &refs).Error; err != nil {
		return nil, storageError("list application documents", err)
	}

	if err := tx.Where(cond, args...).Delete(&model.Application{}).Error; err != nil {
		return nil, storageError("delete institution applications", err)
	}

	if err := tx.Where("institution_id = ?", institution.ID).Delete(&model.Program{}).Error; err != nil {
		return nil, storageError("delete institution programs", err)
	}

	if err := tx.Delete(&model.Institution{}, institution.ID).Error; err != nil {
		return nil, storageError("delete institution", err)
	}

	if institution.Logo != "" {
		refs = append(refs, institution.Logo)
	}
	return refs, nil
}

// CountAll returns the number of institutions
func (s *InstitutionService) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Institution{}).Count(&count).Error; err != nil {
		return 0, storageError("count institutions", err)
	}
	return count, nil
}

// refreshCounters recomputes the derived counters from child rows.
// Every mutation that adds or removes programs or applications goes through here.
func (s *InstitutionService) refreshCounters(tx *gorm.DB, institutionID uint) error {
	var programs, applications int64
	if err := tx.Model(&model.Program{}).Where("institution_id = ?", institutionID).Count(&programs).Error; err != nil {
		return storageError("count programs", err)
	}
	if err := tx.Model(&model.Application{}).Where("institution_id = ?", institutionID).Count(&applications).Error; err != nil {
		return storageError("count applications", err)
	}

	err := tx.Model(&model.Institution{}).Where("id = ?", institutionID).UpdateColumns(map[string]interface{}{
		"program_count":     programs,
		"application_count": applications,
	}).Error
	return storageError("refresh institution counters", err)
}

// ReconcileCounters recomputes counters for every institution and returns how many drifted
func (s *InstitutionService) ReconcileCounters(ctx context.Context) (int, error) {
	var institutions []model.Institution
	if err := s.db.WithContext(ctx).Select("id", "program_count", "application_count").Find(&institutions).Error; err != nil {
		return 0, storageError("list institutions", err)
	}

	drifted := 0
	for _, inst := range institutions {
		var refreshed model.Institution
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.refreshCounters(tx, inst.ID); err != nil {
				return err
			}
			return tx.Select("id", "program_count", "application_count").First(&refreshed, inst.ID).Error
		})
		if err != nil {
			return drifted, storageError("reconcile institution counters", err)
		}
		if refreshed.ProgramCount != inst.ProgramCount || refreshed.ApplicationCount != inst.ApplicationCount {
			drifted++
			s.log.WithFields(logrus.Fields{
				"institution_id": inst.ID,
				"programs":       refreshed.ProgramCount,
				"applications":   refreshed.ApplicationCount,
			}).Warn("institution counters drifted")
		}
	}
	return drifted, nil
}

func sanitizePtrs(fields ...*string) {
	for _, f := range fields {
		if f != nil {
			*f = validation.SanitizeString(*f)
		}
	}
}
