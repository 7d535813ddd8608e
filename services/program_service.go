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

// ProgramInput is the payload for creating a program
type ProgramInput struct {
	Name         string  `json:"name" validate:"required,max=100"`
	Degree       string  `json:"degree" validate:"max=50"`
	Duration     string  `json:"duration" validate:"max=50"`
	TuitionFee   float64 `json:"tuition_fee" validate:"gt=0"`
	Description  string  `json:"description" validate:"max=500"`
	Requirements string  `json:"requirements" validate:"max=2000"`
}

// UpdateProgramInput is a partial update; nil fields are left unchanged
type UpdateProgramInput struct {
	Name         *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Degree       *string  `json:"degree" validate:"omitempty,max=50"`
	Duration     *string  `json:"duration" validate:"omitempty,max=50"`
	TuitionFee   *float64 `json:"tuition_fee" validate:"omitempty,gt=0"`
	Description  *string  `json:"description" validate:"omitempty,max=500"`
	Requirements *string  `json:"requirements" validate:"omitempty,max=2000"`
}

// ProgramService manages the programs an institution publishes
type ProgramService struct {
	db           *gorm.DB
	institutions *InstitutionService
	attachments  *AttachmentService
	validator    *validation.Validator
	log          logrus.FieldLogger
}

// NewProgramService creates a new program service
func NewProgramService(db *gorm.DB, institutions *InstitutionService, attachments *AttachmentService, log logrus.FieldLogger) *ProgramService {
	return &ProgramService{
		db:           db,
		institutions: institutions,
		attachments:  attachments,
		validator:    validation.NewValidator(),
		log:          log.WithField("service", "program"),
	}
}

// Create adds a program to an existing institution
func (s *ProgramService) Create(ctx context.Context, institutionID uint, input ProgramInput) (*model.Program, error) {
	input.Name = validation.SanitizeString(input.Name)
	input.Degree = validation.SanitizeString(input.Degree)
	input.Duration = validation.SanitizeString(input.Duration)
	input.Description = validation.SanitizeString(input.Description)
	input.Requirements = validation.SanitizeString(input.Requirements)
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	program := &model.Program{
		InstitutionID: institutionID,
		Name:          input.Name,
		Degree:        input.Degree,
		Duration:      input.Duration,
		TuitionFee:    input.TuitionFee,
		Description:   input.Description,
		Requirements:  input.Requirements,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Institution{}).Where("id = ?", institutionID).Count(&count).Error; err != nil {
			return storageError("load institution", err)
		}
		if count == 0 {
			return apperrors.NotFound("institution", institutionID)
		}

		if err := tx.Create(program).Error; err != nil {
			return storageError("create program", err)
		}
		return s.institutions.refreshCounters(tx, institutionID)
	})
	if err != nil {
		return nil, err
	}
	return program, nil
}

// GetByID retrieves a program
func (s *ProgramService) GetByID(ctx context.Context, id uint) (*model.Program, error) {
	var program model.Program
	if err := s.db.WithContext(ctx).First(&program, id).Error; err != nil {
		return nil, lookupError("program", id, err)
	}
	return &program, nil
}

// List returns every program ordered by name
func (s *ProgramService) List(ctx context.Context) ([]model.Program, error) {
	var programs []model.Program
	if err := s.db.WithContext(ctx).Order("name ASC, id ASC").Find(&programs).Error; err != nil {
		return nil, storageError("list programs", err)
	}
	return programs, nil
}

// ListByInstitution returns the programs of one institution
func (s *ProgramService) ListByInstitution(ctx context.Context, institutionID uint) ([]model.Program, error) {
	var programs []model.Program
	if err := s.db.WithContext(ctx).Where("institution_id = ?", institutionID).Order("name ASC, id ASC").Find(&programs).Error; err != nil {
		return nil, storageError("list programs", err)
	}
	return programs, nil
}

// Search matches name or degree, case-insensitively
func (s *ProgramService) Search(ctx context.Context, query string) ([]model.Program, error) {
	query = strings.TrimSpace(query)
	var programs []model.Program

	db := s.db.WithContext(ctx)
	if query != "" {
		pattern := likePattern(query)
		db = db.Where(`LOWER(name) LIKE LOWER(?) ESCAPE '\' OR LOWER(degree) LIKE LOWER(?) ESCAPE '\'`, pattern, pattern)
	}
	if err := db.Order("name ASC, id ASC").Find(&programs).Error; err != nil {
		return nil, storageError("search programs", err)
	}
	return programs, nil
}

// Update applies a partial update. The owning institution never changes.
func (s *ProgramService) Update(ctx context.Context, id uint, input UpdateProgramInput) (*model.Program, error) {
	sanitizePtrs(input.Name, input.Degree, input.Duration, input.Description, input.Requirements)
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	program, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		program.Name = *input.Name
	}
	if input.Degree != nil {
		program.Degree = *input.Degree
	}
	if input.Duration != nil {
		program.Duration = *input.Duration
	}
	if input.TuitionFee != nil {
		program.TuitionFee = *input.TuitionFee
	}
	if input.Description != nil {
		program.Description = *input.Description
	}
	if input.Requirements != nil {
		program.Requirements = *input.Requirements
	}

	if err := s.db.WithContext(ctx).Save(program).Error; err != nil {
		return nil, storageError("update program", err)
	}
	return program, nil
}

// Delete removes a program and its applications
func (s *ProgramService) Delete(ctx context.Context, id uint) error {
	var refs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var program model.Program
		if err := tx.First(&program, id).Error; err != nil {
			return lookupError("program", id, err)
		}

		if err := tx.Model(&model.Application{}).Where("program_id = ? AND document_path <> ''", id).Pluck("document_path", &refs).Error; err != nil {
			return storageError("list application documents", err)
		}
		if err := tx.Where("program_id = ?", id).Delete(&model.Application{}).Error; err != nil {
			return storageError("delete program applications", err)
		}
		if err := tx.Delete(&model.Program{}, id).Error; err != nil {
			return storageError("delete program", err)
		}
		return s.institutions.refreshCounters(tx, program.InstitutionID)
	})
	if err != nil {
		return err
	}

	s.log.WithField("program_id", id).Info("program deleted")
	s.attachments.releaseAll(ctx, refs, "program")
	return nil
}

// CountAll returns the number of programs
func (s *ProgramService) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Program{}).Count(&count).Error; err != nil {
		return 0, storageError("count programs", err)
	}
	return count, nil
}
