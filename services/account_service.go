package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/apperrors"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/sahilchouksey/univast-api/utils/validation"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountInactive    = errors.New("account is inactive")
)

// CreateAccountInput is the payload for registering an account.
// At most one embedded profile may be given and it must match Role.
type CreateAccountInput struct {
	Username    string            `json:"username" validate:"required,min=3,max=50"`
	Email       string            `json:"email" validate:"required,email,max=100"`
	Password    string            `json:"password" validate:"required,min=6,max=72"`
	Role        model.Role        `json:"role" validate:"required,oneof=APPLICANT INSTITUTION ADMIN"`
	Applicant   *ApplicantInput   `json:"applicant,omitempty"`
	Institution *InstitutionInput `json:"institution,omitempty"`
}

// UpdateAccountInput is a partial update. An empty Password keeps the current one.
type UpdateAccountInput struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=50"`
	Email    *string `json:"email" validate:"omitempty,email,max=100"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
	Active   *bool   `json:"active"`
}

// AccountService manages login identities and provisions their profiles
type AccountService struct {
	db           *gorm.DB
	hasher       auth.PasswordHasher
	applicants   *ApplicantService
	institutions *InstitutionService
	attachments  *AttachmentService
	validator    *validation.Validator
	log          logrus.FieldLogger
	now          Clock
}

// NewAccountService creates a new account service
func NewAccountService(db *gorm.DB, hasher auth.PasswordHasher, applicants *ApplicantService, institutions *InstitutionService, attachments *AttachmentService, log logrus.FieldLogger) *AccountService {
	return &AccountService{
		db:           db,
		hasher:       hasher,
		applicants:   applicants,
		institutions: institutions,
		attachments:  attachments,
		validator:    validation.NewValidator(),
		log:          log.WithField("service", "account"),
		now:          SystemClock,
	}
}

// Create registers an account. An embedded profile is created and linked in the
// same transaction; either both are stored or neither is.
func (s *AccountService) Create(ctx context.Context, input CreateAccountInput) (*model.Account, error) {
	input.Username = validation.SanitizeString(input.Username)
	input.Email = validation.SanitizeEmail(input.Email)
	if input.Applicant != nil && input.Applicant.Email == "" {
		input.Applicant.Email = input.Email
	}

	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}
	if err := checkProfileMatchesRole(input); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, apperrors.ValidationField("password", err.Error())
		}
		return nil, storageError("hash password", err)
	}

	account := &model.Account{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
		CreatedAt:    s.now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkUnique(tx, account.Username, account.Email, 0); err != nil {
			return err
		}
		if err := tx.Create(account).Error; err != nil {
			return writeError("create account", "username", err)
		}

		switch {
		case input.Applicant != nil:
			if _, err := s.applicants.createTx(tx, *input.Applicant, &account.ID); err != nil {
				return err
			}
		case input.Institution != nil:
			if _, err := s.institutions.createTx(tx, *input.Institution, &account.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"account_id": account.ID,
		"role":       account.Role,
	}).Info("account created")
	return account, nil
}

func checkProfileMatchesRole(input CreateAccountInput) error {
	if input.Applicant != nil && input.Institution != nil {
		return apperrors.ValidationField("profile", "only one profile may be embedded")
	}
	if input.Applicant != nil && input.Role != model.RoleApplicant {
		return apperrors.ValidationField("applicant", fmt.Sprintf("applicant profile requires role %s", model.RoleApplicant))
	}
	if input.Institution != nil && input.Role != model.RoleInstitution {
		return apperrors.ValidationField("institution", fmt.Sprintf("institution profile requires role %s", model.RoleInstitution))
	}
	return nil
}

// checkUnique fails with DuplicateIdentity if another account uses username or email
func (s *AccountService) checkUnique(tx *gorm.DB, username, email string, exceptID uint) error {
	var count int64
	if username != "" {
		if err := tx.Model(&model.Account{}).Where("username = ? AND id <> ?", username, exceptID).Count(&count).Error; err != nil {
			return storageError("check username", err)
		}
		if count > 0 {
			return apperrors.Duplicate("username")
		}
	}
	if email != "" {
		if err := tx.Model(&model.Account{}).Where("email = ? AND id <> ?", email, exceptID).Count(&count).Error; err != nil {
			return storageError("check email", err)
		}
		if count > 0 {
			return apperrors.Duplicate("email")
		}
	}
	return nil
}

// GetByID retrieves an account
func (s *AccountService) GetByID(ctx context.Context, id uint) (*model.Account, error) {
	var account model.Account
	if err := s.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, lookupError("account", id, err)
	}
	return &account, nil
}

// GetByUsername retrieves an account by login name
func (s *AccountService) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	username = validation.SanitizeString(username)
	var account model.Account
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&account).Error; err != nil {
		return nil, lookupError("account", username, err)
	}
	return &account, nil
}

// GetByEmail retrieves an account by email
func (s *AccountService) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	email = validation.SanitizeEmail(email)
	var account model.Account
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil, lookupError("account", email, err)
	}
	return &account, nil
}

// ListByRole returns every account with role
func (s *AccountService) ListByRole(ctx context.Context, role model.Role) ([]model.Account, error) {
	if !role.Valid() {
		return nil, apperrors.ValidationField("role", fmt.Sprintf("unknown role %q", role))
	}
	var accounts []model.Account
	if err := s.db.WithContext(ctx).Where("role = ?", role).Order("username ASC").Find(&accounts).Error; err != nil {
		return nil, storageError("list accounts", err)
	}
	return accounts, nil
}

// Update applies a partial update. Changing the password invalidates issued tokens.
func (s *AccountService) Update(ctx context.Context, id uint, input UpdateAccountInput) (*model.Account, error) {
	sanitizePtrs(input.Username)
	if input.Email != nil {
		*input.Email = validation.SanitizeEmail(*input.Email)
	}
	// An empty replacement means "keep the current password"
	if input.Password != nil && *input.Password == "" {
		input.Password = nil
	}
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	var hash string
	if input.Password != nil {
		var err error
		if hash, err = s.hasher.Hash(*input.Password); err != nil {
			if errors.Is(err, auth.ErrPasswordTooShort) {
				return nil, apperrors.ValidationField("password", err.Error())
			}
			return nil, storageError("hash password", err)
		}
	}

	var account model.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&account, id).Error; err != nil {
			return lookupError("account", id, err)
		}

		var username, email string
		if input.Username != nil && *input.Username != account.Username {
			username = *input.Username
		}
		if input.Email != nil && *input.Email != account.Email {
			email = *input.Email
		}
		if err := s.checkUnique(tx, username, email, id); err != nil {
			return err
		}

		if username != "" {
			account.Username = username
		}
		if email != "" {
			account.Email = email
		}
		if hash != "" {
			account.PasswordHash = hash
			account.TokenVersion++
		}
		if input.Active != nil {
			account.Active = *input.Active
		}

		if err := tx.Save(&account).Error; err != nil {
			return writeError("update account", "username", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// RecordLogin sets the last-login timestamp to now
func (s *AccountService) RecordLogin(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).UpdateColumn("last_login_at", s.now())
	if result.Error != nil {
		return storageError("record login", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("account", id)
	}
	return nil
}

// Authenticate resolves login as a username or email and verifies password
func (s *AccountService) Authenticate(ctx context.Context, login, password string) (*model.Account, error) {
	login = validation.SanitizeString(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var account model.Account
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, validation.SanitizeEmail(login)).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storageError("load account", err)
	}

	if err := s.hasher.Verify(account.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !account.Active {
		return nil, ErrAccountInactive
	}

	if err := s.RecordLogin(ctx, account.ID); err != nil {
		return nil, err
	}
	now := s.now()
	account.LastLoginAt = &now
	return &account, nil
}

// Delete removes the account together with its applicant or institution profile
func (s *AccountService) Delete(ctx context.Context, id uint) error {
	var refs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account model.Account
		if err := tx.First(&account, id).Error; err != nil {
			return lookupError("account", id, err)
		}

		var applicants []model.Applicant
		if err := tx.Where("account_id = ?", id).Find(&applicants).Error; err != nil {
			return storageError("load applicant profile", err)
		}
		for i := range applicants {
			removed, err := s.applicants.deleteTx(tx, &applicants[i])
			if err != nil {
				return err
			}
			refs = append(refs, removed...)
		}

		var institutions []model.Institution
		if err := tx.Where("account_id = ?", id).Find(&institutions).Error; err != nil {
			return storageError("load institution profile", err)
		}
		for i := range institutions {
			removed, err := s.institutions.deleteTx(tx, &institutions[i])
			if err != nil {
				return err
			}
			refs = append(refs, removed...)
		}

		if err := tx.Delete(&model.Account{}, id).Error; err != nil {
			return storageError("delete account", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithField("account_id", id).Info("account deleted")
	s.attachments.releaseAll(ctx, refs, fmt.Sprintf("account %d", id))
	return nil
}

// ExistsByUsername reports whether an account uses username
func (s *AccountService) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, "username = ?", validation.SanitizeString(username))
}

// ExistsByEmail reports whether an account uses email
func (s *AccountService) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "email = ?", validation.SanitizeEmail(email))
}

func (s *AccountService) exists(ctx context.Context, cond string, arg string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Account{}).Where(cond, arg).Count(&count).Error; err != nil {
		return false, storageError("check account", err)
	}
	return count > 0, nil
}

// CountAll returns the number of accounts
func (s *AccountService) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Account{}).Count(&count).Error; err != nil {
		return 0, storageError("count accounts", err)
	}
	return count, nil
}
