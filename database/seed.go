package database

import (
	"fmt"

	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AdminCredentials configure the bootstrap admin account; empty fields skip it
type AdminCredentials struct {
	Username string
	Email    string
	Password string
}

// Seeder handles database seeding operations
type Seeder struct {
	db     *gorm.DB
	hasher auth.PasswordHasher
	log    logrus.FieldLogger
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, hasher auth.PasswordHasher, log logrus.FieldLogger) *Seeder {
	return &Seeder{db: db, hasher: hasher, log: log}
}

// SeedAll runs all seed functions. Each step is skipped when its table already has data.
func (s *Seeder) SeedAll(admin AdminCredentials) error {
	s.log.Info("starting database seeding")

	if err := s.SeedAdminAccount(admin); err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}

	if err := s.SeedInstitutions(); err != nil {
		return fmt.Errorf("failed to seed institutions: %w", err)
	}

	s.log.Info("database seeding completed")
	return nil
}

// SeedAdminAccount creates the default admin account
func (s *Seeder) SeedAdminAccount(admin AdminCredentials) error {
	var count int64
	if err := s.db.Model(&model.Account{}).Where("role = ?", model.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		s.log.Info("admin account already exists, skipping")
		return nil
	}

	if admin.Username == "" || admin.Email == "" || admin.Password == "" {
		s.log.Warn("ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD not set, skipping admin account")
		return nil
	}

	passwordHash, err := s.hasher.Hash(admin.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	account := &model.Account{
		Username:     admin.Username,
		Email:        admin.Email,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
		Active:       true,
	}

	if err := s.db.Create(account).Error; err != nil {
		return err
	}

	s.log.WithField("username", account.Username).Info("created admin account")
	return nil
}

type seedInstitution struct {
	institution model.Institution
	programs    []model.Program
}

func sampleInstitutions() []seedInstitution {
	founded := func(y int) *int { return &y }
	return []seedInstitution{
		{
			institution: model.Institution{
				Name:           "Example College",
				Location:       "Springfield",
				Description:    "A liberal arts college with a strong science faculty.",
				AcceptanceRate: 42.5,
				Website:        "https://example.edu",
				FoundedYear:    founded(1891),
				Accreditation:  "Regional Accreditation Board",
			},
			programs: []model.Program{
				{Name: "Data Science", Degree: "MSc", Duration: "2 years", TuitionFee: 18000, Description: "Statistics, machine learning and data engineering."},
				{Name: "Computer Science", Degree: "BSc", Duration: "3 years", TuitionFee: 15000, Description: "Foundations of computing."},
			},
		},
		{
			institution: model.Institution{
				Name:           "Northfield Institute of Technology",
				Location:       "Northfield",
				Description:    "Engineering and applied sciences.",
				AcceptanceRate: 18,
				Website:        "https://nit.example.org",
				FoundedYear:    founded(1953),
			},
			programs: []model.Program{
				{Name: "Mechanical Engineering", Degree: "BEng", Duration: "4 years", TuitionFee: 21000},
				{Name: "Electrical Engineering", Degree: "BEng", Duration: "4 years", TuitionFee: 21000},
				{Name: "Robotics", Degree: "MEng", Duration: "1 year", TuitionFee: 24000},
			},
		},
	}
}

// SeedInstitutions creates sample institutions and their programs
func (s *Seeder) SeedInstitutions() error {
	var count int64
	if err := s.db.Model(&model.Institution{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		s.log.Info("institutions already exist, skipping")
		return nil
	}

	samples := sampleInstitutions()
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, sample := range samples {
			inst := sample.institution
			inst.ProgramCount = len(sample.programs)
			if err := tx.Create(&inst).Error; err != nil {
				return err
			}
			for _, p := range sample.programs {
				p.InstitutionID = inst.ID
				if err := tx.Create(&p).Error; err != nil {
					return err
				}
			}
			s.log.WithFields(logrus.Fields{
				"institution": inst.Name,
				"programs":    len(sample.programs),
			}).Info("created institution")
		}
		return nil
	})
}

// RunSeeds is a convenience function to run all seeds
func RunSeeds(db *gorm.DB, admin AdminCredentials, log logrus.FieldLogger) error {
	return NewSeeder(db, auth.NewBcryptHasher(), log).SeedAll(admin)
}
