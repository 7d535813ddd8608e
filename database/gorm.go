package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sahilchouksey/univast-api/config"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ Storage = (*GORMStore)(nil)

type GORMStore struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// StartGORM opens the database selected by DB_DRIVER.
// PostgreSQL goes through a lib/pq connection handed to the gorm dialect.
func StartGORM(cfg *config.EnviornmentVariable, log logrus.FieldLogger) (*GORMStore, error) {
	// Configure GORM logger
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	gormConfig := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: false,
		TranslateError:         true,
	}

	var (
		db  *gorm.DB
		err error
	)

	switch cfg.DB_DRIVER {
	case "sqlite":
		db, err = OpenSQLite(cfg.DB_PATH, gormConfig)
	case "postgres", "":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DB_HOST,
			cfg.DB_USER_NAME,
			cfg.DB_PASSWORD,
			cfg.DB_NAME,
			cfg.DB_PORT,
			cfg.DB_SSL_MODE,
		)
		gormConfig.PrepareStmt = true
		db, err = openPostgres(dsn, gormConfig)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB_DRIVER)
	}
	if err != nil {
		log.WithError(err).WithField("driver", cfg.DB_DRIVER).Error("unable to connect to database")
		return nil, err
	}

	log.WithField("driver", cfg.DB_DRIVER).Info("connected to database")

	return &GORMStore{db: db, log: log}, nil
}

// NewGORMStore wraps an already opened database
func NewGORMStore(db *gorm.DB, log logrus.FieldLogger) *GORMStore {
	return &GORMStore{db: db, log: log}
}

func openPostgres(dsn string, gormConfig *gorm.Config) (*gorm.DB, error) {
	sqlDB, err := openPQ(dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// OpenSQLite opens a pure-Go SQLite database with foreign keys enforced.
// A single connection keeps ":memory:" databases shared across the pool.
func OpenSQLite(path string, gormConfig *gorm.Config) (*gorm.DB, error) {
	if gormConfig == nil {
		gormConfig = &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), gormConfig)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// sqliteDSN turns on foreign key enforcement, which SQLite leaves off per connection
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)"
}

// Migrate creates or updates every table the services use
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// Identity
		&model.Account{},
		&model.RevokedToken{},

		// Profiles
		&model.Applicant{},
		&model.Institution{},

		// Catalog and lifecycle
		&model.Program{},
		&model.Application{},

		// Audit & logging models
		&model.NotificationLog{},
		&model.CronJobLog{},
		&model.AdminAuditLog{},
	)
}

// Init runs the AutoMigrate to create/update tables
func (s *GORMStore) Init() error {
	s.log.Info("running GORM AutoMigrate")

	if err := Migrate(s.db); err != nil {
		s.log.WithError(err).Error("AutoMigrate failed")
		return err
	}

	s.log.Info("GORM AutoMigrate completed")
	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	s.log.Info("closing database connection")
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the GORM DB instance for use in services/handlers
func (s *GORMStore) GetDB() *gorm.DB {
	return s.db
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
