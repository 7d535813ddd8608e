package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_DRIVER    string // "postgres" or "sqlite"
	DB_PATH      string // sqlite file, ":memory:" for an ephemeral store
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// Logging
	LOG_LEVEL  string
	LOG_FORMAT string
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL string
	// Attachment storage
	ATTACHMENT_BACKEND   string // "local" or "spaces"
	UPLOAD_DIR           string
	MAX_IMAGE_SIZE_MB    int
	MAX_DOCUMENT_SIZE_MB int
	// DigitalOcean Spaces (S3 compatible)
	DO_SPACES_ACCESS_KEY string
	DO_SPACES_SECRET_KEY string
	DO_SPACES_BUCKET     string
	DO_SPACES_REGION     string
	DO_SPACES_ENDPOINT   string
	// SMTP
	SMTP_HOST     string
	SMTP_PORT     int
	SMTP_USERNAME string
	SMTP_PASSWORD string
	SMTP_FROM     string
	// Scheduler
	CRON_ENABLED        bool
	DIGEST_SCHEDULE     string
	WEEKLY_SCHEDULE     string
	RECONCILE_SCHEDULE  string
	CLEANUP_SCHEDULE    string
	NOTIFICATION_TTL_HR int
	// Lifecycle
	LIFECYCLE_PERMISSIVE bool
	// HTTP
	ALLOWED_ORIGINS string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := getEnvOrDefault("DB_HOST", "localhost")
	dbPort := getEnvOrDefault("DB_PORT", "5432")

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_DRIVER:    strings.ToLower(getEnvOrDefault("DB_DRIVER", "postgres")),
		DB_PATH:      getEnvOrDefault("DB_PATH", "univast.db"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		PORT:         port,
		// Logging
		LOG_LEVEL:  getEnvOrDefault("LOG_LEVEL", "info"),
		LOG_FORMAT: getEnvOrDefault("LOG_FORMAT", "text"),
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: getEnvOrDefault("JWT_ISSUER", "univast-api"),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Attachments
		ATTACHMENT_BACKEND:   strings.ToLower(getEnvOrDefault("ATTACHMENT_BACKEND", "local")),
		UPLOAD_DIR:           getEnvOrDefault("UPLOAD_DIR", "uploads"),
		MAX_IMAGE_SIZE_MB:    getIntOrDefault("MAX_IMAGE_SIZE_MB", 5),
		MAX_DOCUMENT_SIZE_MB: getIntOrDefault("MAX_DOCUMENT_SIZE_MB", 10),
		// DigitalOcean Spaces
		DO_SPACES_ACCESS_KEY: os.Getenv("DO_SPACES_ACCESS_KEY"),
		DO_SPACES_SECRET_KEY: os.Getenv("DO_SPACES_SECRET_KEY"),
		DO_SPACES_BUCKET:     os.Getenv("DO_SPACES_BUCKET"),
		DO_SPACES_REGION:     os.Getenv("DO_SPACES_REGION"),
		DO_SPACES_ENDPOINT:   os.Getenv("DO_SPACES_ENDPOINT"),
		// SMTP
		SMTP_HOST:     getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTP_PORT:     getIntOrDefault("SMTP_PORT", 587),
		SMTP_USERNAME: os.Getenv("SMTP_USERNAME"),
		SMTP_PASSWORD: os.Getenv("SMTP_PASSWORD"),
		SMTP_FROM:     getEnvOrDefault("SMTP_FROM", "noreply@univast.app"),
		// Scheduler
		CRON_ENABLED:        os.Getenv("CRON_ENABLED") != "false", // Default to enabled
		DIGEST_SCHEDULE:     getEnvOrDefault("DIGEST_SCHEDULE", "0 0 8 * * *"),
		WEEKLY_SCHEDULE:     getEnvOrDefault("WEEKLY_SCHEDULE", "0 0 9 * * MON"),
		RECONCILE_SCHEDULE:  getEnvOrDefault("RECONCILE_SCHEDULE", "0 0 * * * *"),
		CLEANUP_SCHEDULE:    getEnvOrDefault("CLEANUP_SCHEDULE", "0 0 2 * * *"),
		NOTIFICATION_TTL_HR: getIntOrDefault("NOTIFICATION_TTL_HR", 24*30),
		// Lifecycle
		LIFECYCLE_PERMISSIVE: os.Getenv("LIFECYCLE_PERMISSIVE") == "true",
		// HTTP
		ALLOWED_ORIGINS: getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	return envVariables, nil
}

// IsProduction reports whether GO_ENV is set to production
func (e *EnviornmentVariable) IsProduction() bool {
	return e.GO_ENV == "production"
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntOrDefault(key string, defaultVal int) int {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil || val <= 0 {
		return defaultVal
	}
	return val
}
