package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	AWS          AWSConfig
	Email        EmailConfig
	Registration RegistrationConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings for the occupancy gauge.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds staff JWT signing settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds S3 settings for CV storage.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	CVBucket             string
	PresignExpireMinutes int
}

// EmailConfig holds SMTP settings and sender identity.
type EmailConfig struct {
	FromAddress string
	FromName    string
	ReplyTo     string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// RegistrationConfig holds workflow settings: token lifetimes, the public
// host embedded in emailed links, and the registration deadline.
type RegistrationConfig struct {
	Host           string // e.g. https://registro.hackudc.gpul.org
	VerifyTTLDays  int
	ConfirmTTLDays int
	ClosesAt       time.Time // zero = registration never closes
}

// DSN returns the PostgreSQL connection string. If DatabaseConfig.URL is
// set it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	var closesAt time.Time
	if v := os.Getenv("REGISTRATION_CLOSES_AT"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("parse REGISTRATION_CLOSES_AT: %w", err)
		}
		closesAt = t
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "hackathon"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			CVBucket:             getEnv("AWS_S3_CV_BUCKET", "hackathon-cvs"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@gpul.org"),
			FromName:    getEnv("EMAIL_FROM_NAME", "HackUDC"),
			ReplyTo:     getEnv("EMAIL_REPLY_TO", "hackudc@gpul.org"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		Registration: RegistrationConfig{
			Host:           getEnv("REGISTRATION_HOST", "http://localhost:8080"),
			VerifyTTLDays:  getEnvInt("VERIFY_TOKEN_TTL_DAYS", 7),
			ConfirmTTLDays: getEnvInt("CONFIRM_TOKEN_TTL_DAYS", 14),
			ClosesAt:       closesAt,
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
