package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type AuthConfig struct {
	LockThreshold        int           // failed attempts before the account locks
	LockWindow           time.Duration // rolling window the counter lives in
	UnlockCodeTTL        time.Duration // validity of an emailed unlock code
	ResendCooldown       time.Duration // minimum interval between code issuances
	ForcedLogoutFlagTTL  time.Duration // how long a superseded session can learn why
	SessionIdleTTL       time.Duration // idle sessions older than this are reaped
	SessionSweepInterval time.Duration
}

type EmailConfig struct {
	Provider     string // "ses" or "smtp"
	FromAddress  string
	AWSRegion    string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "dayline"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", nil),
		},
		Auth: AuthConfig{
			LockThreshold:        getEnvAsInt("AUTH_LOCK_THRESHOLD", 5),
			LockWindow:           getEnvAsDuration("AUTH_LOCK_WINDOW", 900*time.Second),
			UnlockCodeTTL:        getEnvAsDuration("AUTH_UNLOCK_CODE_TTL", 10*time.Minute),
			ResendCooldown:       getEnvAsDuration("AUTH_RESEND_COOLDOWN", 90*time.Second),
			ForcedLogoutFlagTTL:  getEnvAsDuration("AUTH_FORCED_LOGOUT_FLAG_TTL", 24*time.Hour),
			SessionIdleTTL:       getEnvAsDuration("AUTH_SESSION_IDLE_TTL", 30*24*time.Hour),
			SessionSweepInterval: getEnvAsDuration("AUTH_SESSION_SWEEP_INTERVAL", 1*time.Hour),
		},
		Email: EmailConfig{
			Provider:     getEnv("EMAIL_PROVIDER", "smtp"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "no-reply@dayline.app"),
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			SMTPHost:     getEnv("SMTP_HOST", "localhost"),
			SMTPPort:     getEnvAsInt("SMTP_PORT", 1025),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateAuthConfig(&cfg.Auth); err != nil {
		return nil, err
	}

	switch cfg.Email.Provider {
	case "ses", "smtp":
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be \"ses\" or \"smtp\", got %q", cfg.Email.Provider)
	}

	return cfg, nil
}

// validateAuthConfig rejects values that would disable the lockout and
// cooldown machinery outright.
func validateAuthConfig(cfg *AuthConfig) error {
	if cfg.LockThreshold < 1 {
		return fmt.Errorf("AUTH_LOCK_THRESHOLD must be at least 1 (got %d)", cfg.LockThreshold)
	}
	if cfg.LockWindow <= 0 {
		return fmt.Errorf("AUTH_LOCK_WINDOW must be positive")
	}
	if cfg.UnlockCodeTTL <= 0 {
		return fmt.Errorf("AUTH_UNLOCK_CODE_TTL must be positive")
	}
	if cfg.ResendCooldown <= 0 {
		return fmt.Errorf("AUTH_RESEND_COOLDOWN must be positive")
	}
	if cfg.ResendCooldown > cfg.UnlockCodeTTL {
		return fmt.Errorf("AUTH_RESEND_COOLDOWN cannot exceed AUTH_UNLOCK_CODE_TTL")
	}
	if cfg.ForcedLogoutFlagTTL <= 0 {
		return fmt.Errorf("AUTH_FORCED_LOGOUT_FLAG_TTL must be positive")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
