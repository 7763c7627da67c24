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
	Server   ServerConfig
	Auth     AuthConfig
	Lockout  LockoutConfig
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
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	// RequestsPerMinute is the per-IP budget for credential endpoints
	RequestsPerMinute int
}

type AuthConfig struct {
	JWTSecret                string
	Issuer                   string
	SessionExpiry            time.Duration
	RecoveryTokenExpiry      time.Duration
	VerificationTokenExpiry  time.Duration
	ResetRedirectURL         string
	VerificationURL          string
	ProviderRatePerMinute    int
	SessionFile              string
	RequireEmailVerification bool
	FailureDelay             time.Duration
	FailureJitter            time.Duration
}

// LockoutConfig mirrors services.LockoutPolicy plus the sweep schedule
type LockoutConfig struct {
	MaxAttempts     int
	AttemptWindow   time.Duration
	LockoutDuration time.Duration
	SweepInterval   time.Duration
	AuditCapacity   int
}

type EmailConfig struct {
	// Provider is "ses" or "log"
	Provider    string
	AWSRegion   string
	FromAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")
	port := getEnv("PORT", "8080")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "authguard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 1)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:              port,
			Env:               env,
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:    parseAllowedOrigins(env),
			TrustedProxies:    splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 20),
		},
		Auth: AuthConfig{
			JWTSecret:                jwtSecret,
			Issuer:                   getEnv("JWT_ISSUER", "authguard"),
			SessionExpiry:            getEnvAsDuration("SESSION_EXPIRY", 7*24*time.Hour),
			RecoveryTokenExpiry:      getEnvAsDuration("RECOVERY_TOKEN_EXPIRY", 1*time.Hour),
			VerificationTokenExpiry:  getEnvAsDuration("VERIFICATION_TOKEN_EXPIRY", 24*time.Hour),
			ResetRedirectURL:         getEnv("RESET_REDIRECT_URL", "http://localhost:5173/reset-password"),
			VerificationURL:          getEnv("VERIFICATION_URL_BASE", "http://localhost:"+port+"/auth/verify-email"),
			ProviderRatePerMinute:    getEnvAsInt("PROVIDER_RATE_PER_MINUTE", 10),
			SessionFile:              getEnv("SESSION_FILE", ""),
			RequireEmailVerification: getEnvAsBool("REQUIRE_EMAIL_VERIFICATION", false),
			FailureDelay:             getEnvAsDuration("AUTH_FAILURE_DELAY", 250*time.Millisecond),
			FailureJitter:            getEnvAsDuration("AUTH_FAILURE_JITTER", 100*time.Millisecond),
		},
		Lockout: LockoutConfig{
			MaxAttempts:     getEnvAsInt("MAX_LOGIN_ATTEMPTS", 5),
			AttemptWindow:   getEnvAsDuration("LOGIN_ATTEMPT_WINDOW", 1*time.Hour),
			LockoutDuration: getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),
			SweepInterval:   getEnvAsDuration("ATTEMPT_SWEEP_INTERVAL", 5*time.Minute),
			AuditCapacity:   getEnvAsInt("AUDIT_LOG_CAPACITY", 100),
		},
		Email: EmailConfig{
			Provider:    strings.ToLower(getEnv("EMAIL_PROVIDER", "log")),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Lockout.MaxAttempts <= 0 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be positive (got %d)", c.Lockout.MaxAttempts)
	}
	if c.Lockout.AttemptWindow <= 0 || c.Lockout.LockoutDuration <= 0 {
		return fmt.Errorf("LOGIN_ATTEMPT_WINDOW and LOCKOUT_DURATION must be positive")
	}
	if c.Lockout.AuditCapacity <= 0 {
		return fmt.Errorf("AUDIT_LOG_CAPACITY must be positive (got %d)", c.Lockout.AuditCapacity)
	}

	switch c.Email.Provider {
	case "log":
	case "ses":
		if c.Email.FromAddress == "" {
			return fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_PROVIDER=ses")
		}
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be \"ses\" or \"log\" (got %q)", c.Email.Provider)
	}

	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
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

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return splitList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// the agent serves a local UI
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}

func splitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
