package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"repaytrack/internal/logger"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Authentication modes.
const (
	AuthNone    = "none"
	AuthProfile = "profile"
)

// Config holds application configuration
type Config struct {
	Env string

	// Server
	Port       string
	CORSOrigin string

	// Storage
	StorageDriver string
	DataFile      string
	DataFileWatch bool
	SQLitePath    string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Auth
	AuthMode         string
	JWTSecret        string
	JWTExpirationDur time.Duration
}

const devJWTSecret = "fallback-secret-key-for-dev-only"

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		logger.Get().Debug(".env file not found, using environment only")
	}

	config := &Config{
		Env: getEnv("ENV", "development"),

		// Server
		Port:       getEnv("PORT", "8080"),
		CORSOrigin: getEnv("CORS_ORIGIN", "*"),

		// Storage
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", DriverFile)),
		DataFile:      getEnv("DATA_FILE", "data/data.json"),
		DataFileWatch: getEnvBool("DATA_FILE_WATCH", false),
		SQLitePath:    getEnv("SQLITE_PATH", "data/repaytrack.db"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "repaytrack"),
		DBPassword: getEnv("DB_PASSWORD", "repaytrack"),
		DBName:     getEnv("DB_NAME", "repaytrack"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Auth
		AuthMode:  strings.ToLower(getEnv("AUTH_MODE", AuthNone)),
		JWTSecret: getEnv("JWT_SECRET", devJWTSecret),
	}

	// Parse JWT expiration duration
	expStr := getEnv("JWT_EXPIRES_IN", "24h")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		logger.Get().Warnf("invalid JWT_EXPIRES_IN value '%s', falling back to 24h", expStr)
		expDur = 24 * time.Hour
	}
	config.JWTExpirationDur = expDur

	if err := config.Validate(); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

// Validate checks option values that cannot be defaulted.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid PORT %q: must be a number between 1 and 65535", c.Port)
	}

	switch c.StorageDriver {
	case DriverFile, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q: must be one of file, postgres, sqlite", c.StorageDriver)
	}

	switch c.AuthMode {
	case AuthNone:
	case AuthProfile:
		if c.Env == "production" && (c.JWTSecret == "" || c.JWTSecret == devJWTSecret) {
			return fmt.Errorf("JWT_SECRET must be set when AUTH_MODE=profile in production")
		}
	default:
		return fmt.Errorf("invalid AUTH_MODE %q: must be none or profile", c.AuthMode)
	}

	if c.JWTExpirationDur <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive")
	}

	return nil
}

// PostgresURL returns the database URL used by golang-migrate.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			logger.Get().Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		logger.Get().Warnf("invalid %s value '%s', falling back to %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}
