package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	// TIN encryption secret. The AES key is derived from it; the service
	// refuses to start without one outside development.
	TINVaultSecret string

	// How long a verified tax record stays valid before the expiry sweep
	// moves it to expired.
	TaxRecordValidity time.Duration

	// Reserve hold window between payout completion and reserve release.
	ReserveHoldPeriod time.Duration

	// Sweep cadence for the background scheduler.
	SchedulerInterval time.Duration

	TransferMaxRetries int
	TransferBaseDelay  time.Duration

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	HTTPAddr string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "clearhouse"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		TINVaultSecret:    strings.TrimSpace(getenv("TIN_VAULT_SECRET", "")),
		TaxRecordValidity: getenvDuration("TAX_RECORD_VALIDITY", 3*365*24*time.Hour),
		ReserveHoldPeriod: getenvDuration("RESERVE_HOLD_PERIOD", 30*24*time.Hour),
		SchedulerInterval: getenvDuration("SCHEDULER_INTERVAL", time.Hour),

		TransferMaxRetries: getenvInt("TRANSFER_MAX_RETRIES", 3),
		TransferBaseDelay:  getenvDuration("TRANSFER_BASE_DELAY", 2*time.Second),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "clearhouse"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
