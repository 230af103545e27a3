package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer string // Required: issuer claim for tokens

	RSABits      int           // Optional: RSA key size (default: 2048)
	NumKeys      int           // Optional: number of signing keys to generate (default: 2, min: 1, max: 10)
	AccessTTL    time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTTL   time.Duration // Optional: refresh token lifetime (default: 168h)
	MultiSession bool          // Optional: allow concurrent sessions per user (default: false)

	AdminUsername string // Optional: bootstrap admin username for an empty database
	AdminPassword string // Optional: bootstrap admin password

	DatabaseFile         string        // Optional: path to SQLite database file (default: ./issuer.db)
	PepperFile           string        // Optional: path to file containing pepper for password hashing (default: ./pepper)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:               os.Getenv("ISSUER_URL"),
		AccessTTL:            getEnvDurationOrDefault("ISSUER_ACCESS_TTL", 0),
		RefreshTTL:           getEnvDurationOrDefault("ISSUER_REFRESH_TTL", 0),
		MultiSession:         getEnvBoolOrDefault("ISSUER_MULTI_SESSION", false),
		AdminUsername:        os.Getenv("ISSUER_ADMIN_USERNAME"),
		AdminPassword:        os.Getenv("ISSUER_ADMIN_PASSWORD"),
		DatabaseFile:         getEnvOrDefault("ISSUER_DATABASE_FILE", "issuer.db"),
		PepperFile:           getEnvOrDefault("ISSUER_PEPPER_FILE", "pepper"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	// Zero means "use the jwtx defaults" downstream
	cfg.RSABits = getEnvIntOrDefault("ISSUER_RSA_BITS", 0)
	cfg.NumKeys = getEnvIntOrDefault("ISSUER_NUM_KEYS", 0)

	if cfg.Issuer == "" {
		cfg.Issuer = "agrilink-issuer"
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
