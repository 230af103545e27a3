package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	UpstreamURL string // Required: base URL of the service being proxied
	IssuerURL   string // Required: base URL of the identity service (JWKS source)
	TokenIssuer string // Optional: expected issuer claim (default: agrilink-issuer)

	PublicPrefixes []string // Optional: path prefixes forwarded without a token
	AuthDisabled   bool     // Optional: disable verification entirely (default: false)

	JWKSCacheTTL     time.Duration // Optional: public key cache TTL (default: 5m)
	JWKSFetchTimeout time.Duration // Optional: JWKS fetch timeout (default: 5s)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8081)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	cfg := Config{
		UpstreamURL:         os.Getenv("GATEWAY_UPSTREAM_URL"),
		IssuerURL:           os.Getenv("GATEWAY_ISSUER_URL"),
		TokenIssuer:         getEnvOrDefault("GATEWAY_TOKEN_ISSUER", "agrilink-issuer"),
		AuthDisabled:        getEnvBoolOrDefault("GATEWAY_AUTH_DISABLED", false),
		JWKSCacheTTL:        getEnvDurationOrDefault("GATEWAY_JWKS_TTL", 5*time.Minute),
		JWKSFetchTimeout:    getEnvDurationOrDefault("GATEWAY_JWKS_FETCH_TIMEOUT", 5*time.Second),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8081),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	// Comma-separated list, e.g. "/v1/auth/,/public/"
	if prefixes := os.Getenv("GATEWAY_PUBLIC_PREFIXES"); prefixes != "" {
		for _, p := range strings.Split(prefixes, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.PublicPrefixes = append(cfg.PublicPrefixes, p)
			}
		}
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

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
