package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	AdminAPIKey string

	SigningPrivateKeySeedHex string
	SigningPrivateKeyBase64  string
	SigningKeyTrustLevel     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NonceTTLSeconds    int
	ExecRetention      int
	MatchWindowSeconds int
	MatchThreshold     float64
	EnforcementMode    string
	BlockUnverified    bool

	ClaimPatternsPath string
	PolicyPath        string

	VerifyCacheTTLSeconds int

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int
}

func FromEnv() Config {
	return Config{
		HTTPAddr:                 envDefault("HTTP_ADDR", ":8080"),
		PostgresDSN:              os.Getenv("POSTGRES_DSN"),
		LogLevel:                 envDefault("LOG_LEVEL", "info"),
		AdminAPIKey:              os.Getenv("ADMIN_API_KEY"),
		SigningPrivateKeySeedHex: os.Getenv("SIGNING_PRIVATE_KEY_SEED_HEX"),
		SigningPrivateKeyBase64:  os.Getenv("SIGNING_PRIVATE_KEY_BASE64"),
		SigningKeyTrustLevel:     envDefault("SIGNING_KEY_TRUST_LEVEL", "medium"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  envIntDefault("REDIS_DB", 0),
		NonceTTLSeconds:          envIntDefault("NONCE_TTL_SECONDS", 600),
		ExecRetention:            envIntDefault("EXEC_RETENTION", 100),
		MatchWindowSeconds:       envIntDefault("MATCH_WINDOW_SECONDS", 120),
		MatchThreshold:           envFloatDefault("MATCH_THRESHOLD", 0.3),
		EnforcementMode:          envDefault("ENFORCEMENT_MODE", "permissive"),
		BlockUnverified:          envBoolDefault("BLOCK_UNVERIFIED", false),
		ClaimPatternsPath:        os.Getenv("CLAIM_PATTERNS_PATH"),
		PolicyPath:               os.Getenv("POLICY_PATH"),
		VerifyCacheTTLSeconds:    envIntDefault("VERIFY_CACHE_TTL_SECONDS", 60),
		RateLimitRequests:        envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:   envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:         envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
	}
}

func (c Config) NonceTTL() time.Duration {
	return time.Duration(c.NonceTTLSeconds) * time.Second
}

func (c Config) MatchWindow() time.Duration {
	return time.Duration(c.MatchWindowSeconds) * time.Second
}

func (c Config) VerifyCacheTTL() time.Duration {
	return time.Duration(c.VerifyCacheTTLSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}
