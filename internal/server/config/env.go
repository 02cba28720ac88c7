package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv copies variables from a .env file into the process
// environment. Variables that are already set win; a missing file is fine.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

type lookupFunc func(key string) (string, bool)

// parseEnv overlays environment variables. RIDEHAIL_* names take priority
// over the short legacy names (PORT, DATABASE_URL, JWT_SECRET, REDIS_URL).
func parseEnv(cfg *Config, lookup lookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	if port, ok := lookup("PORT"); ok && port != "" {
		cfg.HTTPAddr = ":" + port
	}
	str(&cfg.HTTPAddr, "RIDEHAIL_HTTP_ADDR")
	str(&cfg.GRPCAddr, "RIDEHAIL_GRPC_ADDR")
	str(&cfg.DatabaseDSN, "RIDEHAIL_DATABASE_DSN", "DATABASE_URL")
	str(&cfg.SecretKey, "RIDEHAIL_SECRET_KEY", "JWT_SECRET")
	str(&cfg.TokenIssuer, "RIDEHAIL_TOKEN_ISSUER")
	str(&cfg.CORSOrigin, "RIDEHAIL_CORS_ORIGIN")
	str(&cfg.RedisURL, "RIDEHAIL_REDIS_URL", "REDIS_URL")
	str(&cfg.LogLevel, "RIDEHAIL_LOG_LEVEL")

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"RIDEHAIL_ACCESS_TOKEN_TTL", &cfg.AccessTokenValidityDuration},
		{"RIDEHAIL_SESSION_LOOKUP_TIMEOUT", &cfg.SessionLookupTimeout},
		{"RIDEHAIL_RATE_LIMIT_WINDOW", &cfg.RateLimitWindow},
		{"RIDEHAIL_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"RIDEHAIL_BCRYPT_COST", &cfg.BcryptCost},
		{"RIDEHAIL_RATE_LIMIT_REQUESTS", &cfg.RateLimitRequests},
	}
	for _, i := range ints {
		v, ok := lookup(i.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", i.key, err)
		}
		*i.dst = parsed
	}

	return nil
}
