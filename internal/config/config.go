package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all process configuration loaded from environment variables.
type Config struct {
	Env      string
	HTTPAddr string

	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	// Call signaling
	RingTimeout time.Duration

	// Message pipeline
	RateLimitMax     int
	RateLimitWindow  time.Duration
	MessageRetention time.Duration

	// Presence
	PresenceSweepEvery time.Duration
	PresenceStaleAfter time.Duration
}

// Load parses environment variables into a Config struct.
func Load() (Config, error) {
	cfg := Config{
		Env:           getEnv("APP_ENV", "dev"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		PostgresDSN:   getEnv("POSTGRES_DSN", "host=localhost user=user password=password dbname=pulsechat port=5432 sslmode=disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseIntWithDefault(os.Getenv("REDIS_DB"), 0),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		RateLimitMax:  parseIntWithDefault(os.Getenv("RATE_LIMIT_MAX"), 10),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	for _, d := range []struct {
		dst *time.Duration
		key string
		def string
	}{
		{&cfg.RingTimeout, "CALL_RING_TIMEOUT", "30s"},
		{&cfg.RateLimitWindow, "RATE_LIMIT_WINDOW", "60s"},
		{&cfg.MessageRetention, "MESSAGE_RETENTION", "720h"},
		{&cfg.PresenceSweepEvery, "PRESENCE_SWEEP_EVERY", "1h"},
		{&cfg.PresenceStaleAfter, "PRESENCE_STALE_AFTER", "24h"},
	} {
		v, err := parseDuration(d.key, d.def)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntWithDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}
