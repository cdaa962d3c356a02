// Package config reads the server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/liamcoop/precheck/criteria"
	"github.com/liamcoop/precheck/internal/logger"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	DatabaseURL    string
	CriteriaFile   string
	FailurePolicy  criteria.FailurePolicy
	CriteriaTTL    time.Duration
	LogLevel       slog.Level
	ShutdownPeriod time.Duration
}

// FromEnv builds a Server config from environment variables. Unset variables
// fall back to defaults; malformed ones are reported.
func FromEnv() (Server, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Server, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := Server{
		Addr:           ":8080",
		DatabaseURL:    get("DATABASE_URL"),
		CriteriaFile:   get("CRITERIA_FILE"),
		FailurePolicy:  criteria.FailClosed,
		LogLevel:       slog.LevelInfo,
		ShutdownPeriod: 30 * time.Second,
	}

	if port := get("PORT"); port != "" {
		cfg.Addr = ":" + port
	}

	switch v := strings.ToLower(get("CRITERIA_FAILURE_POLICY")); v {
	case "", "closed", "open":
		cfg.FailurePolicy = criteria.ParseFailurePolicy(v)
	default:
		return Server{}, fmt.Errorf("CRITERIA_FAILURE_POLICY: unknown policy %q (want open or closed)", v)
	}

	if v := get("CRITERIA_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl < 0 {
			return Server{}, fmt.Errorf("CRITERIA_CACHE_TTL: invalid duration %q", v)
		}
		cfg.CriteriaTTL = ttl
	}

	if v := get("LOG_LEVEL"); v != "" {
		level, err := logger.ParseLevel(v)
		if err != nil {
			return Server{}, fmt.Errorf("LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = level
	}

	if v := get("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Server{}, fmt.Errorf("SHUTDOWN_TIMEOUT: invalid duration %q", v)
		}
		cfg.ShutdownPeriod = d
	}

	return cfg, nil
}
