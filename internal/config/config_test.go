package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/liamcoop/precheck/criteria"
	"github.com/liamcoop/precheck/internal/logger"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	got, err := fromLookup(env(nil))
	if err != nil {
		t.Fatalf("fromLookup() error = %v", err)
	}
	want := Server{
		Addr:           ":8080",
		FailurePolicy:  criteria.FailClosed,
		LogLevel:       slog.LevelInfo,
		ShutdownPeriod: 30 * time.Second,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	got, err := fromLookup(env(map[string]string{
		"PORT":                    "9090",
		"DATABASE_URL":            "postgres://localhost/precheck",
		"CRITERIA_FILE":           " criteria.yaml ",
		"CRITERIA_FAILURE_POLICY": "OPEN",
		"CRITERIA_CACHE_TTL":      "5m",
		"LOG_LEVEL":               "debug",
		"SHUTDOWN_TIMEOUT":        "10s",
	}))
	if err != nil {
		t.Fatalf("fromLookup() error = %v", err)
	}
	want := Server{
		Addr:           ":9090",
		DatabaseURL:    "postgres://localhost/precheck",
		CriteriaFile:   "criteria.yaml",
		FailurePolicy:  criteria.FailOpen,
		CriteriaTTL:    5 * time.Minute,
		LogLevel:       logger.LevelDebug,
		ShutdownPeriod: 10 * time.Second,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	tests := map[string]string{
		"CRITERIA_FAILURE_POLICY": "sometimes",
		"CRITERIA_CACHE_TTL":      "forever",
		"LOG_LEVEL":               "loud",
		"SHUTDOWN_TIMEOUT":        "0s",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := fromLookup(env(map[string]string{key: value}))
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Errorf("fromLookup(%s=%s) error = %v", key, value, err)
			}
		})
	}
}
