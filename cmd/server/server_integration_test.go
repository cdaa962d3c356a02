//go:build integration

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/precheck/internal/config"
)

// setupTestDB creates a PostgreSQL testcontainer and runs the migrations
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())

	var db *sql.DB
	for i := 0; i < 30; i++ {
		if db, err = openDB(connStr); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	m, err := migrate.New("file://../../migrations", connStr)
	if err != nil {
		t.Fatalf("Failed to create migration instance: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	m.Close()

	return db, func() {
		db.Close()
		postgres.Terminate(ctx)
	}
}

func TestPostgresBackedServer(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	s, err := NewServer(config.Server{}, db)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	health := decode[HealthResponse](t, do(t, s, http.MethodGet, "/api/v1/health", nil))
	if health.Status != "healthy" || health.Store != "postgres" {
		t.Errorf("health = %+v", health)
	}

	if rec := do(t, s, http.MethodPut, "/api/v1/projects/grant-2025", ProjectRequest{
		Name: "Research grant", StartDate: "2025-01-01", EndDate: "2025-12-31",
	}); rec.Code != http.StatusOK {
		t.Fatalf("put project status = %d: %s", rec.Code, rec.Body)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/criteria", periodCriterion); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}

	// A second server over the same database sees the stored state.
	restarted, err := NewServer(config.Server{}, db)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	resp := decode[EvaluateCriteriaResponse](t, do(t, restarted, http.MethodPost, "/api/v1/criteria/evaluate", EvaluateCriteriaRequest{
		ProjectID:    "grant-2025",
		DocumentData: map[string]any{"invoice_date": "2026-01-01"},
	}))
	if len(resp.Results) != 1 || resp.Passed {
		t.Errorf("response = %+v", resp)
	}
}
