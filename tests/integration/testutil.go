//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/studyowl-platform/studyowl/internal/auth"
)

type TestEnv struct {
	Pool *pgxpool.Pool
}

var testEnv *TestEnv

// SetupTestEnv starts a pgvector-enabled PostgreSQL container, applies the
// migrations, and returns a shared environment for the package's tests.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:0.8.1-pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "studyowl_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/studyowl_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	testEnv = &TestEnv{Pool: pool}
	return testEnv
}

// CreateUser inserts a user row directly and returns its id.
func (e *TestEnv) CreateUser(t *testing.T, email string) uuid.UUID {
	t.Helper()

	hash, err := auth.HashPassword("test-password-123")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	userID := uuid.New()
	_, err = e.Pool.Exec(context.Background(),
		`INSERT INTO users (id, email, password_hash, daily_tokens_reset_at)
		 VALUES ($1, $2, $3, NOW())`, userID, email, hash)
	if err != nil {
		t.Fatalf("inserting user: %v", err)
	}
	return userID
}
