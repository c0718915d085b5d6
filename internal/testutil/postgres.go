// Package testutil provides test helpers including container
// management for repository tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gm-tools/encounterbot/internal/config"
	"github.com/gm-tools/encounterbot/internal/storage/postgres"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	RawPool   *pgxpool.Pool
	Config    config.DatabaseConfig
}

// NewPostgresContainer starts a PostgreSQL test container and returns
// a connected Pool.
//
// Precondition: Docker must be available.
// Postcondition: Returns a running container with a connected pool,
// or fails the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v [%s]", err, time.Since(start))
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("getting container host: %v", err)
	}

	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("getting mapped port: %v", err)
	}

	dbCfg := config.DatabaseConfig{
		Host:            host,
		Port:            mappedPort.Int(),
		User:            "test",
		Password:        "test",
		Name:            "test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v [%s]", err, time.Since(start))
	}

	t.Logf("postgres container started [%s]", time.Since(start))

	pc := &PostgresContainer{
		container: container,
		Pool:      pool,
		RawPool:   pool.DB(),
		Config:    dbCfg,
	}

	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(ctx)
	})

	return pc
}

// ApplyMigrations runs the schema creation SQL directly for tests.
// This avoids requiring the migrate tool in the test environment.
//
// Precondition: Pool must be connected.
// Postcondition: The roll table schema exists in the test database.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	schema := `
		CREATE TABLE IF NOT EXISTS tenant_config (
			tenant_id   BIGINT       PRIMARY KEY,
			updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS region (
			tenant_id   BIGINT       NOT NULL,
			region_id   INTEGER      NOT NULL,
			region_name TEXT         NOT NULL,
			sort_order  INTEGER      NOT NULL,
			PRIMARY KEY (tenant_id, region_id)
		);
		CREATE TABLE IF NOT EXISTS table_def (
			id          BIGSERIAL    PRIMARY KEY,
			tenant_id   BIGINT       NOT NULL,
			group_key   TEXT         NOT NULL CHECK (group_key IN ('encounter_type', 'encounter', 'reward')),
			region_id   INTEGER,
			type_key    TEXT,
			roll_mode   TEXT         NOT NULL CHECK (roll_mode IN ('uniform', 'weight', 'range')),
			max_roll    INTEGER,
			updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_table_def_selector
			ON table_def (tenant_id, group_key, COALESCE(region_id, -1), COALESCE(type_key, ''));
		CREATE INDEX IF NOT EXISTS idx_table_def_tenant ON table_def (tenant_id);
		CREATE TABLE IF NOT EXISTS table_entry (
			id          BIGSERIAL    PRIMARY KEY,
			table_id    BIGINT       NOT NULL REFERENCES table_def (id) ON DELETE CASCADE,
			min_roll    INTEGER,
			max_roll    INTEGER,
			weight      INTEGER,
			result      TEXT         NOT NULL,
			sort_order  INTEGER      NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_table_entry_table ON table_entry (table_id, sort_order);
	`

	_, err := pc.RawPool.Exec(ctx, schema)
	if err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	t.Logf("migrations applied [%s]", time.Since(start))
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pc.Config.User, pc.Config.Password,
		pc.Config.Host, pc.Config.Port,
		pc.Config.Name, pc.Config.SSLMode,
	)
}
