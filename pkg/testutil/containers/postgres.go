//go:build integration

package containers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"idmanager/internal/platform/database"
)

// PostgresContainer is a Postgres instance with the embedded migrations applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("idmanager_test"),
		postgres.WithUsername("idmanager"),
		postgres.WithPassword("idmanager_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	pc := &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}

	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Shared through Manager; Ryuk removes it when the test process exits.
	return pc
}

// TruncateTables clears the given tables with CASCADE.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		_, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE")
		if err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// TruncateIssuance clears every issuance table.
func (p *PostgresContainer) TruncateIssuance(ctx context.Context) error {
	return p.TruncateTables(ctx,
		"credential_offers",
		"connection_invitations",
		"credential_requests",
		"credential_definitions",
	)
}

// Exec runs a SQL statement and returns the result.
func (p *PostgresContainer) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.DB.ExecContext(ctx, query, args...)
}

// Query runs a SQL query and returns rows.
func (p *PostgresContainer) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return p.DB.QueryContext(ctx, query, args...)
}

// QueryRow runs a SQL query expected to return a single row.
func (p *PostgresContainer) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.DB.QueryRowContext(ctx, query, args...)
}

// CreateTestDefinition inserts an enabled credential definition and returns its ID.
func (p *PostgresContainer) CreateTestDefinition(ctx context.Context, t testing.TB, credDefID string, attributeNames ...string) uuid.UUID {
	t.Helper()
	names, err := json.Marshal(attributeNames)
	if err != nil {
		t.Fatalf("CreateTestDefinition: %v", err)
	}
	defID := uuid.New()
	_, err = p.Exec(ctx, `
		INSERT INTO credential_definitions (id, name, credential_id, schema_id, attribute_names, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
	`, defID, "Test Definition "+defID.String()[:8], credDefID, "schema:"+credDefID, names)
	if err != nil {
		t.Fatalf("CreateTestDefinition: %v", err)
	}
	return defID
}
