//go:build integration

package migrate

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMigrationsAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("aibridge"),
		postgres.WithUsername("aibridge"),
		postgres.WithPassword("aibridge"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	m := NewManager(db, Migrations(), WithSeeds(Seeds()))
	applied, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if len(applied) < 2 {
		t.Fatalf("expected all migrations applied, got %v", applied)
	}
	again, err := m.Up(ctx)
	if err != nil || len(again) != 0 {
		t.Fatalf("second Up = %v, %v", again, err)
	}
	if _, err := m.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	var orgs int
	if err := db.QueryRowContext(ctx, `select count(*) from organizations`).Scan(&orgs); err != nil || orgs != 1 {
		t.Fatalf("seeded organizations = %d, %v", orgs, err)
	}

	for range applied {
		if _, err := m.Down(ctx); err != nil {
			t.Fatalf("Down: %v", err)
		}
	}
	status, err := m.Status(ctx)
	if err != nil || len(status) != 0 {
		t.Fatalf("status after rollback = %v, %v", status, err)
	}
}
