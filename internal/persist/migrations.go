package persist

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// ledgerSchema holds the batch ledger tables (spawn_batches), one goose
// file per schema version.
//
//go:embed migrations/*.sql
var ledgerSchema embed.FS

// RunMigrations brings the batch ledger schema up to the latest version.
// It runs once at startup, before BatchRepo is used.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(ledgerSchema)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate batch ledger schema: %w", err)
	}

	return nil
}
