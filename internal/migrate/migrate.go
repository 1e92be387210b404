// Package migrate brings the service's own schema (the api_keys table)
// up to date at startup.
package migrate

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// migrationsDir holds the goose SQL migrations, resolved relative to
// the working directory the service starts in.
const migrationsDir = "db/migrations"

// Run applies pending migrations on a connection of its own, so the
// shared pool never hands out a session against a half-migrated schema.
func Run(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("configure migration dialect: %w", err)
	}
	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
