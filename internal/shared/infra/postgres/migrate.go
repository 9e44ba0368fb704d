package postgres

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql

	"github.com/cornjacket/pdv-terminal/internal/shared/infra/migrator"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations brings the sales schema at databaseURL up to date.
// goose needs database/sql, so this opens its own short-lived handle
// instead of borrowing from the pool.
func RunMigrations(databaseURL string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migration: %w", err)
	}
	defer db.Close()

	return migrator.Up(db, migrator.Config{Dialect: "postgres", FS: migrations, Dir: "migrations"}, logger)
}
