// Package migrator applies embedded goose migrations for both store backends.
//
// goose keeps its dialect, table name, base FS and logger in package
// globals, so every migration in the binary goes through Up.
package migrator

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

// TableName is the goose version table shared by both backends.
const TableName = "goose_pdv_terminal"

// Config selects the migration set to apply.
type Config struct {
	// Dialect is a goose dialect name, e.g. "sqlite3" or "postgres".
	Dialect string
	// FS holds the migrations under Dir.
	FS  fs.FS
	Dir string
	// Table overrides TableName.
	Table string
}

var mu sync.Mutex

// Up applies every pending migration in cfg to db. goose output is
// written through logger.
func Up(db *sql.DB, cfg Config, logger *slog.Logger) error {
	mu.Lock()
	defer mu.Unlock()

	table := cfg.Table
	if table == "" {
		table = TableName
	}

	logger = logger.With("component", "migrator", "dialect", cfg.Dialect)

	goose.SetBaseFS(cfg.FS)
	goose.SetTableName(table)
	goose.SetLogger(&gooseLogger{logger: logger})

	if err := goose.SetDialect(cfg.Dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, cfg.Dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// gooseLogger adapts slog to goose.Logger.
type gooseLogger struct {
	logger *slog.Logger
}

func (l *gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf matches the stdlib logger goose would otherwise use.
func (l *gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}
