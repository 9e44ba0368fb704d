package migrator

import (
	"bytes"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations/00001_create_things.sql": &fstest.MapFile{Data: []byte(`-- +goose Up
CREATE TABLE things (id INTEGER PRIMARY KEY, name TEXT NOT NULL);

-- +goose Down
DROP TABLE things;
`)},
	}
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUp_AppliesMigrations(t *testing.T) {
	db := openDB(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	err := Up(db, Config{Dialect: "sqlite3", FS: testFS(), Dir: "migrations", Table: "goose_test"}, logger)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO things (name) VALUES ('a')`)
	require.NoError(t, err)

	var version int64
	require.NoError(t, db.QueryRow(`SELECT MAX(version_id) FROM goose_test`).Scan(&version))
	assert.Equal(t, int64(1), version)

	// goose output goes through the structured logger.
	assert.Contains(t, logs.String(), "component=migrator")
	assert.Contains(t, logs.String(), "00001_create_things.sql")
}

func TestUp_Idempotent(t *testing.T) {
	db := openDB(t)
	cfg := Config{Dialect: "sqlite3", FS: testFS(), Dir: "migrations"}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	require.NoError(t, Up(db, cfg, logger))
	require.NoError(t, Up(db, cfg, logger))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+TableName+` WHERE version_id = 1`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestUp_UnknownDialect(t *testing.T) {
	db := openDB(t)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	err := Up(db, Config{Dialect: "oracle9", FS: testFS(), Dir: "migrations"}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialect")
}

func TestGooseLogger_Printf(t *testing.T) {
	var logs bytes.Buffer
	l := &gooseLogger{logger: slog.New(slog.NewJSONHandler(&logs, nil))}

	l.Printf("OK   %s (%s)\n", "00001_create_sales.sql", "1ms")
	assert.Contains(t, logs.String(), `"msg":"OK   00001_create_sales.sql (1ms)"`)
	assert.Contains(t, logs.String(), `"level":"INFO"`)
}
