package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteDialect struct{}

func (sqliteDialect) DriverName() string { return "sqlite3" }

// DSN ensures the parent directory of a file DSN exists and adds busy
// timeout and WAL journaling.
func (sqliteDialect) DSN(dsn string) string {
	if dsn == "" {
		dsn = "./data/doublewords.db"
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "?") {
		return dsn
	}
	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	return dsn + "?_busy_timeout=5000&_journal_mode=WAL"
}

func (sqliteDialect) Rebind(q string) string { return q }

func (sqliteDialect) Configure(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return fmt.Errorf("set pragmas: %w", err)
	}
	return nil
}

func (sqliteDialect) Upsert(table string, keys, cols []string) string {
	return onConflict(table, keys, cols)
}
