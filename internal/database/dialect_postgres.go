package database

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

type postgresDialect struct{}

func (postgresDialect) DriverName() string { return "postgres" }

func (postgresDialect) DSN(dsn string) string { return dsn }

func (postgresDialect) Rebind(q string) string { return numbered(q) }

func (postgresDialect) Configure(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)
	return nil
}

func (postgresDialect) Upsert(table string, keys, cols []string) string {
	return onConflict(table, keys, cols)
}
