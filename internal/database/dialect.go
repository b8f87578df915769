package database

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Dialect hides the differences between the supported SQL backends.
type Dialect interface {
	// DriverName is the database/sql driver to open.
	DriverName() string

	// DSN adapts the configured data source name.
	DSN(dsn string) string

	// Rebind converts ? placeholders to the backend's syntax.
	Rebind(query string) string

	// Configure applies pool settings and session pragmas.
	Configure(db *sql.DB) error

	// Upsert builds an insert-or-update statement for table with ?
	// placeholders. keys form the conflict target; cols are overwritten.
	Upsert(table string, keys, cols []string) string
}

// DialectFor returns the dialect registered under driver.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	case "postgres", "postgresql":
		return postgresDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
}

var placeholder = regexp.MustCompile(`\?`)

// numbered converts ? placeholders to $1, $2, ...
func numbered(query string) string {
	n := 0
	return placeholder.ReplaceAllStringFunc(query, func(string) string {
		n++
		return "$" + strconv.Itoa(n)
	})
}

func insertPrefix(table string, keys, cols []string) string {
	all := append(append([]string{}, keys...), cols...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(all)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(all, ", "), marks)
}

// onConflict is the upsert tail shared by sqlite and postgres.
func onConflict(table string, keys, cols []string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s",
		insertPrefix(table, keys, cols), strings.Join(keys, ", "), strings.Join(sets, ", "))
}
