package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// dsnParams are applied to every connection in the pool. Pragmas issued with Exec
// would only reach a single pooled connection.
var dsnParams = map[string]string{
	"_busy_timeout": "5000",
	"_foreign_keys": "on",
	"_txlock":       "immediate",
}

// Open opens (or creates) the SQLite store at path and applies pending migrations.
// Migrations are versioned .sql files embedded from internal/db/migrations:
//
//	0001_name.up.sql / 0001_name.down.sql
//
// Use RollbackLast to revert the most recent one.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		path = "dispatch.db"
	}
	d, err := sql.Open("sqlite3", withParams(path))
	if err != nil {
		return nil, err
	}
	if err := d.Ping(); err != nil {
		_ = d.Close()
		return nil, err
	}
	if err := applyMigrations(d); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// withParams appends the connection parameters the store relies on, keeping any the
// caller already set.
func withParams(path string) string {
	base, query, _ := strings.Cut(path, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		values = url.Values{}
	}
	for k, v := range dsnParams {
		if values.Get(k) == "" {
			values.Set(k, v)
		}
	}
	if values.Get("mode") != "memory" && values.Get("_journal_mode") == "" {
		values.Set("_journal_mode", "WAL")
	}
	if !strings.HasPrefix(base, "file:") {
		base = "file:" + base
	}
	return base + "?" + values.Encode()
}

// RollbackLast rolls back the most recently applied migration, if its down script exists.
func RollbackLast(d *sql.DB) error {
	if d == nil {
		return errors.New("nil db")
	}
	if err := ensureMigrationsTable(d); err != nil {
		return err
	}
	var version int
	err := d.QueryRow(`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	} else if err != nil {
		return err
	}
	migs, err := loadMigrations()
	if err != nil {
		return err
	}
	m, ok := migs[version]
	if !ok || m.downFile == "" {
		return fmt.Errorf("no down migration found for version %d", version)
	}
	return runScript(d, m.downFile, `DELETE FROM schema_migrations WHERE version = ?`, version)
}
