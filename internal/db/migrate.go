package db

import (
	"database/sql"
	"embed"
	"fmt"
	stdfs "io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version  int
	name     string
	upFile   string
	downFile string
}

var migFileRe = regexp.MustCompile(`^([0-9]{4})_(.+)\.(up|down)\.sql$`)

func loadMigrations() (map[int]migration, error) {
	list, err := stdfs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	out := map[int]migration{}
	for _, de := range list {
		if de.IsDir() {
			continue
		}
		m := migFileRe.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		ver, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		item := out[ver]
		item.version = ver
		item.name = m[2]
		if m[3] == "up" {
			item.upFile = "migrations/" + de.Name()
		} else {
			item.downFile = "migrations/" + de.Name()
		}
		out[ver] = item
	}
	return out, nil
}

func ensureMigrationsTable(d *sql.DB) error {
	_, err := d.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        applied_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
    )`)
	return err
}

func appliedVersions(d *sql.DB) (map[int]bool, error) {
	if err := ensureMigrationsTable(d); err != nil {
		return nil, err
	}
	rows, err := d.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	got := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		got[v] = true
	}
	return got, rows.Err()
}

func applyMigrations(d *sql.DB) error {
	migs, err := loadMigrations()
	if err != nil {
		return err
	}
	applied, err := appliedVersions(d)
	if err != nil {
		return err
	}
	versions := make([]int, 0, len(migs))
	for v := range migs {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	for _, v := range versions {
		if applied[v] {
			continue
		}
		m := migs[v]
		if m.upFile == "" {
			return fmt.Errorf("missing up migration for version %04d", v)
		}
		if err := runScript(d, m.upFile, `INSERT INTO schema_migrations(version) VALUES(?)`, v); err != nil {
			return fmt.Errorf("migration %04d_%s: %w", v, m.name, err)
		}
	}
	return nil
}

// runScript executes one embedded script and records it with bookkeeping. Scripts
// starting with "-- NO_TX" run outside a transaction.
func runScript(d *sql.DB, file, bookkeeping string, version int) error {
	raw, err := migrationsFS.ReadFile(file)
	if err != nil {
		return err
	}
	text := string(raw)
	if strings.HasPrefix(strings.TrimSpace(text), "-- NO_TX") {
		if _, err := d.Exec(text); err != nil {
			return err
		}
		_, err := d.Exec(bookkeeping, version)
		return err
	}
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(text); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(bookkeeping, version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
