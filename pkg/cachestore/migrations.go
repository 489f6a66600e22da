package cachestore

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration represents a single schema migration, applied once and
// recorded in the migrations table.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// RunMigrations applies any pending migrations to conn, in version order.
func RunMigrations(conn *sql.DB, migrations []Migration) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	if err := conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to start transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO migrations (version, description, applied_at) VALUES (?, ?, ?)",
			migration.Version, migration.Description, time.Now(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// cacheSchema creates the single TTL key/value table each shard owns.
func cacheSchema() Migration {
	return Migration{
		Version:     1,
		Description: "cache entries",
		SQL: `
			CREATE TABLE IF NOT EXISTS cache_entries (
				key TEXT PRIMARY KEY,
				value BLOB NOT NULL,
				expire_at TIMESTAMP NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_cache_expire_at ON cache_entries(expire_at);
		`,
	}
}
