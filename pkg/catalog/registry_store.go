package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/animecore/animecore/pkg/cachestore"
)

// ExtensionRecord is registry bookkeeping for an installed plugin: the
// domain-stack addition to C1 that lets the registry answer "what is
// installed and from where" without re-scanning the plugin directory.
// This is separate from Preferences (which only tracks the disabled
// set) and is grounded on Wraient-pair's extension table.
type ExtensionRecord struct {
	Name          string
	Package       string
	Language      string
	Version       string
	Path          string
	RepositoryURL string
	InstalledAt   time.Time
	UpdatedAt     time.Time
}

// ExtensionStore persists ExtensionRecord rows in a small SQLite
// database (extensions.db per §6), reusing the migration runner
// pkg/cachestore was built around.
type ExtensionStore struct {
	conn *sql.DB
}

func extensionSchema() cachestore.Migration {
	// Version 2: OpenDB has already recorded the cache schema as
	// version 1 on this connection, so a version-1 migration here
	// would be skipped.
	return cachestore.Migration{
		Version:     2,
		Description: "extension registry bookkeeping",
		SQL: `
			CREATE TABLE IF NOT EXISTS extensions (
				package        TEXT PRIMARY KEY,
				name           TEXT NOT NULL,
				language       TEXT NOT NULL,
				version        TEXT NOT NULL,
				path           TEXT NOT NULL,
				repository_url TEXT,
				installed_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
	}
}

// OpenExtensionStore opens (creating if necessary) the extension
// bookkeeping database at path.
func OpenExtensionStore(path string) (*ExtensionStore, error) {
	conn, err := cachestore.OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := cachestore.RunMigrations(conn, []cachestore.Migration{extensionSchema()}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("extension store migration: %w", err)
	}
	return &ExtensionStore{conn: conn}, nil
}

// Close closes the underlying connection.
func (s *ExtensionStore) Close() error {
	return s.conn.Close()
}

// Put upserts an ExtensionRecord keyed by package.
func (s *ExtensionStore) Put(rec ExtensionRecord) error {
	_, err := s.conn.Exec(
		`INSERT INTO extensions (package, name, language, version, path, repository_url, installed_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		 ON CONFLICT(package) DO UPDATE SET
		   name = excluded.name, language = excluded.language, version = excluded.version,
		   path = excluded.path, repository_url = excluded.repository_url, updated_at = CURRENT_TIMESTAMP`,
		rec.Package, rec.Name, rec.Language, rec.Version, rec.Path, rec.RepositoryURL,
	)
	return err
}

// Get retrieves an ExtensionRecord by package name.
func (s *ExtensionStore) Get(pkg string) (*ExtensionRecord, error) {
	var rec ExtensionRecord
	err := s.conn.QueryRow(
		`SELECT package, name, language, version, path, repository_url, installed_at, updated_at
		 FROM extensions WHERE package = ?`, pkg,
	).Scan(&rec.Package, &rec.Name, &rec.Language, &rec.Version, &rec.Path, &rec.RepositoryURL, &rec.InstalledAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// All lists every installed extension, ordered by name.
func (s *ExtensionStore) All() ([]ExtensionRecord, error) {
	rows, err := s.conn.Query(
		`SELECT package, name, language, version, path, repository_url, installed_at, updated_at
		 FROM extensions ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExtensionRecord
	for rows.Next() {
		var rec ExtensionRecord
		if err := rows.Scan(&rec.Package, &rec.Name, &rec.Language, &rec.Version, &rec.Path, &rec.RepositoryURL, &rec.InstalledAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes an extension record by package name.
func (s *ExtensionStore) Delete(pkg string) error {
	_, err := s.conn.Exec("DELETE FROM extensions WHERE package = ?", pkg)
	return err
}
