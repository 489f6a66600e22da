// Package cachestore implements the sharded on-disk cache layer (C5):
// a sharded key/value store with TTL, used for search snapshots,
// episode lists, and identity lookups. Resolved stream URLs are never
// stored here (§4.5, §9 Open Questions) — no caller passes a
// catalog.VideoStream to Set.
package cachestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"
)

// Store is a sharded, TTL-bearing key/value cache. Each shard is its
// own SQLite database file so shard writers never contend with one
// another (mirrors the teacher's single-writer-per-connection idiom in
// Wraient-pair/pkg/database).
type Store struct {
	dir    string
	shards []*sql.DB
}

// Open opens (creating if necessary) a Store with shardCount shards
// rooted at dir. If a legacy single-file JSON cache exists at
// legacyPath and the store is otherwise empty, it is migrated in once
// and the legacy file renamed with a `.backup` suffix (§4.5 migration
// rule).
func Open(dir string, shardCount int, legacyPath string) (*Store, error) {
	if shardCount < 4 {
		shardCount = 4
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}

	shards := make([]*sql.DB, shardCount)
	for i := 0; i < shardCount; i++ {
		path := filepath.Join(dir, fmt.Sprintf("shard-%02d.db", i))
		conn, err := OpenDB(path)
		if err != nil {
			for _, s := range shards[:i] {
				s.Close()
			}
			return nil, err
		}
		shards[i] = conn
	}

	s := &Store{dir: dir, shards: shards}

	if legacyPath != "" {
		if err := s.migrateLegacy(legacyPath); err != nil {
			// Legacy migration is best-effort; a corrupt legacy file
			// must not prevent the cache from being usable (§7 Cache
			// corrupt / missing -> treated as miss).
			_ = err
		}
	}

	return s, nil
}

// Close closes all shard connections.
func (s *Store) Close() error {
	var firstErr error
	for _, shard := range s.shards {
		if err := shard.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Store) shardFor(key string) *sql.DB {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Get looks up key and unmarshals its value into out. It reports
// (found, error); an expired or missing key reports found=false with a
// nil error. A malformed stored value is treated as a miss (§7).
func (s *Store) Get(key string, out interface{}) (bool, error) {
	shard := s.shardFor(key)

	var raw []byte
	var expireAt time.Time
	err := shard.QueryRow("SELECT value, expire_at FROM cache_entries WHERE key = ?", key).Scan(&raw, &expireAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if !time.Now().Before(expireAt) {
		return false, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		// Schema drift / corruption: miss, not error.
		return false, nil
	}
	return true, nil
}

// Set stores value under key with the given TTL.
func (s *Store) Set(key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache set: marshal: %w", err)
	}

	shard := s.shardFor(key)
	_, err = shard.Exec(
		`INSERT INTO cache_entries (key, value, expire_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expire_at = excluded.expire_at`,
		key, raw, time.Now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete removes key if present.
func (s *Store) Delete(key string) error {
	shard := s.shardFor(key)
	_, err := shard.Exec("DELETE FROM cache_entries WHERE key = ?", key)
	return err
}

// legacyEnvelope mirrors the shape of the old single-file JSON cache:
// a flat map of key to value+expiry.
type legacyEnvelope struct {
	Entries map[string]struct {
		Value    json.RawMessage `json:"value"`
		ExpireAt time.Time       `json:"expire_at"`
	} `json:"entries"`
}

func (s *Store) migrateLegacy(legacyPath string) error {
	data, err := os.ReadFile(legacyPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	empty, err := s.isEmpty()
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}

	var legacy legacyEnvelope
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("legacy cache unreadable: %w", err)
	}

	for key, entry := range legacy.Entries {
		shard := s.shardFor(key)
		if _, err := shard.Exec(
			`INSERT INTO cache_entries (key, value, expire_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expire_at = excluded.expire_at`,
			key, []byte(entry.Value), entry.ExpireAt,
		); err != nil {
			return fmt.Errorf("legacy migrate %q: %w", key, err)
		}
	}

	return os.Rename(legacyPath, legacyPath+".backup")
}

func (s *Store) isEmpty() (bool, error) {
	for _, shard := range s.shards {
		var count int
		if err := shard.QueryRow("SELECT COUNT(*) FROM cache_entries").Scan(&count); err != nil {
			return false, err
		}
		if count > 0 {
			return false, nil
		}
	}
	return true, nil
}
