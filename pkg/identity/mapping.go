// Package identity resolves scraper-reported anime titles to AniList
// IDs (C6), backed by a fuzzy Levenshtein match over search candidates
// and a durable title-to-ID mapping store.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Mapping is one remembered scraper-title-to-AniList resolution. The
// search title is kept distinct from the scraper title so a later
// "switch source" can re-run the same AniList search against a
// different plugin's differently-worded title (§4.6).
type Mapping struct {
	ScraperTitle string `json:"scraper_title"`
	SearchTitle  string `json:"search_title"`
}

// MappingStore is the durable anilist_id -> Mapping table (§6:
// anilist_mappings.json), guarded by a single mutex and rewritten
// atomically on every change.
type MappingStore struct {
	mu      sync.Mutex
	path    string
	entries map[int64]Mapping
}

// OpenMappingStore loads path, or starts empty if it is missing or
// corrupt (§7: persistence failures degrade, they never abort).
func OpenMappingStore(path string) *MappingStore {
	s := &MappingStore{path: path, entries: map[int64]Mapping{}}
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var raw map[string]Mapping
	if err := json.Unmarshal(data, &raw); err != nil {
		return s
	}
	for k, v := range raw {
		var id int64
		if _, err := fmt.Sscanf(k, "%d", &id); err == nil {
			s.entries[id] = v
		}
	}
	return s
}

// Get returns the remembered mapping for anilistID, if any.
func (s *MappingStore) Get(anilistID int64) (Mapping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[anilistID]
	return m, ok
}

// Put remembers a mapping and persists it atomically.
func (s *MappingStore) Put(anilistID int64, m Mapping) error {
	s.mu.Lock()
	s.entries[anilistID] = m
	snapshot := make(map[string]Mapping, len(s.entries))
	for id, v := range s.entries {
		snapshot[fmt.Sprintf("%d", id)] = v
	}
	s.mu.Unlock()
	return atomicWriteJSON(s.path, snapshot)
}

// atomicWriteJSON marshals v and replaces path via a temp-file-plus-
// rename, matching the whole-file-rewrite discipline used across the
// store packages (history, preferences, anilist token) (§5).
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".store-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("write: %w", writeErr)
		}
		return fmt.Errorf("close: %w", closeErr)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
